package config

import "strings"

// RecognitionConfig holds the settings for the external emotion recognition service
type RecognitionConfig struct {
	BaseURL   string `yaml:"baseUrl" json:"baseUrl"`
	TimeoutMS int    `yaml:"timeoutMs" json:"timeoutMs"`

	// AnalyzePath is the frame analysis endpoint
	AnalyzePath string `yaml:"analyzePath" json:"analyzePath"`

	// SuggestPath is the avatar suggestion endpoint
	SuggestPath string `yaml:"suggestPath" json:"suggestPath"`
}

// DefaultRecognitionConfig returns the default recognition configuration
func DefaultRecognitionConfig() RecognitionConfig {
	return RecognitionConfig{
		BaseURL:     getEnvOrDefault("AI_SERVICE_URL", "http://localhost:8000"),
		TimeoutMS:   10000, // 10 second default timeout
		AnalyzePath: "/api/v1/emotion/analyze",
		SuggestPath: "/api/v1/avatar/suggest",
	}
}

// IsEnabled returns true if the recognition service is configured
func (c RecognitionConfig) IsEnabled() bool {
	return c.BaseURL != ""
}

// AnalyzeEndpoint returns the full URL of the frame analysis endpoint
func (c RecognitionConfig) AnalyzeEndpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + c.AnalyzePath
}

// SuggestEndpoint returns the full URL of the avatar suggestion endpoint
func (c RecognitionConfig) SuggestEndpoint() string {
	return strings.TrimRight(c.BaseURL, "/") + c.SuggestPath
}
