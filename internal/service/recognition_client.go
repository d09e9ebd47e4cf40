package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"heartspeak/internal/config"
	"heartspeak/internal/model"
	"io"
	"net/http"
	"time"
)

// Recognizer is the external emotion recognition collaborator
type Recognizer interface {
	AnalyzeEmotion(ctx context.Context, req *AnalyzeRequest) (*model.EmotionAnalysis, error)
	SuggestAvatar(ctx context.Context, req *SuggestRequest) ([]model.AvatarSuggestion, error)
}

// AnalyzeRequest is the body sent for frame analysis
type AnalyzeRequest struct {
	Image   string `json:"image"`
	UserID  string `json:"userId"`
	CallID  string `json:"callId,omitempty"`
	Context string `json:"context,omitempty"`
}

// SuggestRequest is the body sent for avatar suggestions
type SuggestRequest struct {
	UserID      string `json:"userId"`
	Context     string `json:"context"`
	RecipientID string `json:"recipientId"`
}

// RecognitionClient talks to the recognition service over HTTP. Every
// failure is reported as ErrUpstreamUnavailable.
type RecognitionClient struct {
	config config.RecognitionConfig
	client *http.Client
}

// NewRecognitionClient creates a new recognition client
func NewRecognitionClient(cfg config.RecognitionConfig) *RecognitionClient {
	return &RecognitionClient{
		config: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutMS) * time.Millisecond,
		},
	}
}

// AnalyzeEmotion sends one frame for analysis
func (c *RecognitionClient) AnalyzeEmotion(ctx context.Context, req *AnalyzeRequest) (*model.EmotionAnalysis, error) {
	if !c.config.IsEnabled() {
		return nil, fmt.Errorf("%w: not configured", ErrUpstreamUnavailable)
	}

	var result model.EmotionAnalysis
	if err := c.post(ctx, c.config.AnalyzeEndpoint(), req, &result); err != nil {
		return nil, err
	}
	if !result.Success {
		msg := result.Error
		if msg == "" {
			msg = "analysis unsuccessful"
		}
		return nil, fmt.Errorf("%w: %s", ErrUpstreamUnavailable, msg)
	}
	return &result, nil
}

// SuggestAvatar asks for conversation suggestions
func (c *RecognitionClient) SuggestAvatar(ctx context.Context, req *SuggestRequest) ([]model.AvatarSuggestion, error) {
	if !c.config.IsEnabled() {
		return nil, fmt.Errorf("%w: not configured", ErrUpstreamUnavailable)
	}

	var result struct {
		Suggestions []model.AvatarSuggestion `json:"suggestions"`
	}
	if err := c.post(ctx, c.config.SuggestEndpoint(), req, &result); err != nil {
		return nil, err
	}
	return result.Suggestions, nil
}

// post makes a JSON request to the recognition service
func (c *RecognitionClient) post(ctx context.Context, url string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(jsonBody))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrUpstreamUnavailable, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode response: %v", ErrUpstreamUnavailable, err)
	}
	return nil
}
