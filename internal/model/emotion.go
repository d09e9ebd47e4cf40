package model

import "time"

// EmotionLog is a single persisted emotion observation for a call participant
type EmotionLog struct {
	ID               string    `json:"id" bson:"_id,omitempty"`
	CallID           string    `json:"callId" bson:"callId"`
	UserID           string    `json:"userId" bson:"userId"`
	Timestamp        time.Time `json:"timestamp" bson:"timestamp"`
	DetectedEmotions []string  `json:"detectedEmotions" bson:"detectedEmotions"`
	DominantEmotion  string    `json:"dominantEmotion" bson:"dominantEmotion"`
	Confidence       float64   `json:"confidence" bson:"confidence"`
	GeneratedText    string    `json:"generatedText" bson:"generatedText"`
	FrameData        string    `json:"frameData,omitempty" bson:"frameData,omitempty"`
}

// EmotionAnalysis is the recognition service's verdict for one frame
type EmotionAnalysis struct {
	Success         bool                   `json:"success"`
	Emotions        []string               `json:"emotions"`
	DominantEmotion string                 `json:"dominantEmotion"`
	Confidence      float64                `json:"confidence"`
	Intensity       float64                `json:"intensity"`
	GeneratedText   string                 `json:"generatedText"`
	FaceDetected    *bool                  `json:"faceDetected,omitempty"`
	Nuances         map[string]interface{} `json:"nuances,omitempty"`
	Error           string                 `json:"error,omitempty"`
}

// EmotionCount is one row of a call's dominant emotion tally
type EmotionCount struct {
	Emotion    string  `json:"emotion"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

// EmotionSummary aggregates a call's emotion logs
type EmotionSummary struct {
	CallID        string         `json:"callId"`
	TotalAnalyzed int            `json:"totalAnalyzed"`
	TopEmotions   []EmotionCount `json:"topEmotions"`
	Summary       string         `json:"summary"`
}

// AvatarSuggestion is a conversation prompt suggested to a user
type AvatarSuggestion struct {
	Text       string  `json:"text"`
	Emotion    string  `json:"emotion"`
	Confidence float64 `json:"confidence"`
}
