package model

import (
	"encoding/json"
	"time"
)

// Client -> server payloads

type InitiateCallRequest struct {
	RecipientID string `json:"recipientId"`
}

type CallIDRequest struct {
	CallID string `json:"callId"`
}

type CallSignalRequest struct {
	CallID       string          `json:"callId"`
	Signal       json.RawMessage `json:"signal"`
	TargetUserID string          `json:"targetUserId"`
}

type WebRTCSignalRequest struct {
	CallID string          `json:"callId"`
	Signal json.RawMessage `json:"signal"`
	To     string          `json:"to"`
}

type ICECandidateRequest struct {
	CallID       string          `json:"callId"`
	Candidate    json.RawMessage `json:"candidate"`
	TargetUserID string          `json:"targetUserId"`
}

// EmotionFrameRequest carries either a raw frame for analysis (FrameData and
// TargetUserID set) or a pre-computed result to broadcast (UserID and Emotion set).
type EmotionFrameRequest struct {
	CallID       string          `json:"callId"`
	FrameData    string          `json:"frameData,omitempty"`
	TargetUserID string          `json:"targetUserId,omitempty"`
	UserID       string          `json:"userId,omitempty"`
	Emotion      json.RawMessage `json:"emotion,omitempty"`
}

type AvatarSuggestionRequest struct {
	Context     string `json:"context"`
	RecipientID string `json:"recipientId"`
}

// LogEmotionRequest is the REST body for manually logging an observation
type LogEmotionRequest struct {
	DetectedEmotions []string `json:"detectedEmotions"`
	DominantEmotion  string   `json:"dominantEmotion"`
	Confidence       float64  `json:"confidence"`
	GeneratedText    string   `json:"generatedText"`
	FrameData        string   `json:"frameData,omitempty"`
}

// Server -> client payloads

type CallIncomingEvent struct {
	CallID   string `json:"callId"`
	CallerID string `json:"callerId"`
}

type CallInitiatedEvent struct {
	CallID string `json:"callId"`
}

type CallAcceptedEvent struct {
	CallID     string `json:"callId"`
	AcceptedBy string `json:"acceptedBy"`
}

type CallStartedEvent struct {
	CallID       string    `json:"callId"`
	Participants [2]string `json:"participants"`
}

type CallRejectedEvent struct {
	CallID     string `json:"callId"`
	RejectedBy string `json:"rejectedBy"`
}

type CallEndedEvent struct {
	CallID   string `json:"callId"`
	EndedBy  string `json:"endedBy"`
	Duration int64  `json:"duration"`
	Reason   string `json:"reason,omitempty"`
}

type CallMissedEvent struct {
	CallID string `json:"callId"`
}

type CallErrorEvent struct {
	Message string `json:"message"`
	Error   string `json:"error"`
}

type CallSignalEvent struct {
	CallID     string          `json:"callId"`
	Signal     json.RawMessage `json:"signal"`
	FromUserID string          `json:"fromUserId"`
}

type WebRTCSignalEvent struct {
	Signal json.RawMessage `json:"signal"`
	From   string          `json:"from"`
	CallID string          `json:"callId"`
}

type ICECandidateEvent struct {
	CallID     string          `json:"callId"`
	Candidate  json.RawMessage `json:"candidate"`
	FromUserID string          `json:"fromUserId"`
}

type CallEmotionEvent struct {
	CallID          string                 `json:"callId"`
	FromUserID      string                 `json:"fromUserId"`
	Emotions        []string               `json:"emotions"`
	DominantEmotion string                 `json:"dominantEmotion"`
	Text            string                 `json:"text"`
	Confidence      float64                `json:"confidence"`
	Intensity       float64                `json:"intensity"`
	Nuances         map[string]interface{} `json:"nuances,omitempty"`
	Timestamp       time.Time              `json:"timestamp"`
}

type EmotionResultEvent struct {
	UserID  string          `json:"userId"`
	Emotion json.RawMessage `json:"emotion"`
}

type EmotionHistoryEvent struct {
	CallID   string        `json:"callId"`
	Emotions []*EmotionLog `json:"emotions"`
}
