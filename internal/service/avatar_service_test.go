package service

import (
	"context"
	"heartspeak/internal/model"
	"testing"

	"go.uber.org/zap/zaptest"
)

func TestRequestSuggestion(t *testing.T) {
	hub := newRecordingHub()
	rec := &fakeRecognizer{suggestions: []model.AvatarSuggestion{
		{Text: "Ask how their day went", Emotion: "curious", Confidence: 0.9},
		{Text: "Say something kind", Emotion: "warm", Confidence: 0.5},
	}}
	svc := NewAvatarService(rec, hub, zaptest.NewLogger(t))
	conn := &testConn{id: "c-alice", user: "alice"}

	if err := svc.RequestSuggestion(context.Background(), Actor{UserID: "alice", Conn: conn}, &model.AvatarSuggestionRequest{Context: "call"}); err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	got := hub.emitted("c-alice", EvAvatarSuggestion)
	if len(got) != 1 {
		t.Fatalf("expected one avatar:suggestion, got %d", len(got))
	}
	if s := got[0].(*model.AvatarSuggestion); s.Emotion != "curious" {
		t.Fatalf("expected first suggestion, got %+v", s)
	}
}

func TestRequestSuggestionFallback(t *testing.T) {
	hub := newRecordingHub()
	svc := NewAvatarService(&fakeRecognizer{err: ErrUpstreamUnavailable}, hub, zaptest.NewLogger(t))
	conn := &testConn{id: "c-alice", user: "alice"}

	if err := svc.RequestSuggestion(context.Background(), Actor{UserID: "alice", Conn: conn}, &model.AvatarSuggestionRequest{}); err != nil {
		t.Fatalf("RequestSuggestion: %v", err)
	}
	got := hub.emitted("c-alice", EvAvatarSuggestion)
	if len(got) != 1 {
		t.Fatalf("expected fallback avatar:suggestion, got %d", len(got))
	}
	if s := got[0].(*model.AvatarSuggestion); s.Emotion != "caring" || s.Confidence != 0.75 {
		t.Fatalf("unexpected fallback %+v", s)
	}
}
