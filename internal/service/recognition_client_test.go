package service

import (
	"context"
	"encoding/json"
	"errors"
	"heartspeak/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestRecognitionClient(t *testing.T, handler http.HandlerFunc) *RecognitionClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	cfg := config.DefaultRecognitionConfig()
	cfg.BaseURL = srv.URL
	cfg.TimeoutMS = 2000
	return NewRecognitionClient(cfg)
}

func TestAnalyzeEmotion(t *testing.T) {
	client := newTestRecognitionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/emotion/analyze" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req AnalyzeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Image == "" || req.UserID != "alice" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"emotions":["happy"],"dominantEmotion":"happy","confidence":0.91,"intensity":0.4,"generatedText":"Smiling","faceDetected":true,"nuances":{"warmth":0.8}}`))
	})

	got, err := client.AnalyzeEmotion(context.Background(), &AnalyzeRequest{Image: "abc", UserID: "alice", CallID: "c1"})
	if err != nil {
		t.Fatalf("AnalyzeEmotion: %v", err)
	}
	if got.DominantEmotion != "happy" || got.Confidence != 0.91 || got.FaceDetected == nil || !*got.FaceDetected {
		t.Fatalf("unexpected analysis %+v", got)
	}
	if got.Nuances["warmth"] != 0.8 {
		t.Fatalf("nuances not decoded: %v", got.Nuances)
	}
}

func TestAnalyzeEmotionUpstreamFailures(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"unsuccessful": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"success":false,"error":"no face"}`))
		},
		"server error": func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		},
		"garbage body": func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`<html>`))
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			client := newTestRecognitionClient(t, handler)
			_, err := client.AnalyzeEmotion(context.Background(), &AnalyzeRequest{Image: "abc", UserID: "alice"})
			if !errors.Is(err, ErrUpstreamUnavailable) {
				t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
			}
		})
	}
}

func TestRecognitionClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	cfg := config.DefaultRecognitionConfig()
	cfg.BaseURL = url
	_, err := NewRecognitionClient(cfg).AnalyzeEmotion(context.Background(), &AnalyzeRequest{Image: "abc"})
	if !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}

	cfg.BaseURL = ""
	if _, err := NewRecognitionClient(cfg).SuggestAvatar(context.Background(), &SuggestRequest{}); !errors.Is(err, ErrUpstreamUnavailable) {
		t.Fatalf("disabled client: got %v", err)
	}
}

func TestSuggestAvatar(t *testing.T) {
	client := newTestRecognitionClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/avatar/suggest" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`{"suggestions":[{"text":"Tell them you missed them","emotion":"warm","confidence":0.8}]}`))
	})

	got, err := client.SuggestAvatar(context.Background(), &SuggestRequest{UserID: "alice", Context: "evening"})
	if err != nil {
		t.Fatalf("SuggestAvatar: %v", err)
	}
	if len(got) != 1 || got[0].Emotion != "warm" {
		t.Fatalf("unexpected suggestions %+v", got)
	}
}
