package app

import (
	"context"
	"heartspeak/internal/config"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap/zaptest"
)

func memoryConfig() *config.Config {
	cfg := config.Default()
	cfg.Storage = config.StorageMemory
	cfg.RedisAddr = ""
	cfg.JWTSecret = "test-secret"
	cfg.Recognition.BaseURL = ""
	return cfg
}

func TestMemoryAppServes(t *testing.T) {
	ctx := context.Background()
	a, err := Connect(ctx, memoryConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer a.Close(ctx)

	if a.Mongo != nil || a.Redis != nil || a.CallCache != nil {
		t.Fatal("memory storage must not open external connections")
	}

	a.Wire()
	if err := a.EnsureIndexes(ctx); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}

	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	for _, path := range []string{"/health", "/metrics", "/v1/webrtc/ice-servers"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET %s: status %d", path, resp.StatusCode)
		}
	}

	resp, err := http.Get(srv.URL + "/v1/ws")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous ws: status %d", resp.StatusCode)
	}
}

func TestUnreachableRedisIsNotFatal(t *testing.T) {
	cfg := memoryConfig()
	cfg.RedisAddr = "127.0.0.1:1"

	a, err := Connect(context.Background(), cfg, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Connect should start without redis: %v", err)
	}
	if a.Redis != nil || a.CallCache != nil {
		t.Fatal("unreachable redis must leave the membership cache off")
	}

	a.Wire()
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("health: status %d", resp.StatusCode)
	}
}

func TestWireRegistersProcessCollectors(t *testing.T) {
	a, err := Connect(context.Background(), memoryConfig(), zaptest.NewLogger(t))
	if err != nil {
		t.Fatal(err)
	}
	a.Wire()

	families, err := a.Registry.Gather()
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "go_goroutines" {
			found = true
		}
	}
	if !found {
		t.Fatal("go collector not registered")
	}
}
