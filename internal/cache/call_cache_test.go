package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestCache(t *testing.T) (CallCache, *miniredis.Miniredis) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewCallCache(client), srv
}

func TestCallCacheRoundTrip(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	members := &CallMembers{CallID: "c1", Participants: [2]string{"alice", "bob"}}
	if err := c.SetMembers(ctx, members); err != nil {
		t.Fatalf("SetMembers: %v", err)
	}
	if !srv.Exists("call:c1:members") {
		t.Fatalf("expected key call:c1:members, have %v", srv.Keys())
	}
	if ttl := srv.TTL("call:c1:members"); ttl <= 0 || ttl > 6*time.Hour {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	got, err := c.GetMembers(ctx, "c1")
	if err != nil {
		t.Fatalf("GetMembers: %v", err)
	}
	if got == nil || got.Participants != members.Participants || !got.Has("bob") || got.Has("carol") {
		t.Fatalf("unexpected members %+v", got)
	}

	if err := c.Delete(ctx, "c1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	got, err = c.GetMembers(ctx, "c1")
	if err != nil || got != nil {
		t.Fatalf("after delete: %+v, %v", got, err)
	}
}

func TestCallCacheMissAndExpiry(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	got, err := c.GetMembers(ctx, "unknown")
	if err != nil || got != nil {
		t.Fatalf("miss should be nil, nil; got %+v, %v", got, err)
	}

	c.SetMembers(ctx, &CallMembers{CallID: "c2", Participants: [2]string{"alice", "bob"}})
	srv.FastForward(7 * time.Hour)
	got, err = c.GetMembers(ctx, "c2")
	if err != nil || got != nil {
		t.Fatalf("expired entry should be gone; got %+v, %v", got, err)
	}
}

func TestCallCacheErrors(t *testing.T) {
	c, srv := newTestCache(t)
	ctx := context.Background()

	srv.Set("call:bad:members", "not json")
	if _, err := c.GetMembers(ctx, "bad"); err == nil {
		t.Fatal("expected decode error for a corrupt entry")
	}

	srv.SetError("ERR injected failure")
	if _, err := c.GetMembers(ctx, "c1"); err == nil {
		t.Fatal("expected server error to surface")
	}
}
