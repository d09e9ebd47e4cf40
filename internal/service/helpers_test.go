package service

import (
	"context"
	"heartspeak/internal/cache"
	"heartspeak/internal/repository"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

type testConn struct {
	id, user string
}

func (c *testConn) ID() string     { return c.id }
func (c *testConn) UserID() string { return c.user }

type sent struct {
	Channel string
	ConnID  string
	Except  string
	Event   string
	Payload interface{}
}

// recordingHub is a Broadcaster that remembers everything sent through it
type recordingHub struct {
	mu     sync.Mutex
	sent   []sent
	joined map[string]map[string]bool // conn id -> channels
}

func newRecordingHub() *recordingHub {
	return &recordingHub{joined: make(map[string]map[string]bool)}
}

func (h *recordingHub) Join(conn Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.joined[conn.ID()] == nil {
		h.joined[conn.ID()] = make(map[string]bool)
	}
	h.joined[conn.ID()][channel] = true
}

func (h *recordingHub) Leave(conn Conn, channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.joined[conn.ID()], channel)
}

func (h *recordingHub) CloseChannel(channel string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, channels := range h.joined {
		delete(channels, channel)
	}
}

func (h *recordingHub) Emit(conn Conn, event string, payload interface{}) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.sent = append(h.sent, sent{ConnID: conn.ID(), Event: event, Payload: payload})
}

func (h *recordingHub) Publish(channel, event string, payload interface{}) int {
	return h.PublishExcept(channel, nil, event, payload)
}

func (h *recordingHub) PublishExcept(channel string, except Conn, event string, payload interface{}) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := sent{Channel: channel, Event: event, Payload: payload}
	if except != nil {
		s.Except = except.ID()
	}
	h.sent = append(h.sent, s)
	return 1
}

func (h *recordingHub) isJoined(connID, channel string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.joined[connID][channel]
}

// published returns the payloads of event sent to channel
func (h *recordingHub) published(channel, event string) []interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []interface{}
	for _, s := range h.sent {
		if s.Channel == channel && s.Event == event {
			out = append(out, s.Payload)
		}
	}
	return out
}

// emitted returns the payloads of event sent directly to a connection
func (h *recordingHub) emitted(connID, event string) []interface{} {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []interface{}
	for _, s := range h.sent {
		if s.ConnID == connID && s.Event == event {
			out = append(out, s.Payload)
		}
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type callFixture struct {
	svc   *CallService
	repo  repository.CallRepo
	hub   *recordingHub
	clock *testClock
}

func newCallFixture(t *testing.T) *callFixture {
	t.Helper()
	f := &callFixture{
		repo:  repository.NewMemoryCallRepo(),
		hub:   newRecordingHub(),
		clock: newTestClock(),
	}
	f.svc = NewCallService(f.repo, nil, f.hub, zaptest.NewLogger(t), nil, CallServiceOptions{
		RingTimeout:     45 * time.Second,
		HistoryLimit:    20,
		MaxHistoryLimit: 100,
	})
	f.svc.now = f.clock.Now
	return f
}

// memoryCache is a CallCache kept in a map. failReads makes every read fail.
type memoryCache struct {
	mu        sync.Mutex
	entries   map[string]cache.CallMembers
	failReads error
}

func (c *memoryCache) SetMembers(ctx context.Context, m *cache.CallMembers) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[m.CallID] = *m
	return nil
}

func (c *memoryCache) GetMembers(ctx context.Context, callID string) (*cache.CallMembers, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failReads != nil {
		return nil, c.failReads
	}
	m, ok := c.entries[callID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (c *memoryCache) Delete(ctx context.Context, callID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, callID)
	return nil
}

func (c *memoryCache) entry(callID string) (cache.CallMembers, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	m, ok := c.entries[callID]
	return m, ok
}

// withCache puts a membership cache in front of the fixture's store
func (f *callFixture) withCache() *memoryCache {
	c := &memoryCache{entries: make(map[string]cache.CallMembers)}
	f.svc.members = c
	return c
}
