package ws

import (
	"encoding/json"
	"heartspeak/internal/metrics"
	"heartspeak/internal/service"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap/zaptest"
)

func drain(t *testing.T, c *Connection) []Message {
	t.Helper()
	var out []Message
	for {
		select {
		case data, ok := <-c.Send:
			if !ok {
				return out
			}
			var m Message
			if err := json.Unmarshal(data, &m); err != nil {
				t.Fatalf("bad envelope %s: %v", data, err)
			}
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestHubPublish(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a1 := NewConnection("a1", "alice")
	a2 := NewConnection("a2", "alice")
	b1 := NewConnection("b1", "bob")
	for _, c := range []*Connection{a1, a2, b1} {
		hub.Register(c)
		hub.Join(c, service.UserChannel(c.UserID()))
	}

	if n := hub.Publish(service.UserChannel("alice"), "call:incoming", map[string]string{"callId": "c1"}); n != 2 {
		t.Fatalf("delivered to %d connections, want 2", n)
	}
	for _, c := range []*Connection{a1, a2} {
		msgs := drain(t, c)
		if len(msgs) != 1 || msgs[0].Type != "call:incoming" || string(msgs[0].Payload) != `{"callId":"c1"}` {
			t.Fatalf("unexpected messages for %s: %+v", c.ID(), msgs)
		}
	}
	if msgs := drain(t, b1); len(msgs) != 0 {
		t.Fatalf("bob received %d messages for alice's channel", len(msgs))
	}

	if n := hub.Publish("call:nobody", "call:ended", nil); n != 0 {
		t.Fatalf("unknown channel delivered %d", n)
	}
}

func TestHubPublishExcept(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a := NewConnection("a", "alice")
	b := NewConnection("b", "bob")
	ch := service.CallChannel("c1")
	for _, c := range []*Connection{a, b} {
		hub.Register(c)
		hub.Join(c, ch)
		hub.Join(c, ch) // idempotent
	}
	if got := hub.Members(ch); got != 2 {
		t.Fatalf("Members = %d, want 2", got)
	}

	if n := hub.PublishExcept(ch, a, "emotion:result", map[string]string{"userId": "alice"}); n != 1 {
		t.Fatalf("delivered to %d, want 1", n)
	}
	if msgs := drain(t, a); len(msgs) != 0 {
		t.Fatal("sender must be excluded")
	}
	if msgs := drain(t, b); len(msgs) != 1 {
		t.Fatalf("bob got %d messages, want 1", len(msgs))
	}

	hub.Leave(b, ch)
	if got := hub.Members(ch); got != 1 {
		t.Fatalf("Members after leave = %d, want 1", got)
	}
}

func TestHubUnregister(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a1 := NewConnection("a1", "alice")
	a2 := NewConnection("a2", "alice")
	for _, c := range []*Connection{a1, a2} {
		hub.Register(c)
		hub.Join(c, service.UserChannel("alice"))
		hub.Join(c, service.CallChannel("c1"))
	}
	if got := hub.UserConnections("alice"); got != 2 {
		t.Fatalf("UserConnections = %d, want 2", got)
	}

	if remaining := hub.Unregister(a1); remaining != 1 {
		t.Fatalf("remaining = %d, want 1", remaining)
	}
	if _, ok := <-a1.Send; ok {
		t.Fatal("send queue should be closed")
	}
	if got := hub.Members(service.CallChannel("c1")); got != 1 {
		t.Fatalf("Members = %d, want 1", got)
	}

	// operations on an unregistered connection are ignored
	hub.Join(a1, "call:other")
	hub.Emit(a1, "call:error", nil)
	if remaining := hub.Unregister(a1); remaining != 1 {
		t.Fatalf("second unregister remaining = %d, want 1", remaining)
	}

	if remaining := hub.Unregister(a2); remaining != 0 {
		t.Fatalf("remaining = %d, want 0", remaining)
	}
	if got := hub.Members(service.CallChannel("c1")); got != 0 {
		t.Fatalf("empty channel should be gone, Members = %d", got)
	}
}

func TestHubDropsWhenQueueFull(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	hub := NewHub(zaptest.NewLogger(t), m)
	c := NewConnection("c", "alice")
	hub.Register(c)
	hub.Join(c, "user:alice")

	for i := 0; i < sendBuffer; i++ {
		if n := hub.Publish("user:alice", "call:signal", i); n != 1 {
			t.Fatalf("message %d not queued", i)
		}
	}
	if n := hub.Publish("user:alice", "call:signal", "overflow"); n != 0 {
		t.Fatal("message beyond the queue should be dropped")
	}
	if got := testutil.ToFloat64(m.Dropped); got != 1 {
		t.Fatalf("dropped counter = %v, want 1", got)
	}
}

func TestHubEmitOrder(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	c := NewConnection("c", "alice")
	hub.Register(c)

	for i := 0; i < 5; i++ {
		hub.Emit(c, "call:signal", i)
	}
	msgs := drain(t, c)
	if len(msgs) != 5 {
		t.Fatalf("got %d messages, want 5", len(msgs))
	}
	for i, m := range msgs {
		var n int
		json.Unmarshal(m.Payload, &n)
		if n != i {
			t.Fatalf("message %d carries %d, order not preserved", i, n)
		}
	}
}

func TestHubCloseChannel(t *testing.T) {
	hub := NewHub(zaptest.NewLogger(t), nil)
	a := NewConnection("a", "alice")
	b := NewConnection("b", "bob")
	for _, c := range []*Connection{a, b} {
		hub.Register(c)
		hub.Join(c, service.UserChannel(c.UserID()))
		hub.Join(c, service.CallChannel("c1"))
	}

	hub.CloseChannel(service.CallChannel("c1"))

	if n := hub.Members(service.CallChannel("c1")); n != 0 {
		t.Fatalf("closed channel still has %d members", n)
	}
	if n := hub.Publish(service.CallChannel("c1"), "emotion:result", map[string]string{}); n != 0 {
		t.Fatalf("publish to closed channel delivered to %d", n)
	}
	if n := hub.Members(service.UserChannel("alice")); n != 1 {
		t.Fatalf("user channel lost its member, have %d", n)
	}
	if joined := len(hub.joined["a"]); joined != 1 {
		t.Fatalf("connection still tracks %d channels, want 1", joined)
	}

	// closing an unknown channel is harmless
	hub.CloseChannel(service.CallChannel("missing"))
}
