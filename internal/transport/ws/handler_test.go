package ws

import (
	"encoding/json"
	"heartspeak/internal/config"
	"heartspeak/internal/model"
	"heartspeak/internal/platform/ratelimiter"
	"heartspeak/internal/repository"
	"heartspeak/internal/service"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

type testServer struct {
	srv  *httptest.Server
	auth *service.AuthService
	hub  *Hub
}

func newTestServer(t *testing.T, frames *ratelimiter.FrameThrottle) *testServer {
	t.Helper()
	// pumps outlive the test function, so no zaptest here
	logger := zap.NewNop()

	hub := NewHub(logger, nil)
	auth := service.NewAuthService("test-secret")
	calls := service.NewCallService(repository.NewMemoryCallRepo(), nil, hub, logger, nil, service.CallServiceOptions{
		RingTimeout: time.Minute,
	})

	rcfg := config.DefaultRecognitionConfig()
	rcfg.BaseURL = ""
	recognizer := service.NewRecognitionClient(rcfg)

	h := NewHandler(HandlerDeps{
		Hub:      hub,
		Auth:     auth,
		Calls:    calls,
		Signals:  service.NewSignalService(hub, calls, false, logger, nil),
		Emotions: service.NewEmotionService(repository.NewMemoryEmotionRepo(), calls, recognizer, hub, logger, nil, service.EmotionServiceOptions{PersistThreshold: 0.3}),
		Avatars:  service.NewAvatarService(recognizer, hub, logger),
		Frames:   frames,
		Logger:   logger,

		EndOnDisconnect: true,
	})

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return &testServer{srv: srv, auth: auth, hub: hub}
}

func (s *testServer) url(token string) string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/?token=" + token
}

func (s *testServer) dial(t *testing.T, userID string) *websocket.Conn {
	t.Helper()
	tok, err := s.auth.IssueToken(userID, "", time.Hour)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}
	c, _, err := websocket.DefaultDialer.Dial(s.url(tok.Token), nil)
	if err != nil {
		t.Fatalf("dial as %s: %v", userID, err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func send(t *testing.T, c *websocket.Conn, event string, payload interface{}) {
	t.Helper()
	raw, err := json.Marshal(payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.WriteJSON(&Message{Type: event, Payload: raw}); err != nil {
		t.Fatalf("send %s: %v", event, err)
	}
}

// expect reads until a message of type event arrives and decodes its payload into v
func expect(t *testing.T, c *websocket.Conn, event string, v interface{}) {
	t.Helper()
	c.SetReadDeadline(time.Now().Add(3 * time.Second))
	defer c.SetReadDeadline(time.Time{})

	for {
		var m Message
		if err := c.ReadJSON(&m); err != nil {
			t.Fatalf("waiting for %s: %v", event, err)
		}
		if m.Type != event {
			continue
		}
		if v != nil {
			if err := json.Unmarshal(m.Payload, v); err != nil {
				t.Fatalf("decode %s: %v", event, err)
			}
		}
		return
	}
}

func TestRejectsUnauthenticatedUpgrade(t *testing.T) {
	s := newTestServer(t, nil)

	for _, token := range []string{"", "alice", "not.a.jwt"} {
		_, resp, err := websocket.DefaultDialer.Dial(s.url(token), nil)
		if err == nil {
			t.Fatalf("token %q: expected handshake failure", token)
		}
		if resp == nil || resp.StatusCode != http.StatusUnauthorized {
			t.Fatalf("token %q: expected 401, got %v", token, resp)
		}
		if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
			t.Fatalf("token %q: Content-Type = %q", token, ct)
		}
		var body model.CallErrorEvent
		if err := json.NewDecoder(resp.Body).Decode(&body); err != nil || body.Error != service.KindAuthentication {
			t.Fatalf("token %q: body %+v, err %v", token, body, err)
		}
	}
}

func TestCallOverWebSocket(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	send(t, alice, service.EvCallInitiate, model.InitiateCallRequest{RecipientID: "bob"})
	var incoming model.CallIncomingEvent
	expect(t, bob, service.EvCallIncoming, &incoming)
	if incoming.CallerID != "alice" || incoming.CallID == "" {
		t.Fatalf("unexpected call:incoming %+v", incoming)
	}
	var initiated model.CallInitiatedEvent
	expect(t, alice, service.EvCallInitiated, &initiated)
	if initiated.CallID != incoming.CallID {
		t.Fatalf("call ids differ: %s vs %s", initiated.CallID, incoming.CallID)
	}
	callID := incoming.CallID

	send(t, bob, service.EvCallAccept, model.CallIDRequest{CallID: callID})
	var accepted model.CallAcceptedEvent
	expect(t, alice, service.EvCallAccepted, &accepted)
	if accepted.AcceptedBy != "bob" {
		t.Fatalf("acceptedBy = %q", accepted.AcceptedBy)
	}
	expect(t, bob, service.EvCallStarted, nil)

	offer := json.RawMessage(`{"type":"offer","sdp":"v=0"}`)
	send(t, alice, service.EvCallSignal, model.CallSignalRequest{CallID: callID, Signal: offer, TargetUserID: "bob"})
	var sig model.CallSignalEvent
	expect(t, bob, service.EvCallSignal, &sig)
	if sig.FromUserID != "alice" || string(sig.Signal) != string(offer) {
		t.Fatalf("unexpected call:signal %+v", sig)
	}

	for i := 0; i < 3; i++ {
		cand := json.RawMessage(`{"candidate":"c` + string(rune('0'+i)) + `"}`)
		send(t, alice, service.EvICECandidate, model.ICECandidateRequest{CallID: callID, Candidate: cand, TargetUserID: "bob"})
	}
	for i := 0; i < 3; i++ {
		var ev model.ICECandidateEvent
		expect(t, bob, service.EvICECandidate, &ev)
		want := `{"candidate":"c` + string(rune('0'+i)) + `"}`
		if string(ev.Candidate) != want {
			t.Fatalf("candidate %d = %s, want %s (relay order)", i, ev.Candidate, want)
		}
	}

	send(t, alice, service.EvCallEnd, model.CallIDRequest{CallID: callID})
	var endedA, endedB model.CallEndedEvent
	expect(t, alice, service.EvCallEnded, &endedA)
	expect(t, bob, service.EvCallEnded, &endedB)
	if endedB.EndedBy != "alice" || endedB.CallID != callID {
		t.Fatalf("unexpected call:ended %+v", endedB)
	}

	send(t, bob, service.EvCallEnd, model.CallIDRequest{CallID: callID})
	var callErr model.CallErrorEvent
	expect(t, bob, service.EvCallError, &callErr)
	if callErr.Error != service.KindInvalidState {
		t.Fatalf("second end error kind = %q", callErr.Error)
	}
}

func TestEventErrorsKeepConnectionOpen(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t, "alice")

	send(t, alice, "call:teleport", map[string]string{})
	var callErr model.CallErrorEvent
	expect(t, alice, service.EvCallError, &callErr)
	if callErr.Error != service.KindBadRequest {
		t.Fatalf("unknown event kind = %q", callErr.Error)
	}

	if err := alice.WriteMessage(websocket.TextMessage, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	expect(t, alice, service.EvCallError, &callErr)
	if callErr.Error != service.KindBadRequest {
		t.Fatalf("malformed message kind = %q", callErr.Error)
	}

	send(t, alice, service.EvCallAccept, model.CallIDRequest{CallID: "000000000000000000000000"})
	expect(t, alice, service.EvCallError, &callErr)
	if callErr.Error != service.KindNotFound {
		t.Fatalf("unknown call kind = %q", callErr.Error)
	}

	// still usable
	send(t, alice, service.EvCallInitiate, model.InitiateCallRequest{RecipientID: "bob"})
	expect(t, alice, service.EvCallInitiated, nil)
}

func TestFrameFallbackAndThrottle(t *testing.T) {
	s := newTestServer(t, ratelimiter.NewFrameThrottle(0.001, 1))
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	frame := model.EmotionFrameRequest{CallID: "c1", FrameData: "abc", TargetUserID: "bob"}
	send(t, alice, service.EvEmotionFrame, frame)

	var ev model.CallEmotionEvent
	expect(t, bob, service.EvCallEmotion, &ev)
	if ev.DominantEmotion != "processing" || ev.Confidence != 0 || ev.FromUserID != "alice" {
		t.Fatalf("expected fallback result, got %+v", ev)
	}

	send(t, alice, service.EvEmotionFrame, frame)
	var callErr model.CallErrorEvent
	expect(t, alice, service.EvCallError, &callErr)
	if callErr.Error != service.KindRateLimited {
		t.Fatalf("second frame error kind = %q", callErr.Error)
	}
}

func TestAvatarSuggestionFallback(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t, "alice")

	send(t, alice, service.EvAvatarRequest, model.AvatarSuggestionRequest{Context: "greeting"})
	var suggestion model.AvatarSuggestion
	expect(t, alice, service.EvAvatarSuggestion, &suggestion)
	if suggestion.Emotion != "caring" {
		t.Fatalf("unexpected suggestion %+v", suggestion)
	}
}

func TestDisconnectEndsOpenCalls(t *testing.T) {
	s := newTestServer(t, nil)
	alice := s.dial(t, "alice")
	bob := s.dial(t, "bob")

	send(t, alice, service.EvCallInitiate, model.InitiateCallRequest{RecipientID: "bob"})
	var incoming model.CallIncomingEvent
	expect(t, bob, service.EvCallIncoming, &incoming)
	send(t, bob, service.EvCallAccept, model.CallIDRequest{CallID: incoming.CallID})
	expect(t, alice, service.EvCallAccepted, nil)

	alice.Close()

	var ended model.CallEndedEvent
	expect(t, bob, service.EvCallEnded, &ended)
	if ended.CallID != incoming.CallID || ended.Reason != "disconnected" || ended.EndedBy != "alice" {
		t.Fatalf("unexpected call:ended %+v", ended)
	}
}

func TestOriginChecker(t *testing.T) {
	check := originChecker("https://app.example.com, https://admin.example.com")
	r := httptest.NewRequest("GET", "/v1/ws", nil)

	r.Header.Set("Origin", "https://app.example.com")
	if !check(r) {
		t.Fatal("listed origin rejected")
	}
	r.Header.Set("Origin", "https://evil.example.com")
	if check(r) {
		t.Fatal("unlisted origin accepted")
	}
	if !originChecker("*")(r) {
		t.Fatal("wildcard should accept every origin")
	}
}
