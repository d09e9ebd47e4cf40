package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"heartspeak/internal/metrics"
	"heartspeak/internal/model"
	"heartspeak/internal/platform/ratelimiter"
	"heartspeak/internal/service"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	// frames arrive as base64 images
	maxMessageSize = 2 << 20
	eventTimeout   = 30 * time.Second
)

var inboundEvents = map[string]struct{}{
	service.EvCallInitiate:   {},
	service.EvCallAccept:     {},
	service.EvCallReject:     {},
	service.EvCallEnd:        {},
	service.EvCallSignal:     {},
	service.EvWebRTCSignal:   {},
	service.EvICECandidate:   {},
	service.EvEmotionFrame:   {},
	service.EvEmotionHistory: {},
	service.EvEmotionSummary: {},
	service.EvAvatarRequest:  {},
}

// HandlerDeps wires the services the socket events are dispatched to
type HandlerDeps struct {
	Hub      *Hub
	Auth     *service.AuthService
	Calls    *service.CallService
	Signals  *service.SignalService
	Emotions *service.EmotionService
	Avatars  *service.AvatarService
	// Frames throttles emotion:frame analysis per user; nil disables it
	Frames *ratelimiter.FrameThrottle

	Logger  *zap.Logger
	Metrics *metrics.Metrics

	EndOnDisconnect bool
	// AllowedOrigins is a comma separated origin list, "*" or empty allows all
	AllowedOrigins string
}

// Handler handles WebSocket connections
type Handler struct {
	HandlerDeps
	upgrader websocket.Upgrader
	logger   *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(deps HandlerDeps) *Handler {
	h := &Handler{
		HandlerDeps: deps,
		logger:      deps.Logger.Named("ws"),
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(deps.AllowedOrigins),
	}
	return h
}

// ServeWS handles GET /v1/ws. The token is checked before the upgrade and the
// connection is subscribed to its user channel before the handshake completes.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	claims, err := h.Auth.Authenticate(r)
	if err != nil {
		h.logger.Info("rejected connection", zap.String("remote", r.RemoteAddr), zap.Error(err))
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(&model.CallErrorEvent{Message: "Authentication error", Error: service.KindAuthentication})
		return
	}

	conn := NewConnection(uuid.NewString(), claims.UserID)
	h.Hub.Register(conn)
	h.Hub.Join(conn, service.UserChannel(conn.userID))

	wsConn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.Hub.Unregister(conn)
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.Metrics.ConnectionOpened()

	h.logger.Info("user connected", zap.String("userId", conn.userID), zap.String("connId", conn.id))

	go h.writePump(wsConn, conn)
	go h.readPump(wsConn, conn)
}

func (h *Handler) readPump(wsConn *websocket.Conn, conn *Connection) {
	defer func() {
		h.disconnect(conn)
		wsConn.Close()
	}()

	wsConn.SetReadLimit(maxMessageSize)
	wsConn.SetReadDeadline(time.Now().Add(pongWait))
	wsConn.SetPongHandler(func(string) error {
		wsConn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := wsConn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Info("websocket read error", zap.String("connId", conn.id), zap.Error(err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			h.fail(conn, "", fmt.Errorf("%w: malformed message", service.ErrBadRequest))
			continue
		}
		// events of one connection are handled in arrival order
		h.dispatch(conn, &msg)
	}
}

func (h *Handler) writePump(wsConn *websocket.Conn, conn *Connection) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		wsConn.Close()
	}()

	for {
		select {
		case message, ok := <-conn.Send:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				wsConn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := wsConn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			wsConn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := wsConn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Handler) disconnect(conn *Connection) {
	remaining := h.Hub.Unregister(conn)
	h.Metrics.ConnectionClosed()
	h.logger.Info("user disconnected", zap.String("userId", conn.userID), zap.Int("remaining", remaining))

	if remaining > 0 {
		return
	}
	h.Frames.Release(conn.userID)
	if h.EndOnDisconnect {
		ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
		defer cancel()
		h.Calls.HandleDisconnect(ctx, conn.userID)
	}
}

func (h *Handler) dispatch(conn *Connection, msg *Message) {
	if _, ok := inboundEvents[msg.Type]; ok {
		h.Metrics.Event(msg.Type)
	} else {
		h.Metrics.Event("unknown")
	}
	actor := service.Actor{UserID: conn.userID, Conn: conn}

	switch msg.Type {
	case service.EvCallInitiate:
		var req model.InitiateCallRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			_, err := h.Calls.Initiate(ctx, actor, req.RecipientID)
			return err
		})

	case service.EvCallAccept:
		var req model.CallIDRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			_, err := h.Calls.Accept(ctx, actor, req.CallID)
			return err
		})

	case service.EvCallReject:
		var req model.CallIDRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			_, err := h.Calls.Reject(ctx, actor, req.CallID)
			return err
		})

	case service.EvCallEnd:
		var req model.CallIDRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			_, err := h.Calls.End(ctx, actor, req.CallID)
			return err
		})

	case service.EvCallSignal:
		var req model.CallSignalRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			return h.Signals.RelaySignal(ctx, conn.userID, &req)
		})

	case service.EvWebRTCSignal:
		var req model.WebRTCSignalRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			return h.Signals.RelayWebRTC(ctx, conn.userID, &req)
		})

	case service.EvICECandidate:
		var req model.ICECandidateRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			return h.Signals.RelayICECandidate(ctx, conn.userID, &req)
		})

	case service.EvEmotionFrame:
		h.emotionFrame(conn, actor, msg)

	case service.EvEmotionHistory:
		var req model.CallIDRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			logs, err := h.Emotions.History(ctx, conn.userID, req.CallID)
			if err != nil {
				return err
			}
			h.Hub.Emit(conn, service.EvEmotionHistory, &model.EmotionHistoryEvent{CallID: req.CallID, Emotions: logs})
			return nil
		})

	case service.EvEmotionSummary:
		var req model.CallIDRequest
		h.handle(conn, msg, &req, func(ctx context.Context) error {
			summary, err := h.Emotions.Summary(ctx, conn.userID, req.CallID)
			if err != nil {
				return err
			}
			h.Hub.Emit(conn, service.EvEmotionSummary, summary)
			return nil
		})

	case service.EvAvatarRequest:
		var req model.AvatarSuggestionRequest
		if err := decode(msg.Payload, &req); err != nil {
			h.fail(conn, msg.Type, err)
			return
		}
		go h.run(conn, msg.Type, func(ctx context.Context) error {
			return h.Avatars.RequestSuggestion(ctx, actor, &req)
		})

	default:
		h.fail(conn, msg.Type, fmt.Errorf("%w: unknown event %q", service.ErrBadRequest, msg.Type))
	}
}

// emotionFrame analyzes frames off the read loop so slow recognition does not
// hold back signaling; pre-computed results are broadcast inline.
func (h *Handler) emotionFrame(conn *Connection, actor service.Actor, msg *Message) {
	var req model.EmotionFrameRequest
	if err := decode(msg.Payload, &req); err != nil {
		h.fail(conn, msg.Type, err)
		return
	}

	if req.FrameData == "" {
		h.run(conn, msg.Type, func(ctx context.Context) error {
			return h.Emotions.HandleFrame(ctx, actor, &req)
		})
		return
	}

	if !h.Frames.Allow(conn.userID, time.Now()) {
		h.Metrics.FrameRateLimited()
		h.fail(conn, msg.Type, fmt.Errorf("%w: too many frames", service.ErrRateLimited))
		return
	}
	go h.run(conn, msg.Type, func(ctx context.Context) error {
		return h.Emotions.AnalyzeFrame(ctx, actor, &req)
	})
}

func (h *Handler) handle(conn *Connection, msg *Message, req interface{}, fn func(ctx context.Context) error) {
	if err := decode(msg.Payload, req); err != nil {
		h.fail(conn, msg.Type, err)
		return
	}
	h.run(conn, msg.Type, fn)
}

// run invokes fn with a bounded context and turns an error or a panic into a
// call:error for the sender. The connection stays open either way.
func (h *Handler) run(conn *Connection, event string, fn func(ctx context.Context) error) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("panic in event handler",
				zap.String("event", event),
				zap.String("userId", conn.userID),
				zap.Any("panic", rec),
				zap.Stack("stack"))
			h.fail(conn, event, fmt.Errorf("panic: %v", rec))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), eventTimeout)
	defer cancel()

	if err := fn(ctx); err != nil {
		h.fail(conn, event, err)
	}
}

func (h *Handler) fail(conn *Connection, event string, err error) {
	kind := service.ErrorKind(err)
	h.Metrics.HandlerError(event, kind)

	message := err.Error()
	if kind == service.KindInternal {
		h.logger.Error("event failed",
			zap.String("event", event),
			zap.String("userId", conn.userID),
			zap.Error(err))
		message = "internal error"
	} else {
		h.logger.Debug("event rejected",
			zap.String("event", event),
			zap.String("userId", conn.userID),
			zap.String("kind", kind),
			zap.Error(err))
	}

	h.Hub.Emit(conn, service.EvCallError, &model.CallErrorEvent{Message: message, Error: kind})
}

func decode(payload json.RawMessage, v interface{}) error {
	if len(payload) == 0 {
		return fmt.Errorf("%w: missing payload", service.ErrBadRequest)
	}
	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: invalid payload: %v", service.ErrBadRequest, err)
	}
	return nil
}

func originChecker(allowed string) func(r *http.Request) bool {
	allowed = strings.TrimSpace(allowed)
	if allowed == "" || allowed == "*" {
		return func(r *http.Request) bool { return true }
	}

	origins := make(map[string]struct{})
	for _, o := range strings.Split(allowed, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins[o] = struct{}{}
		}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := origins[origin]
		return ok
	}
}
