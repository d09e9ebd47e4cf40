package handler

import (
	"encoding/json"
	"heartspeak/internal/model"
	"heartspeak/internal/service"
	"heartspeak/internal/transport/rest/middleware"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CallHandler handles call endpoints
type CallHandler struct {
	calls    *service.CallService
	emotions *service.EmotionService
	logger   *zap.Logger
}

// NewCallHandler creates a new call handler
func NewCallHandler(calls *service.CallService, emotions *service.EmotionService, logger *zap.Logger) *CallHandler {
	return &CallHandler{
		calls:    calls,
		emotions: emotions,
		logger:   logger.Named("rest.calls"),
	}
}

// Initiate handles POST /v1/calls/initiate
// @Summary Start a call
// @Router /calls/initiate [post]
func (h *CallHandler) Initiate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())

	var req model.InitiateCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	call, err := h.calls.Initiate(r.Context(), service.Actor{UserID: userID}, req.RecipientID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, call)
}

// Join handles POST /v1/calls/{id}/join
// @Summary Accept a pending call
// @Router /calls/{id}/join [post]
func (h *CallHandler) Join(w http.ResponseWriter, r *http.Request) {
	call, err := h.calls.Accept(r.Context(), h.actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// Reject handles POST /v1/calls/{id}/reject
// @Summary Decline a pending call
// @Router /calls/{id}/reject [post]
func (h *CallHandler) Reject(w http.ResponseWriter, r *http.Request) {
	call, err := h.calls.Reject(r.Context(), h.actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// End handles POST /v1/calls/{id}/end
// @Summary End a pending or active call
// @Router /calls/{id}/end [post]
func (h *CallHandler) End(w http.ResponseWriter, r *http.Request) {
	call, err := h.calls.End(r.Context(), h.actor(r), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, call)
}

// History handles GET /v1/calls/history?limit=N
// @Summary Finished calls of the caller
// @Router /calls/history [get]
func (h *CallHandler) History(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	calls, err := h.calls.History(r.Context(), middleware.GetUserID(r.Context()), limit)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if calls == nil {
		calls = []*model.CallSession{}
	}
	writeJSON(w, http.StatusOK, calls)
}

// LogEmotion handles POST /v1/calls/{id}/emotion
// @Summary Log an emotion observation
// @Router /calls/{id}/emotion [post]
func (h *CallHandler) LogEmotion(w http.ResponseWriter, r *http.Request) {
	var req model.LogEmotionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	log, err := h.emotions.LogEmotion(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"], &req)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, log)
}

// Emotions handles GET /v1/calls/{id}/emotions
// @Summary Emotion observations of a call
// @Router /calls/{id}/emotions [get]
func (h *CallHandler) Emotions(w http.ResponseWriter, r *http.Request) {
	logs, err := h.emotions.History(r.Context(), middleware.GetUserID(r.Context()), mux.Vars(r)["id"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	if logs == nil {
		logs = []*model.EmotionLog{}
	}
	writeJSON(w, http.StatusOK, logs)
}

func (h *CallHandler) actor(r *http.Request) service.Actor {
	return service.Actor{UserID: middleware.GetUserID(r.Context())}
}
