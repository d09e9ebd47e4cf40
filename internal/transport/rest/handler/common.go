package handler

import (
	"encoding/json"
	"heartspeak/internal/service"
	"net/http"

	"go.uber.org/zap"
)

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeServiceError maps a service error kind onto an HTTP status
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	kind := service.ErrorKind(err)
	status := statusForKind(kind)

	message := err.Error()
	if status == http.StatusInternalServerError {
		logger.Error("request failed", zap.Error(err))
		message = "internal error"
	}
	writeJSON(w, status, map[string]string{"error": message, "kind": kind})
}

func statusForKind(kind string) int {
	switch kind {
	case service.KindAuthentication:
		return http.StatusUnauthorized
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindForbidden:
		return http.StatusForbidden
	case service.KindInvalidState:
		return http.StatusConflict
	case service.KindUpstreamUnavailable:
		return http.StatusBadGateway
	case service.KindRateLimited:
		return http.StatusTooManyRequests
	case service.KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
