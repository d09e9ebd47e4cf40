package handler

import (
	"heartspeak/internal/config"
	"net/http"

	"github.com/pion/webrtc/v4"
)

type iceServersResponse struct {
	ICEServers           []webrtc.ICEServer `json:"iceServers"`
	ICECandidatePoolSize uint8              `json:"iceCandidatePoolSize"`
}

// WebRTCHandler serves peer connection configuration
type WebRTCHandler struct {
	resp iceServersResponse
}

// NewWebRTCHandler creates a new WebRTC handler
func NewWebRTCHandler(cfg config.WebRTCConfig) *WebRTCHandler {
	ice := cfg.ICEConfiguration()
	return &WebRTCHandler{resp: iceServersResponse{
		ICEServers:           ice.ICEServers,
		ICECandidatePoolSize: ice.ICECandidatePoolSize,
	}}
}

// ICEServers handles GET /v1/webrtc/ice-servers
// @Summary ICE servers for peer connections
// @Router /webrtc/ice-servers [get]
func (h *WebRTCHandler) ICEServers(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.resp)
}
