package service

// Inbound event names
const (
	EvCallInitiate   = "call:initiate"
	EvCallAccept     = "call:accept"
	EvCallReject     = "call:reject"
	EvCallEnd        = "call:end"
	EvCallSignal     = "call:signal"
	EvWebRTCSignal   = "webrtc:signal"
	EvICECandidate   = "call:ice-candidate"
	EvEmotionFrame   = "emotion:frame"
	EvEmotionHistory = "emotion:history"
	EvEmotionSummary = "emotion:summary"
	EvAvatarRequest  = "avatar:request-suggestion"
)

// Outbound event names
const (
	EvCallIncoming     = "call:incoming"
	EvCallInitiated    = "call:initiated"
	EvCallAccepted     = "call:accepted"
	EvCallStarted      = "call:started"
	EvCallRejected     = "call:rejected"
	EvCallEnded        = "call:ended"
	EvCallMissed       = "call:missed"
	EvCallError        = "call:error"
	EvCallEmotion      = "call:emotion"
	EvEmotionResult    = "emotion:result"
	EvAvatarSuggestion = "avatar:suggestion"
)
