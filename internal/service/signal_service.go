package service

import (
	"context"
	"encoding/json"
	"fmt"
	"heartspeak/internal/cache"
	"heartspeak/internal/metrics"
	"heartspeak/internal/model"

	"go.uber.org/zap"
)

// MembershipResolver looks up who takes part in a call
type MembershipResolver interface {
	Members(ctx context.Context, callID string) (*cache.CallMembers, error)
}

// SignalService forwards opaque WebRTC payloads between call participants.
// It never inspects the payload.
type SignalService struct {
	hub     Broadcaster
	members MembershipResolver
	enforce bool
	logger  *zap.Logger
	metrics *metrics.Metrics
}

// NewSignalService creates a new relay. With enforce set, sender and target
// must both be participants of the named call.
func NewSignalService(hub Broadcaster, members MembershipResolver, enforce bool, logger *zap.Logger, m *metrics.Metrics) *SignalService {
	return &SignalService{
		hub:     hub,
		members: members,
		enforce: enforce,
		logger:  logger.Named("relay"),
		metrics: m,
	}
}

// RelaySignal forwards a call:signal payload (SDP offer/answer or candidate)
func (s *SignalService) RelaySignal(ctx context.Context, fromUserID string, req *model.CallSignalRequest) error {
	if err := s.check(ctx, req.CallID, fromUserID, req.TargetUserID, req.Signal); err != nil {
		return err
	}
	s.hub.Publish(UserChannel(req.TargetUserID), EvCallSignal, &model.CallSignalEvent{
		CallID:     req.CallID,
		Signal:     req.Signal,
		FromUserID: fromUserID,
	})
	s.metrics.Relay("signal")
	return nil
}

// RelayWebRTC forwards a webrtc:signal payload
func (s *SignalService) RelayWebRTC(ctx context.Context, fromUserID string, req *model.WebRTCSignalRequest) error {
	if err := s.check(ctx, req.CallID, fromUserID, req.To, req.Signal); err != nil {
		return err
	}
	s.hub.Publish(UserChannel(req.To), EvWebRTCSignal, &model.WebRTCSignalEvent{
		Signal: req.Signal,
		From:   fromUserID,
		CallID: req.CallID,
	})
	s.metrics.Relay("webrtc")
	return nil
}

// RelayICECandidate forwards a trickled ICE candidate
func (s *SignalService) RelayICECandidate(ctx context.Context, fromUserID string, req *model.ICECandidateRequest) error {
	if err := s.check(ctx, req.CallID, fromUserID, req.TargetUserID, req.Candidate); err != nil {
		return err
	}
	s.hub.Publish(UserChannel(req.TargetUserID), EvICECandidate, &model.ICECandidateEvent{
		CallID:     req.CallID,
		Candidate:  req.Candidate,
		FromUserID: fromUserID,
	})
	s.metrics.Relay("ice")
	return nil
}

func (s *SignalService) check(ctx context.Context, callID, fromUserID, targetUserID string, payload json.RawMessage) error {
	if targetUserID == "" {
		return badRequest("target user is required")
	}
	if len(payload) == 0 || string(payload) == "null" {
		return badRequest("signal payload is required")
	}
	if !s.enforce {
		return nil
	}

	if callID == "" {
		return badRequest("callId is required")
	}
	members, err := s.members.Members(ctx, callID)
	if err != nil {
		return err
	}
	if !members.Has(fromUserID) || !members.Has(targetUserID) || fromUserID == targetUserID {
		s.logger.Warn("relay outside call membership",
			zap.String("callId", callID),
			zap.String("from", fromUserID),
			zap.String("to", targetUserID))
		return fmt.Errorf("call %s: %w", callID, ErrForbidden)
	}
	return nil
}
