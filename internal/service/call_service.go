package service

import (
	"context"
	"fmt"
	"heartspeak/internal/cache"
	"heartspeak/internal/metrics"
	"heartspeak/internal/model"
	"heartspeak/internal/repository"
	"time"

	"go.uber.org/zap"
)

// maxTransitionAttempts bounds re-evaluation after losing a compare-and-set
const maxTransitionAttempts = 3

// CallServiceOptions tunes the call lifecycle policies
type CallServiceOptions struct {
	RingTimeout     time.Duration
	HistoryLimit    int
	MaxHistoryLimit int
}

// CallService owns the call state machine
type CallService struct {
	calls   repository.CallRepo
	members cache.CallCache
	hub     Broadcaster
	logger  *zap.Logger
	metrics *metrics.Metrics
	opts    CallServiceOptions
	now     func() time.Time
}

// NewCallService creates a new call coordinator. members may be nil.
func NewCallService(
	calls repository.CallRepo,
	members cache.CallCache,
	hub Broadcaster,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts CallServiceOptions,
) *CallService {
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 20
	}
	if opts.MaxHistoryLimit < opts.HistoryLimit {
		opts.MaxHistoryLimit = opts.HistoryLimit
	}
	return &CallService{
		calls:   calls,
		members: members,
		hub:     hub,
		logger:  logger.Named("calls"),
		metrics: m,
		opts:    opts,
		now:     time.Now,
	}
}

// Initiate creates a pending call from the actor to recipientID
func (s *CallService) Initiate(ctx context.Context, actor Actor, recipientID string) (*model.CallSession, error) {
	if recipientID == "" {
		return nil, badRequest("recipientId is required")
	}
	if recipientID == actor.UserID {
		return nil, badRequest("cannot call yourself")
	}

	call := model.NewCallSession(actor.UserID, recipientID, s.now())
	if err := s.calls.Create(ctx, call); err != nil {
		return nil, fmt.Errorf("failed to create call: %w", err)
	}
	s.metrics.Transition(string(model.CallPending))
	s.cacheMembers(ctx, call)

	if actor.Conn != nil {
		s.hub.Join(actor.Conn, CallChannel(call.ID))
	}
	s.hub.Publish(UserChannel(recipientID), EvCallIncoming, &model.CallIncomingEvent{
		CallID:   call.ID,
		CallerID: actor.UserID,
	})
	reply(s.hub, actor, EvCallInitiated, &model.CallInitiatedEvent{CallID: call.ID})

	s.logger.Info("call initiated",
		zap.String("callId", call.ID),
		zap.String("callerId", actor.UserID),
		zap.String("recipientId", recipientID))
	return call, nil
}

// Accept moves a pending call to active
func (s *CallService) Accept(ctx context.Context, actor Actor, callID string) (*model.CallSession, error) {
	call, err := s.transition(ctx, callID, actor.UserID, CallEventAccept)
	if err != nil {
		return nil, err
	}

	if actor.Conn != nil {
		s.hub.Join(actor.Conn, CallChannel(call.ID))
	}
	s.hub.Publish(UserChannel(call.OtherParticipant(actor.UserID)), EvCallAccepted, &model.CallAcceptedEvent{
		CallID:     call.ID,
		AcceptedBy: actor.UserID,
	})
	reply(s.hub, actor, EvCallStarted, &model.CallStartedEvent{
		CallID:       call.ID,
		Participants: call.Participants,
	})

	s.logger.Info("call accepted", zap.String("callId", call.ID), zap.String("userId", actor.UserID))
	return call, nil
}

// Reject declines a pending call
func (s *CallService) Reject(ctx context.Context, actor Actor, callID string) (*model.CallSession, error) {
	call, err := s.transition(ctx, callID, actor.UserID, CallEventReject)
	if err != nil {
		return nil, err
	}
	s.forgetMembers(ctx, call.ID)

	s.hub.Publish(UserChannel(call.OtherParticipant(actor.UserID)), EvCallRejected, &model.CallRejectedEvent{
		CallID:     call.ID,
		RejectedBy: actor.UserID,
	})
	s.hub.CloseChannel(CallChannel(call.ID))

	s.logger.Info("call rejected", zap.String("callId", call.ID), zap.String("userId", actor.UserID))
	return call, nil
}

// End terminates a pending or active call and notifies both participants
func (s *CallService) End(ctx context.Context, actor Actor, callID string) (*model.CallSession, error) {
	return s.end(ctx, actor, callID, "")
}

func (s *CallService) end(ctx context.Context, actor Actor, callID, reason string) (*model.CallSession, error) {
	call, err := s.transition(ctx, callID, actor.UserID, CallEventEnd)
	if err != nil {
		return nil, err
	}
	s.forgetMembers(ctx, call.ID)

	ev := &model.CallEndedEvent{
		CallID:   call.ID,
		EndedBy:  actor.UserID,
		Duration: call.Duration,
		Reason:   reason,
	}
	for _, p := range call.Participants {
		s.hub.Publish(UserChannel(p), EvCallEnded, ev)
	}
	s.hub.CloseChannel(CallChannel(call.ID))

	s.logger.Info("call ended",
		zap.String("callId", call.ID),
		zap.String("endedBy", actor.UserID),
		zap.Int64("duration", call.Duration),
		zap.String("reason", reason))
	return call, nil
}

// History returns the user's finished calls, newest first
func (s *CallService) History(ctx context.Context, userID string, limit int) ([]*model.CallSession, error) {
	if limit <= 0 {
		limit = s.opts.HistoryLimit
	}
	if limit > s.opts.MaxHistoryLimit {
		limit = s.opts.MaxHistoryLimit
	}
	return s.calls.History(ctx, userID, limit)
}

// Get returns a call the user participates in
func (s *CallService) Get(ctx context.Context, callID, userID string) (*model.CallSession, error) {
	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	if !call.HasParticipant(userID) {
		return nil, fmt.Errorf("call %s: %w", callID, ErrForbidden)
	}
	return call, nil
}

// Members resolves a call's participants, preferring the cache
func (s *CallService) Members(ctx context.Context, callID string) (*cache.CallMembers, error) {
	if s.members != nil {
		m, err := s.members.GetMembers(ctx, callID)
		if err != nil {
			s.logger.Warn("call cache read failed", zap.String("callId", callID), zap.Error(err))
		} else if m != nil {
			return m, nil
		}
	}

	call, err := s.calls.GetByID(ctx, callID)
	if err != nil {
		return nil, err
	}
	if call == nil {
		return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
	}
	return &cache.CallMembers{CallID: call.ID, Participants: call.Participants}, nil
}

// ExpireStale marks pending calls older than the ring timeout as missed
func (s *CallService) ExpireStale(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.opts.RingTimeout)
	stale, err := s.calls.ListPendingBefore(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, c := range stale {
		call, err := s.transition(ctx, c.ID, "", CallEventExpire)
		if err != nil {
			// accepted or ended while we were looking
			s.logger.Debug("skip expiring call", zap.String("callId", c.ID), zap.Error(err))
			continue
		}
		s.forgetMembers(ctx, call.ID)
		for _, p := range call.Participants {
			s.hub.Publish(UserChannel(p), EvCallMissed, &model.CallMissedEvent{CallID: call.ID})
		}
		s.hub.CloseChannel(CallChannel(call.ID))
		expired++
		s.logger.Info("call missed", zap.String("callId", call.ID))
	}
	return expired, nil
}

// RunSweeper expires stale pending calls every interval until ctx is done
func (s *CallService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.ExpireStale(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error("expire stale calls", zap.Error(err))
			}
		}
	}
}

// HandleDisconnect ends every open call of a user whose last connection dropped
func (s *CallService) HandleDisconnect(ctx context.Context, userID string) {
	open, err := s.calls.ListOpenByUser(ctx, userID)
	if err != nil {
		s.logger.Error("list open calls on disconnect", zap.String("userId", userID), zap.Error(err))
		return
	}
	for _, c := range open {
		if _, err := s.end(ctx, Actor{UserID: userID}, c.ID, "disconnected"); err != nil {
			s.logger.Warn("end call on disconnect",
				zap.String("callId", c.ID), zap.String("userId", userID), zap.Error(err))
		}
	}
}

// transition applies ev to the call as userID (empty for system events) with
// an atomic compare-and-set on the status it observed. A lost race is
// re-evaluated against the new status.
func (s *CallService) transition(ctx context.Context, callID, userID string, ev CallEvent) (*model.CallSession, error) {
	for attempt := 0; attempt < maxTransitionAttempts; attempt++ {
		call, err := s.calls.GetByID(ctx, callID)
		if err != nil {
			return nil, err
		}
		if call == nil {
			return nil, fmt.Errorf("call %s: %w", callID, ErrNotFound)
		}
		if userID != "" && !call.HasParticipant(userID) {
			return nil, fmt.Errorf("call %s: %w", callID, ErrForbidden)
		}

		to, err := nextStatus(call.Status, ev)
		if err != nil {
			return nil, err
		}

		updated, err := s.calls.CompareAndSet(ctx, callID, call.Status, buildTransition(call, to, s.now()))
		if err != nil {
			return nil, err
		}
		if updated != nil {
			s.metrics.Transition(string(to))
			return updated, nil
		}
	}
	return nil, fmt.Errorf("%w: call %s changed concurrently", ErrInvalidState, callID)
}

func (s *CallService) cacheMembers(ctx context.Context, call *model.CallSession) {
	if s.members == nil {
		return
	}
	err := s.members.SetMembers(ctx, &cache.CallMembers{CallID: call.ID, Participants: call.Participants})
	if err != nil {
		s.logger.Warn("call cache write failed", zap.String("callId", call.ID), zap.Error(err))
	}
}

func (s *CallService) forgetMembers(ctx context.Context, callID string) {
	if s.members == nil {
		return
	}
	if err := s.members.Delete(ctx, callID); err != nil {
		s.logger.Warn("call cache delete failed", zap.String("callId", callID), zap.Error(err))
	}
}
