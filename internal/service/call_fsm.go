package service

import (
	"fmt"
	"heartspeak/internal/model"
	"time"
)

// CallEvent is an input to the call state machine
type CallEvent string

const (
	CallEventAccept CallEvent = "accept"
	CallEventReject CallEvent = "reject"
	CallEventEnd    CallEvent = "end"
	CallEventExpire CallEvent = "expire"
)

type transitionKey struct {
	from  model.CallStatus
	event CallEvent
}

// callTransitions is the complete set of legal moves. Anything missing here
// is rejected with ErrInvalidState.
var callTransitions = map[transitionKey]model.CallStatus{
	{model.CallPending, CallEventAccept}: model.CallActive,
	{model.CallPending, CallEventReject}: model.CallEnded,
	{model.CallPending, CallEventEnd}:    model.CallEnded,
	{model.CallActive, CallEventEnd}:     model.CallEnded,
	{model.CallPending, CallEventExpire}: model.CallMissed,
}

// nextStatus looks up the status reached by applying ev in from
func nextStatus(from model.CallStatus, ev CallEvent) (model.CallStatus, error) {
	to, ok := callTransitions[transitionKey{from, ev}]
	if !ok {
		return "", fmt.Errorf("%w: cannot %s a call that is %s", ErrInvalidState, ev, from)
	}
	return to, nil
}

// buildTransition computes the fields written when call moves to status to at now
func buildTransition(call *model.CallSession, to model.CallStatus, now time.Time) *model.CallTransition {
	t := &model.CallTransition{Status: to, At: now}
	switch to {
	case model.CallActive:
		t.StartedAt = &now
	case model.CallEnded, model.CallMissed:
		t.EndedAt = &now
		t.Duration = model.CallDuration(call.StartedAt, &now)
	}
	return t
}
