package model

import "time"

type CallStatus string

const (
	CallPending CallStatus = "pending"
	CallActive  CallStatus = "active"
	CallEnded   CallStatus = "ended"
	CallMissed  CallStatus = "missed"
)

// IsTerminal reports whether no further transition can leave the status
func (s CallStatus) IsTerminal() bool {
	return s == CallEnded || s == CallMissed
}

// CallSession is a call between exactly two participants
type CallSession struct {
	ID           string     `json:"id" bson:"_id,omitempty"`
	Participants [2]string  `json:"participants" bson:"participants"`
	Status       CallStatus `json:"status" bson:"status"`
	InitiatorID  string     `json:"initiatorId" bson:"initiatorId"`
	StartedAt    *time.Time `json:"startedAt,omitempty" bson:"startedAt,omitempty"`
	EndedAt      *time.Time `json:"endedAt,omitempty" bson:"endedAt,omitempty"`
	Duration     int64      `json:"duration" bson:"duration"` // seconds
	CreatedAt    time.Time  `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt" bson:"updatedAt"`
}

// NewCallSession builds a pending call placed by initiatorID to recipientID
func NewCallSession(initiatorID, recipientID string, now time.Time) *CallSession {
	return &CallSession{
		Participants: [2]string{initiatorID, recipientID},
		Status:       CallPending,
		InitiatorID:  initiatorID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// HasParticipant reports whether userID is one of the two participants
func (c *CallSession) HasParticipant(userID string) bool {
	return userID != "" && (c.Participants[0] == userID || c.Participants[1] == userID)
}

// OtherParticipant returns the participant that is not userID
func (c *CallSession) OtherParticipant(userID string) string {
	if c.Participants[0] == userID {
		return c.Participants[1]
	}
	return c.Participants[0]
}

// CallDuration returns endedAt - startedAt in whole seconds, or zero when
// either stamp is missing.
func CallDuration(startedAt, endedAt *time.Time) int64 {
	if startedAt == nil || endedAt == nil {
		return 0
	}
	d := endedAt.Sub(*startedAt)
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}

// CallTransition is the set of fields written by a single state change
type CallTransition struct {
	Status    CallStatus
	StartedAt *time.Time
	EndedAt   *time.Time
	Duration  int64
	At        time.Time
}

// Apply writes the transition onto the session
func (t *CallTransition) Apply(c *CallSession) {
	c.Status = t.Status
	if t.StartedAt != nil {
		c.StartedAt = t.StartedAt
	}
	if t.EndedAt != nil {
		c.EndedAt = t.EndedAt
		c.Duration = t.Duration
	}
	c.UpdatedAt = t.At
}
