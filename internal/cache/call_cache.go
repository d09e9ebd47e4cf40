package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CallMembers is the cached view of who takes part in a call
type CallMembers struct {
	CallID       string    `json:"callId"`
	Participants [2]string `json:"participants"`
}

// Has reports whether userID is one of the participants
func (m *CallMembers) Has(userID string) bool {
	return userID != "" && (m.Participants[0] == userID || m.Participants[1] == userID)
}

// CallCache keeps call membership in Redis so relays can be checked without
// hitting MongoDB for every ICE candidate.
type CallCache interface {
	SetMembers(ctx context.Context, members *CallMembers) error
	GetMembers(ctx context.Context, callID string) (*CallMembers, error)
	Delete(ctx context.Context, callID string) error
}

type callCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCallCache creates a new call membership cache
func NewCallCache(client *redis.Client) CallCache {
	return &callCache{
		client: client,
		ttl:    6 * time.Hour, // longer than any realistic call
	}
}

func (c *callCache) key(callID string) string {
	return fmt.Sprintf("call:%s:members", callID)
}

func (c *callCache) SetMembers(ctx context.Context, members *CallMembers) error {
	data, err := json.Marshal(members)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, c.key(members.CallID), data, c.ttl).Err()
}

func (c *callCache) GetMembers(ctx context.Context, callID string) (*CallMembers, error) {
	data, err := c.client.Get(ctx, c.key(callID)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var members CallMembers
	if err := json.Unmarshal([]byte(data), &members); err != nil {
		return nil, err
	}
	return &members, nil
}

func (c *callCache) Delete(ctx context.Context, callID string) error {
	return c.client.Del(ctx, c.key(callID)).Err()
}
