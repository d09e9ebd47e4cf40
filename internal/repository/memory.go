package repository

import (
	"context"
	"heartspeak/internal/model"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// NewMemoryCallRepo returns a process-local CallRepo with the same
// compare-and-set contract as the MongoDB one
func NewMemoryCallRepo() CallRepo {
	return &memoryCallRepo{calls: make(map[string]*model.CallSession)}
}

type memoryCallRepo struct {
	mu    sync.Mutex
	calls map[string]*model.CallSession
}

func (r *memoryCallRepo) Create(ctx context.Context, call *model.CallSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	call.ID = primitive.NewObjectID().Hex()
	stored := *call
	r.calls[call.ID] = &stored
	return nil
}

func (r *memoryCallRepo) GetByID(ctx context.Context, id string) (*model.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[id]
	if !ok {
		return nil, nil
	}
	out := *c
	return &out, nil
}

func (r *memoryCallRepo) CompareAndSet(ctx context.Context, id string, expected model.CallStatus, t *model.CallTransition) (*model.CallSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.calls[id]
	if !ok || c.Status != expected {
		return nil, nil
	}
	t.Apply(c)
	out := *c
	return &out, nil
}

func (r *memoryCallRepo) History(ctx context.Context, userID string, limit int) ([]*model.CallSession, error) {
	calls := r.filter(func(c *model.CallSession) bool {
		return c.HasParticipant(userID) && c.Status.IsTerminal()
	})
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].CreatedAt.After(calls[j].CreatedAt) })
	if limit > 0 && len(calls) > limit {
		calls = calls[:limit]
	}
	return calls, nil
}

func (r *memoryCallRepo) ListOpenByUser(ctx context.Context, userID string) ([]*model.CallSession, error) {
	return r.filter(func(c *model.CallSession) bool {
		return c.HasParticipant(userID) && !c.Status.IsTerminal()
	}), nil
}

func (r *memoryCallRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.CallSession, error) {
	calls := r.filter(func(c *model.CallSession) bool {
		return c.Status == model.CallPending && c.CreatedAt.Before(cutoff)
	})
	sort.SliceStable(calls, func(i, j int) bool { return calls[i].CreatedAt.Before(calls[j].CreatedAt) })
	return calls, nil
}

func (r *memoryCallRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}

func (r *memoryCallRepo) filter(keep func(*model.CallSession) bool) []*model.CallSession {
	r.mu.Lock()
	defer r.mu.Unlock()

	calls := []*model.CallSession{}
	for _, c := range r.calls {
		if keep(c) {
			out := *c
			calls = append(calls, &out)
		}
	}
	return calls
}

// NewMemoryEmotionRepo returns a process-local EmotionRepo
func NewMemoryEmotionRepo() EmotionRepo {
	return &memoryEmotionRepo{}
}

type memoryEmotionRepo struct {
	mu   sync.Mutex
	logs []model.EmotionLog
}

func (r *memoryEmotionRepo) Create(ctx context.Context, log *model.EmotionLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	log.ID = primitive.NewObjectID().Hex()
	r.logs = append(r.logs, *log)
	return nil
}

func (r *memoryEmotionRepo) ListByCall(ctx context.Context, callID string) ([]*model.EmotionLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	logs := []*model.EmotionLog{}
	for _, l := range r.logs {
		if l.CallID == callID {
			out := l
			out.FrameData = ""
			logs = append(logs, &out)
		}
	}
	sort.SliceStable(logs, func(i, j int) bool { return logs[i].Timestamp.Before(logs[j].Timestamp) })
	return logs, nil
}

func (r *memoryEmotionRepo) EnsureIndexes(ctx context.Context) error {
	return nil
}
