package repository

import (
	"context"
	"heartspeak/internal/model"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CallRepo is the durable store of call sessions
type CallRepo interface {
	Create(ctx context.Context, call *model.CallSession) error
	GetByID(ctx context.Context, id string) (*model.CallSession, error)
	// CompareAndSet applies t only if the call is still in status expected.
	// It returns nil, nil when the call is missing or its status moved on.
	CompareAndSet(ctx context.Context, id string, expected model.CallStatus, t *model.CallTransition) (*model.CallSession, error)
	History(ctx context.Context, userID string, limit int) ([]*model.CallSession, error)
	ListOpenByUser(ctx context.Context, userID string) ([]*model.CallSession, error)
	ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.CallSession, error)
	EnsureIndexes(ctx context.Context) error
}

type callRepo struct {
	collection *mongo.Collection
}

// NewCallRepo creates a new call repository
func NewCallRepo(db *mongo.Database) CallRepo {
	return &callRepo{
		collection: db.Collection("calls"),
	}
}

func (r *callRepo) Create(ctx context.Context, call *model.CallSession) error {
	if call.CreatedAt.IsZero() {
		call.CreatedAt = time.Now()
	}
	if call.UpdatedAt.IsZero() {
		call.UpdatedAt = call.CreatedAt
	}

	result, err := r.collection.InsertOne(ctx, call)
	if err != nil {
		return err
	}

	// Set the ID from MongoDB
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		call.ID = oid.Hex()
	}
	return nil
}

func (r *callRepo) GetByID(ctx context.Context, id string) (*model.CallSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil // malformed ids never match a call
	}

	var call model.CallSession
	err = r.collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&call)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepo) CompareAndSet(ctx context.Context, id string, expected model.CallStatus, t *model.CallTransition) (*model.CallSession, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, nil
	}

	set := bson.M{
		"status":    t.Status,
		"updatedAt": t.At,
	}
	if t.StartedAt != nil {
		set["startedAt"] = *t.StartedAt
	}
	if t.EndedAt != nil {
		set["endedAt"] = *t.EndedAt
		set["duration"] = t.Duration
	}

	filter := bson.M{"_id": oid, "status": expected}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var call model.CallSession
	err = r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&call)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &call, nil
}

func (r *callRepo) History(ctx context.Context, userID string, limit int) ([]*model.CallSession, error) {
	filter := bson.M{
		"participants": userID,
		"status":       bson.M{"$in": []model.CallStatus{model.CallEnded, model.CallMissed}},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}).SetLimit(int64(limit))
	return r.find(ctx, filter, opts)
}

func (r *callRepo) ListOpenByUser(ctx context.Context, userID string) ([]*model.CallSession, error) {
	filter := bson.M{
		"participants": userID,
		"status":       bson.M{"$in": []model.CallStatus{model.CallPending, model.CallActive}},
	}
	return r.find(ctx, filter, options.Find())
}

func (r *callRepo) ListPendingBefore(ctx context.Context, cutoff time.Time) ([]*model.CallSession, error) {
	filter := bson.M{
		"status":    model.CallPending,
		"createdAt": bson.M{"$lt": cutoff},
	}
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	return r.find(ctx, filter, opts)
}

func (r *callRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "participants", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "createdAt", Value: 1}}},
	})
	return err
}

func (r *callRepo) find(ctx context.Context, filter bson.M, opts *options.FindOptions) ([]*model.CallSession, error) {
	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	calls := []*model.CallSession{}
	if err = cursor.All(ctx, &calls); err != nil {
		return nil, err
	}
	return calls, nil
}
