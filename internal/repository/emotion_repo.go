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

// EmotionRepo stores per-frame emotion observations
type EmotionRepo interface {
	Create(ctx context.Context, log *model.EmotionLog) error
	// ListByCall returns the call's observations oldest first, without frame data
	ListByCall(ctx context.Context, callID string) ([]*model.EmotionLog, error)
	EnsureIndexes(ctx context.Context) error
}

type emotionRepo struct {
	collection *mongo.Collection
}

// NewEmotionRepo creates a new emotion log repository
func NewEmotionRepo(db *mongo.Database) EmotionRepo {
	return &emotionRepo{
		collection: db.Collection("emotion_logs"),
	}
}

func (r *emotionRepo) Create(ctx context.Context, log *model.EmotionLog) error {
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}

	result, err := r.collection.InsertOne(ctx, log)
	if err != nil {
		return err
	}
	if oid, ok := result.InsertedID.(primitive.ObjectID); ok {
		log.ID = oid.Hex()
	}
	return nil
}

func (r *emotionRepo) ListByCall(ctx context.Context, callID string) ([]*model.EmotionLog, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: 1}}).
		SetProjection(bson.M{"frameData": 0})

	cursor, err := r.collection.Find(ctx, bson.M{"callId": callID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []*model.EmotionLog{}
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}

func (r *emotionRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "callId", Value: 1}, {Key: "timestamp", Value: 1}},
	})
	return err
}
