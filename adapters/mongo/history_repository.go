package mongo

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/entities"
	"github.com/satriahrh/voicetutor/domain/repositories"
)

const historyCollection = "history"

type historyDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Query     string             `bson:"user_query"`
	Response  string             `bson:"assistant_response"`
	CreatedAt time.Time          `bson:"created_at"`
}

func (d *historyDocument) toEntity() *entities.HistoryEntry {
	return &entities.HistoryEntry{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Query:     d.Query,
		Response:  d.Response,
		CreatedAt: d.CreatedAt,
	}
}

// HistoryRepository implements repositories.HistoryRepository on MongoDB
type HistoryRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.HistoryRepository = (*HistoryRepository)(nil)

// NewHistoryRepository creates the repository and its lookup index
func NewHistoryRepository(ctx context.Context, client *Client, logger *zap.Logger) (*HistoryRepository, error) {
	collection := client.Database.Collection(historyCollection)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create history index: %w", err)
	}

	return &HistoryRepository{collection: collection, logger: logger}, nil
}

// Append implements repositories.HistoryRepository
func (r *HistoryRepository) Append(ctx context.Context, userID, query, response string) (*entities.HistoryEntry, error) {
	doc := historyDocument{
		UserID:    userID,
		Query:     strings.TrimSpace(query),
		Response:  strings.TrimSpace(response),
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
	entry := doc.toEntity()
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}
	doc.ID = result.InsertedID.(primitive.ObjectID)
	return doc.toEntity(), nil
}

// List implements repositories.HistoryRepository
func (r *HistoryRepository) List(ctx context.Context, userID string, limit int) ([]*entities.HistoryEntry, error) {
	limit = entities.NormalizeHistoryLimit(limit)

	// ObjectIDs grow monotonically, so _id breaks created_at ties.
	findOptions := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer cursor.Close(ctx)

	entries := make([]*entities.HistoryEntry, 0, limit)
	for cursor.Next(ctx) {
		var doc historyDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode history entry: %w", err)
		}
		entries = append(entries, doc.toEntity())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}
