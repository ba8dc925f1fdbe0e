package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/entities"
	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/auth"
)

const usersCollection = "users"

// userDocument is the stored form of entities.User
type userDocument struct {
	ID           primitive.ObjectID `bson:"_id,omitempty"`
	Username     string             `bson:"username"`
	PasswordHash string             `bson:"password_hash"`
	CreatedAt    time.Time          `bson:"created_at"`
}

func (d *userDocument) toEntity() *entities.User {
	return &entities.User{
		ID:           d.ID.Hex(),
		Username:     d.Username,
		PasswordHash: d.PasswordHash,
		CreatedAt:    d.CreatedAt,
	}
}

// UserRepository implements repositories.UserRepository on MongoDB
type UserRepository struct {
	collection *mongo.Collection
	logger     *zap.Logger
}

var _ repositories.UserRepository = (*UserRepository)(nil)

// NewUserRepository creates the repository and ensures the unique username index
func NewUserRepository(ctx context.Context, client *Client, logger *zap.Logger) (*UserRepository, error) {
	collection := client.Database.Collection(usersCollection)

	_, err := collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "username", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create username index: %w", err)
	}

	return &UserRepository{collection: collection, logger: logger}, nil
}

// Create implements repositories.UserRepository
func (r *UserRepository) Create(ctx context.Context, username, password string) (*entities.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}

	doc := userDocument{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC().Truncate(time.Millisecond),
	}
	result, err := r.collection.InsertOne(ctx, doc)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, repositories.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	doc.ID = result.InsertedID.(primitive.ObjectID)

	r.logger.Debug("User created", zap.String("userID", doc.ID.Hex()), zap.String("username", username))
	return doc.toEntity(), nil
}

// Authenticate implements repositories.UserRepository
func (r *UserRepository) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	user, err := r.findOne(ctx, bson.M{"username": username})
	if errors.Is(err, repositories.ErrUserNotFound) {
		return nil, repositories.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repositories.ErrInvalidCredentials
	}
	return user, nil
}

// GetByID implements repositories.UserRepository
func (r *UserRepository) GetByID(ctx context.Context, id string) (*entities.User, error) {
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, repositories.ErrUserNotFound
	}
	return r.findOne(ctx, bson.M{"_id": objectID})
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (*entities.User, error) {
	var doc userDocument
	if err := r.collection.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return doc.toEntity(), nil
}
