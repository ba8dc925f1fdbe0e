// Package memory provides an in-memory user and history store
package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/satriahrh/voicetutor/domain/entities"
	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/auth"
)

// Store keeps users and history in maps guarded by one lock. Contents are
// lost on restart.
type Store struct {
	mu         sync.RWMutex
	users      map[string]*entities.User           // id -> user
	byUsername map[string]*entities.User           // username -> user
	history    map[string][]*entities.HistoryEntry // user id -> entries, oldest first
	now        func() time.Time
}

var (
	_ repositories.UserRepository    = (*Store)(nil)
	_ repositories.HistoryRepository = (*Store)(nil)
)

// NewStore creates an empty store
func NewStore() *Store {
	return &Store{
		users:      make(map[string]*entities.User),
		byUsername: make(map[string]*entities.User),
		history:    make(map[string][]*entities.HistoryEntry),
		now:        time.Now,
	}
}

// Create implements repositories.UserRepository
func (s *Store) Create(ctx context.Context, username, password string) (*entities.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &entities.User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now(),
	}
	if err := user.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byUsername[username]; exists {
		return nil, repositories.ErrUsernameTaken
	}
	s.users[user.ID] = user
	s.byUsername[username] = user

	copied := *user
	return &copied, nil
}

// Authenticate implements repositories.UserRepository
func (s *Store) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	s.mu.RLock()
	user, exists := s.byUsername[username]
	s.mu.RUnlock()
	if !exists {
		return nil, repositories.ErrInvalidCredentials
	}

	ok, err := auth.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, repositories.ErrInvalidCredentials
	}
	copied := *user
	return &copied, nil
}

// GetByID implements repositories.UserRepository
func (s *Store) GetByID(ctx context.Context, id string) (*entities.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[id]
	if !exists {
		return nil, repositories.ErrUserNotFound
	}
	copied := *user
	return &copied, nil
}

// Append implements repositories.HistoryRepository
func (s *Store) Append(ctx context.Context, userID, query, response string) (*entities.HistoryEntry, error) {
	entry := &entities.HistoryEntry{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     strings.TrimSpace(query),
		Response:  strings.TrimSpace(response),
		CreatedAt: s.now(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.history[userID] = append(s.history[userID], entry)
	s.mu.Unlock()

	copied := *entry
	return &copied, nil
}

// List implements repositories.HistoryRepository
func (s *Store) List(ctx context.Context, userID string, limit int) ([]*entities.HistoryEntry, error) {
	limit = entities.NormalizeHistoryLimit(limit)

	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := s.history[userID]
	out := make([]*entities.HistoryEntry, 0, min(limit, len(entries)))
	for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
		copied := *entries[i]
		out = append(out, &copied)
	}
	return out, nil
}
