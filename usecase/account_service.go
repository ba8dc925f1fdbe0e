package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/satriahrh/voicetutor/domain/entities"
	"github.com/satriahrh/voicetutor/domain/repositories"
)

// ErrInvalidInput marks requests rejected before reaching a store
var ErrInvalidInput = errors.New("invalid input")

// TokenIssuer issues access tokens for authenticated users
type TokenIssuer interface {
	GenerateUserToken(userID, username string) (string, error)
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token            string
	User             *entities.User
	LastConversation *entities.HistoryEntry
}

// AccountService handles registration, login and history lookups
type AccountService struct {
	users   repositories.UserRepository
	history repositories.HistoryRepository
	tokens  TokenIssuer
	logger  *zap.Logger
}

// NewAccountService creates a new account service
func NewAccountService(
	users repositories.UserRepository,
	history repositories.HistoryRepository,
	tokens TokenIssuer,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		users:   users,
		history: history,
		tokens:  tokens,
		logger:  logger,
	}
}

// Register creates an account after checking the registration form
func (s *AccountService) Register(ctx context.Context, username, password, confirm string) (*entities.User, error) {
	username = strings.TrimSpace(username)
	if err := entities.ValidateRegistration(username, password, confirm); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidInput, err)
	}

	user, err := s.users.Create(ctx, username, password)
	if err != nil {
		if !errors.Is(err, repositories.ErrUsernameTaken) {
			s.logger.Error("Failed to create user", zap.String("username", username), zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("User registered", zap.String("userID", user.ID), zap.String("username", user.Username))
	return user, nil
}

// Login authenticates the user, issues a token and loads the last exchange.
// A failure to load history does not fail the login.
func (s *AccountService) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, fmt.Errorf("%w: please enter both username and password", ErrInvalidInput)
	}

	user, err := s.users.Authenticate(ctx, username, password)
	if err != nil {
		if errors.Is(err, repositories.ErrInvalidCredentials) {
			s.logger.Warn("Login rejected", zap.String("username", username))
		}
		return nil, err
	}

	token, err := s.tokens.GenerateUserToken(user.ID, user.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	last, err := s.LastConversation(ctx, user.ID)
	if err != nil {
		s.logger.Warn("Could not load previous conversation", zap.String("userID", user.ID), zap.Error(err))
	}

	s.logger.Info("User logged in", zap.String("userID", user.ID))
	return &LoginResult{Token: token, User: user, LastConversation: last}, nil
}

// History lists the user's exchanges, most recent first
func (s *AccountService) History(ctx context.Context, userID string, limit int) ([]*entities.HistoryEntry, error) {
	entries, err := s.history.List(ctx, userID, entities.NormalizeHistoryLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return entries, nil
}

// LastConversation returns the most recent exchange, or nil when there is none
func (s *AccountService) LastConversation(ctx context.Context, userID string) (*entities.HistoryEntry, error) {
	entries, err := s.History(ctx, userID, 1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// User returns the account for id
func (s *AccountService) User(ctx context.Context, id string) (*entities.User, error) {
	return s.users.GetByID(ctx, id)
}
