// Package sqlite implements the user and history repositories on an embedded
// SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/satriahrh/voicetutor/domain/entities"
	"github.com/satriahrh/voicetutor/domain/repositories"
	"github.com/satriahrh/voicetutor/internal/auth"
)

//go:embed schema.sql
var schemaFiles embed.FS

// Store wraps a SQLite connection holding the users and history tables
type Store struct {
	db     *sql.DB
	path   string
	logger *zap.Logger
	now    func() time.Time
}

var (
	_ repositories.UserRepository    = (*Store)(nil)
	_ repositories.HistoryRepository = (*Store)(nil)
)

// Open opens (creating if needed) the database at path and applies the schema
func Open(path string, logger *zap.Logger) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := configure(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure SQLite: %w", err)
	}

	store := &Store{db: db, path: path, logger: logger, now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("User database ready", zap.String("path", path))
	return store, nil
}

func configure(db *sql.DB) error {
	// Pragmas are per connection.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute pragma %q: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) migrate() error {
	schema, err := schemaFiles.ReadFile("schema.sql")
	if err != nil {
		return fmt.Errorf("failed to read schema.sql: %w", err)
	}
	if _, err := s.db.Exec(string(schema)); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks that the database is reachable
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Create implements repositories.UserRepository
func (s *Store) Create(ctx context.Context, username, password string) (*entities.User, error) {
	hash, err := auth.HashPassword(password)
	if err != nil {
		return nil, err
	}
	user := &entities.User{
		Username:     username,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?)`,
		user.Username, user.PasswordHash, user.CreatedAt.UnixNano())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, repositories.ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read user id: %w", err)
	}
	user.ID = strconv.FormatInt(id, 10)

	s.logger.Debug("User created", zap.String("userID", user.ID), zap.String("username", username))
	return user, nil
}

// Authenticate implements repositories.UserRepository
func (s *Store) Authenticate(ctx context.Context, username, password string) (*entities.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE username = ?`, username)
	user, err := scanUser(row)
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
func (s *Store) GetByID(ctx context.Context, id string) (*entities.User, error) {
	rowID, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, repositories.ErrUserNotFound
	}
	row := s.db.QueryRowContext(ctx,
		`SELECT id, username, password_hash, created_at FROM users WHERE id = ?`, rowID)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*entities.User, error) {
	var (
		id        int64
		createdAt int64
		user      entities.User
	)
	if err := row.Scan(&id, &user.Username, &user.PasswordHash, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repositories.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}
	user.ID = strconv.FormatInt(id, 10)
	user.CreatedAt = time.Unix(0, createdAt).UTC()
	return &user, nil
}

// Append implements repositories.HistoryRepository
func (s *Store) Append(ctx context.Context, userID, query, response string) (*entities.HistoryEntry, error) {
	entry := &entities.HistoryEntry{
		UserID:    userID,
		Query:     strings.TrimSpace(query),
		Response:  strings.TrimSpace(response),
		CreatedAt: s.now().UTC(),
	}
	if err := entry.Validate(); err != nil {
		return nil, err
	}
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return nil, repositories.ErrUserNotFound
	}

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO history (user_id, user_query, assistant_response, created_at) VALUES (?, ?, ?, ?)`,
		uid, entry.Query, entry.Response, entry.CreatedAt.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("failed to insert history entry: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read history id: %w", err)
	}
	entry.ID = strconv.FormatInt(id, 10)
	return entry, nil
}

// List implements repositories.HistoryRepository
func (s *Store) List(ctx context.Context, userID string, limit int) ([]*entities.HistoryEntry, error) {
	limit = entities.NormalizeHistoryLimit(limit)
	uid, err := strconv.ParseInt(userID, 10, 64)
	if err != nil {
		return []*entities.HistoryEntry{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, user_query, assistant_response, created_at
		FROM history
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`, uid, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := make([]*entities.HistoryEntry, 0, limit)
	for rows.Next() {
		var (
			id, owner, createdAt int64
			entry                entities.HistoryEntry
		)
		if err := rows.Scan(&id, &owner, &entry.Query, &entry.Response, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entry.ID = strconv.FormatInt(id, 10)
		entry.UserID = strconv.FormatInt(owner, 10)
		entry.CreatedAt = time.Unix(0, createdAt).UTC()
		entries = append(entries, &entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate history: %w", err)
	}
	return entries, nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
