package api

import (
	"github.com/satriahrh/voicetutor/domain/entities"
)

// RegisterRequest represents the request payload for user registration
type RegisterRequest struct {
	Username        string `json:"username" form:"username"`
	Password        string `json:"password" form:"password"`
	ConfirmPassword string `json:"confirm_password" form:"confirm_password"`
}

// LoginRequest represents the request payload for user login
type LoginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// LoginResponse represents the response payload for user login
type LoginResponse struct {
	Token            string                 `json:"token"`
	User             *entities.User         `json:"user"`
	LastConversation *entities.HistoryEntry `json:"last_conversation,omitempty"`
}

// AskTextRequest submits a typed question
type AskTextRequest struct {
	Text string `json:"text"`
}

// HistoryResponse lists exchanges, most recent first
type HistoryResponse struct {
	Entries []*entities.HistoryEntry `json:"entries"`
}

// ClearCacheResponse reports how many artifacts were removed
type ClearCacheResponse struct {
	Removed uint64 `json:"removed"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
