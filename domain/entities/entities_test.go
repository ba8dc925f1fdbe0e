package entities

import (
	"strings"
	"testing"
)

func TestUserValidate(t *testing.T) {
	user := &User{Username: "ada", PasswordHash: "hash"}
	if err := user.Validate(); err != nil {
		t.Errorf("Expected valid user, got %v", err)
	}

	user.Username = "   "
	if err := user.Validate(); err == nil {
		t.Error("Expected error for blank username")
	}

	user = &User{Username: "ada"}
	if err := user.Validate(); err == nil {
		t.Error("Expected error for missing password hash")
	}
}

func TestHistoryEntryValidate(t *testing.T) {
	entry := &HistoryEntry{UserID: "1", Query: "What is gravity?", Response: "A force."}
	if err := entry.Validate(); err != nil {
		t.Errorf("Expected valid entry, got %v", err)
	}

	entry.Response = ""
	if err := entry.Validate(); err == nil {
		t.Error("Expected error for empty response")
	}

	entry = &HistoryEntry{Query: "q", Response: "r"}
	if err := entry.Validate(); err == nil {
		t.Error("Expected error for missing user ID")
	}
}

func TestHistoryEntrySummary(t *testing.T) {
	short := &HistoryEntry{Query: "Why is the sky blue?"}
	if got := short.Summary(80); got != short.Query {
		t.Errorf("Expected unchanged query, got %q", got)
	}

	long := &HistoryEntry{Query: strings.Repeat("é", 100)}
	got := long.Summary(80)
	if !strings.HasSuffix(got, "...") {
		t.Errorf("Expected ellipsis suffix, got %q", got)
	}
	if n := len([]rune(strings.TrimSuffix(got, "..."))); n != 80 {
		t.Errorf("Expected 80 runes before ellipsis, got %d", n)
	}
}

func TestValidateRegistration(t *testing.T) {
	tests := []struct {
		name     string
		username string
		password string
		confirm  string
		wantErr  bool
	}{
		{"valid", "ada", "secret1", "secret1", false},
		{"missing username", "", "secret1", "secret1", true},
		{"missing confirmation", "ada", "secret1", "", true},
		{"mismatch", "ada", "secret1", "secret2", true},
		{"too short", "ada", "abc", "abc", true},
		{"exactly minimum", "ada", "abcdef", "abcdef", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRegistration(tt.username, tt.password, tt.confirm)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRegistration() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestNormalizeHistoryLimit(t *testing.T) {
	if got := NormalizeHistoryLimit(0); got != DefaultHistoryLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultHistoryLimit, got)
	}
	if got := NormalizeHistoryLimit(-3); got != DefaultHistoryLimit {
		t.Errorf("Expected default limit %d, got %d", DefaultHistoryLimit, got)
	}
	if got := NormalizeHistoryLimit(10); got != 10 {
		t.Errorf("Expected limit 10, got %d", got)
	}
}
