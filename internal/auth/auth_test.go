package auth

import (
	"errors"
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)

	token, err := issuer.GenerateUserToken("user-1", "ada")
	if err != nil {
		t.Fatalf("GenerateUserToken() error = %v", err)
	}

	claims, err := issuer.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken() error = %v", err)
	}
	if claims.UserID != "user-1" {
		t.Errorf("Expected user ID user-1, got %s", claims.UserID)
	}
	if claims.Username != "ada" {
		t.Errorf("Expected username ada, got %s", claims.Username)
	}
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, err := NewTokenIssuer("secret-a", time.Hour).GenerateUserToken("user-1", "ada")
	if err != nil {
		t.Fatalf("GenerateUserToken() error = %v", err)
	}

	_, err = NewTokenIssuer("secret-b", time.Hour).ValidateToken(token)
	if !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestValidateToken_Expired(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	issuer.now = func() time.Time { return issued }

	token, err := issuer.GenerateUserToken("user-1", "ada")
	if err != nil {
		t.Fatalf("GenerateUserToken() error = %v", err)
	}

	issuer.now = time.Now
	if _, err := issuer.ValidateToken(token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	issuer := NewTokenIssuer("test-secret", time.Hour)
	if _, err := issuer.ValidateToken("not.a.token"); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("Expected ErrInvalidToken, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret1")
	if err != nil {
		t.Fatalf("HashPassword() error = %v", err)
	}
	if hash == "secret1" {
		t.Fatal("Expected hash to differ from password")
	}

	ok, err := VerifyPassword(hash, "secret1")
	if err != nil || !ok {
		t.Errorf("Expected password to verify, ok=%v err=%v", ok, err)
	}

	ok, err = VerifyPassword(hash, "wrong")
	if err != nil || ok {
		t.Errorf("Expected mismatch without error, ok=%v err=%v", ok, err)
	}

	if _, err := VerifyPassword("not-a-bcrypt-hash", "secret1"); err == nil {
		t.Error("Expected error for malformed hash")
	}
}
