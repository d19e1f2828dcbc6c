package auth

import (
	"testing"
	"time"
)

func TestTokenRoundTrip(t *testing.T) {
	m, err := NewTokenManager("test-secret-key-for-testing-only", time.Hour)
	if err != nil {
		t.Fatal(err)
	}

	token, err := m.GenerateToken("user_01", "a@example.com", "admin")
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}

	claims, err := m.ValidateToken(token)
	if err != nil {
		t.Fatalf("failed to validate token: %v", err)
	}
	if claims.UserID != "user_01" || claims.Email != "a@example.com" || claims.Role != "admin" {
		t.Errorf("unexpected claims %+v", claims)
	}
}

func TestExpiredToken(t *testing.T) {
	m, _ := NewTokenManager("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	m.now = func() time.Time { return issued }

	token, err := m.GenerateToken("user_01", "a@example.com", "individual")
	if err != nil {
		t.Fatal(err)
	}

	m.now = time.Now
	if _, err := m.ValidateToken(token); err != ErrInvalidToken {
		t.Fatalf("expected ErrInvalidToken for expired token, got %v", err)
	}
}

func TestTokenFromOtherSecret(t *testing.T) {
	a, _ := NewTokenManager("secret-a", time.Hour)
	b, _ := NewTokenManager("secret-b", time.Hour)

	token, _ := a.GenerateToken("user_01", "a@example.com", "individual")
	if _, err := b.ValidateToken(token); err == nil {
		t.Fatal("expected validation failure with a different secret")
	}
	if _, err := a.ValidateToken("invalid_token_xyz"); err == nil {
		t.Fatal("expected validation failure for garbage")
	}
}

func TestEmptySecret(t *testing.T) {
	if _, err := NewTokenManager("", time.Hour); err != ErrEmptySecret {
		t.Fatalf("expected ErrEmptySecret, got %v", err)
	}
}

func TestPasswordIsHashed(t *testing.T) {
	h := NewHasher(4)
	password := "Password123"

	hash, err := h.Hash(password)
	if err != nil {
		t.Fatal(err)
	}
	if hash == password {
		t.Fatal("password was stored in plain text")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("expected match: %v", err)
	}
	if err := h.Compare(hash, "wrong"); err == nil {
		t.Fatal("expected mismatch")
	}
}

func TestCheckStrength(t *testing.T) {
	tests := []struct {
		password string
		ok       bool
	}{
		{"short1", false},
		{"longenoughbutnodigit", false},
		{"1234567890", false},
		{"Password123", true},
	}
	for _, tt := range tests {
		if err := CheckStrength(tt.password); (err == nil) != tt.ok {
			t.Errorf("CheckStrength(%q) = %v, want ok=%v", tt.password, err, tt.ok)
		}
	}
}
