package auth

import (
	"testing"
	"time"
)

func newTestTokenService() *TokenService {
	return NewTokenService([]byte("test-secret-key-32bytes-long!!"), 15*time.Minute)
}

func TestIssueAndValidateAccessToken(t *testing.T) {
	ts := newTestTokenService()

	token, err := ts.IssueAccessToken("user-123", "alice", "admin")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	claims, err := ts.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("ValidateAccessToken: %v", err)
	}

	if claims.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", claims.UserID, "user-123")
	}
	if claims.Username != "alice" {
		t.Errorf("Username = %q, want %q", claims.Username, "alice")
	}
	if claims.Role != "admin" {
		t.Errorf("Role = %q, want %q", claims.Role, "admin")
	}
	if claims.Issuer != "converse" {
		t.Errorf("Issuer = %q, want %q", claims.Issuer, "converse")
	}
}

func TestValidateAccessToken_WrongSecret(t *testing.T) {
	ts1 := NewTokenService([]byte("secret-one-is-32-bytes-long!!!!"), 15*time.Minute)
	ts2 := NewTokenService([]byte("secret-two-is-32-bytes-long!!!!"), 15*time.Minute)

	token, err := ts1.IssueAccessToken("user-1", "alice", "user")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	_, err = ts2.ValidateAccessToken(token)
	if err == nil {
		t.Error("expected error validating token with wrong secret")
	}
}

func TestValidateAccessToken_Expired(t *testing.T) {
	ts := NewTokenService([]byte("test-secret-key-32bytes-long!!"), -1*time.Second)
	token, err := ts.IssueAccessToken("user-1", "alice", "user")
	if err != nil {
		t.Fatalf("IssueAccessToken: %v", err)
	}

	_, err = ts.ValidateAccessToken(token)
	if err == nil {
		t.Error("expected error for expired token")
	}
}

func TestValidateAccessToken_Garbage(t *testing.T) {
	ts := newTestTokenService()
	_, err := ts.ValidateAccessToken("not.a.jwt")
	if err == nil {
		t.Error("expected error for garbage token")
	}
}

func TestTokenServiceTTL(t *testing.T) {
	ts := newTestTokenService()
	if ts.AccessTokenTTL() != 15*time.Minute {
		t.Errorf("AccessTokenTTL = %v, want 15m", ts.AccessTokenTTL())
	}
}
