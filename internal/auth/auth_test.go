package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/wuwenbin0122/docchat/internal/auth"
)

func TestIssueAndVerifySession(t *testing.T) {
	svc, err := auth.NewService("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("unexpected error creating auth service: %v", err)
	}

	session, err := svc.IssueSession(context.Background(), "  alice ")
	if err != nil {
		t.Fatalf("issue session returned error: %v", err)
	}

	if session.Token == "" {
		t.Fatalf("expected token on session")
	}
	if session.UserID != "alice" {
		t.Fatalf("expected trimmed user id alice, got %q", session.UserID)
	}
	if time.Until(session.ExpiresAt) <= 0 {
		t.Fatalf("expected expiry in the future, got %s", session.ExpiresAt)
	}

	claims, err := svc.VerifyToken(session.Token)
	if err != nil {
		t.Fatalf("verify token failed: %v", err)
	}
	if claims.Subject != "alice" {
		t.Fatalf("expected token subject alice, got %s", claims.Subject)
	}
}

func TestIssueSessionValidation(t *testing.T) {
	svc, _ := auth.NewService("test-secret", time.Hour)

	if _, err := svc.IssueSession(context.Background(), "   "); !errors.Is(err, auth.ErrUserIDRequired) {
		t.Fatalf("expected ErrUserIDRequired, got %v", err)
	}
	if _, err := svc.IssueSession(context.Background(), strings.Repeat("x", 129)); !errors.Is(err, auth.ErrUserIDTooLong) {
		t.Fatalf("expected ErrUserIDTooLong, got %v", err)
	}
}

func TestNewServiceRequiresSecret(t *testing.T) {
	if _, err := auth.NewService(" ", time.Hour); !errors.Is(err, auth.ErrSecretRequired) {
		t.Fatalf("expected ErrSecretRequired, got %v", err)
	}
}

func TestVerifyRejectsForeignAndGarbageTokens(t *testing.T) {
	svc, _ := auth.NewService("test-secret", time.Hour)
	other, _ := auth.NewService("other-secret", time.Hour)

	foreign, err := other.IssueSession(context.Background(), "bob")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	for _, token := range []string{foreign.Token, "not-a-jwt", ""} {
		if _, err := svc.VerifyToken(token); !errors.Is(err, auth.ErrInvalidToken) {
			t.Fatalf("expected ErrInvalidToken for %q, got %v", token, err)
		}
	}
}

func TestRevokeInvalidatesToken(t *testing.T) {
	svc, _ := auth.NewService("test-secret", time.Hour)

	session, err := svc.IssueSession(context.Background(), "carol")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if err := svc.Revoke(session.Token); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	_, err = svc.VerifyToken(session.Token)
	if !errors.Is(err, auth.ErrInvalidToken) || !errors.Is(err, auth.ErrRevokedToken) {
		t.Fatalf("expected revoked token error, got %v", err)
	}

	fresh, _ := svc.IssueSession(context.Background(), "carol")
	if _, err := svc.VerifyToken(fresh.Token); err != nil {
		t.Fatalf("fresh token should verify: %v", err)
	}
}
