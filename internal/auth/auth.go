package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/wuwenbin0122/docchat/internal/models"
)

const (
	maxUserIDLength = 128
	issuer          = "docchat"
)

var (
	ErrSecretRequired = errors.New("auth: jwt secret required")
	ErrUserIDRequired = errors.New("auth: user id is required")
	ErrUserIDTooLong  = errors.New("auth: user id is too long")
	ErrInvalidToken   = errors.New("auth: invalid token")
	ErrRevokedToken   = errors.New("auth: token revoked")
)

// Service issues and verifies session tokens bound to a user id.
type Service struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu      sync.RWMutex
	revoked map[string]time.Time
}

func NewService(secret string, ttl time.Duration) (*Service, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, ErrSecretRequired
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}

	return &Service{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     func() time.Time { return time.Now().UTC() },
		revoked: make(map[string]time.Time),
	}, nil
}

// IssueSession signs a token whose subject is userID.
func (s *Service) IssueSession(ctx context.Context, userID string) (*models.Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if utf8.RuneCountInString(userID) > maxUserIDLength {
		return nil, ErrUserIDTooLong
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(s.ttl)
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    issuer,
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("auth: sign token: %w", err)
	}

	return &models.Session{UserID: userID, Token: signed, ExpiresAt: expiresAt}, nil
}

// VerifyToken returns the claims of a valid, unrevoked token. Every failure
// wraps ErrInvalidToken.
func (s *Service) VerifyToken(token string) (*jwt.RegisteredClaims, error) {
	parsed, err := jwt.ParseWithClaims(strings.TrimSpace(token), &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*jwt.RegisteredClaims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	s.mu.RLock()
	_, revoked := s.revoked[claims.ID]
	s.mu.RUnlock()
	if revoked {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, ErrRevokedToken)
	}

	return claims, nil
}

// Revoke invalidates a previously issued token until it would have expired.
func (s *Service) Revoke(token string) error {
	claims, err := s.VerifyToken(token)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.pruneLocked()
	expires := s.now().Add(s.ttl)
	if claims.ExpiresAt != nil {
		expires = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = expires
	return nil
}

func (s *Service) pruneLocked() {
	now := s.now()
	for id, expires := range s.revoked {
		if now.After(expires) {
			delete(s.revoked, id)
		}
	}
}
