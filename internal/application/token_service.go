package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

const (
	// DefaultAccessTokenTTL bounds how long an access token is accepted.
	DefaultAccessTokenTTL = 15 * time.Minute
	// DefaultRefreshTokenTTL bounds how long a refresh token can rotate.
	DefaultRefreshTokenTTL = 30 * 24 * time.Hour
)

const tokenIssuer = "portal-paciente"

// accessClaims is the JWT payload carried by access tokens.
type accessClaims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// TokenService mints short-lived JWT access tokens and manages the opaque
// refresh tokens bound to verified sessions.
type TokenService struct {
	sessions       SessionStore
	signingKey     []byte
	tokenGenerator func() string
	now            func() time.Time
	accessTTL      time.Duration
	refreshTTL     time.Duration
	logger         *slog.Logger
}

// NewTokenService wires dependencies for token issuance and rotation.
func NewTokenService(sessions SessionStore, signingKey []byte, tokenGenerator func() string, now func() time.Time, accessTTL, refreshTTL time.Duration) *TokenService {
	return NewTokenServiceWithLogger(sessions, signingKey, tokenGenerator, now, accessTTL, refreshTTL, nil)
}

// NewTokenServiceWithLogger constructs a TokenService with a specified logger.
func NewTokenServiceWithLogger(sessions SessionStore, signingKey []byte, tokenGenerator func() string, now func() time.Time, accessTTL, refreshTTL time.Duration, logger *slog.Logger) *TokenService {
	if tokenGenerator == nil {
		tokenGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	if accessTTL <= 0 {
		accessTTL = DefaultAccessTokenTTL
	}
	if refreshTTL <= 0 {
		refreshTTL = DefaultRefreshTokenTTL
	}
	return &TokenService{
		sessions:       sessions,
		signingKey:     signingKey,
		tokenGenerator: tokenGenerator,
		now:            now,
		accessTTL:      accessTTL,
		refreshTTL:     refreshTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *TokenService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "TokenService", operation, attrs...)
}

// Issue mints a token pair for a verified login session and binds the refresh
// token to the session row.
func (s *TokenService) Issue(ctx context.Context, sessionID string) (pair TokenPair, err error) {
	if s == nil {
		err = fmt.Errorf("TokenService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Issue", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token issuance failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "token pair issued")
	}()

	var session AuthSession
	session, err = s.sessions.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidOrExpiredCode
		}
		return
	}
	if session.Purpose != PurposeLogin || !session.Verified {
		err = ErrInvalidOrExpiredCode
		return
	}

	pair, err = s.bindTokens(ctx, session)
	return
}

// Rotate exchanges a valid refresh token for a fresh pair, replacing the
// stored value so the presented token can never be used twice.
func (s *TokenService) Rotate(ctx context.Context, refreshToken string) (pair TokenPair, err error) {
	if s == nil {
		err = fmt.Errorf("TokenService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Rotate")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "token rotation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "token pair rotated")
	}()

	trimmed := strings.TrimSpace(refreshToken)
	if trimmed == "" {
		err = ErrInvalidOrExpiredToken
		return
	}

	var session AuthSession
	session, err = s.sessions.GetSessionByRefreshToken(ctx, trimmed)
	if err != nil {
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidOrExpiredToken
		}
		return
	}

	now := s.now()
	if session.RefreshExpiresAt == nil || !session.RefreshExpiresAt.After(now) {
		err = ErrInvalidOrExpiredToken
		return
	}

	pair, err = s.bindTokens(ctx, session)
	return
}

// Revoke deletes the session bound to the given refresh token. Unknown tokens
// are treated as already revoked.
func (s *TokenService) Revoke(ctx context.Context, refreshToken string) error {
	if s == nil {
		return fmt.Errorf("TokenService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session store not configured")
	}

	logger := s.loggerWith(ctx, "Revoke")

	trimmed := strings.TrimSpace(refreshToken)
	if trimmed == "" {
		return ErrInvalidOrExpiredToken
	}

	session, err := s.sessions.GetSessionByRefreshToken(ctx, trimmed)
	if err != nil {
		if errors.Is(mapAuthStoreError(err), ErrNotFound) {
			return nil
		}
		return mapAuthStoreError(err)
	}
	if err := s.sessions.DeleteSession(ctx, session.ID); err != nil {
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return mapAuthStoreError(err)
	}
	logger.With("session_id", session.ID).InfoContext(ctx, "session revoked")
	return nil
}

// RevokeAllForUser deletes every session the user holds, invalidating all of
// their refresh tokens at once.
func (s *TokenService) RevokeAllForUser(ctx context.Context, userID string) error {
	if s == nil {
		return fmt.Errorf("TokenService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session store not configured")
	}
	if err := s.sessions.DeleteSessionsForUser(ctx, userID); err != nil {
		return mapAuthStoreError(err)
	}
	s.loggerWith(ctx, "RevokeAllForUser", "user_id", userID).InfoContext(ctx, "all sessions revoked")
	return nil
}

// ValidateAccess parses and verifies an access token and returns its
// principal. Malformed, mis-signed and expired tokens are indistinguishable.
func (s *TokenService) ValidateAccess(ctx context.Context, accessToken string) (Principal, error) {
	if s == nil {
		return Principal{}, fmt.Errorf("TokenService is nil")
	}

	trimmed := strings.TrimSpace(accessToken)
	if trimmed == "" {
		return Principal{}, ErrInvalidOrExpiredToken
	}

	claims := &accessClaims{}
	token, err := jwt.ParseWithClaims(trimmed, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return s.signingKey, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithIssuer(tokenIssuer), jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !token.Valid || claims.Subject == "" {
		return Principal{}, ErrInvalidOrExpiredToken
	}

	return Principal{UserID: claims.Subject, SessionID: claims.SessionID}, nil
}

// bindTokens mints a new pair and replaces the refresh token on the session
// row with a conditional write keyed on the token value that was read. Two
// racing exchanges of the same token can never both succeed; the loser sees
// ErrInvalidOrExpiredToken.
func (s *TokenService) bindTokens(ctx context.Context, session AuthSession) (TokenPair, error) {
	now := s.now()

	refreshToken := s.tokenGenerator()
	if refreshToken == "" {
		return TokenPair{}, fmt.Errorf("token generator returned empty token")
	}
	refreshExpiresAt := now.Add(s.refreshTTL)

	session, err := s.sessions.RotateRefreshToken(ctx, session.ID, session.RefreshToken, refreshToken, refreshExpiresAt)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return TokenPair{}, ErrInvalidOrExpiredToken
		}
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			return TokenPair{}, ErrInvalidOrExpiredToken
		}
		return TokenPair{}, err
	}

	accessExpiresAt := now.Add(s.accessTTL)
	claims := &accessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiresAt),
		},
		SessionID: session.ID,
	}
	accessToken, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.signingKey)
	if err != nil {
		return TokenPair{}, err
	}

	return TokenPair{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: refreshExpiresAt,
	}, nil
}
