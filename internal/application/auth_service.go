package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/delivery"
	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

const (
	// LoginCodeTTL bounds how long a login verification code stays valid.
	LoginCodeTTL = 5 * time.Minute
	// PasswordResetCodeTTL bounds how long a password-reset code stays valid.
	PasswordResetCodeTTL = 15 * time.Minute
	// ResendLimit caps code deliveries per user inside ResendWindow.
	ResendLimit = 3
	// ResendWindow is the rolling window the resend limit is counted over.
	ResendWindow = 15 * time.Minute
)

// CredentialStore exposes the account lookup and password update operations
// required by the auth service.
type CredentialStore interface {
	GetUserCredentialsByNationalID(ctx context.Context, nationalID string) (UserCredentials, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// SessionStore captures the persistence interactions for auth sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, session AuthSession) (AuthSession, error)
	GetSession(ctx context.Context, id string) (AuthSession, error)
	GetSessionByRefreshToken(ctx context.Context, token string) (AuthSession, error)
	UpdateSession(ctx context.Context, session AuthSession) (AuthSession, error)
	ConsumeCode(ctx context.Context, sessionID, code string) (AuthSession, error)
	RotateRefreshToken(ctx context.Context, sessionID string, current *string, next string, expiresAt time.Time) (AuthSession, error)
	DeleteSession(ctx context.Context, id string) error
	DeleteSessionsForUser(ctx context.Context, userID string) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// AttemptCounter tracks code deliveries per user so the resend limit holds
// across server instances.
type AttemptCounter interface {
	RecordAttempt(ctx context.Context, userID string, at time.Time) error
	CountAttemptsSince(ctx context.Context, userID string, since time.Time) (int, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// PasswordHasher derives a storable hash from a plaintext password.
type PasswordHasher func(password string) (string, error)

// AuthService coordinates the code-gated login flow: password check, code
// issuance and delivery, verification, resend limits, and password changes.
type AuthService struct {
	credentials    CredentialStore
	sessions       SessionStore
	attempts       AttemptCounter
	messenger      delivery.Messenger
	verifyPassword PasswordVerifier
	hashPassword   PasswordHasher
	generateCode   func() (string, error)
	idGenerator    func() string
	now            func() time.Time
	logger         *slog.Logger
}

// NewAuthService wires dependencies for the authentication flows.
func NewAuthService(credentials CredentialStore, sessions SessionStore, attempts AttemptCounter, messenger delivery.Messenger, idGenerator func() string, now func() time.Time) *AuthService {
	return NewAuthServiceWithLogger(credentials, sessions, attempts, messenger, idGenerator, now, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, sessions SessionStore, attempts AttemptCounter, messenger delivery.Messenger, idGenerator func() string, now func() time.Time, logger *slog.Logger) *AuthService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &AuthService{
		credentials:    credentials,
		sessions:       sessions,
		attempts:       attempts,
		messenger:      messenger,
		verifyPassword: VerifyPassword,
		hashPassword: func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		},
		generateCode: GenerateOTPCode,
		idGenerator:  idGenerator,
		now:          now,
		logger:       defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// InitiateLogin validates credentials and opens an unverified login session
// with a freshly delivered code. Unknown identity and wrong password are
// indistinguishable to the caller.
func (s *AuthService) InitiateLogin(ctx context.Context, nationalID, password string) (challenge Challenge, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	nationalID = strings.TrimSpace(nationalID)

	logger := s.loggerWith(ctx, "InitiateLogin")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "login initiation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", challenge.SessionID).InfoContext(ctx, "login code issued")
	}()

	if nationalID == "" || password == "" {
		err = ErrInvalidCredentials
		return
	}

	var creds UserCredentials
	creds, err = s.credentials.GetUserCredentialsByNationalID(ctx, nationalID)
	if err != nil {
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}
	if !creds.User.Active {
		err = ErrAccountInactive
		return
	}
	if err = s.verifyPassword(creds.PasswordHash, password); err != nil {
		err = ErrInvalidCredentials
		return
	}

	challenge, err = s.openSession(ctx, creds.User, PurposeLogin, LoginCodeTTL, delivery.TemplateLoginCode)
	return
}

// VerifyCode checks the delivered code against an unverified session and marks
// it verified. Wrong, expired, unknown and already-used codes all surface as
// ErrInvalidOrExpiredCode.
func (s *AuthService) VerifyCode(ctx context.Context, sessionID, code string) (session AuthSession, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := s.loggerWith(ctx, "VerifyCode", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "code verification failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", session.UserID).InfoContext(ctx, "code verified")
	}()

	session, err = s.consumeCode(ctx, sessionID, code, PurposeLogin)
	return
}

// Resend regenerates the code on a pending session and delivers it again,
// subject to the per-user rolling-window limit.
func (s *AuthService) Resend(ctx context.Context, sessionID string) (challenge Challenge, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Resend", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "code resend failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "code resent")
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

	now := s.now()
	if session.Verified || !session.ExpiresAt.After(now) {
		err = ErrInvalidOrExpiredCode
		return
	}

	if err = s.enforceResendLimit(ctx, session.UserID, now); err != nil {
		return
	}

	var code string
	code, err = s.generateCode()
	if err != nil {
		return
	}

	ttl := LoginCodeTTL
	if session.Purpose == PurposePasswordReset {
		ttl = PasswordResetCodeTTL
	}
	session.Code = code
	session.ExpiresAt = now.Add(ttl)
	session.ResendCount++
	session.UpdatedAt = now

	session, err = s.sessions.UpdateSession(ctx, session)
	if err != nil {
		err = mapAuthStoreError(err)
		return
	}

	if s.attempts != nil {
		if recordErr := s.attempts.RecordAttempt(ctx, session.UserID, now); recordErr != nil {
			logger.ErrorContext(ctx, "failed to record delivery attempt", "error", recordErr)
		}
	}

	template := delivery.TemplateLoginCode
	if session.Purpose == PurposePasswordReset {
		template = delivery.TemplatePasswordResetCode
	}
	if s.credentials == nil {
		logger.WarnContext(ctx, "credential store not configured, skipping code delivery")
	} else if user, lookupErr := s.credentials.GetUser(ctx, session.UserID); lookupErr != nil {
		logger.ErrorContext(ctx, "failed to resolve delivery destination, skipping code delivery", "error", lookupErr)
	} else {
		s.dispatchCode(ctx, logger, destinationFor(user, session.Channel), session.Code, template)
	}

	challenge = Challenge{SessionID: session.ID, Channel: session.Channel, ExpiresAt: session.ExpiresAt}
	return
}

// InitiatePasswordReset opens a password-reset session for the given identity.
// An unknown identity yields a synthetic challenge so callers cannot probe for
// registered accounts.
func (s *AuthService) InitiatePasswordReset(ctx context.Context, nationalID string) (challenge Challenge, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.sessions == nil {
		err = fmt.Errorf("auth stores not configured")
		return
	}

	nationalID = strings.TrimSpace(nationalID)

	logger := s.loggerWith(ctx, "InitiatePasswordReset")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset initiation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", challenge.SessionID).InfoContext(ctx, "password reset code issued")
	}()

	if nationalID == "" {
		vErr := &ValidationError{}
		vErr.add("national_id", "must not be empty")
		err = vErr
		return
	}

	creds, lookupErr := s.credentials.GetUserCredentialsByNationalID(ctx, nationalID)
	if lookupErr != nil {
		mapped := mapAuthStoreError(lookupErr)
		if !errors.Is(mapped, ErrNotFound) {
			err = mapped
			return
		}
		challenge = s.syntheticChallenge()
		return
	}
	if !creds.User.Active {
		challenge = s.syntheticChallenge()
		return
	}

	challenge, err = s.openSession(ctx, creds.User, PurposePasswordReset, PasswordResetCodeTTL, delivery.TemplatePasswordResetCode)
	return
}

// CompletePasswordReset verifies a password-reset code, stores the new
// password hash and revokes every session the user holds.
func (s *AuthService) CompletePasswordReset(ctx context.Context, sessionID, code, newPassword string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.sessions == nil {
		return fmt.Errorf("auth stores not configured")
	}

	logger := s.loggerWith(ctx, "CompletePasswordReset", "session_id", sessionID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password reset failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password reset completed")
	}()

	if err = validateNewPassword(newPassword); err != nil {
		return err
	}

	session, err := s.consumeCode(ctx, sessionID, code, PurposePasswordReset)
	if err != nil {
		return err
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err = s.credentials.UpdatePasswordHash(ctx, session.UserID, hash); err != nil {
		return mapAuthStoreError(err)
	}

	if err = s.sessions.DeleteSessionsForUser(ctx, session.UserID); err != nil {
		return mapAuthStoreError(err)
	}
	return nil
}

// ChangePassword verifies the current password, stores a new hash and revokes
// every session the user holds, forcing re-authentication everywhere.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) (err error) {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.credentials == nil || s.sessions == nil {
		return fmt.Errorf("auth stores not configured")
	}

	logger := s.loggerWith(ctx, "ChangePassword", "user_id", userID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "password change failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "password changed")
	}()

	if err = validateNewPassword(newPassword); err != nil {
		return err
	}

	user, err := s.credentials.GetUser(ctx, userID)
	if err != nil {
		return mapAuthStoreError(err)
	}
	creds, err := s.credentials.GetUserCredentialsByNationalID(ctx, user.NationalID)
	if err != nil {
		return mapAuthStoreError(err)
	}
	if err = s.verifyPassword(creds.PasswordHash, currentPassword); err != nil {
		return ErrInvalidCredentials
	}

	hash, err := s.hashPassword(newPassword)
	if err != nil {
		return err
	}
	if err = s.credentials.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return mapAuthStoreError(err)
	}
	if err = s.sessions.DeleteSessionsForUser(ctx, userID); err != nil {
		return mapAuthStoreError(err)
	}
	return nil
}

// openSession creates an unverified session for the user, records the delivery
// attempt and dispatches the code.
func (s *AuthService) openSession(ctx context.Context, user User, purpose SessionPurpose, ttl time.Duration, template string) (Challenge, error) {
	now := s.now()

	if err := s.enforceResendLimit(ctx, user.ID, now); err != nil {
		return Challenge{}, err
	}

	code, err := s.generateCode()
	if err != nil {
		return Challenge{}, err
	}

	channel := channelFor(user)

	session := AuthSession{
		ID:        s.idGenerator(),
		UserID:    user.ID,
		Purpose:   purpose,
		Code:      code,
		Channel:   channel,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.sessions.DeleteExpiredSessions(ctx, now); err != nil {
		return Challenge{}, mapAuthStoreError(err)
	}

	persisted, err := s.sessions.CreateSession(ctx, session)
	if err != nil {
		return Challenge{}, mapAuthStoreError(err)
	}

	if s.attempts != nil {
		if err := s.attempts.RecordAttempt(ctx, user.ID, now); err != nil {
			s.loggerWith(ctx, "").ErrorContext(ctx, "failed to record delivery attempt", "error", err)
		}
	}

	s.dispatchCode(ctx, s.loggerWith(ctx, "", "session_id", persisted.ID), destinationFor(user, channel), persisted.Code, template)

	return Challenge{SessionID: persisted.ID, Channel: persisted.Channel, ExpiresAt: persisted.ExpiresAt}, nil
}

// consumeCode validates the code against a pending session of the given
// purpose and marks the session verified. The final consume is a conditional
// write in the store, so two racing verifications of the same code cannot
// both succeed.
func (s *AuthService) consumeCode(ctx context.Context, sessionID, code string, purpose SessionPurpose) (AuthSession, error) {
	session, err := s.sessions.GetSession(ctx, strings.TrimSpace(sessionID))
	if err != nil {
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidOrExpiredCode
		}
		return AuthSession{}, err
	}

	now := s.now()
	presented := strings.TrimSpace(code)
	switch {
	case session.Purpose != purpose:
		return AuthSession{}, ErrInvalidOrExpiredCode
	case session.Verified:
		return AuthSession{}, ErrInvalidOrExpiredCode
	case !session.ExpiresAt.After(now):
		return AuthSession{}, ErrInvalidOrExpiredCode
	case !codesMatch(session.Code, presented):
		return AuthSession{}, ErrInvalidOrExpiredCode
	}

	session, err = s.sessions.ConsumeCode(ctx, session.ID, presented)
	if err != nil {
		if errors.Is(err, persistence.ErrConflict) {
			return AuthSession{}, ErrInvalidOrExpiredCode
		}
		err = mapAuthStoreError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidOrExpiredCode
		}
		return AuthSession{}, err
	}
	return session, nil
}

func (s *AuthService) enforceResendLimit(ctx context.Context, userID string, now time.Time) error {
	if s.attempts == nil {
		return nil
	}
	count, err := s.attempts.CountAttemptsSince(ctx, userID, now.Add(-ResendWindow))
	if err != nil {
		return mapAuthStoreError(err)
	}
	if count >= ResendLimit {
		return ErrRateLimited
	}
	return nil
}

// dispatchCode hands the code to the delivery collaborator. Delivery failures
// are logged and never surfaced to the caller.
func (s *AuthService) dispatchCode(ctx context.Context, logger *slog.Logger, destination, code, template string) {
	if s.messenger == nil {
		return
	}
	msg := delivery.Message{
		Destination: destination,
		TemplateID:  template,
		Variables:   map[string]string{"code": code},
	}
	if err := s.messenger.Send(ctx, msg); err != nil {
		logger.ErrorContext(ctx, "code delivery failed", "error", err, "template_id", template)
	}
}

func channelFor(user User) string {
	if user.Phone == "" && user.Email != "" {
		return "email"
	}
	return "sms"
}

func destinationFor(user User, channel string) string {
	if channel == "email" {
		return user.Email
	}
	return user.Phone
}

// syntheticChallenge fabricates a challenge for unknown identities so the
// response shape never reveals whether an account exists.
func (s *AuthService) syntheticChallenge() Challenge {
	return Challenge{
		SessionID: s.idGenerator(),
		Channel:   "sms",
		ExpiresAt: s.now().Add(PasswordResetCodeTTL),
	}
}

func validateNewPassword(password string) error {
	vErr := &ValidationError{}
	if len(password) < 8 {
		vErr.add("password", "must be at least 8 characters")
	}
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}

func mapAuthStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrUnavailable) {
		return ErrUnavailable
	}
	return err
}
