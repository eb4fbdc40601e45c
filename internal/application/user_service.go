package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/persistence"
)

// AccountStore captures the persistence interactions for portal accounts.
// UpdateUser preserves the stored password hash; password writes go through
// the auth service.
type AccountStore interface {
	CreateUser(ctx context.Context, user User, passwordHash string) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
}

// RegisterUserParams wraps the data required to open an account.
type RegisterUserParams struct {
	NationalID string
	Name       string
	Phone      string
	Email      string
	Plan       string
	Password   string
}

// UserService manages account registration and profile maintenance.
type UserService struct {
	accounts     AccountStore
	sessions     SessionStore
	hashPassword PasswordHasher
	idGenerator  func() string
	now          func() time.Time
	logger       *slog.Logger
}

// NewUserService wires dependencies for account operations.
func NewUserService(accounts AccountStore, sessions SessionStore, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(accounts, sessions, idGenerator, now, nil)
}

// NewUserServiceWithLogger constructs a UserService with a specified logger.
func NewUserServiceWithLogger(accounts AccountStore, sessions SessionStore, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		accounts: accounts,
		sessions: sessions,
		hashPassword: func(password string) (string, error) {
			return CreatePasswordHash(password, DefaultArgon2idParams)
		},
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// Register opens a new active account. The national id is the identity key
// and must be unique.
func (s *UserService) Register(ctx context.Context, params RegisterUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.accounts == nil {
		err = fmt.Errorf("account store not configured")
		return
	}

	logger := s.loggerWith(ctx, "Register")
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "registration failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID).InfoContext(ctx, "account registered")
	}()

	vErr := &ValidationError{}
	nationalID := strings.TrimSpace(params.NationalID)
	name := strings.TrimSpace(params.Name)
	if nationalID == "" {
		vErr.add("national_id", "must not be empty")
	}
	if name == "" {
		vErr.add("name", "must not be empty")
	}
	if len(params.Password) < 8 {
		vErr.add("password", "must be at least 8 characters")
	}
	if email := strings.TrimSpace(params.Email); email != "" && !strings.Contains(email, "@") {
		vErr.add("email", "must be a valid address")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var hash string
	hash, err = s.hashPassword(params.Password)
	if err != nil {
		return
	}

	now := s.now()
	user, err = s.accounts.CreateUser(ctx, User{
		ID:         s.idGenerator(),
		NationalID: nationalID,
		Name:       name,
		Phone:      strings.TrimSpace(params.Phone),
		Email:      strings.TrimSpace(params.Email),
		Active:     true,
		Plan:       strings.TrimSpace(params.Plan),
		CreatedAt:  now,
		UpdatedAt:  now,
	}, hash)
	if err != nil {
		err = mapAccountStoreError(err)
		return
	}
	return
}

// GetProfile returns the caller's own account.
func (s *UserService) GetProfile(ctx context.Context, principal Principal) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.accounts == nil {
		return User{}, fmt.Errorf("account store not configured")
	}
	user, err := s.accounts.GetUser(ctx, principal.UserID)
	if err != nil {
		return User{}, mapAccountStoreError(err)
	}
	return user, nil
}

// UpdateProfile applies mutable profile fields to the caller's account.
func (s *UserService) UpdateProfile(ctx context.Context, principal Principal, input UserProfileInput) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}
	if s.accounts == nil {
		err = fmt.Errorf("account store not configured")
		return
	}

	logger := s.loggerWith(ctx, "UpdateProfile", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "profile update failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "profile updated")
	}()

	vErr := &ValidationError{}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		vErr.add("name", "must not be empty")
	}
	if email := strings.TrimSpace(input.Email); email != "" && !strings.Contains(email, "@") {
		vErr.add("email", "must be a valid address")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	var current User
	current, err = s.accounts.GetUser(ctx, principal.UserID)
	if err != nil {
		err = mapAccountStoreError(err)
		return
	}

	current.Name = name
	current.Phone = strings.TrimSpace(input.Phone)
	current.Email = strings.TrimSpace(input.Email)
	if plan := strings.TrimSpace(input.Plan); plan != "" {
		current.Plan = plan
	}
	current.UpdatedAt = s.now()

	user, err = s.accounts.UpdateUser(ctx, current)
	if err != nil {
		err = mapAccountStoreError(err)
	}
	return
}

// Deactivate soft-deletes the caller's account and revokes every session they
// hold. Deactivated accounts can no longer log in.
func (s *UserService) Deactivate(ctx context.Context, principal Principal) (err error) {
	if s == nil {
		return fmt.Errorf("UserService is nil")
	}
	if s.accounts == nil {
		return fmt.Errorf("account store not configured")
	}

	logger := s.loggerWith(ctx, "Deactivate", "user_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "deactivation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.InfoContext(ctx, "account deactivated")
	}()

	current, err := s.accounts.GetUser(ctx, principal.UserID)
	if err != nil {
		return mapAccountStoreError(err)
	}
	current.Active = false
	current.UpdatedAt = s.now()

	if _, err = s.accounts.UpdateUser(ctx, current); err != nil {
		return mapAccountStoreError(err)
	}
	if s.sessions != nil {
		if err = s.sessions.DeleteSessionsForUser(ctx, principal.UserID); err != nil {
			return mapAuthStoreError(err)
		}
	}
	return nil
}

func mapAccountStoreError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	if errors.Is(err, persistence.ErrDuplicate) {
		vErr := &ValidationError{}
		vErr.add("national_id", "already registered")
		return vErr
	}
	if errors.Is(err, persistence.ErrUnavailable) {
		return ErrUnavailable
	}
	return err
}
