package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/ozassa/app-e-portal-paciente-CTC-API/internal/application"
)

type authService interface {
	InitiateLogin(ctx context.Context, nationalID, password string) (application.Challenge, error)
	VerifyCode(ctx context.Context, sessionID, code string) (application.AuthSession, error)
	Resend(ctx context.Context, sessionID string) (application.Challenge, error)
	InitiatePasswordReset(ctx context.Context, nationalID string) (application.Challenge, error)
	CompletePasswordReset(ctx context.Context, sessionID, code, newPassword string) error
	ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error
}

type tokenService interface {
	Issue(ctx context.Context, sessionID string) (application.TokenPair, error)
	Rotate(ctx context.Context, refreshToken string) (application.TokenPair, error)
	Revoke(ctx context.Context, refreshToken string) error
}

// AuthHandler serves the code-gated login and token endpoints.
type AuthHandler struct {
	auth      authService
	tokens    tokenService
	responder responder
	logger    *slog.Logger
}

// NewAuthHandler wires the auth endpoints.
func NewAuthHandler(auth authService, tokens tokenService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{auth: auth, tokens: tokens, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

type loginRequest struct {
	NationalID string `json:"national_id"`
	Password   string `json:"password"`
}

type challengeResponse struct {
	SessionID string `json:"session_id"`
	Channel   string `json:"channel"`
	ExpiresAt string `json:"expires_at"`
}

type verifyRequest struct {
	SessionID string `json:"session_id"`
	Code      string `json:"code"`
}

type resendRequest struct {
	SessionID string `json:"session_id"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPairResponse struct {
	AccessToken      string `json:"access_token"`
	AccessExpiresAt  string `json:"access_expires_at"`
	RefreshToken     string `json:"refresh_token"`
	RefreshExpiresAt string `json:"refresh_expires_at"`
}

type passwordResetRequest struct {
	NationalID string `json:"national_id"`
}

type passwordResetCompleteRequest struct {
	SessionID   string `json:"session_id"`
	Code        string `json:"code"`
	NewPassword string `json:"new_password"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

func challengePayload(challenge application.Challenge) challengeResponse {
	return challengeResponse{
		SessionID: challenge.SessionID,
		Channel:   challenge.Channel,
		ExpiresAt: challenge.ExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

func tokenPairPayload(pair application.TokenPair) tokenPairResponse {
	return tokenPairResponse{
		AccessToken:      pair.AccessToken,
		AccessExpiresAt:  pair.AccessExpiresAt.UTC().Format(time.RFC3339Nano),
		RefreshToken:     pair.RefreshToken,
		RefreshExpiresAt: pair.RefreshExpiresAt.UTC().Format(time.RFC3339Nano),
	}
}

// Login checks credentials and opens a code challenge.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Login")

	challenge, err := h.auth.InitiateLogin(r.Context(), req.NationalID, req.Password)
	if err != nil {
		logger.ErrorContext(r.Context(), "login rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("session_id", challenge.SessionID).InfoContext(r.Context(), "login challenge issued")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, challengePayload(challenge))
}

// Verify consumes the delivered code and exchanges the verified session for a
// token pair.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil || h.tokens == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Verify", "session_id", req.SessionID)

	session, err := h.auth.VerifyCode(r.Context(), req.SessionID, req.Code)
	if err != nil {
		logger.ErrorContext(r.Context(), "verification rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	pair, err := h.tokens.Issue(r.Context(), session.ID)
	if err != nil {
		logger.ErrorContext(r.Context(), "token issuance failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("user_id", session.UserID).InfoContext(r.Context(), "login completed")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tokenPairPayload(pair))
}

// Resend delivers a fresh code for a pending challenge.
func (h *AuthHandler) Resend(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req resendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Resend", "session_id", req.SessionID)

	challenge, err := h.auth.Resend(r.Context(), req.SessionID)
	if err != nil {
		logger.ErrorContext(r.Context(), "resend rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "code resent")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, challengePayload(challenge))
}

// Refresh rotates a refresh token.
func (h *AuthHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tokens == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Refresh")

	pair, err := h.tokens.Rotate(r.Context(), req.RefreshToken)
	if err != nil {
		logger.ErrorContext(r.Context(), "rotation rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "tokens rotated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, tokenPairPayload(pair))
}

// Logout revokes the presented refresh token.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.tokens == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "Logout")

	if err := h.tokens.Revoke(r.Context(), req.RefreshToken); err != nil {
		logger.ErrorContext(r.Context(), "logout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "session revoked")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// PasswordReset opens a password-reset challenge.
func (h *AuthHandler) PasswordReset(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req passwordResetRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "PasswordReset")

	challenge, err := h.auth.InitiatePasswordReset(r.Context(), req.NationalID)
	if err != nil {
		logger.ErrorContext(r.Context(), "password reset rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password reset challenge issued")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, challengePayload(challenge))
}

// PasswordResetComplete verifies the reset code and stores the new password.
func (h *AuthHandler) PasswordResetComplete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req passwordResetCompleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "PasswordResetComplete", "session_id", req.SessionID)

	if err := h.auth.CompletePasswordReset(r.Context(), req.SessionID, req.Code, req.NewPassword); err != nil {
		logger.ErrorContext(r.Context(), "password reset failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password reset completed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// ChangePassword rotates the authenticated user's password.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.auth == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, ok := PrincipalFromContext(r.Context())
	if !ok {
		h.responder.writeJSON(r.Context(), w, http.StatusUnauthorized, errorResponse{
			ErrorCode: "AUTH_INVALID_TOKEN",
			Message:   errMissingAccessToken.Error(),
		})
		return
	}

	var req changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	logger := h.log(r.Context(), "ChangePassword", "user_id", principal.UserID)

	if err := h.auth.ChangePassword(r.Context(), principal.UserID, req.CurrentPassword, req.NewPassword); err != nil {
		logger.ErrorContext(r.Context(), "password change failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "password changed")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}
