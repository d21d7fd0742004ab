package handler

import (
	"log/slog"
	"net/http"

	"github.com/dukerupert/stremify/internal/auth"
	"github.com/dukerupert/stremify/internal/session"
)

type AuthHandler struct {
	service *auth.Service
	cookies *session.Cookies
	logger  *slog.Logger
}

func NewAuthHandler(svc *auth.Service, cookies *session.Cookies, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies, logger: logger}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.service.SignUp(r.Context(), req.Name, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"message": "sign up successful", "user": user})
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// Verify handles both POST /auth/verify {email, otp} and
// POST /auth/verify/{userID} {otp}.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.service.VerifyUser(r.Context(), auth.VerifyInput{
		Email:  req.Email,
		UserID: r.PathValue("userID"),
		Code:   req.OTP,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"message": "user is verified successfully", "user": user})
}

func (h *AuthHandler) ResendOTP(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.service.ResendOTP(r.Context(), req.Email); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "verification code sent"})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	current, _ := auth.FromContext(r.Context())
	sessionID, user, err := h.service.Login(r.Context(), current.ID, req.Email, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.Set(w, sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "login successful", "user": user})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.FromContext(r.Context())
	if err := h.service.Logout(r.Context(), current.ID); err != nil {
		h.logger.Error("logout", "user_id", auth.UserID(r.Context()), "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Could not log out, please try again"})
		return
	}

	h.cookies.Clear(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out successfully"})
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"user": auth.CurrentUser(r.Context())})
}

// UpdateSession re-reads the user behind the session so role and
// verification changes show up without a new login.
func (h *AuthHandler) UpdateSession(w http.ResponseWriter, r *http.Request) {
	current, _ := auth.FromContext(r.Context())
	user := auth.CurrentUser(r.Context())

	sessionID, fresh, err := h.service.RefreshSession(r.Context(), current.ID, user.Email)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.cookies.Set(w, sessionID)
	writeJSON(w, http.StatusOK, map[string]any{"message": "session update successful", "user": fresh})
}
