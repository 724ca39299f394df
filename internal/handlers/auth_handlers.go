package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"farm-advisor/internal/models"
	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// AuthHandler handles account and session endpoints
type AuthHandler struct {
	responder
	auth *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *AuthHandler {
	return &AuthHandler{
		responder: responder{logger: logger, metrics: metricsCollector},
		auth:      auth,
	}
}

// LoginResponse is returned on successful login
type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      *models.User `json:"user"`
}

// Register handles POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	user, err := h.auth.Register(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("email"),
		r.PostFormValue("password"),
	)
	if err != nil {
		h.sendServiceError(w, r, "[API_REGISTER_ERROR]", err)
		return
	}

	h.sendJSON(w, user, http.StatusCreated)
}

// Login handles POST /api/auth/login. The token is returned in the body
// and also set as an HTTP-only cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	session, user, err := h.auth.Login(r.Context(), r.PostFormValue("username"), r.PostFormValue("password"))
	if err != nil {
		h.sendServiceError(w, r, "[API_LOGIN_ERROR]", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	h.sendJSON(w, LoginResponse{Token: session.Token, ExpiresAt: session.ExpiresAt, User: user}, http.StatusOK)
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireUser(w, r); !ok {
		return
	}

	if err := h.auth.Logout(r.Context(), sessionToken(r)); err != nil {
		h.sendServiceError(w, r, "[API_LOGOUT_ERROR]", err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.requireUser(w, r)
	if !ok {
		return
	}
	h.sendJSON(w, user, http.StatusOK)
}

// RegisterRoutes registers the auth routes
func (h *AuthHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/auth/register", h.Register).Methods("POST")
	router.HandleFunc("/api/auth/login", h.Login).Methods("POST")
	router.HandleFunc("/api/auth/logout", h.Logout).Methods("POST")
	router.HandleFunc("/api/auth/me", h.Me).Methods("GET")
}
