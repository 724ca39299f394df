package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"farm-advisor/internal/models"
	"farm-advisor/internal/services"
	"farm-advisor/pkg/logging"
	"farm-advisor/pkg/metrics"
)

// RequestIDHeader carries the request ID in both directions
const RequestIDHeader = "X-Request-ID"

// SessionCookie is the cookie set at login
const SessionCookie = "session_token"

type contextKey int

const userKey contextKey = iota

// Authenticator resolves session tokens to users
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*models.User, error)
}

// RequestID tags every request with an ID, reusing the caller's when given
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logging.WithRequestID(r.Context(), id)))
	})
}

// statusRecorder remembers the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

// Metrics records request counts and durations per route template
func Metrics(collector *metrics.Collector) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			endpoint := routeName(r)
			collector.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(startTime).Seconds())
			collector.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(rec.status))
		})
	}
}

// Sessions resolves the caller's session, if any, before the handler
// runs. Unknown or expired tokens leave the request anonymous.
func Sessions(auth Authenticator, logger *logging.StructuredLogger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := sessionToken(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			user, err := auth.Authenticate(r.Context(), token)
			switch {
			case err == nil:
				ctx := context.WithValue(r.Context(), userKey, user)
				ctx = logging.WithUserID(ctx, user.ID)
				next.ServeHTTP(w, r.WithContext(ctx))
			case errors.Is(err, services.ErrInvalidCredentials):
				next.ServeHTTP(w, r)
			default:
				logger.Error(r.Context(), "[API_SESSION_ERROR] Failed to resolve session", logging.Fields{
					"path": r.URL.Path,
				}, err)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				w.Write([]byte(`{"error":"Internal Server Error","message":"failed to resolve session","code":500}` + "\n"))
			}
		})
	}
}

// sessionToken reads a bearer token, falling back to the session cookie
func sessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

// currentUser returns the authenticated user, or nil for anonymous requests
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(userKey).(*models.User)
	return user
}

// currentUserID returns the user ID for history logging, nil when anonymous
func currentUserID(r *http.Request) *int64 {
	if user := currentUser(r); user != nil {
		id := user.ID
		return &id
	}
	return nil
}

// requireUser returns the authenticated user or answers 401
func (h *responder) requireUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := currentUser(r)
	if user == nil {
		h.sendError(w, r, "authentication required", http.StatusUnauthorized)
		return nil, false
	}
	return user, true
}

// routeName is the matched route template, so path IDs do not explode
// metric cardinality
func routeName(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tmpl, err := route.GetPathTemplate(); err == nil {
			return tmpl
		}
	}
	return "unmatched"
}
