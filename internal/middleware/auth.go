package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/placeshare/placeshare/internal/auth"
	"github.com/placeshare/placeshare/internal/metrics"
	"github.com/placeshare/placeshare/internal/model"
)

// MsgAuthFailed is the single response message for every rejected token.
const MsgAuthFailed = "Authentication failed!"

// TokenVerifier verifies a bearer token and returns its identity.
type TokenVerifier interface {
	Verify(token string) (*model.Identity, error)
}

// TokenGuardConfig holds configuration for the token guard middleware.
type TokenGuardConfig struct {
	Logger   *slog.Logger
	Verifier TokenVerifier
	Metrics  metrics.Recorder
}

// TokenGuard returns a middleware that admits only requests carrying a valid
// bearer token and attaches the decoded identity to the request context.
// Pre-flight OPTIONS requests pass through unverified.
func TokenGuard(cfg TokenGuardConfig) func(http.Handler) http.Handler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNoop()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}

			token := extractBearerToken(r)
			if token == "" {
				reject(cfg, w, r, metrics.ReasonMissingToken, nil)
				return
			}

			identity, err := cfg.Verifier.Verify(token)
			if err != nil {
				reason := metrics.ReasonInvalidToken
				if errors.Is(err, auth.ErrExpiredToken) {
					reason = metrics.ReasonExpiredToken
				}
				reject(cfg, w, r, reason, err)
				return
			}

			ctx := auth.ContextWithIdentity(r.Context(), identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// reject writes a 401. The same message is used for all failures to prevent enumeration.
func reject(cfg TokenGuardConfig, w http.ResponseWriter, r *http.Request, reason string, err error) {
	attrs := []any{
		slog.String("reason", reason),
		slog.String("ip", r.RemoteAddr),
		slog.String("endpoint", r.Method+" "+r.URL.Path),
		slog.String("request_id", GetRequestID(r.Context())),
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	cfg.Logger.Warn("authentication failed", attrs...)
	cfg.Metrics.IncAuthFailure(reason)

	writeMessage(w, http.StatusUnauthorized, MsgAuthFailed)
}
