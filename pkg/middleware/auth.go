package middleware

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/utils"
)

// ContextKey is the type for request-context keys set by this package
type ContextKey string

const (
	// UserIDContextKey holds the verified user id. Nothing else is attached;
	// downstream lookups derive everything from it.
	UserIDContextKey ContextKey = "user_id"
)

// Public page prefixes reachable without a session
var openPaths = []string{
	"/login",
	"/sign-up",
	"/forgot-password",
	"/reset-password",
	"/verify-email",
}

// Auth-only pages an already-authenticated user is bounced away from
var authPages = []string{
	"/login",
	"/sign-up",
}

// Prefixes that bypass the guard entirely (framework internals, the API
// surface with its own guard, static assets)
var bypassPrefixes = []string{
	"/_next",
	"/api",
	"/static",
}

func isBypassed(path string) bool {
	for _, prefix := range bypassPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	// Anything with a literal dot is treated as a static asset
	return strings.Contains(path, ".")
}

func isOpenPath(path string) bool {
	for _, open := range openPaths {
		if path == open || strings.HasPrefix(path, open+"/") {
			return true
		}
	}
	return false
}

func isAuthPage(path string) bool {
	for _, p := range authPages {
		if path == p || strings.HasPrefix(path, p+"/") {
			return true
		}
	}
	return false
}

// SessionGuard gates every page request before it reaches business logic.
// Unauthenticated or invalid-session access to a protected path redirects to
// /login with the original path preserved as callbackUrl. Any verification
// error counts as no session (fail closed). When RedirectAuthenticated is
// set, a logged-in user visiting login/sign-up is sent home instead.
func SessionGuard(cfg *config.Config, sessions *utils.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			path := r.URL.Path

			if isBypassed(path) {
				next.ServeHTTP(w, r)
				return
			}

			if isOpenPath(path) {
				if cfg.RedirectAuthenticated && isAuthPage(path) {
					if userID, err := sessions.Verify(utils.ReadCookie(r)); err == nil && userID != "" {
						http.Redirect(w, r, "/", http.StatusFound)
						return
					}
				}
				next.ServeHTTP(w, r)
				return
			}

			// Protected by default
			userID, err := sessions.Verify(utils.ReadCookie(r))
			if err != nil || userID == "" {
				redirectToLogin(w, r, path)
				return
			}

			recordSessionUser(r.Context(), userID)
			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func redirectToLogin(w http.ResponseWriter, r *http.Request, originalPath string) {
	http.Redirect(w, r, "/login?callbackUrl="+url.QueryEscape(originalPath), http.StatusFound)
}

// RequireSession guards the API surface: same verification as SessionGuard,
// but failures yield a 401 envelope instead of a redirect.
func RequireSession(sessions *utils.SessionService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID, err := sessions.Verify(utils.ReadCookie(r))
			if err != nil || userID == "" {
				utils.WriteUnauthorizedResponse(w, "Authentication required")
				return
			}

			recordSessionUser(r.Context(), userID)
			ctx := context.WithValue(r.Context(), UserIDContextKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUserIDFromContext returns the verified user id, if any.
func GetUserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(UserIDContextKey).(string)
	return userID, ok && userID != ""
}

// RequireUserID returns the verified user id or an error when the request is
// unauthenticated.
func RequireUserID(ctx context.Context) (string, error) {
	userID, ok := GetUserIDFromContext(ctx)
	if !ok {
		return "", fmt.Errorf("user not authenticated")
	}
	return userID, nil
}
