package utils

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"orghub-backend/pkg/models"

	"github.com/golang-jwt/jwt/v5"
)

// SessionCookieName is the cookie carrying the signed session token
const SessionCookieName = "session"

// SessionDuration is the fixed validity window of a session token
const SessionDuration = 24 * time.Hour

// ErrInvalidSession is returned for any token that fails verification:
// bad signature, malformed token, or expired. Callers must treat invalid
// and absent tokens identically.
var ErrInvalidSession = errors.New("invalid session")

// SessionService issues and verifies signed session tokens. Possession of a
// valid token is the sole proof of identity; there is no server-side
// revocation, so a token stays valid until its natural expiry.
type SessionService struct {
	secretKey []byte
	secure    bool
}

// NewSessionService creates a session service. secure controls the Secure
// cookie attribute (enabled in production).
func NewSessionService(secretKey string, secure bool) *SessionService {
	return &SessionService{
		secretKey: []byte(secretKey),
		secure:    secure,
	}
}

// Issue produces a signed token embedding userID, valid for SessionDuration.
func (s *SessionService) Issue(userID string) (token string, expiresAt time.Time, err error) {
	now := time.Now()
	expiresAt = now.Add(SessionDuration)

	claims := &models.SessionClaims{
		UserID: userID,
		Exp:    expiresAt.Unix(),
		Iat:    now.Unix(),
	}

	tokenObj := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	token, err = tokenObj.SignedString(s.secretKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}
	return token, expiresAt, nil
}

// Verify checks signature and expiry, returning the embedded userID only if
// both succeed. Any failure yields ErrInvalidSession.
func (s *SessionService) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrInvalidSession
	}

	token, err := jwt.ParseWithClaims(tokenString, &models.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secretKey, nil
	})
	if err != nil || !token.Valid {
		return "", ErrInvalidSession
	}

	claims, ok := token.Claims.(*models.SessionClaims)
	if !ok {
		return "", ErrInvalidSession
	}
	if time.Now().Unix() > claims.Exp {
		return "", ErrInvalidSession
	}
	if claims.UserID == "" {
		return "", ErrInvalidSession
	}
	return claims.UserID, nil
}

// WriteCookie attaches the session token to the response. HttpOnly,
// SameSite=Lax, root-scoped; Secure in production. Cookie expiry matches the
// signing window.
func (s *SessionService) WriteCookie(w http.ResponseWriter, token string, expiresAt time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    token,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})
}

// ClearCookie deletes the session cookie (logout).
func (s *SessionService) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		Secure:   s.secure,
	})
}

// ReadCookie extracts the raw session token from the request, or "" when the
// cookie is absent.
func ReadCookie(r *http.Request) string {
	c, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return c.Value
}
