package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/utils"
)

// captureStdout runs fn with os.Stdout redirected to a pipe and returns what
// was written. Not safe for parallel tests.
func captureStdout(t *testing.T, fn func()) string {
	t.Helper()

	orig := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe failed: %v", err)
	}
	os.Stdout = w
	defer func() { os.Stdout = orig }()

	fn()

	w.Close()
	out, err := io.ReadAll(r)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	return string(out)
}

func TestLoggerReportsVerifiedUser(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	sessions := utils.NewSessionService("logging-test-secret", false)

	chain := Logger(cfg)(RequireSession(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	token, _, err := sessions.Issue("user-42")
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/orgs", nil)
	req.AddCookie(&http.Cookie{Name: utils.SessionCookieName, Value: token})

	out := captureStdout(t, func() {
		chain.ServeHTTP(httptest.NewRecorder(), req)
	})

	if !strings.Contains(out, `"user":"user-42"`) {
		t.Fatalf("log line missing verified user, got: %s", out)
	}
}

func TestLoggerReportsAnonymousWithoutSession(t *testing.T) {
	cfg := &config.Config{Environment: "production"}
	sessions := utils.NewSessionService("logging-test-secret", false)

	chain := Logger(cfg)(RequireSession(sessions)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	out := captureStdout(t, func() {
		chain.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/orgs", nil))
	})

	if !strings.Contains(out, `"user":"anonymous"`) {
		t.Fatalf("log line missing anonymous marker, got: %s", out)
	}
}
