package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
	"orghub-backend/pkg/middleware"
	"orghub-backend/pkg/models"
	"orghub-backend/pkg/utils"

	"golang.org/x/crypto/bcrypt"
)

// AuthHandler serves signup/login/logout and the current-user surface
type AuthHandler struct {
	config   *config.Config
	db       database.DatabaseInterface
	sessions *utils.SessionService
}

// NewAuthHandler creates the auth handler.
func NewAuthHandler(cfg *config.Config, db database.DatabaseInterface, sessions *utils.SessionService) *AuthHandler {
	return &AuthHandler{config: cfg, db: db, sessions: sessions}
}

// defaultAvatar points at a deterministic initials image for the given seed.
func defaultAvatar(seed string) string {
	return "https://api.dicebear.com/8.x/initials/svg?seed=" + url.QueryEscape(seed)
}

// HealthCheck reports process and database health.
func (h *AuthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	if err := h.db.HealthCheck(); err != nil {
		fmt.Printf("[error] health check failed: %v\n", err)
		utils.WriteErrorResponseWithCode(w, http.StatusServiceUnavailable, "UNAVAILABLE",
			"database unavailable", "")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"status": status})
}

func validateSignup(req *models.SignupRequest) map[string][]string {
	fields := map[string][]string{}
	if strings.TrimSpace(req.Name) == "" {
		fields["name"] = append(fields["name"], "Name is required")
	}
	if strings.TrimSpace(req.Email) == "" {
		fields["email"] = append(fields["email"], "Email is required")
	} else if !strings.Contains(req.Email, "@") {
		fields["email"] = append(fields["email"], "Email is invalid")
	}
	if len(req.Password) < 8 {
		fields["password"] = append(fields["password"], "Password must be at least 8 characters")
	}
	if req.ConfirmPassword != "" && req.ConfirmPassword != req.Password {
		fields["confirm_password"] = append(fields["confirm_password"], "Passwords do not match")
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// Signup creates an account and opens a session.
// POST /api/auth/register
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req models.SignupRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if fields := validateSignup(&req); fields != nil {
		utils.WriteValidationErrorResponse(w, "Validation failed", fields)
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))

	// Duplicate check up front for a friendly message; the unique index is
	// the final arbiter under concurrency.
	if _, err := h.db.GetUserByEmail(email); err == nil {
		utils.WriteConflictResponse(w, "A user with this email already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to process password")
		return
	}

	user := &models.User{
		Email:    email,
		Password: string(hash),
		Name:     strings.TrimSpace(req.Name),
		Avatar:   defaultAvatar(strings.TrimSpace(req.Name)),
	}
	if err := h.db.CreateUser(user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "A user with this email already exists")
			return
		}
		fmt.Printf("[error] signup failed for %s: %v\n", email, err)
		utils.WriteInternalServerErrorResponse(w, "An unexpected error occurred. Please try again.")
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	utils.WriteCreatedResponse(w, map[string]interface{}{
		"user":     user.Sanitized(),
		"redirect": "/dashboard",
	})
}

// Login verifies credentials and opens a session.
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		utils.WriteBadRequestResponse(w, "Email and password are required")
		return
	}

	user, err := h.verifyCredentials(req.Email, req.Password)
	if err != nil {
		fmt.Printf("[error] login failed for %s: %v\n", req.Email, err)
		utils.WriteInternalServerErrorResponse(w, "An unexpected error occurred. Please try again.")
		return
	}
	if user == nil {
		// Absent account and wrong password are indistinguishable to callers
		utils.WriteUnauthorizedResponse(w, "Invalid email or password")
		return
	}

	if !h.openSession(w, user.ID) {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user":     user,
		"redirect": "/dashboard",
	})
}

// verifyCredentials returns the user (password stripped) only when the email
// exists and the password matches its hash; nil otherwise.
func (h *AuthHandler) verifyCredentials(email, password string) (*models.User, error) {
	user, err := h.db.GetUserByEmail(email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)) != nil {
		return nil, nil
	}
	return user.Sanitized(), nil
}

func (h *AuthHandler) openSession(w http.ResponseWriter, userID string) bool {
	token, expiresAt, err := h.sessions.Issue(userID)
	if err != nil {
		fmt.Printf("[error] failed to issue session for %s: %v\n", userID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to create session")
		return false
	}
	h.sessions.WriteCookie(w, token, expiresAt)
	return true
}

// Logout clears the session cookie. The token itself stays valid until
// natural expiry; there is no server-side revocation.
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.ClearCookie(w)
	utils.WriteSuccessResponse(w, map[string]interface{}{"redirect": "/login"})
}

// Me returns the user behind the verified session.
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user.Sanitized()})
}

// UpdateProfile applies a partial profile update for the session user.
// PUT /api/users/profile
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}

	var req models.UpdateProfileRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	if strings.TrimSpace(req.Name) != "" {
		user.Name = strings.TrimSpace(req.Name)
	}
	if strings.TrimSpace(req.Avatar) != "" {
		user.Avatar = req.Avatar
	}
	if email := strings.ToLower(strings.TrimSpace(req.Email)); email != "" && email != user.Email {
		if other, err := h.db.GetUserByEmail(email); err == nil && other.ID != user.ID {
			utils.WriteConflictResponse(w, "Email already in use")
			return
		}
		user.Email = email
		user.IsEmailVerified = false
	}
	if req.Password != "" {
		if len(req.Password) < 8 {
			utils.WriteValidationErrorResponse(w, "Validation failed",
				map[string][]string{"password": {"Password must be at least 8 characters"}})
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			utils.WriteInternalServerErrorResponse(w, "Failed to process password")
			return
		}
		user.Password = string(hash)
	}

	if err := h.db.UpdateUser(user); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "Email already in use")
			return
		}
		fmt.Printf("[error] profile update failed for %s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update profile")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{"user": user.Sanitized()})
}

// ListUsers returns a paginated user directory with name/email search.
// GET /api/users
func (h *AuthHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	page := utils.ParseIntParam(r, "page", 1)
	perPage := utils.ParseIntParam(r, "per_page", 10)
	search := r.URL.Query().Get("search")

	users, total, err := h.db.ListUsers(page, perPage, search)
	if err != nil {
		fmt.Printf("[error] list users failed: %v\n", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to list users")
		return
	}

	sanitized := make([]*models.User, 0, len(users))
	for i := range users {
		sanitized = append(sanitized, users[i].Sanitized())
	}
	utils.WritePaginatedResponse(w, map[string]interface{}{"users": sanitized}, page, perPage, total)
}

// Dashboard is the landing view behind the session guard: the viewer plus
// the organizations they belong to.
// GET /dashboard
func (h *AuthHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	user, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	orgs, err := h.db.ListUserOrganizations(user.ID)
	if err != nil {
		fmt.Printf("[error] dashboard load failed for %s: %v\n", user.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load dashboard")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{
		"user":          user.Sanitized(),
		"organizations": orgs,
	})
}

// currentUser resolves the session userID to a full user record, writing the
// error response itself on failure.
func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return nil, false
	}
	user, err := h.db.GetUserByID(userID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			// Valid token for a deleted account: treat as no session
			h.sessions.ClearCookie(w)
			utils.WriteUnauthorizedResponse(w, "Authentication required")
			return nil, false
		}
		fmt.Printf("[error] failed to load user %s: %v\n", userID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return nil, false
	}
	return user, true
}
