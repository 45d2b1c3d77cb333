package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"orghub-backend/pkg/config"
	"orghub-backend/pkg/database"
	"orghub-backend/pkg/middleware"
	"orghub-backend/pkg/models"
	"orghub-backend/pkg/utils"

	"github.com/go-chi/chi/v5"
)

// OrgsHandler serves organization CRUD, the member directory and membership
// mutations.
type OrgsHandler struct {
	config *config.Config
	db     database.DatabaseInterface
}

// NewOrgsHandler creates the organizations handler.
func NewOrgsHandler(cfg *config.Config, db database.DatabaseInterface) *OrgsHandler {
	return &OrgsHandler{config: cfg, db: db}
}

// CreateOrganization creates a tenant and makes the creator its owner.
// POST /api/orgs
func (h *OrgsHandler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.CreateOrganizationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	name := strings.TrimSpace(req.Name)
	slug := utils.GenerateSlug(name)
	if name == "" || slug == "" {
		utils.WriteValidationErrorResponse(w, "Validation failed",
			map[string][]string{"name": {"Organization name is required"}})
		return
	}

	logo := req.Logo
	if logo == "" {
		logo = defaultAvatar(name)
	}

	org := &models.Organization{
		Name:        name,
		Slug:        slug,
		Description: req.Description,
		Logo:        logo,
		Website:     req.Website,
	}
	if err := h.db.CreateOrganization(org); err != nil {
		if errors.Is(err, database.ErrConflict) {
			// Distinct names can still collide on the derived slug
			message := "An organization with this name already exists"
			if existing, lookupErr := h.db.GetOrganizationBySlug(slug); lookupErr == nil && !strings.EqualFold(existing.Name, name) {
				message = fmt.Sprintf("The URL slug %q is already taken by another organization", slug)
			}
			utils.WriteConflictResponse(w, message)
			return
		}
		fmt.Printf("[error] create organization %q failed: %v\n", name, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to create organization")
		return
	}

	// The creator is the first owner; a tenant never exists without one
	membership := &models.Membership{
		UserID:         userID,
		OrganizationID: org.ID,
		Role:           models.RoleOwner,
		Status:         models.StatusActive,
	}
	if err := h.db.CreateMembership(membership); err != nil {
		fmt.Printf("[error] owner membership for org %s failed: %v\n", org.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to create organization")
		return
	}

	utils.WriteCreatedResponse(w, map[string]interface{}{"organization": org})
}

// GetOrganizationBySlug returns a tenant with its role partitions and the
// viewer's resolved role. Non-members are refused.
// GET /api/orgs/{slug}
func (h *OrgsHandler) GetOrganizationBySlug(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	slug := chi.URLParam(r, "slug")
	org, err := h.db.GetOrganizationBySlug(slug)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		fmt.Printf("[error] get organization %q failed: %v\n", slug, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	memberships, err := h.db.ListMembershipsByOrganization(org.ID)
	if err != nil {
		fmt.Printf("[error] list memberships for org %s failed: %v\n", org.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	partitions := models.PartitionMemberships(memberships)
	role := partitions.Resolve(userID)
	if role == "" {
		utils.WriteForbiddenResponse(w, "Not a member of this organization")
		return
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"organization": org,
		"memberships":  partitions,
		"viewer_role":  role,
	})
}

// ListMyOrganizations returns the organizations the session user belongs to.
// GET /api/orgs
func (h *OrgsHandler) ListMyOrganizations(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	orgs, err := h.db.ListUserOrganizations(userID)
	if err != nil {
		fmt.Printf("[error] list organizations for %s failed: %v\n", userID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to list organizations")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organizations": orgs})
}

// ListOrganizations returns a paginated directory of all tenants.
// GET /api/orgs/all
func (h *OrgsHandler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	page := utils.ParseIntParam(r, "page", 1)
	perPage := utils.ParseIntParam(r, "per_page", 10)
	search := r.URL.Query().Get("search")

	orgs, total, err := h.db.ListOrganizations(page, perPage, search)
	if err != nil {
		fmt.Printf("[error] list organizations failed: %v\n", err)
		utils.WriteInternalServerErrorResponse(w, "Failed to list organizations")
		return
	}
	utils.WritePaginatedResponse(w, map[string]interface{}{"organizations": orgs}, page, perPage, total)
}

// UpdateOrganization applies a partial update. Owners and admins only; the
// slug is fixed at creation and never regenerated.
// PUT /api/orgs/{id}
func (h *OrgsHandler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if _, ok := h.requireRole(w, r, orgID, models.MemberRole.CanManage); !ok {
		return
	}

	var req models.UpdateOrganizationRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}

	org, err := h.db.GetOrganizationByID(orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	if strings.TrimSpace(req.Name) != "" {
		org.Name = strings.TrimSpace(req.Name)
	}
	if req.Description != "" {
		org.Description = req.Description
	}
	if req.Logo != "" {
		org.Logo = req.Logo
	}
	if req.Website != "" {
		org.Website = req.Website
	}

	if err := h.db.UpdateOrganization(org); err != nil {
		if errors.Is(err, database.ErrConflict) {
			utils.WriteConflictResponse(w, "An organization with this name already exists")
			return
		}
		fmt.Printf("[error] update organization %s failed: %v\n", orgID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"organization": org})
}

// DeleteOrganization removes a tenant and all its memberships. Owners only.
// DELETE /api/orgs/{id}
func (h *OrgsHandler) DeleteOrganization(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "id")
	if _, ok := h.requireRole(w, r, orgID, func(role models.MemberRole) bool {
		return role == models.RoleOwner
	}); !ok {
		return
	}

	if err := h.db.DeleteOrganization(orgID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		fmt.Printf("[error] delete organization %s failed: %v\n", orgID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to delete organization")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": orgID})
}

// ListMembers returns the tenant's member directory with user summaries.
// Members only.
// GET /api/orgs/members?org_id=
func (h *OrgsHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := r.URL.Query().Get("org_id")
	if orgID == "" {
		utils.WriteBadRequestResponse(w, "org_id is required")
		return
	}
	if _, ok := h.requireRole(w, r, orgID, models.MemberRole.Valid); !ok {
		return
	}

	members, err := h.db.ListOrganizationMembers(orgID)
	if err != nil {
		fmt.Printf("[error] list members for org %s failed: %v\n", orgID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to list members")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"members": members})
}

// InviteMembers creates invite notifications for a batch of emails. Owners
// and admins only. A failed email does not abort the rest of the batch.
// POST /api/orgs/invite
func (h *OrgsHandler) InviteMembers(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	var req models.InviteMembersRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.OrganizationID == "" || len(req.Emails) == 0 {
		utils.WriteBadRequestResponse(w, "organization_id and emails are required")
		return
	}

	if _, ok := h.requireRole(w, r, req.OrganizationID, models.MemberRole.CanManage); !ok {
		return
	}

	org, err := h.db.GetOrganizationByID(req.OrganizationID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Organization not found")
			return
		}
		utils.WriteInternalServerErrorResponse(w, "Failed to load organization")
		return
	}

	sender, err := h.db.GetUserByID(userID)
	if err != nil {
		utils.WriteInternalServerErrorResponse(w, "Failed to load user")
		return
	}

	invited := 0
	for _, email := range req.Emails {
		email = strings.ToLower(strings.TrimSpace(email))
		if email == "" || !strings.Contains(email, "@") {
			fmt.Printf("[warn] skipping invalid invite email %q for org %s\n", email, org.ID)
			continue
		}
		n := &models.Notification{
			FromUserEmail: sender.Email,
			ToUserEmail:   email,
		}
		if err := n.SetInvitePayload(models.InvitePayload{OrganizationID: org.ID}); err != nil {
			fmt.Printf("[warn] invite payload for %s failed: %v\n", email, err)
			continue
		}
		if err := h.db.CreateNotification(n); err != nil {
			fmt.Printf("[warn] invite to %s for org %s failed: %v\n", email, org.ID, err)
			continue
		}
		invited++
	}

	utils.WriteSuccessResponse(w, map[string]interface{}{
		"invited":   invited,
		"requested": len(req.Emails),
	})
}

// UpdateMembership changes a membership's role or status. Owners and admins
// only; changing an owner requires an owner, and the last owner cannot be
// demoted.
// PUT /api/memberships/{id}
func (h *OrgsHandler) UpdateMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	target, ok := h.loadMembership(w, r)
	if !ok {
		return
	}

	var req models.UpdateMembershipRequest
	if err := utils.ParseJSONBody(r, &req); err != nil {
		utils.WriteBadRequestResponse(w, "Invalid request body")
		return
	}
	if req.Role != "" && !req.Role.Valid() {
		utils.WriteBadRequestResponse(w, "Invalid role")
		return
	}
	if req.Status != "" && !req.Status.Valid() {
		utils.WriteBadRequestResponse(w, "Invalid status")
		return
	}

	callerRole, ok := h.roleIn(w, userID, target.OrganizationID)
	if !ok {
		return
	}
	if !callerRole.CanManage() {
		utils.WriteForbiddenResponse(w, "Only owners and admins can manage members")
		return
	}
	if (target.Role == models.RoleOwner || req.Role == models.RoleOwner) && callerRole != models.RoleOwner {
		utils.WriteForbiddenResponse(w, "Only an owner can change owner memberships")
		return
	}

	demotesOwner := target.Role == models.RoleOwner &&
		((req.Role != "" && req.Role != models.RoleOwner) ||
			(req.Status != "" && req.Status != models.StatusActive))
	if demotesOwner {
		if ok := h.hasAnotherOwner(w, target); !ok {
			return
		}
	}

	if req.Role != "" {
		target.Role = req.Role
	}
	if req.Status != "" {
		target.Status = req.Status
	}

	if err := h.db.UpdateMembership(target); err != nil {
		fmt.Printf("[error] update membership %s failed: %v\n", target.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to update membership")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"membership": target})
}

// DeleteMembership removes a member from a tenant. Owners and admins may
// remove others, any member may remove themselves, and the last owner cannot
// leave.
// DELETE /api/memberships/{id}
func (h *OrgsHandler) DeleteMembership(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return
	}

	target, ok := h.loadMembership(w, r)
	if !ok {
		return
	}

	if target.UserID != userID {
		callerRole, ok := h.roleIn(w, userID, target.OrganizationID)
		if !ok {
			return
		}
		if !callerRole.CanManage() {
			utils.WriteForbiddenResponse(w, "Only owners and admins can remove members")
			return
		}
		if target.Role == models.RoleOwner && callerRole != models.RoleOwner {
			utils.WriteForbiddenResponse(w, "Only an owner can remove another owner")
			return
		}
	}

	if target.Role == models.RoleOwner {
		if ok := h.hasAnotherOwner(w, target); !ok {
			return
		}
	}

	if err := h.db.DeleteMembership(target.ID); err != nil {
		fmt.Printf("[error] delete membership %s failed: %v\n", target.ID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to remove member")
		return
	}
	utils.WriteSuccessResponse(w, map[string]interface{}{"deleted": target.ID})
}

// loadMembership fetches the membership named by the {id} route param.
func (h *OrgsHandler) loadMembership(w http.ResponseWriter, r *http.Request) (*models.Membership, bool) {
	id := chi.URLParam(r, "id")
	m, err := h.db.GetMembership(id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteNotFoundResponse(w, "Membership not found")
			return nil, false
		}
		fmt.Printf("[error] load membership %s failed: %v\n", id, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to load membership")
		return nil, false
	}
	return m, true
}

// roleIn resolves the caller's role in the organization, writing 403 when
// they are not a member.
func (h *OrgsHandler) roleIn(w http.ResponseWriter, userID, orgID string) (models.MemberRole, bool) {
	m, err := h.db.FindMembership(userID, orgID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			utils.WriteForbiddenResponse(w, "Not a member of this organization")
			return "", false
		}
		fmt.Printf("[error] membership lookup for %s in %s failed: %v\n", userID, orgID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to check membership")
		return "", false
	}
	return m.Role, true
}

// requireRole resolves the session user's role in the organization and
// checks it against allowed, writing the refusal itself.
func (h *OrgsHandler) requireRole(w http.ResponseWriter, r *http.Request, orgID string, allowed func(models.MemberRole) bool) (models.MemberRole, bool) {
	userID, err := middleware.RequireUserID(r.Context())
	if err != nil {
		utils.WriteUnauthorizedResponse(w, "Authentication required")
		return "", false
	}
	role, ok := h.roleIn(w, userID, orgID)
	if !ok {
		return "", false
	}
	if !allowed(role) {
		utils.WriteForbiddenResponse(w, "Insufficient role for this action")
		return "", false
	}
	return role, true
}

// hasAnotherOwner refuses the mutation when target is the organization's
// only owner.
func (h *OrgsHandler) hasAnotherOwner(w http.ResponseWriter, target *models.Membership) bool {
	memberships, err := h.db.ListMembershipsByOrganization(target.OrganizationID)
	if err != nil {
		fmt.Printf("[error] owner count for org %s failed: %v\n", target.OrganizationID, err)
		utils.WriteInternalServerErrorResponse(w, "Failed to check owners")
		return false
	}
	for _, m := range memberships {
		if m.Role == models.RoleOwner && m.ID != target.ID {
			return true
		}
	}
	utils.WriteConflictResponse(w, "An organization must keep at least one owner")
	return false
}
