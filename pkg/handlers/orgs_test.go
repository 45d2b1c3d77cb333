package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"orghub-backend/pkg/database"
	"orghub-backend/pkg/models"
	"orghub-backend/pkg/utils"

	"github.com/stretchr/testify/require"
)

type orgEnv struct {
	auth *AuthHandler
	orgs *OrgsHandler
	db   *database.MemoryDatabase
}

func newOrgEnv(t *testing.T) *orgEnv {
	t.Helper()
	cfg := testConfig()
	db := database.NewMemoryDatabase()
	sessions := utils.NewSessionService("handler-test-secret", false)
	return &orgEnv{
		auth: NewAuthHandler(cfg, db, sessions),
		orgs: NewOrgsHandler(cfg, db),
		db:   db,
	}
}

func (e *orgEnv) createOrg(t *testing.T, userID, name string) models.Organization {
	t.Helper()
	rec := httptest.NewRecorder()
	e.orgs.CreateOrganization(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs",
		models.CreateOrganizationRequest{Name: name}), userID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	org, err := e.db.GetOrganizationBySlug(utils.GenerateSlug(name))
	require.NoError(t, err)
	return *org
}

func TestCreateOrganizationMakesCreatorOwner(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.Equal(t, "acme-corp", org.Slug)

	m, err := e.db.FindMembership(alice, org.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleOwner, m.Role)
	require.Equal(t, models.StatusActive, m.Status)
}

func TestCreateOrganizationDuplicateName(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	e.createOrg(t, alice, "Acme Corp")

	rec := httptest.NewRecorder()
	e.orgs.CreateOrganization(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs",
		models.CreateOrganizationRequest{Name: "Acme Corp"}), alice))
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreateOrganizationSlugCollisionMessage(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	e.createOrg(t, alice, "Acme Corp")

	// Different name, same derived slug
	rec := httptest.NewRecorder()
	e.orgs.CreateOrganization(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs",
		models.CreateOrganizationRequest{Name: "Acme_Corp"}), alice))
	require.Equal(t, http.StatusConflict, rec.Code)

	errData := decodeEnvelope(t, rec)
	require.Contains(t, errData["message"], "acme-corp")

	// Same name keeps the name-focused message
	rec = httptest.NewRecorder()
	e.orgs.CreateOrganization(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs",
		models.CreateOrganizationRequest{Name: "ACME CORP"}), alice))
	require.Equal(t, http.StatusConflict, rec.Code)

	errData = decodeEnvelope(t, rec)
	require.Contains(t, errData["message"], "name")
}

func TestGetOrganizationBySlugPartitions(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleMember, Status: models.StatusActive,
	}))

	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/api/orgs/acme-corp", nil), alice), "slug", "acme-corp")
	e.orgs.GetOrganizationBySlug(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeEnvelope(t, rec)
	require.Equal(t, "owner", data["viewer_role"])

	partitions := data["memberships"].(map[string]interface{})
	require.Len(t, partitions["owner_ids"].([]interface{}), 1)
	require.Len(t, partitions["member_ids"].([]interface{}), 1)
	require.Len(t, partitions["all_ids"].([]interface{}), 2)
}

func TestGetOrganizationBySlugRefusesNonMember(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	stranger := signupUser(t, e.auth, "Eve", "e@x.com")
	e.createOrg(t, alice, "Acme Corp")

	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodGet, "/api/orgs/acme-corp", nil), stranger), "slug", "acme-corp")
	e.orgs.GetOrganizationBySlug(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateOrganizationRequiresManager(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleMember, Status: models.StatusActive,
	}))

	rec := httptest.NewRecorder()
	req := withURLParam(withUser(jsonRequest(t, http.MethodPut, "/api/orgs/"+org.ID,
		models.UpdateOrganizationRequest{Description: "nope"}), bob), "id", org.ID)
	e.orgs.UpdateOrganization(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = withURLParam(withUser(jsonRequest(t, http.MethodPut, "/api/orgs/"+org.ID,
		models.UpdateOrganizationRequest{Description: "widgets"}), alice), "id", org.ID)
	e.orgs.UpdateOrganization(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated, err := e.db.GetOrganizationByID(org.ID)
	require.NoError(t, err)
	require.Equal(t, "widgets", updated.Description)
	require.Equal(t, "acme-corp", updated.Slug)
}

func TestDeleteOrganizationCascades(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleAdmin, Status: models.StatusActive,
	}))

	// Admin cannot delete
	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/orgs/"+org.ID, nil), bob), "id", org.ID)
	e.orgs.DeleteOrganization(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Owner can, and memberships disappear with the org
	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/orgs/"+org.ID, nil), alice), "id", org.ID)
	e.orgs.DeleteOrganization(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	_, err := e.db.GetOrganizationByID(org.ID)
	require.ErrorIs(t, err, database.ErrNotFound)
	_, err = e.db.FindMembership(bob, org.ID)
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestListMembersRequiresMembership(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	stranger := signupUser(t, e.auth, "Eve", "e@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	rec := httptest.NewRecorder()
	e.orgs.ListMembers(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/orgs/members?org_id="+org.ID, nil), stranger))
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	e.orgs.ListMembers(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/orgs/members?org_id="+org.ID, nil), alice))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)
	members := data["members"].([]interface{})
	require.Len(t, members, 1)
	member := members[0].(map[string]interface{})
	require.Equal(t, "a@x.com", member["user"].(map[string]interface{})["email"])
}

func TestInviteMembersCreatesNotifications(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	rec := httptest.NewRecorder()
	e.orgs.InviteMembers(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs/invite",
		models.InviteMembersRequest{
			OrganizationID: org.ID,
			Emails:         []string{"B@X.com", "not-an-email", "c@x.com"},
		}), alice))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	data := decodeEnvelope(t, rec)
	require.Equal(t, float64(2), data["invited"])

	// Addressed lowercase, typed invite, accepted=false
	notifications, err := e.db.ListNotificationsByEmail("b@x.com")
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	require.Equal(t, models.NotificationInvite, notifications[0].Type)
	require.Equal(t, "a@x.com", notifications[0].FromUserEmail)

	payload, err := notifications[0].InvitePayload()
	require.NoError(t, err)
	require.Equal(t, org.ID, payload.OrganizationID)
	require.False(t, payload.Accepted)
}

func TestInviteMembersRequiresManager(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleMember, Status: models.StatusActive,
	}))

	rec := httptest.NewRecorder()
	e.orgs.InviteMembers(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs/invite",
		models.InviteMembersRequest{OrganizationID: org.ID, Emails: []string{"c@x.com"}}), bob))
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdateMembershipLastOwnerProtection(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	m, err := e.db.FindMembership(alice, org.ID)
	require.NoError(t, err)

	// Sole owner cannot demote themselves
	rec := httptest.NewRecorder()
	req := withURLParam(withUser(jsonRequest(t, http.MethodPut, "/api/memberships/"+m.ID,
		models.UpdateMembershipRequest{Role: models.RoleMember}), alice), "id", m.ID)
	e.orgs.UpdateMembership(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)

	// With a second owner the demotion goes through
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleOwner, Status: models.StatusActive,
	}))

	rec = httptest.NewRecorder()
	req = withURLParam(withUser(jsonRequest(t, http.MethodPut, "/api/memberships/"+m.ID,
		models.UpdateMembershipRequest{Role: models.RoleAdmin}), alice), "id", m.ID)
	e.orgs.UpdateMembership(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	updated, err := e.db.GetMembership(m.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, updated.Role)
}

func TestAdminCannotTouchOwnerMembership(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleAdmin, Status: models.StatusActive,
	}))

	ownerMembership, err := e.db.FindMembership(alice, org.ID)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	req := withURLParam(withUser(jsonRequest(t, http.MethodPut, "/api/memberships/"+ownerMembership.ID,
		models.UpdateMembershipRequest{Role: models.RoleMember}), bob), "id", ownerMembership.ID)
	e.orgs.UpdateMembership(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/memberships/"+ownerMembership.ID, nil), bob), "id", ownerMembership.ID)
	e.orgs.DeleteMembership(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestMemberCanLeaveButLastOwnerCannot(t *testing.T) {
	t.Parallel()
	e := newOrgEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := e.createOrg(t, alice, "Acme Corp")

	require.NoError(t, e.db.CreateMembership(&models.Membership{
		UserID: bob, OrganizationID: org.ID,
		Role: models.RoleMember, Status: models.StatusActive,
	}))

	// Bob leaves on his own
	bobMembership, err := e.db.FindMembership(bob, org.ID)
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/memberships/"+bobMembership.ID, nil), bob), "id", bobMembership.ID)
	e.orgs.DeleteMembership(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	// Alice is the only owner and cannot leave
	aliceMembership, err := e.db.FindMembership(alice, org.ID)
	require.NoError(t, err)
	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodDelete, "/api/memberships/"+aliceMembership.ID, nil), alice), "id", aliceMembership.ID)
	e.orgs.DeleteMembership(rec, req)
	require.Equal(t, http.StatusConflict, rec.Code)
}
