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

type notifEnv struct {
	auth  *AuthHandler
	orgs  *OrgsHandler
	notif *NotificationsHandler
	db    *database.MemoryDatabase
}

func newNotifEnv(t *testing.T) *notifEnv {
	t.Helper()
	cfg := testConfig()
	db := database.NewMemoryDatabase()
	sessions := utils.NewSessionService("handler-test-secret", false)
	return &notifEnv{
		auth:  NewAuthHandler(cfg, db, sessions),
		orgs:  NewOrgsHandler(cfg, db),
		notif: NewNotificationsHandler(cfg, db, sessions),
		db:    db,
	}
}

// inviteUser sends an invitation from the given owner and returns the
// resulting notification.
func (e *notifEnv) inviteUser(t *testing.T, ownerID, orgID, email string) models.Notification {
	t.Helper()
	rec := httptest.NewRecorder()
	e.orgs.InviteMembers(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs/invite",
		models.InviteMembersRequest{OrganizationID: orgID, Emails: []string{email}}), ownerID))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	notifications, err := e.db.ListNotificationsByEmail(email)
	require.NoError(t, err)
	require.NotEmpty(t, notifications)
	return notifications[0]
}

func createOrgFor(t *testing.T, e *notifEnv, userID, name string) models.Organization {
	t.Helper()
	rec := httptest.NewRecorder()
	e.orgs.CreateOrganization(rec, withUser(jsonRequest(t, http.MethodPost, "/api/orgs",
		models.CreateOrganizationRequest{Name: name}), userID))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	org, err := e.db.GetOrganizationBySlug(utils.GenerateSlug(name))
	require.NoError(t, err)
	return *org
}

// Full flow: owner invites, recipient sees the invite, accepts, and becomes
// an active member; re-accepting changes nothing.
func TestInvitationAcceptanceFlow(t *testing.T) {
	t.Parallel()
	e := newNotifEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := createOrgFor(t, e, alice, "Acme Corp")

	invite := e.inviteUser(t, alice, org.ID, "b@x.com")

	// Bob sees the invite with sender and organization attached
	rec := httptest.NewRecorder()
	e.notif.ListNotifications(rec, withUser(httptest.NewRequest(http.MethodGet, "/api/notifications", nil), bob))
	require.Equal(t, http.StatusOK, rec.Code)

	data := decodeEnvelope(t, rec)
	require.Equal(t, float64(1), data["total"])
	require.Equal(t, float64(1), data["unread_count"])

	groups := data["groups"].([]interface{})
	require.Len(t, groups, 1)
	group := groups[0].(map[string]interface{})
	require.Equal(t, models.GroupToday, group["label"])

	view := group["notifications"].([]interface{})[0].(map[string]interface{})
	require.Equal(t, "a@x.com", view["from_user"].(map[string]interface{})["email"])
	require.Equal(t, "acme-corp", view["organization"].(map[string]interface{})["slug"])

	// Accept
	rec = httptest.NewRecorder()
	e.notif.AcceptInvitation(rec, withUser(jsonRequest(t, http.MethodPost, "/api/invitations/accept",
		models.AcceptInvitationRequest{NotificationID: invite.ID}), bob))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	m, err := e.db.FindMembership(bob, org.ID)
	require.NoError(t, err)
	require.Equal(t, models.RoleMember, m.Role)
	require.Equal(t, models.StatusActive, m.Status)
	require.NotNil(t, m.InvitedBy)
	require.Equal(t, alice, *m.InvitedBy)

	stored, err := e.db.GetNotificationByID(invite.ID)
	require.NoError(t, err)
	payload, err := stored.InvitePayload()
	require.NoError(t, err)
	require.True(t, payload.Accepted)

	// Accepting again is a no-op, not an error
	rec = httptest.NewRecorder()
	e.notif.AcceptInvitation(rec, withUser(jsonRequest(t, http.MethodPost, "/api/invitations/accept",
		models.AcceptInvitationRequest{NotificationID: invite.ID}), bob))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	memberships, err := e.db.ListMembershipsByOrganization(org.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
}

func TestAcceptInvitationRejectsWrongRecipient(t *testing.T) {
	t.Parallel()
	e := newNotifEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	signupUser(t, e.auth, "Bob", "b@x.com")
	eve := signupUser(t, e.auth, "Eve", "e@x.com")
	org := createOrgFor(t, e, alice, "Acme Corp")

	invite := e.inviteUser(t, alice, org.ID, "b@x.com")

	rec := httptest.NewRecorder()
	e.notif.AcceptInvitation(rec, withUser(jsonRequest(t, http.MethodPost, "/api/invitations/accept",
		models.AcceptInvitationRequest{NotificationID: invite.ID}), eve))
	require.Equal(t, http.StatusForbidden, rec.Code)

	_, err := e.db.FindMembership(eve, org.ID)
	require.ErrorIs(t, err, database.ErrNotFound)
}

func TestAcceptInvitationForDeletedOrganization(t *testing.T) {
	t.Parallel()
	e := newNotifEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := createOrgFor(t, e, alice, "Acme Corp")

	invite := e.inviteUser(t, alice, org.ID, "b@x.com")
	require.NoError(t, e.db.DeleteOrganization(org.ID))

	rec := httptest.NewRecorder()
	e.notif.AcceptInvitation(rec, withUser(jsonRequest(t, http.MethodPost, "/api/invitations/accept",
		models.AcceptInvitationRequest{NotificationID: invite.ID}), bob))
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMarkReadOwnershipCheck(t *testing.T) {
	t.Parallel()
	e := newNotifEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	eve := signupUser(t, e.auth, "Eve", "e@x.com")
	org := createOrgFor(t, e, alice, "Acme Corp")

	invite := e.inviteUser(t, alice, org.ID, "b@x.com")

	// Another user cannot mark Bob's notification
	rec := httptest.NewRecorder()
	req := withURLParam(withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/"+invite.ID+"/read", nil), eve), "id", invite.ID)
	e.notif.MarkRead(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	// Bob can
	rec = httptest.NewRecorder()
	req = withURLParam(withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/"+invite.ID+"/read", nil), bob), "id", invite.ID)
	e.notif.MarkRead(rec, req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	stored, err := e.db.GetNotificationByID(invite.ID)
	require.NoError(t, err)
	require.True(t, stored.IsRead)
}

func TestMarkAllRead(t *testing.T) {
	t.Parallel()
	e := newNotifEnv(t)

	alice := signupUser(t, e.auth, "Alice", "a@x.com")
	bob := signupUser(t, e.auth, "Bob", "b@x.com")
	org := createOrgFor(t, e, alice, "Acme Corp")
	org2 := createOrgFor(t, e, alice, "Beta LLC")

	e.inviteUser(t, alice, org.ID, "b@x.com")
	e.inviteUser(t, alice, org2.ID, "b@x.com")

	rec := httptest.NewRecorder()
	e.notif.MarkAllRead(rec, withUser(httptest.NewRequest(http.MethodPost, "/api/notifications/read-all", nil), bob))
	require.Equal(t, http.StatusOK, rec.Code)

	notifications, err := e.db.ListNotificationsByEmail("b@x.com")
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	for _, n := range notifications {
		require.True(t, n.IsRead)
	}
}
