package database

import (
	"errors"
	"testing"

	"orghub-backend/pkg/models"
)

func seedUserOrg(t *testing.T, db *MemoryDatabase) (userID, orgID string) {
	t.Helper()
	user := &models.User{Email: "a@x.com", Name: "Alice"}
	if err := db.CreateUser(user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	org := &models.Organization{Name: "Acme Corp", Slug: "acme-corp"}
	if err := db.CreateOrganization(org); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	return user.ID, org.ID
}

func TestCreateUserNormalizesAndConflicts(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()

	user := &models.User{Email: "Alice@Example.COM"}
	if err := db.CreateUser(user); err != nil {
		t.Fatalf("CreateUser failed: %v", err)
	}
	if user.Email != "alice@example.com" {
		t.Fatalf("email not normalized: %s", user.Email)
	}

	dup := &models.User{Email: "ALICE@example.com"}
	if err := db.CreateUser(dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	found, err := db.GetUserByEmail("aLiCe@ExAmPlE.cOm")
	if err != nil {
		t.Fatalf("case-insensitive lookup failed: %v", err)
	}
	if found.ID != user.ID {
		t.Fatal("lookup returned wrong user")
	}
}

func TestMembershipPairUniqueness(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()
	userID, orgID := seedUserOrg(t, db)

	first := &models.Membership{UserID: userID, OrganizationID: orgID, Role: models.RoleOwner, Status: models.StatusActive}
	if err := db.CreateMembership(first); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}

	dup := &models.Membership{UserID: userID, OrganizationID: orgID, Role: models.RoleMember, Status: models.StatusActive}
	if err := db.CreateMembership(dup); !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate pair, got %v", err)
	}
}

func TestCreateMembershipChecksReferences(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()
	userID, orgID := seedUserOrg(t, db)

	missingUser := &models.Membership{UserID: "ghost", OrganizationID: orgID}
	if err := db.CreateMembership(missingUser); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing user, got %v", err)
	}
	missingOrg := &models.Membership{UserID: userID, OrganizationID: "ghost"}
	if err := db.CreateMembership(missingOrg); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for missing organization, got %v", err)
	}
}

func TestDeleteOrganizationCascadesMemberships(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()
	userID, orgID := seedUserOrg(t, db)

	m := &models.Membership{UserID: userID, OrganizationID: orgID, Role: models.RoleOwner, Status: models.StatusActive}
	if err := db.CreateMembership(m); err != nil {
		t.Fatalf("CreateMembership failed: %v", err)
	}

	if err := db.DeleteOrganization(orgID); err != nil {
		t.Fatalf("DeleteOrganization failed: %v", err)
	}
	if _, err := db.FindMembership(userID, orgID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("membership must be gone after cascade, got %v", err)
	}
}

func TestSetInviteAcceptedIdempotent(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()

	n := &models.Notification{FromUserEmail: "a@x.com", ToUserEmail: "b@x.com"}
	if err := n.SetInvitePayload(models.InvitePayload{OrganizationID: "org-1"}); err != nil {
		t.Fatalf("SetInvitePayload failed: %v", err)
	}
	if err := db.CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := db.SetInviteAccepted(n.ID); err != nil {
			t.Fatalf("SetInviteAccepted run %d failed: %v", i+1, err)
		}
	}

	stored, err := db.GetNotificationByID(n.ID)
	if err != nil {
		t.Fatalf("GetNotificationByID failed: %v", err)
	}
	p, err := stored.InvitePayload()
	if err != nil {
		t.Fatalf("InvitePayload failed: %v", err)
	}
	if !p.Accepted {
		t.Fatal("expected accepted=true")
	}
}

func TestSetInviteAcceptedRejectsNonInvite(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()

	n := &models.Notification{Type: models.NotificationMessage, ToUserEmail: "b@x.com", Data: []byte(`{}`)}
	if err := db.CreateNotification(n); err != nil {
		t.Fatalf("CreateNotification failed: %v", err)
	}
	if err := db.SetInviteAccepted(n.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for non-invite, got %v", err)
	}
}

func TestOrganizationNameCaseInsensitiveConflict(t *testing.T) {
	t.Parallel()
	db := NewMemoryDatabase()

	if err := db.CreateOrganization(&models.Organization{Name: "Acme Corp", Slug: "acme-corp"}); err != nil {
		t.Fatalf("CreateOrganization failed: %v", err)
	}
	err := db.CreateOrganization(&models.Organization{Name: "ACME CORP", Slug: "acme-corp-2"})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict for case-insensitive name, got %v", err)
	}
}
