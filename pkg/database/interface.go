package database

import (
	"fmt"

	"orghub-backend/pkg/models"
)

// DatabaseInterface defines the storage boundary. All entity mutations go
// through these operations; no component writes records directly.
type DatabaseInterface interface {
	// Users
	CreateUser(user *models.User) error
	GetUserByEmail(email string) (*models.User, error)
	GetUserByID(id string) (*models.User, error)
	UpdateUser(user *models.User) error
	DeleteUser(id string) error
	ListUsers(page, perPage int, search string) ([]models.User, int, error)

	// Organizations
	CreateOrganization(org *models.Organization) error
	GetOrganizationByID(id string) (*models.Organization, error)
	GetOrganizationBySlug(slug string) (*models.Organization, error)
	UpdateOrganization(org *models.Organization) error
	// DeleteOrganization removes the organization and cascades to its
	// memberships so no orphans are left behind.
	DeleteOrganization(id string) error
	ListOrganizations(page, perPage int, search string) ([]models.Organization, int, error)
	ListUserOrganizations(userID string) ([]models.Organization, error)

	// Memberships. CreateMembership returns ErrNotFound when the referenced
	// user or organization is missing and ErrConflict when a membership for
	// the (user, organization) pair already exists; the unique index is the
	// final arbiter under concurrent creation.
	CreateMembership(m *models.Membership) error
	GetMembership(id string) (*models.Membership, error)
	FindMembership(userID, organizationID string) (*models.Membership, error)
	ListMembershipsByOrganization(organizationID string) ([]models.Membership, error)
	ListOrganizationMembers(organizationID string) ([]models.Member, error)
	UpdateMembership(m *models.Membership) error
	DeleteMembership(id string) error

	// Notifications
	CreateNotification(n *models.Notification) error
	GetNotificationByID(id string) (*models.Notification, error)
	ListNotificationsByEmail(email string) ([]models.Notification, error)
	MarkNotificationRead(id string) error
	MarkAllNotificationsRead(email string) error
	// SetInviteAccepted flips data.accepted on an invite notification in a
	// single update; reapplying has no further effect.
	SetInviteAccepted(id string) error

	HealthCheck() error
	Close() error
}

// DatabaseConfig selects and parameterizes the storage backend
type DatabaseConfig struct {
	PostgresDSN string
	UseMemoryDB bool
	Debug       bool
}

// NewDatabase picks the implementation for the given configuration.
func NewDatabase(config DatabaseConfig) (DatabaseInterface, error) {
	if config.PostgresDSN != "" {
		fmt.Printf("🗄️  Using PostgreSQL database\n")
		return NewPostgresDatabase(config.PostgresDSN)
	}

	if config.UseMemoryDB {
		fmt.Printf("🧪  Using in-memory database (development only)\n")
		return NewMemoryDatabase(), nil
	}

	return nil, fmt.Errorf("no valid database configuration: set POSTGRES_DSN or USE_MEMORY_DB")
}
