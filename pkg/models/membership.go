package models

import "time"

type MemberRole string

const (
	RoleOwner  MemberRole = "owner"
	RoleAdmin  MemberRole = "admin"
	RoleMember MemberRole = "member"
)

// Valid reports whether r is one of the known roles.
func (r MemberRole) Valid() bool {
	return r == RoleOwner || r == RoleAdmin || r == RoleMember
}

// CanManage reports whether the role may invite members or edit tenant metadata.
func (r MemberRole) CanManage() bool {
	return r == RoleOwner || r == RoleAdmin
}

type MembershipStatus string

const (
	StatusPending  MembershipStatus = "pending"
	StatusActive   MembershipStatus = "active"
	StatusInactive MembershipStatus = "inactive"
)

// Valid reports whether s is one of the known statuses.
func (s MembershipStatus) Valid() bool {
	return s == StatusPending || s == StatusActive || s == StatusInactive
}

// Membership relates a user to an organization with a role and status.
// At most one membership exists per (user, organization) pair.
type Membership struct {
	ID             string           `json:"id" db:"id"`
	UserID         string           `json:"user_id" db:"user_id"`
	OrganizationID string           `json:"organization_id" db:"organization_id"`
	Role           MemberRole       `json:"role" db:"role"`
	Status         MembershipStatus `json:"status" db:"status"`
	InvitedBy      *string          `json:"invited_by,omitempty" db:"invited_by"`
	InvitedAt      time.Time        `json:"invited_at" db:"invited_at"`
	CreatedAt      time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at" db:"updated_at"`
}

// Member is a membership joined with the user's public info for directory views
type Member struct {
	Membership
	User UserSummary `json:"user"`
}

// MembershipPartitions groups a tenant's memberships by role so callers can
// compute a per-viewer role without a second round trip.
type MembershipPartitions struct {
	All     []Membership `json:"all_memberships"`
	Owners  []Membership `json:"owners"`
	Admins  []Membership `json:"admins"`
	Members []Membership `json:"members"`

	OwnerIDs  []string `json:"owner_ids"`
	AdminIDs  []string `json:"admin_ids"`
	MemberIDs []string `json:"member_ids"`
	AllIDs    []string `json:"all_ids"`
}

// PartitionMemberships splits memberships into owner/admin/member sets with
// parallel userId lists per partition.
func PartitionMemberships(memberships []Membership) MembershipPartitions {
	p := MembershipPartitions{All: memberships}
	for _, m := range memberships {
		switch m.Role {
		case RoleOwner:
			p.Owners = append(p.Owners, m)
			p.OwnerIDs = append(p.OwnerIDs, m.UserID)
		case RoleAdmin:
			p.Admins = append(p.Admins, m)
			p.AdminIDs = append(p.AdminIDs, m.UserID)
		default:
			p.Members = append(p.Members, m)
			p.MemberIDs = append(p.MemberIDs, m.UserID)
		}
		p.AllIDs = append(p.AllIDs, m.UserID)
	}
	return p
}

// Resolve returns the user's role within the partitions. Owner wins over
// admin, admin over member. Empty string means not a member; callers must
// treat that as forbidden for tenant-scoped views.
func (p MembershipPartitions) Resolve(userID string) MemberRole {
	for _, id := range p.OwnerIDs {
		if id == userID {
			return RoleOwner
		}
	}
	for _, id := range p.AdminIDs {
		if id == userID {
			return RoleAdmin
		}
	}
	for _, id := range p.MemberIDs {
		if id == userID {
			return RoleMember
		}
	}
	return ""
}

// UpdateMembershipRequest represents a role/status mutation
type UpdateMembershipRequest struct {
	Role   MemberRole       `json:"role,omitempty"`
	Status MembershipStatus `json:"status,omitempty"`
}

// InviteMembersRequest carries a batch of invitation emails for one tenant
type InviteMembersRequest struct {
	OrganizationID string   `json:"organization_id" validate:"required"`
	Emails         []string `json:"emails" validate:"required"`
}
