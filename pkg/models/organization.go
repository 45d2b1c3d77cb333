package models

import "time"

// Organization represents a tenant scoping memberships and resources
type Organization struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Slug        string    `json:"slug" db:"slug"`
	Description string    `json:"description,omitempty" db:"description"`
	Logo        string    `json:"logo,omitempty" db:"logo"`
	Website     string    `json:"website,omitempty" db:"website"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// OrganizationSummary is the public shape embedded in invite notifications
type OrganizationSummary struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Summary projects the public fields of an organization.
func (o *Organization) Summary() OrganizationSummary {
	return OrganizationSummary{ID: o.ID, Name: o.Name, Slug: o.Slug}
}

// CreateOrganizationRequest represents the creation payload
type CreateOrganizationRequest struct {
	Name        string `json:"name" validate:"required"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Website     string `json:"website,omitempty"`
}

// UpdateOrganizationRequest represents a partial update payload
type UpdateOrganizationRequest struct {
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
	Website     string `json:"website,omitempty"`
}
