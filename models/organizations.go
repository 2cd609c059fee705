package models

import "time"

// Implementer is the remote record grouping the users of one vendor or practice.
type Implementer struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// ProviderOrg is an organization as returned by the organization directory.
type ProviderOrg struct {
	OrgID  string `json:"org_id"`
	NPI    string `json:"npi"`
	Name   string `json:"org_name"`
	Status string `json:"status"`
}

// Organization is the local mirror of a provider organization.
type Organization struct {
	ID            string    `json:"id"`
	ImplementerID string    `json:"implementerId"`
	Name          string    `json:"name"`
	NPI           string    `json:"npi"`
	Vendor        bool      `json:"vendor"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// OrganizationUpdate holds the editable organization fields.
type OrganizationUpdate struct {
	NPI    string `json:"npi" validate:"required,npi"`
	Vendor bool   `json:"vendor"`
}

// OrganizationView is the data needed to render a user's organizations. Unavailable is set
// when the directory could not be reached, so an empty list is not mistaken for "none".
type OrganizationView struct {
	Organizations []ProviderOrg `json:"organizations"`
	Unavailable   bool          `json:"unavailable"`
}
