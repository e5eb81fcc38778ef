package model

// Role is derived from the membership row and never edited by the client.
type Role string

const (
	RoleOwner  Role = "owner"
	RoleMember Role = "member"
)

type Organization struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
	Role Role   `json:"role"`
}

// Membership is one row of the organization members view.
type Membership struct {
	OrganizationID   string `json:"organization_id"`
	OrganizationName string `json:"organization_name"`
	OrganizationSlug string `json:"organization_slug"`
	UserID           string `json:"user_id"`
	IsOwner          bool   `json:"is_owner"`
}

func (m Membership) Organization() Organization {
	role := RoleMember
	if m.IsOwner {
		role = RoleOwner
	}
	return Organization{
		ID:   m.OrganizationID,
		Name: m.OrganizationName,
		Slug: m.OrganizationSlug,
		Role: role,
	}
}
