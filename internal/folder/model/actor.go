package model

// Actor is the opaque identity performing an operation, as supplied by the
// authorization collaborator.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

const (
	RoleContributor = "contributor"
	RoleReviewer    = "reviewer"
	RoleAdmin       = "admin"
)
