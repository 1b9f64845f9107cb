package models

type UserRole string
type Role = UserRole // Alias for compatibility

const (
	RoleCandidate UserRole = "candidate"
	RoleReviewer  UserRole = "reviewer"
	RoleAdmin     UserRole = "admin"
)

// User is an admin-dashboard user resolved from a Casdoor token. It is not
// persisted by this service.
type User struct {
	ID        string   `json:"id"`
	FullName  string   `json:"full_name"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	AvatarURL *string  `json:"avatar_url"`
}
