package domain

// Role type to distinguish between user roles
type Role string

// Roles issued by the platform's auth service. Only the claims are read here;
// accounts themselves live elsewhere.
const (
	RoleAdmin      Role = "admin"
	RoleInstructor Role = "instructor"
	RoleStudent    Role = "student"
)

// Principal is the authenticated caller as seen by this service.
type Principal struct {
	UserID string
	Role   Role
}

func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
