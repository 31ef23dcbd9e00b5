package domain

// Role constants define the allowed user roles.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// BootstrapActor is recorded as the actor of out-of-band promotions that
// have no requesting admin.
const BootstrapActor = "bootstrap"

// IsValidRole checks whether role is one of the allowed roles.
func IsValidRole(role string) bool {
	return role == RoleUser || role == RoleAdmin
}
