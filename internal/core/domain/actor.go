package domain

import "time"

const (
	RoleNGO       = "ngo"
	RoleVolunteer = "volunteer"
	RoleDonor     = "donor"
)

// ValidRole reports whether role belongs to the closed role set.
func ValidRole(role string) bool {
	return role == RoleNGO || role == RoleVolunteer || role == RoleDonor
}

// Actor is an authenticated identity performing an operation. Role is fixed
// at registration time.
type Actor struct {
	ID   string `json:"id"`
	Role string `json:"role"`
}

// User models a registered account backing an Actor.
type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Actor returns the identity the user acts as.
func (u *User) Actor() Actor {
	return Actor{ID: u.ID, Role: u.Role}
}
