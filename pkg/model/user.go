package model

import "time"

type Role string

const (
	RoleRenter Role = "renter"
	RoleOwner  Role = "owner"
	RoleAdmin  Role = "admin"
)

// CanListProperties reports whether a user with this role may own listings.
func (r Role) CanListProperties() bool {
	return r == RoleOwner || r == RoleAdmin
}

// User is the stored account. PasswordHash never leaves the service.
type User struct {
	ID           string    `json:"_id,omitempty" bson:"_id,omitempty"`
	Name         string    `json:"name" bson:"name"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         Role      `json:"role" bson:"role"`
	Approved     bool      `json:"approved" bson:"approved"`
	CreatedAt    time.Time `json:"createdAt" bson:"created_at"`
}

type UserRegistration struct {
	Name     string `json:"name" validate:"required,min=2,max=100"`
	Email    string `json:"email" validate:"required,email,max=254"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     Role   `json:"role" validate:"omitempty,oneof=renter owner admin"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}
