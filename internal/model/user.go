package model

import "time"

// Role values stored in users.role.
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// User represents an application user record as stored in the
// `users` table. The password hash is kept internal to the
// repository and auth layers; handlers expose a PublicUser
// projection instead so the hash never leaks into a response.
//
// Fields:
//  ID           – primary key identifier of the user.
//  Name         – display name supplied at signup.
//  Email        – unique email address (stored lower-cased).
//  PasswordHash – bcrypt hashed password.
//  Role         – "customer" or "admin".
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
	ID           uint64    // users.id
	Name         string    // users.name
	Email        string    // users.email
	PasswordHash string    // users.password_hash
	Role         string    // users.role
	CreatedAt    time.Time // users.created_at
	UpdatedAt    time.Time // users.updated_at
}

// PublicUser is the projection of a user returned by the API.
type PublicUser struct {
	ID    uint64 `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Public strips the password hash and other internal fields.
func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// IsAdmin reports whether the user may call admin-gated endpoints.
func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
