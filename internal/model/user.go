package model

import "time"

type Role string

const (
	RoleGuest      Role = "guest"
	RoleSubscriber Role = "subscriber"
	RoleAdmin      Role = "admin"
)

// User is the stored credential record. Password holds the encoded hash and
// is never serialized.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Password  string    `json:"-"`
	Role      Role      `json:"role"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
