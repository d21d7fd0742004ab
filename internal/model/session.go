package model

// SessionUser is the projection of a User kept in the session store. It is a
// snapshot taken at login or at the last explicit refresh.
type SessionUser struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
	Verified bool   `json:"verified"`
}

// SessionData is the value persisted under a session id.
type SessionData struct {
	IsLoggedIn bool         `json:"isLoggedIn"`
	User       *SessionUser `json:"user,omitempty"`
}

// NewSessionUser projects u, dropping the password hash.
func NewSessionUser(u *User) *SessionUser {
	return &SessionUser{
		ID:       u.ID,
		Name:     u.Name,
		Email:    u.Email,
		Role:     u.Role,
		Verified: u.Verified,
	}
}
