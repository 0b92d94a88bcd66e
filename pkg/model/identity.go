package model

import "time"

// Identity is the authenticated principal behind a valid session.
type Identity struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Admin is an account allowed to sign in to the admin panel.
type Admin struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	LastLoginAt  time.Time `json:"last_login_at"`
}

// Identity returns the session identity for this admin.
func (a *Admin) Identity() *Identity {
	return &Identity{UserID: a.ID, Email: a.Email}
}
