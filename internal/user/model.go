package user

import "time"

type User struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	Email     string    `json:"email"`
	Password  string    `json:"-"` // Never expose password in JSON
	Fullname  *string   `json:"fullname,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// RegisterInput is the validated payload for a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	Fullname *string
}

// AuthResult is returned by register, login and refresh.
type AuthResult struct {
	Token        string
	RefreshToken string
	ExpiresIn    int64
	UserID       int64
	Username     string
}
