package session

import "time"

// User mirrors the identity provider's user row.
type User struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	EmailVerified bool      `json:"emailVerified"`
	Image         *string   `json:"image"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Session is the read-only view of a session row. The token is never copied out.
type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	ExpiresAt time.Time `json:"expiresAt"`
	IPAddress *string   `json:"ipAddress"`
	UserAgent *string   `json:"userAgent"`
}

// Identity is a verified (user, session) pair.
type Identity struct {
	User    User    `json:"user"`
	Session Session `json:"session"`
}

// Active reports whether the session is still valid at now.
func (i Identity) Active(now time.Time) bool {
	return i.Session.ExpiresAt.After(now)
}
