package authapi

type userResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	Name          string  `json:"name"`
	EmailVerified bool    `json:"emailVerified"`
	Image         *string `json:"image"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

type sessionResponse struct {
	ID        string  `json:"id"`
	UserID    string  `json:"userId"`
	ExpiresAt string  `json:"expiresAt"`
	IPAddress *string `json:"ipAddress"`
	UserAgent *string `json:"userAgent"`
}

type sessionData struct {
	User    userResponse    `json:"user"`
	Session sessionResponse `json:"session"`
}

// data is null when there is no session.
type sessionEnvelope struct {
	Data *sessionData `json:"data"`
}

type tokenResponse struct {
	Token     string `json:"token"`
	UserID    string `json:"userId"`
	ExpiresAt string `json:"expiresAt"`
}
