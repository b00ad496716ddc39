package authapi

import (
	"time"

	"taskbridge/cmd/internal/auth/session"
)

// isoMillis renders timestamps the way browser clients serialize dates.
const isoMillis = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(isoMillis)
}

func toUserResponse(u session.User) userResponse {
	return userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		EmailVerified: u.EmailVerified,
		Image:         u.Image,
		CreatedAt:     formatTime(u.CreatedAt),
		UpdatedAt:     formatTime(u.UpdatedAt),
	}
}

func toSessionResponse(s session.Session) sessionResponse {
	return sessionResponse{
		ID:        s.ID,
		UserID:    s.UserID,
		ExpiresAt: formatTime(s.ExpiresAt),
		IPAddress: s.IPAddress,
		UserAgent: s.UserAgent,
	}
}
