package session

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"

	"taskbridge/cmd/internal/dbpool"
)

// LIMIT 2 lets a duplicate token surface as an integrity fault instead of
// silently picking a row.
const findActiveSQL = `
	SELECT
		s."id", s."userId", s."expiresAt", s."ipAddress", s."userAgent",
		u."id", u."email", u."name", u."emailVerified", u."image",
		u."createdAt", u."updatedAt"
	FROM "session" s
	JOIN "user" u ON u."id" = s."userId"
	WHERE s."token" = $1 AND s."expiresAt" > $2
	LIMIT 2
`

// PostgresStore implements Store over the identity provider's tables.
type PostgresStore struct {
	pool *dbpool.Pool
}

// NewPostgresStore creates a Postgres-backed session store.
func NewPostgresStore(pool *dbpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// FindActive runs one join query on a scoped connection.
func (s *PostgresStore) FindActive(ctx context.Context, token string, now time.Time) (Identity, error) {
	var found []Identity

	err := s.pool.WithConn(ctx, func(ctx context.Context, c *dbpool.Conn) error {
		return c.Query(ctx, findActiveSQL, []any{token, now.UTC()}, func(rows pgx.Rows) error {
			var id Identity
			if err := rows.Scan(
				&id.Session.ID,
				&id.Session.UserID,
				&id.Session.ExpiresAt,
				&id.Session.IPAddress,
				&id.Session.UserAgent,
				&id.User.ID,
				&id.User.Email,
				&id.User.Name,
				&id.User.EmailVerified,
				&id.User.Image,
				&id.User.CreatedAt,
				&id.User.UpdatedAt,
			); err != nil {
				return err
			}
			found = append(found, id)
			return nil
		})
	})
	if err != nil {
		return Identity{}, err
	}

	switch len(found) {
	case 0:
		return Identity{}, ErrSessionNotFound
	case 1:
		return found[0], nil
	default:
		return Identity{}, ErrDuplicateSession
	}
}
