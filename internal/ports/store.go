package ports

import (
	"context"

	"github.com/sediba/edubot/internal/domain"
)

// SessionStore defines the interface for persisting dialog state between
// gateway round trips. Implementations expire entries after a sliding TTL;
// every Save refreshes it.
type SessionStore interface {
	// Save persists the session and refreshes its expiry.
	Save(ctx context.Context, session *domain.Session) error

	// Load retrieves the session for the given ID.
	// Returns domain.ErrSessionNotFound if the session does not exist
	// or has expired.
	Load(ctx context.Context, sessionID string) (*domain.Session, error)

	// Delete removes the session. Deleting an absent session is not an error.
	Delete(ctx context.Context, sessionID string) error

	// List returns the IDs of live sessions.
	List(ctx context.Context) ([]string, error)
}
