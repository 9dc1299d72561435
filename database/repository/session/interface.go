package sessionRepo

import (
	"context"
	"errors"

	"teleclinic/models"
)

// ErrNotFound is returned when a session record does not exist.
var ErrNotFound = errors.New("session not found")

// SessionRepository is the durable store for session lifecycle records.
// The SessionOrchestrator owns all writes.
type SessionRepository interface {
	Save(ctx context.Context, session *models.Session) error
	GetByID(ctx context.Context, sessionID string) (*models.Session, error)
}
