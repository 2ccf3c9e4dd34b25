package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/kalinov/scribe-api/internal/domain"
)

// UserStore defines the interface for user persistence.
// Version: 1.0
type UserStore interface {
	// Create saves a new user to the store.
	// Returns ErrEmailExists if the email is already registered.
	Create(ctx context.Context, user *domain.User) error

	// GetByID retrieves a user by their unique ID.
	// Returns ErrUserNotFound if the user does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error)

	// WithTx returns a new UserStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) UserStore
}
