package store

import (
	"context"
	"database/sql"
)

// Well-known settings keys. Values are stored as strings and parsed by
// the reader; operators tune them without a redeploy.
const (
	SettingMaxRetries            = "max_retries"
	SettingRetryLimitEnabled     = "retry_limit_enabled"
	SettingMaxWordLength         = "max_word_length"
	SettingGarbageCleanupEnabled = "garbage_cleanup_enabled"
)

// SettingsStore defines the interface for the generic key-value
// settings collaborator.
// Version: 1.0
type SettingsStore interface {
	// Get retrieves the value for a settings key.
	// Returns ErrSettingNotFound if the key has never been set.
	Get(ctx context.Context, key string) (string, error)

	// Set stores the value for a settings key, overwriting any previous value.
	Set(ctx context.Context, key, value string) error

	// WithTx returns a new SettingsStore instance that uses the provided transaction.
	WithTx(tx *sql.Tx) SettingsStore
}
