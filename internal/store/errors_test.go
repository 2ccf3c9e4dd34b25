package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelErrorWrapping(t *testing.T) {
	t.Parallel()

	t.Run("entity specific errors unwrap to generic ones", func(t *testing.T) {
		t.Parallel()
		assert.True(t, errors.Is(ErrTaskNotFound, ErrNotFound))
		assert.True(t, errors.Is(ErrMediaFileNotFound, ErrNotFound))
		assert.True(t, errors.Is(ErrSettingNotFound, ErrNotFound))
		assert.True(t, errors.Is(ErrActiveTaskExists, ErrDuplicate))
	})

	t.Run("wrapped sentinel survives further wrapping", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("loading task for recovery: %w", ErrTaskNotFound)
		assert.True(t, errors.Is(err, ErrTaskNotFound))
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsNotFoundError(ErrNotFound))
	assert.True(t, IsNotFoundError(ErrTaskNotFound))
	assert.True(t, IsNotFoundError(fmt.Errorf("wrapped: %w", ErrMediaFileNotFound)))
	assert.False(t, IsNotFoundError(ErrDuplicate))
	assert.False(t, IsNotFoundError(errors.New("unrelated")))
	assert.False(t, IsNotFoundError(nil))
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(ErrActiveTaskExists))
	assert.False(t, IsDuplicateError(ErrNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	t.Run("formats with wrapped error", func(t *testing.T) {
		t.Parallel()
		inner := errors.New("connection reset")
		err := NewStoreError("task", "update", "updating status", inner)

		assert.Equal(t, "update operation on task failed: updating status: connection reset", err.Error())
		assert.True(t, errors.Is(err, inner))
	})

	t.Run("formats without wrapped error", func(t *testing.T) {
		t.Parallel()
		err := NewStoreError("media_file", "create", "validation rejected", nil)

		assert.Equal(t, "create operation on media_file failed: validation rejected", err.Error())
		assert.Nil(t, errors.Unwrap(err))
	})

	t.Run("errors.As finds the StoreError", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("cycle aborted: %w", NewStoreError("task", "scan", "query failed", ErrTransactionFailed))

		var storeErr *StoreError
		assert.True(t, errors.As(err, &storeErr))
		assert.Equal(t, "task", storeErr.Entity)
		assert.True(t, errors.Is(err, ErrTransactionFailed))
	})
}
