package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		err  error
		want bool
	}{
		{name: "generic", err: ErrNotFound, want: true},
		{name: "novel", err: ErrNovelNotFound, want: true},
		{name: "chapter wrapped", err: fmt.Errorf("lookup: %w", ErrChapterNotFound), want: true},
		{name: "category", err: ErrCategoryNotFound, want: true},
		{name: "duplicate", err: ErrNovelExists, want: false},
		{name: "other", err: errors.New("boom"), want: false},
		{name: "nil", err: nil, want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, IsNotFoundError(tc.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	t.Parallel()

	assert.True(t, IsDuplicateError(ErrDuplicate))
	assert.True(t, IsDuplicateError(fmt.Errorf("create: %w", ErrNovelExists)))
	assert.False(t, IsDuplicateError(ErrNovelNotFound))
}

func TestStoreError(t *testing.T) {
	t.Parallel()

	cause := errors.New("disk I/O error")
	err := NewStoreError("novel", "update", "write failed", cause)
	assert.Equal(t, "update operation on novel failed: write failed: disk I/O error", err.Error())
	assert.ErrorIs(t, err, cause)

	bare := NewStoreError("chapter", "create", "invalid path", nil)
	assert.Equal(t, "create operation on chapter failed: invalid path", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
