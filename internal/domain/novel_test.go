package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func strPtr(s string) *string { return &s }

func TestNovel_Validate(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name    string
		novel   Novel
		wantErr error
	}{
		{name: "valid", novel: Novel{PluginID: "boxnovel", Path: "/n/1"}},
		{name: "missing plugin", novel: Novel{Path: "/n/1"}, wantErr: ErrEmptyPluginID},
		{name: "missing path", novel: Novel{PluginID: "boxnovel"}, wantErr: ErrEmptyPath},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			err := tc.novel.Validate()
			if tc.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tc.wantErr))
			assert.True(t, errors.Is(err, ErrValidation))
		})
	}
}

func TestNovelUpdate(t *testing.T) {
	t.Parallel()

	assert.True(t, NovelUpdate{}.IsEmpty())
	assert.ErrorIs(t, NovelUpdate{}.Validate(), ErrEmptyUpdate)

	u := NovelUpdate{Name: strPtr("New"), Status: strPtr("Completed")}
	assert.False(t, u.IsEmpty())
	assert.NoError(t, u.Validate())

	n := Novel{Name: "Old", Author: "A", Status: "Ongoing"}
	u.Apply(&n)
	assert.Equal(t, "New", n.Name)
	assert.Equal(t, "A", n.Author)
	assert.Equal(t, "Completed", n.Status)
}

func TestChapter_Validate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, (&Chapter{NovelID: 1, Path: "/c/1"}).Validate())
	assert.ErrorIs(t, (&Chapter{Path: "/c/1"}).Validate(), ErrInvalidID)
	assert.ErrorIs(t, (&Chapter{NovelID: 1}).Validate(), ErrEmptyPath)
}
