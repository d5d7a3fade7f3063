package writeq

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/phrazzld/shelf/internal/domain"
	"github.com/phrazzld/shelf/internal/store"
)

// Stores are the repositories payload tasks read and write through.
type Stores struct {
	Novels     store.NovelStore
	Chapters   store.ChapterStore
	Categories store.CategoryStore
}

// WithTx binds every repository to tx. Unset repositories stay unset.
func (s Stores) WithTx(tx store.DBTX) Stores {
	out := Stores{}
	if s.Novels != nil {
		out.Novels = s.Novels.WithTx(tx)
	}
	if s.Chapters != nil {
		out.Chapters = s.Chapters.WithTx(tx)
	}
	if s.Categories != nil {
		out.Categories = s.Categories.WithTx(tx)
	}
	return out
}

func (s Stores) complete() bool {
	return s.Novels != nil && s.Chapters != nil && s.Categories != nil
}

// checkEnv is what a payload sees when deciding whether it is still needed.
type checkEnv struct {
	stores     Stores
	ref        time.Time // when the task was created
	now        time.Time
	skipWindow time.Duration
}

// Payload is the durable description of a task. Only the variants defined in
// this package implement it: LibraryUpdate, Download, BulkImport and Other.
type Payload interface {
	Category() Category

	validate() error
	check(ctx context.Context, env checkEnv) (bool, error)
	apply(ctx context.Context, stores Stores, at time.Time) (any, error)
	exclusive() bool
}

// LibraryUpdate changes a novel's metadata, either from a source refresh or
// from a user edit.
type LibraryUpdate struct {
	NovelID int64              `json:"novelId"`
	Updates domain.NovelUpdate `json:"updates"`

	// UserEdit marks a change made by the user. The refresh skip window does
	// not apply to it.
	UserEdit bool `json:"userEdit,omitempty"`
}

// Category implements Payload.
func (LibraryUpdate) Category() Category { return CategoryLibraryUpdate }

func (p LibraryUpdate) validate() error {
	if p.NovelID <= 0 {
		return domain.ErrInvalidID
	}
	return p.Updates.Validate()
}

// An update is needed while the novel exists and has not been modified at or
// after the task's creation. A refresh is also skipped within the skip window.
func (p LibraryUpdate) check(ctx context.Context, env checkEnv) (bool, error) {
	novel, err := env.stores.Novels.GetByID(ctx, p.NovelID)
	if store.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if !novel.UpdatedAt.Before(env.ref) {
		return false, nil
	}
	if !p.UserEdit && env.skipWindow > 0 && !novel.UpdatedAt.IsZero() && env.now.Sub(novel.UpdatedAt) < env.skipWindow {
		return false, nil
	}
	return true, nil
}

// The novel is stamped with the task's creation time so a later check of the
// same task, or of any older one, sees it as superseded.
func (p LibraryUpdate) apply(ctx context.Context, stores Stores, at time.Time) (any, error) {
	if err := stores.Novels.Update(ctx, p.NovelID, p.Updates, at); err != nil {
		return nil, err
	}
	return p.NovelID, nil
}

func (LibraryUpdate) exclusive() bool { return false }

// Download records that a chapter's content is now stored locally.
type Download struct {
	NovelID   int64 `json:"novelId"`
	ChapterID int64 `json:"chapterId"`
}

// Category implements Payload.
func (Download) Category() Category { return CategoryDownload }

func (p Download) validate() error {
	if p.ChapterID <= 0 {
		return domain.ErrInvalidID
	}
	return nil
}

func (p Download) check(ctx context.Context, env checkEnv) (bool, error) {
	chapter, err := env.stores.Chapters.GetByID(ctx, p.ChapterID)
	if store.IsNotFoundError(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return !chapter.IsDownloaded, nil
}

func (p Download) apply(ctx context.Context, stores Stores, at time.Time) (any, error) {
	if err := stores.Chapters.MarkDownloaded(ctx, p.ChapterID, at); err != nil {
		return nil, err
	}
	return p.ChapterID, nil
}

func (Download) exclusive() bool { return false }

// BulkImport adds a novel to the library under a category, creating the
// novel when it is not known yet. Either NovelID or PluginID and Path
// identify it.
type BulkImport struct {
	NovelID    int64  `json:"novelId,omitempty"`
	PluginID   string `json:"pluginId,omitempty"`
	Path       string `json:"path,omitempty"`
	Name       string `json:"name,omitempty"`
	CategoryID int64  `json:"categoryId"`
}

// Category implements Payload.
func (BulkImport) Category() Category { return CategoryBulkImport }

func (p BulkImport) validate() error {
	if p.CategoryID <= 0 {
		return domain.ErrInvalidID
	}
	if p.NovelID > 0 {
		return nil
	}
	if p.PluginID == "" {
		return domain.ErrEmptyPluginID
	}
	if p.Path == "" {
		return domain.ErrEmptyPath
	}
	return nil
}

// An import is needed until the novel sits in the target category.
func (p BulkImport) check(ctx context.Context, env checkEnv) (bool, error) {
	novelID, err := p.resolve(ctx, env.stores.Novels)
	if store.IsNotFoundError(err) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	in, err := env.stores.Categories.Contains(ctx, p.CategoryID, novelID)
	if err != nil {
		return false, err
	}
	return !in, nil
}

func (p BulkImport) apply(ctx context.Context, stores Stores, at time.Time) (any, error) {
	novelID, err := p.resolve(ctx, stores.Novels)
	switch {
	case store.IsNotFoundError(err) && p.NovelID == 0:
		novel := &domain.Novel{
			PluginID:  p.PluginID,
			Path:      p.Path,
			Name:      p.Name,
			InLibrary: true,
			UpdatedAt: at,
		}
		if err := stores.Novels.Create(ctx, novel); err != nil {
			return nil, err
		}
		novelID = novel.ID
	case err != nil:
		return nil, err
	default:
		if err := stores.Novels.SetInLibrary(ctx, novelID, true); err != nil {
			return nil, err
		}
	}
	if err := stores.Categories.AddNovel(ctx, p.CategoryID, novelID); err != nil {
		return nil, err
	}
	return novelID, nil
}

func (p BulkImport) resolve(ctx context.Context, novels store.NovelStore) (int64, error) {
	if p.NovelID > 0 {
		if _, err := novels.GetByID(ctx, p.NovelID); err != nil {
			return 0, err
		}
		return p.NovelID, nil
	}
	novel, err := novels.GetByPath(ctx, p.PluginID, p.Path)
	if err != nil {
		return 0, err
	}
	return novel.ID, nil
}

// Imports rewrite library membership wholesale and take the store exclusively.
func (BulkImport) exclusive() bool { return true }

// Other is an application-defined mutation. Its Kind selects the handler
// registered with Queue.Handle; Data is handed to that handler untouched.
type Other struct {
	Kind string          `json:"kind"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Category implements Payload.
func (Other) Category() Category { return CategoryOther }

func (p Other) validate() error {
	if p.Kind == "" {
		return fmt.Errorf("%w: empty kind", domain.ErrValidation)
	}
	return nil
}

func (Other) check(context.Context, checkEnv) (bool, error) { return true, nil }

func (p Other) apply(context.Context, Stores, time.Time) (any, error) {
	return nil, fmt.Errorf("%w: %q", ErrNoHandler, p.Kind)
}

func (Other) exclusive() bool { return false }

// ValidatePayload reports whether p carries everything it needs to be applied.
func ValidatePayload(p Payload) error {
	if p == nil {
		return fmt.Errorf("%w: nil payload", ErrInvalidPayload)
	}
	if err := p.validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	return nil
}

// DecodePayload rebuilds the payload of category c from its JSON encoding.
func DecodePayload(c Category, raw json.RawMessage) (Payload, error) {
	var (
		p   Payload
		err error
	)
	switch c {
	case CategoryLibraryUpdate:
		var v LibraryUpdate
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryDownload:
		var v Download
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryBulkImport:
		var v BulkImport
		err = json.Unmarshal(raw, &v)
		p = v
	case CategoryOther:
		var v Other
		err = json.Unmarshal(raw, &v)
		p = v
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCategory, c)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: decode %s payload: %w", ErrInvalidPayload, c, err)
	}
	if err := ValidatePayload(p); err != nil {
		return nil, err
	}
	return p, nil
}
