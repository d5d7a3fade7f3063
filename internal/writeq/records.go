package writeq

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/afero"
)

const (
	batchPrefix = "batch_"
	recordExt   = ".json"
	tempExt     = ".tmp"
)

// IndividualRecord is the on-disk form of a single persisted task.
type IndividualRecord struct {
	Category  Category        `json:"category"`
	Label     string          `json:"label,omitempty"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
	ID        string          `json:"id"`
}

// Key is the record's file name.
func (r IndividualRecord) Key() string {
	return IndividualKey(r.ID)
}

// IndividualKey is the file name of the individual record with the given id.
func IndividualKey(id string) string {
	return id + recordExt
}

// BatchRecord is the on-disk form of a group of same-category payloads.
type BatchRecord struct {
	Category  Category          `json:"category"`
	Items     []json.RawMessage `json:"items"`
	Timestamp int64             `json:"timestamp"`
	BatchID   string            `json:"batchId"`
}

// Key is the record's file name.
func (r BatchRecord) Key() string {
	return batchPrefix + r.BatchID + recordExt
}

// Record is a decoded record file. Exactly one of Individual and Batch is set.
type Record struct {
	Key        string
	Individual *IndividualRecord
	Batch      *BatchRecord
}

// Time is the record's creation time, millisecond precision.
func (r Record) Time() time.Time {
	if r.Batch != nil {
		return time.UnixMilli(r.Batch.Timestamp)
	}
	return time.UnixMilli(r.Individual.Timestamp)
}

// Category is the category of the record's tasks.
func (r Record) Category() Category {
	if r.Batch != nil {
		return r.Batch.Category
	}
	return r.Individual.Category
}

// RecordStore keeps queue records as JSON files in one directory.
type RecordStore struct {
	fs  afero.Fs
	dir string
}

// NewRecordStore returns a store rooted at dir, creating it if needed.
func NewRecordStore(fs afero.Fs, dir string) (*RecordStore, error) {
	if err := fs.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory %s: %w", dir, err)
	}
	return &RecordStore{fs: fs, dir: dir}, nil
}

// Dir is the directory holding the records.
func (s *RecordStore) Dir() string {
	return s.dir
}

// WriteIndividual stores rec under its key, replacing any previous content.
func (s *RecordStore) WriteIndividual(rec IndividualRecord) error {
	return s.write(rec.Key(), rec)
}

// WriteBatch stores rec under its key, replacing any previous content.
func (s *RecordStore) WriteBatch(rec BatchRecord) error {
	return s.write(rec.Key(), rec)
}

// write goes through a temp file so a crash never leaves a half-written record.
func (s *RecordStore) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", key, err)
	}
	path := filepath.Join(s.dir, key)
	tmp := path + tempExt
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		return fmt.Errorf("write record %s: %w", key, err)
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("write record %s: %w", key, err)
	}
	return nil
}

// Read decodes the record stored under key.
func (s *RecordStore) Read(key string) (Record, error) {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, key))
	if err != nil {
		return Record{}, fmt.Errorf("read record %s: %w", key, err)
	}

	rec := Record{Key: key}
	if strings.HasPrefix(key, batchPrefix) {
		var b BatchRecord
		if err := json.Unmarshal(data, &b); err != nil {
			return Record{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, key, err)
		}
		if !b.Category.Valid() || b.BatchID == "" {
			return Record{}, fmt.Errorf("%w: %s: missing category or batch id", ErrMalformedRecord, key)
		}
		rec.Batch = &b
		return rec, nil
	}

	var ind IndividualRecord
	if err := json.Unmarshal(data, &ind); err != nil {
		return Record{}, fmt.Errorf("%w: %s: %w", ErrMalformedRecord, key, err)
	}
	if !ind.Category.Valid() || ind.ID == "" || len(ind.Data) == 0 {
		return Record{}, fmt.Errorf("%w: %s: missing category, id or data", ErrMalformedRecord, key)
	}
	rec.Individual = &ind
	return rec, nil
}

// Delete removes the record stored under key. Deleting a missing record is
// not an error.
func (s *RecordStore) Delete(key string) error {
	err := s.fs.Remove(filepath.Join(s.dir, key))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete record %s: %w", key, err)
	}
	return nil
}

// ListAll returns the keys of every stored record, sorted.
func (s *RecordStore) ListAll() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, fmt.Errorf("list records: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), recordExt) {
			continue
		}
		keys = append(keys, e.Name())
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear deletes every record, and any leftover temp file, returning how
// many records were removed.
func (s *RecordStore) Clear() (int, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return 0, fmt.Errorf("list records: %w", err)
	}
	n := 0
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			continue
		}
		isRecord := strings.HasSuffix(name, recordExt)
		if !isRecord && !strings.HasSuffix(name, tempExt) {
			continue
		}
		if err := s.Delete(name); err != nil {
			return n, err
		}
		if isRecord {
			n++
		}
	}
	return n, nil
}
