package writeq

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMemRecords(t *testing.T) (*RecordStore, afero.Fs) {
	t.Helper()
	fs := afero.NewMemMapFs()
	rs, err := NewRecordStore(fs, "data/queue")
	require.NoError(t, err)
	return rs, fs
}

func TestRecordStore_RoundTrip(t *testing.T) {
	t.Parallel()
	rs, _ := newMemRecords(t)

	ind := IndividualRecord{
		Category:  CategoryOther,
		Label:     "rename",
		Data:      json.RawMessage(`{"kind":"rename"}`),
		Timestamp: 1_700_000_000_000,
		ID:        "abc",
	}
	batch := BatchRecord{
		Category:  CategoryDownload,
		Items:     []json.RawMessage{json.RawMessage(`{"chapterId":1}`), json.RawMessage(`{"chapterId":2}`)},
		Timestamp: 1_700_000_000_500,
		BatchID:   "download_1700000000500_deadbeef",
	}
	require.NoError(t, rs.WriteIndividual(ind))
	require.NoError(t, rs.WriteBatch(batch))

	keys, err := rs.ListAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"abc.json", "batch_download_1700000000500_deadbeef.json"}, keys)

	got, err := rs.Read("abc.json")
	require.NoError(t, err)
	require.NotNil(t, got.Individual)
	assert.Nil(t, got.Batch)
	assert.Equal(t, ind, *got.Individual)
	assert.Equal(t, int64(1_700_000_000_000), got.Time().UnixMilli())

	got, err = rs.Read(batch.Key())
	require.NoError(t, err)
	require.NotNil(t, got.Batch)
	assert.Equal(t, batch.BatchID, got.Batch.BatchID)
	assert.Len(t, got.Batch.Items, 2)
}

func TestRecordStore_Delete(t *testing.T) {
	t.Parallel()
	rs, _ := newMemRecords(t)
	require.NoError(t, rs.WriteIndividual(IndividualRecord{
		Category: CategoryOther, Data: json.RawMessage(`{}`), ID: "x",
	}))

	require.NoError(t, rs.Delete("x.json"))
	require.NoError(t, rs.Delete("x.json"), "deleting twice is fine")

	keys, err := rs.ListAll()
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestRecordStore_Malformed(t *testing.T) {
	t.Parallel()
	rs, fs := newMemRecords(t)

	cases := map[string]string{
		"garbage.json":         `{not json`,
		"nocategory.json":      `{"data":{},"id":"nocategory","timestamp":1}`,
		"noid.json":            `{"category":"OTHER","data":{},"timestamp":1}`,
		"batch_nobatchid.json": `{"category":"DOWNLOAD","items":[],"timestamp":1}`,
	}
	for name, body := range cases {
		require.NoError(t, afero.WriteFile(fs, filepath.Join("data/queue", name), []byte(body), 0o644))
	}
	for name := range cases {
		_, err := rs.Read(name)
		assert.ErrorIs(t, err, ErrMalformedRecord, name)
	}
}

func TestRecordStore_ClearAndTempFiles(t *testing.T) {
	t.Parallel()
	rs, fs := newMemRecords(t)
	require.NoError(t, rs.WriteIndividual(IndividualRecord{Category: CategoryOther, Data: json.RawMessage(`{}`), ID: "a"}))
	require.NoError(t, rs.WriteIndividual(IndividualRecord{Category: CategoryOther, Data: json.RawMessage(`{}`), ID: "b"}))
	require.NoError(t, afero.WriteFile(fs, "data/queue/c.json.tmp", []byte("partial"), 0o644))

	keys, err := rs.ListAll()
	require.NoError(t, err)
	assert.Len(t, keys, 2, "temp files are not records")

	n, err := rs.Clear()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	entries, err := afero.ReadDir(fs, "data/queue")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
