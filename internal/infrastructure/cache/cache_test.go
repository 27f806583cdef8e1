package cache

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/shared/paths"
	"github.com/GriffinCanCode/vatomsync/internal/shared/payload"
)

func sampleRecords() []Record {
	return []Record{
		{ID: "v1", Type: "vatom", Data: payload.MustFromAny(map[string]any{"id": "v1", "sync": 3.0})},
		{ID: "f1", Type: "face", Data: payload.MustFromAny(map[string]any{"template": "t"})},
	}
}

func TestRecordTriple(t *testing.T) {
	data, err := sonic.Marshal(Record{ID: "v1", Type: "vatom", Data: payload.MustFromAny(map[string]any{"a": 1.0})})
	require.NoError(t, err)
	assert.JSONEq(t, `["v1","vatom",{"a":1}]`, string(data))

	var r Record
	require.NoError(t, sonic.Unmarshal(data, &r))
	assert.Equal(t, "v1", r.ID)
	assert.Equal(t, "vatom", r.Type)
	assert.Equal(t, int64(1), r.Data.Int("a"))

	assert.Error(t, sonic.Unmarshal([]byte(`{"id":"v1"}`), &r))
	assert.Error(t, sonic.Unmarshal([]byte(`["", "vatom", {}]`), &r))
}

func TestFileStore(t *testing.T) {
	for _, compression := range []string{CompressionNone, CompressionZstd} {
		t.Run(compression, func(t *testing.T) {
			dir := t.TempDir()
			s, err := NewFileStore(config.CacheConfig{Dir: dir, Compression: compression})
			require.NoError(t, err)

			_, err = s.Read("inventory")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, s.Write("inventory", sampleRecords()))
			records, err := s.Read("inventory")
			require.NoError(t, err)
			require.Len(t, records, 2)
			assert.Equal(t, "v1", records[0].ID)
			assert.True(t, records[0].Data.Equal(sampleRecords()[0].Data))

			stats, err := s.Stats()
			require.NoError(t, err)
			assert.Equal(t, 1, stats.Snapshots)
			assert.Equal(t, 2, stats.Records)
			assert.Positive(t, stats.Bytes)

			require.NoError(t, s.Delete("inventory"))
			_, err = s.Read("inventory")
			assert.ErrorIs(t, err, ErrNotFound)
			require.NoError(t, s.Delete("inventory"))
		})
	}
}

func TestFileStoreCompressionSwitch(t *testing.T) {
	dir := t.TempDir()
	plain, err := NewFileStore(config.CacheConfig{Dir: dir, Compression: CompressionNone})
	require.NoError(t, err)
	require.NoError(t, plain.Write("vatoms:a", sampleRecords()))

	zst, err := NewFileStore(config.CacheConfig{Dir: dir, Compression: CompressionZstd})
	require.NoError(t, err)

	records, err := zst.Read("vatoms:a")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, zst.Write("vatoms:a", records[:1]))
	_, err = os.Stat(paths.RegionFile(dir, "vatoms:a", paths.ExtJSON))
	assert.True(t, os.IsNotExist(err))

	keys, err := zst.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{paths.FileName("vatoms:a")}, keys)
}

func TestFileStoreClear(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(config.CacheConfig{Dir: dir})
	require.NoError(t, err)

	require.NoError(t, s.Write("inventory", sampleRecords()))
	require.NoError(t, s.Write("children:p1", sampleRecords()))
	require.NoError(t, s.Write("children:p2", sampleRecords()))

	removed, err := s.Clear("children_*")
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	keys, err := s.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{paths.FileName("inventory")}, keys)

	_, err = s.Clear("[")
	assert.Error(t, err)
}

func TestFileStoreLongAndCollidingKeys(t *testing.T) {
	s, err := NewFileStore(config.CacheConfig{Dir: t.TempDir()})
	require.NoError(t, err)

	long := "ids:" + strings.Repeat("9f6d6a2e-6c1b-4b8e-9f3a-4e1c2b7d8a90,", 6)
	require.NoError(t, s.Write(long, sampleRecords()))
	records, err := s.Read(long)
	require.NoError(t, err)
	assert.Len(t, records, 2)

	require.NoError(t, s.Write("ids:a,b", sampleRecords()))
	require.NoError(t, s.Write("ids:a_b", sampleRecords()[:1]))
	records, err = s.Read("ids:a,b")
	require.NoError(t, err)
	assert.Len(t, records, 2)
}

func TestFileStoreRejectsUnknownCompression(t *testing.T) {
	_, err := NewFileStore(config.CacheConfig{Dir: t.TempDir(), Compression: "lz4"})
	assert.Error(t, err)
}

func TestFileStoreCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(config.CacheConfig{Dir: dir})
	require.NoError(t, err)

	path := paths.RegionFile(dir, "inventory", paths.ExtJSON)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("{broken"), 0o644))

	_, err = s.Read("inventory")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore(t *testing.T) {
	m := NewMemoryStore()

	_, err := m.Read("k")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, m.Write("k", sampleRecords()))
	require.NoError(t, m.Write("other", nil))
	assert.Equal(t, 2, m.Writes())

	records, err := m.Read("k")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	removed, err := m.Clear("k")
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	keys, err := m.Keys()
	require.NoError(t, err)
	assert.Equal(t, []string{"other"}, keys)

	require.NoError(t, m.Delete("other"))
	_, err = m.Read("other")
	assert.ErrorIs(t, err, ErrNotFound)
}
