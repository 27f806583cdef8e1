package cache

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/zstd"

	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/config"
	"github.com/GriffinCanCode/vatomsync/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/vatomsync/internal/shared/paths"
)

// Compression modes
const (
	CompressionNone = "none"
	CompressionZstd = "zstd"
)

// FileStore keeps one snapshot file per state key under <dir>/regions
type FileStore struct {
	dir      string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
	metrics  *monitoring.Metrics
	mu       sync.Mutex
}

// FileOption customizes a FileStore
type FileOption func(*FileStore)

// WithMetrics records snapshot write sizes and failures
func WithMetrics(m *monitoring.Metrics) FileOption {
	return func(s *FileStore) { s.metrics = m }
}

// NewFileStore creates a store rooted at cfg.Dir (or the user cache dir)
func NewFileStore(cfg config.CacheConfig, opts ...FileOption) (*FileStore, error) {
	dir := cfg.Dir
	if dir == "" {
		dir = paths.DefaultCacheDir()
	}

	s := &FileStore{dir: dir}
	switch strings.ToLower(cfg.Compression) {
	case "", CompressionNone:
	case CompressionZstd:
		s.compress = true
	default:
		return nil, fmt.Errorf("unsupported cache compression %q", cfg.Compression)
	}

	// Both codecs handle the other format when reading, so a compression
	// change keeps existing snapshots readable.
	var err error
	if s.enc, err = zstd.NewWriter(nil); err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	if s.dec, err = zstd.NewReader(nil); err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}

	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the store root
func (s *FileStore) Dir() string { return s.dir }

// Read loads the snapshot for key
func (s *FileStore) Read(key string) ([]Record, error) {
	if err := paths.ValidateKey(key); err != nil {
		return nil, err
	}

	for _, ext := range s.extensions() {
		data, err := os.ReadFile(paths.RegionFile(s.dir, key, ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read snapshot: %w", err)
		}
		return s.decode(data, ext)
	}
	return nil, ErrNotFound
}

// Write replaces the snapshot for key
func (s *FileStore) Write(key string, records []Record) (err error) {
	if err := paths.ValidateKey(key); err != nil {
		return err
	}

	data, err := sonic.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode snapshot: %w", err)
	}
	ext := paths.ExtJSON
	if s.compress {
		data = s.enc.EncodeAll(data, nil)
		ext = paths.ExtZstd
	}
	defer func() { s.metrics.RecordCacheWrite(len(data), err) }()

	s.mu.Lock()
	defer s.mu.Unlock()

	target := paths.RegionFile(s.dir, key, ext)
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create cache dir: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(target), ".snapshot-*")
	if err != nil {
		return fmt.Errorf("failed to create snapshot: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace snapshot: %w", err)
	}

	// Drop a stale copy in the other format
	for _, other := range s.extensions()[1:] {
		_ = os.Remove(paths.RegionFile(s.dir, key, other))
	}
	return nil
}

// Delete removes the snapshot for key. Missing snapshots are not an error.
func (s *FileStore) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, ext := range s.extensions() {
		err := os.Remove(paths.RegionFile(s.dir, key, ext))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to delete snapshot: %w", err)
		}
	}
	return nil
}

// Keys lists the snapshot file names (see paths.FileName) without extension
func (s *FileStore) Keys() ([]string, error) {
	files, err := s.files()
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(files))
	seen := make(map[string]bool, len(files))
	for _, f := range files {
		k := trimExt(f)
		if !seen[k] {
			seen[k] = true
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// Clear removes every snapshot whose file name matches the glob pattern.
// An empty pattern matches everything.
func (s *FileStore) Clear(pattern string) (int, error) {
	if pattern == "" {
		pattern = "*"
	}
	if !doublestar.ValidatePattern(pattern) {
		return 0, fmt.Errorf("invalid pattern %q", pattern)
	}

	files, err := s.files()
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for _, f := range files {
		if ok, _ := doublestar.Match(pattern, trimExt(f)); !ok {
			continue
		}
		if err := os.Remove(filepath.Join(s.dir, paths.RegionsDir, f)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, fmt.Errorf("failed to delete snapshot: %w", err)
		}
		removed++
	}
	return removed, nil
}

// Stats reports snapshot count and size on disk
func (s *FileStore) Stats() (Stats, error) {
	files, err := s.files()
	if err != nil {
		return Stats{}, err
	}

	var stats Stats
	for _, f := range files {
		full := filepath.Join(s.dir, paths.RegionsDir, f)
		info, err := os.Stat(full)
		if err != nil {
			continue
		}
		data, err := os.ReadFile(full)
		if err != nil {
			continue
		}
		records, err := s.decode(data, ext(f))
		if err != nil {
			continue
		}
		stats.Snapshots++
		stats.Records += len(records)
		stats.Bytes += info.Size()
	}
	return stats, nil
}

func (s *FileStore) files() ([]string, error) {
	root := filepath.Join(s.dir, paths.RegionsDir)
	if _, err := os.Stat(root); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	files, err := doublestar.Glob(os.DirFS(root), "*{"+paths.ExtJSON+","+paths.ExtZstd+"}")
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return files, nil
}

// extensions returns the preferred extension first
func (s *FileStore) extensions() []string {
	if s.compress {
		return []string{paths.ExtZstd, paths.ExtJSON}
	}
	return []string{paths.ExtJSON, paths.ExtZstd}
}

func (s *FileStore) decode(data []byte, ext string) ([]Record, error) {
	if ext == paths.ExtZstd {
		raw, err := s.dec.DecodeAll(data, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to decompress snapshot: %w", err)
		}
		data = raw
	}

	var records []Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}
	return records, nil
}

func ext(name string) string {
	if strings.HasSuffix(name, paths.ExtZstd) {
		return paths.ExtZstd
	}
	return paths.ExtJSON
}

func trimExt(name string) string {
	return strings.TrimSuffix(name, ext(name))
}
