package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Snapshot file extensions
const (
	ExtJSON = ".json"
	ExtZstd = ".json.zst"
)

// RegionsDir is the subdirectory holding region snapshots
const RegionsDir = "regions"

// maxPrefix bounds the readable part of a snapshot file name
const maxPrefix = 64

// DefaultCacheDir returns the per-user cache directory for the engine
func DefaultCacheDir() string {
	if dir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(dir, "vatomsync")
	}
	return filepath.Join(os.TempDir(), "vatomsync")
}

// SanitizeKey maps a state key onto a portable file name. Everything outside
// [A-Za-z0-9_-] becomes an underscore.
func SanitizeKey(key string) string {
	var b strings.Builder
	b.Grow(len(key))
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}

// FileName maps a state key onto a snapshot file name without extension: a
// readable, truncated prefix plus a hash of the whole key. Distinct keys get
// distinct names however long they are.
func FileName(key string) string {
	prefix := SanitizeKey(key)
	if len(prefix) > maxPrefix {
		prefix = prefix[:maxPrefix]
	}
	return fmt.Sprintf("%s.%016x", prefix, xxhash.Sum64String(key))
}

// RegionFile returns the snapshot path for a state key
func RegionFile(dir, key, ext string) string {
	return filepath.Join(dir, RegionsDir, FileName(key)+ext)
}

// ValidateKey checks that a state key can be used to build a file name
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("state key cannot be empty")
	}
	return nil
}
