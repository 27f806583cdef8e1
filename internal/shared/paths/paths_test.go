package paths

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKey(t *testing.T) {
	tests := []struct {
		key      string
		expected string
	}{
		{"inventory:user-1", "inventory_user-1"},
		{"geopos:1.5,2.5/3,4", "geopos_1_5_2_5_3_4"},
		{"plain_key", "plain_key"},
		{"../escape", "___escape"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.expected, SanitizeKey(tt.key))
	}
}

func TestRegionFile(t *testing.T) {
	got := RegionFile("/cache", "inventory:u1", ExtZstd)
	assert.Equal(t, filepath.Join("/cache", "regions"), filepath.Dir(got))
	assert.True(t, strings.HasPrefix(filepath.Base(got), "inventory_u1."))
	assert.True(t, strings.HasSuffix(got, ExtZstd))
	assert.Equal(t, got, RegionFile("/cache", "inventory:u1", ExtZstd))
}

func TestFileNameKeepsKeysApart(t *testing.T) {
	// both sanitize to ids_a_b
	assert.NotEqual(t, FileName("ids:a,b"), FileName("ids:a_b"))
}

func TestFileNameBoundsLongKeys(t *testing.T) {
	ids := make([]string, 20)
	for i := range ids {
		ids[i] = "9f6d6a2e-6c1b-4b8e-9f3a-4e1c2b7d8a9" + string(rune('a'+i))
	}
	key := "ids:" + strings.Join(ids, ",")

	name := FileName(key)
	assert.LessOrEqual(t, len(name), maxPrefix+17)
	assert.NoError(t, ValidateKey(key))
	assert.NotEqual(t, name, FileName(key[:len(key)-1]))
}

func TestValidateKey(t *testing.T) {
	assert.Error(t, ValidateKey(""))
	assert.NoError(t, ValidateKey(strings.Repeat("k", 500)))
	assert.NoError(t, ValidateKey("ids:a,b"))
}
