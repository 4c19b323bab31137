package prefs

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/relex/gotils/logger"
	"github.com/stretchr/testify/assert"
)

func TestStorePersisted(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")

	s, err := Open(logger.Root(), path)
	assert.NoError(t, err)
	assert.True(t, s.GetBool("enabled", true))
	assert.False(t, s.GetBool("enabled", false))

	assert.NoError(t, s.PutBool("enabled", false))
	assert.NoError(t, s.PutBool("other", true))
	assert.NoError(t, s.PutString("id", "abc"))
	assert.False(t, s.GetBool("enabled", true))

	reopened, rerr := Open(logger.Root(), path)
	assert.NoError(t, rerr)
	assert.False(t, reopened.GetBool("enabled", true))
	assert.True(t, reopened.GetBool("other", false))
	assert.Equal(t, "abc", reopened.GetString("id", ""))
	assert.Equal(t, "def", reopened.GetString("other", "def"))

	assert.NoError(t, reopened.Remove("enabled"))
	assert.NoError(t, reopened.Remove("missing"))
	again, _ := Open(logger.Root(), path)
	assert.True(t, again.GetBool("enabled", true))
	assert.True(t, again.GetBool("other", false))

	entries, _ := os.ReadDir(filepath.Dir(path))
	assert.Len(t, entries, 1) // no leftover temp file
}

func TestStoreInMemory(t *testing.T) {
	s, err := Open(logger.Root(), "")
	assert.NoError(t, err)
	assert.NoError(t, s.PutBool("enabled", false))
	assert.False(t, s.GetBool("enabled", true))
	assert.NoError(t, s.Remove("enabled"))
	assert.True(t, s.GetBool("enabled", true))
}

func TestStoreBadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prefs.yml")
	assert.NoError(t, os.WriteFile(path, []byte("- not\n- a map\n"), 0o644))
	_, err := Open(logger.Root(), path)
	assert.Error(t, err)

	assert.NoError(t, os.WriteFile(path, []byte("enabled: yes-please\n"), 0o644))
	s, serr := Open(logger.Root(), path)
	assert.NoError(t, serr)
	assert.True(t, s.GetBool("enabled", true))
}
