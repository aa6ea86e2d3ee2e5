package cache

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")

	c, err := New(dir, 24, true)
	require.NoError(t, err)
	assert.True(t, c.Enabled())
	assert.DirExists(t, dir)

	disabled, err := New("", 0, false)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
}

func TestSetAndGet(t *testing.T) {
	c, err := New(t.TempDir(), 24, true)
	require.NoError(t, err)

	key := Key("pkg/app.py", "noqa=true")
	hash := HashBytes([]byte("import os\n"))
	require.NoError(t, c.Set(key, hash, []byte(`{"path":"pkg/app.py"}`)))

	data, ok := c.Get(key, hash)
	require.True(t, ok)
	assert.JSONEq(t, `{"path":"pkg/app.py"}`, string(data))

	_, ok = c.Get(key, HashBytes([]byte("import sys\n")))
	assert.False(t, ok, "changed content must miss")
}

func TestGetExpired(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 1, true)
	require.NoError(t, err)

	key := Key("a.py", "")
	raw, err := json.Marshal(Entry{Hash: "h", Timestamp: time.Now().Add(-2 * time.Hour), Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), raw, 0o600))

	_, ok := c.Get(key, "h")
	assert.False(t, ok)
	assert.NoFileExists(t, filepath.Join(dir, key+".json"))
}

func TestZeroTTLNeverExpires(t *testing.T) {
	dir := t.TempDir()
	c, err := New(dir, 0, true)
	require.NoError(t, err)

	key := Key("a.py", "")
	raw, err := json.Marshal(Entry{Hash: "h", Timestamp: time.Now().Add(-1000 * time.Hour), Data: []byte("x")})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, key+".json"), raw, 0o600))

	data, ok := c.Get(key, "h")
	assert.True(t, ok)
	assert.Equal(t, []byte("x"), data)
}

func TestDisabledCacheIsNoop(t *testing.T) {
	c, err := New("", 0, false)
	require.NoError(t, err)

	require.NoError(t, c.Set("k", "h", []byte("x")))
	_, ok := c.Get("k", "h")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate("k"))
	assert.NoError(t, c.Clear())
}

func TestInvalidateAndClear(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "cache")
	c, err := New(dir, 24, true)
	require.NoError(t, err)

	require.NoError(t, c.Set("k", "h", []byte("x")))
	require.NoError(t, c.Invalidate("k"))
	_, ok := c.Get("k", "h")
	assert.False(t, ok)
	assert.NoError(t, c.Invalidate("k"), "missing entry")

	require.NoError(t, c.Set("k2", "h", []byte("y")))
	require.NoError(t, c.Clear())
	assert.NoDirExists(t, dir)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key("a.py", "x"), Key("a.py", "x"))
	assert.NotEqual(t, Key("a.py", "x"), Key("a.py", "y"))
	assert.NotEqual(t, Key("a.py", "x"), Key("b.py", "x"))
}

func TestHashBytes(t *testing.T) {
	h := HashBytes([]byte("hello"))
	assert.Len(t, h, 64)
	assert.Equal(t, h, HashBytes([]byte("hello")))
	assert.NotEqual(t, h, HashBytes([]byte("world")))
}
