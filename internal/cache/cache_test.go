package cache

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKey(t *testing.T) {
	assert.Equal(t, "github.cli.cli.etag", Key("github", "cli/cli", "etag"))
	assert.Equal(t, "url.https_.example.com.a_b.json", Key("url", "https://example.com/a b", "json"))
}

func TestStoreCreatesDirOnDemand(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "nested", "HelperCache"))

	_, ok := s.Read("github.o.r.ver")
	assert.False(t, ok)

	require.NoError(t, s.Write("github.o.r.ver", "1.2.3"))
	got, ok := s.Read("github.o.r.ver")
	require.True(t, ok)
	assert.Equal(t, "1.2.3", got)

	require.NoError(t, s.Write("github.o.r.ver", "1.2.4"))
	got, _ = s.Read("github.o.r.ver")
	assert.Equal(t, "1.2.4", got)

	require.NoError(t, s.Remove("github.o.r.ver"))
	require.NoError(t, s.Remove("github.o.r.ver"))
	_, ok = s.Read("github.o.r.ver")
	assert.False(t, ok)
}
