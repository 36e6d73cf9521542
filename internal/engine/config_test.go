package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/kobzar/internal/ident"
	"github.com/roach88/kobzar/internal/thread"
)

func TestParseConfig_Empty(t *testing.T) {
	cfg, err := ParseConfig(nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultMaxThreads, cfg.MaxThreadsPerOwner)
	assert.Equal(t, ident.MustPath("root"), cfg.root)
	assert.True(t, cfg.creationAllowed(ident.MustPath("anything/at/all")))
	assert.Equal(t, DefaultUnit, cfg.unitOf(ident.MustPath("svc/a")))
}

func TestParseConfig_Full(t *testing.T) {
	data := []byte(`
root_path: boot/init
max_threads_per_owner: 4
deny_create:
  - sys/kernel
performance_grants:
  - media
units:
  gpu:
    - media/render
  cpu:
    - media
    - svc
`)
	cfg, err := ParseConfig(data)
	require.NoError(t, err)

	assert.Equal(t, 4, cfg.MaxThreadsPerOwner)
	assert.Equal(t, ident.MustPath("boot/init"), cfg.root)

	assert.False(t, cfg.creationAllowed(ident.MustPath("sys/kernel/io")))
	assert.True(t, cfg.creationAllowed(ident.MustPath("sys/user")))

	assert.Equal(t, thread.Performance, cfg.mostSupported(ident.MustPath("media/player"), false))
	assert.Equal(t, thread.Normal, cfg.mostSupported(ident.MustPath("svc/a"), false))
	assert.Equal(t, thread.Performance, cfg.mostSupported(ident.MustPath("svc/a"), true))

	// Longest prefix wins.
	assert.Equal(t, "gpu", cfg.unitOf(ident.MustPath("media/render/frame")))
	assert.Equal(t, "cpu", cfg.unitOf(ident.MustPath("media/audio")))
	assert.Equal(t, "cpu", cfg.unitOf(ident.MustPath("svc/a")))
	assert.Equal(t, DefaultUnit, cfg.unitOf(ident.MustPath("other")))
}

func TestParseConfig_UnknownKey(t *testing.T) {
	_, err := ParseConfig([]byte("max_threads: 3\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestParseConfig_BadPrefix(t *testing.T) {
	_, err := ParseConfig([]byte("deny_create:\n  - \"a//b\"\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deny_create")
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kobzar.yaml")
	require.NoError(t, os.WriteFile(path, []byte("max_threads_per_owner: 2\n"), 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 2, cfg.MaxThreadsPerOwner)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
