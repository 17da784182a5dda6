package cmd

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/partdl/internal/config"
)

func TestMergeFlagsPrefersExplicitFlags(t *testing.T) {
	flagCfg := config.Default()
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.IntVar(&flagCfg.Workers, "workers", flagCfg.Workers, "")
	flags.DurationVar(&flagCfg.IdleTimeout, "idle-timeout", flagCfg.IdleTimeout, "")
	flags.StringArrayVar(&flagCfg.Headers, "header", nil, "")
	require.NoError(t, flags.Parse([]string{"--workers", "3", "--header", "X-A: 1"}))

	fileCfg := config.Default()
	fileCfg.Workers = 16
	fileCfg.IdleTimeout = 5 * time.Minute
	fileCfg.S3Profile = "archive"

	merged := mergeFlags(flags, fileCfg, flagCfg)
	assert.Equal(t, 3, merged.Workers)
	assert.Equal(t, []string{"X-A: 1"}, merged.Headers)
	assert.Equal(t, 5*time.Minute, merged.IdleTimeout, "unset flag must not override the file")
	assert.Equal(t, "archive", merged.S3Profile)
}

func TestTasksForURLs(t *testing.T) {
	dir := t.TempDir()

	single, err := tasksForURLs([]string{"https://example.com/a.iso"}, filepath.Join(dir, "disk.iso"))
	require.NoError(t, err)
	require.Len(t, single, 1)
	assert.Equal(t, filepath.Join(dir, "disk.iso"), single[0].OutputPath)

	intoDir, err := tasksForURLs([]string{"https://example.com/a.iso"}, dir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "a.iso"), intoDir[0].OutputPath)

	several, err := tasksForURLs([]string{"https://example.com/a.iso", "ep__https://example.com/get?id=2"}, filepath.Join(dir, "new")+"/")
	require.NoError(t, err)
	require.Len(t, several, 2)
	assert.Equal(t, filepath.Join(dir, "new", "a.iso"), several[0].OutputPath)
	assert.True(t, several[1].UseServerName)
	assert.Equal(t, "https://example.com/get?id=2", several[1].URL)

	named, err := tasksForURLs([]string{"ep__https://example.com/get?id=3"}, filepath.Join(dir, "fallback.bin"))
	require.NoError(t, err)
	require.Len(t, named, 1)
	assert.Equal(t, "https://example.com/get?id=3", named[0].URL)
	assert.Equal(t, filepath.Join(dir, "fallback.bin"), named[0].OutputPath)
	assert.True(t, named[0].UseServerName)

	inferred, err := tasksForURLs([]string{"https://example.com/files/b.zip"}, "")
	require.NoError(t, err)
	assert.Equal(t, "b.zip", inferred[0].OutputPath)

	_, err = tasksForURLs([]string{"http://bad host/%zz"}, "")
	assert.Error(t, err)
}
