package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"runcount/common"
	"runcount/config"
	"runcount/internal/fixture"
)

func withMode(t *testing.T, mode Mode, value uint64) {
	t.Helper()
	saved := *opts
	opts.Mode = mode
	opts.Value = value
	opts.Runtime = config.Default()
	opts.MaxWorkers = 4
	t.Cleanup(func() {
		*opts = saved
	})
}

func writeImage(t *testing.T, dir, name string, counter uint64) string {
	t.Helper()
	built := fixture.Build(fixture.Options{Resources: fixture.DefaultResources(counter)})
	return fixture.WriteFile(t, dir, name, built.Data)
}

func TestProcessFileShow(t *testing.T) {
	withMode(t, ModeShow, 0)
	path := writeImage(t, t.TempDir(), "app.exe", 12)

	result := processFile(path)
	require.NoError(t, result.Error)
	require.False(t, result.Result.Applied)
	require.Equal(t, uint64(12), result.Result.Value)
	require.Equal(t, "counter=12", result.Result.String())
}

func TestProcessFileSet(t *testing.T) {
	withMode(t, ModeSet, 40)
	path := writeImage(t, t.TempDir(), "app.exe", 3)

	result := processFile(path)
	require.NoError(t, result.Error)
	require.True(t, result.Result.Applied)
	require.Equal(t, uint64(40), result.Result.Value)

	again := processFile(path)
	require.NoError(t, again.Error)
	require.False(t, again.Result.Applied)

	opts.Mode = ModeShow
	shown := processFile(path)
	require.NoError(t, shown.Error)
	require.Equal(t, uint64(40), shown.Result.Value)
}

func TestProcessFileTree(t *testing.T) {
	withMode(t, ModeTree, 0)
	path := writeImage(t, t.TempDir(), "app.exe", 1)

	result := processFile(path)
	require.NoError(t, result.Error)
	require.Equal(t, uint64(1), result.Result.Value)
	// header, section line, three entries, reposition line, counter line
	require.Len(t, result.Details, 7)
	require.Equal(t, "PE32+ machine 0x8664, 2 sections", result.Details[0])

	icons := 0
	for _, line := range result.Details {
		if strings.HasSuffix(line, "<- icon") {
			icons++
			require.Contains(t, line, "type=3")
		}
	}
	require.Equal(t, 1, icons)
	require.Contains(t, result.Details[5], "reposition 8192")
}

func TestProcessFileVerify(t *testing.T) {
	withMode(t, ModeVerify, 0)
	path := writeImage(t, t.TempDir(), "app.exe", 1)

	result := processFile(path)
	require.NoError(t, result.Error)
	require.Contains(t, result.Result.String(), "(match)")
}

func TestProcessFileClean(t *testing.T) {
	withMode(t, ModeClean, 0)
	dir := t.TempDir()
	path := writeImage(t, dir, "app.exe", 1)

	result := processFile(path)
	require.NoError(t, result.Error)
	require.False(t, result.Result.Applied)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.tmp"), []byte("partial"), 0o600))
	result = processFile(path)
	require.NoError(t, result.Error)
	require.True(t, result.Result.Applied)
	require.NoFileExists(t, filepath.Join(dir, "app.tmp"))
}

func TestProcessFileErrors(t *testing.T) {
	withMode(t, ModeShow, 0)
	dir := t.TempDir()

	result := processFile(filepath.Join(dir, "absent.exe"))
	require.ErrorIs(t, result.Error, os.ErrNotExist)

	result = processFile(dir)
	require.Error(t, result.Error)

	noIcon := fixture.Build(fixture.Options{Resources: []fixture.Resource{
		{Type: fixture.RTManifest, ID: 1, Lang: 1033, Data: make([]byte, 32)},
	}})
	result = processFile(fixture.WriteFile(t, dir, "noicon.exe", noIcon.Data))
	require.ErrorIs(t, result.Error, common.ErrIconMissing)
}

func TestProcessFilesParallel(t *testing.T) {
	withMode(t, ModeSet, 7)
	dir := t.TempDir()

	var files []string
	for _, name := range []string{"a.exe", "b.exe", "c.exe", "d.exe", "e.exe"} {
		files = append(files, writeImage(t, dir, name, 0))
	}
	files = append(files, filepath.Join(dir, "missing.exe"))

	results := processFilesParallel(files)
	require.Len(t, results, len(files))
	for i, result := range results {
		require.Equal(t, files[i], result.Filename)
	}
	for _, result := range results[:5] {
		require.NoError(t, result.Error)
		require.True(t, result.Result.Applied)
	}
	require.Error(t, results[5].Error)

	sequential := processFilesSequential(files[:5])
	for _, result := range sequential {
		require.NoError(t, result.Error)
		require.False(t, result.Result.Applied)
	}
}

func TestUniqueFiles(t *testing.T) {
	got := uniqueFiles([]string{"a.exe", "./a.exe", "b.exe", "dir/../b.exe", "c.exe"})
	require.Equal(t, []string{"a.exe", "b.exe", "c.exe"}, got)
}

func TestModeString(t *testing.T) {
	require.Equal(t, "show", ModeShow.String())
	require.Equal(t, "clean", ModeClean.String())
	require.Equal(t, "unknown", Mode(99).String())
}

func TestApplyTempExt(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, applyTempExt(cfg, ".stage"))
	require.Equal(t, "stage", cfg.TempExt)

	require.NoError(t, applyTempExt(cfg, "next"))
	require.Equal(t, "next", cfg.TempExt)

	require.ErrorIs(t, applyTempExt(cfg, "a/b"), config.ErrInvalidTempExt)
}
