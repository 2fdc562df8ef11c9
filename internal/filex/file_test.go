package filex

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func chdir(t *testing.T, dir string) func() {
	t.Helper()
	old, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	return func() { _ = os.Chdir(old) }
}

func TestEnsureDir_RelativeResolvesAgainstCWD(t *testing.T) {
	tmp := t.TempDir()
	defer chdir(t, tmp)()

	got, err := EnsureDir(".gradekeeper")
	require.NoError(t, err)

	want := filepath.Join(tmp, ".gradekeeper")
	require.Equal(t, want, got)

	fi, err := os.Stat(want)
	require.NoError(t, err)
	require.True(t, fi.IsDir(), "should create a directory")

	if runtime.GOOS != "windows" {
		perm := fi.Mode().Perm()
		require.Equal(t, os.FileMode(0o700), perm&0o700)
	}
}

func TestEnsureDir_AbsoluteKeptAsIs(t *testing.T) {
	want := filepath.Join(t.TempDir(), "a", "b")

	got, err := EnsureDir(want)
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestEnsureDir_Idempotent(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	first, err := EnsureDir(dir)
	require.NoError(t, err)

	second, err := EnsureDir(dir)
	require.NoError(t, err)

	require.Equal(t, first, second)
	fi, err := os.Stat(second)
	require.NoError(t, err)
	require.True(t, fi.IsDir())
}

func TestEnsureDir_FailsIfFileWithSameNameExists(t *testing.T) {
	tmp := t.TempDir()
	p := filepath.Join(tmp, "data")
	require.NoError(t, os.WriteFile(p, []byte("x"), 0o660))

	_, err := EnsureDir(p)
	require.Error(t, err, "should fail when a file exists with the same name")
}

func TestEnsureSubDirs(t *testing.T) {
	root := filepath.Join(t.TempDir(), "root")

	got, err := EnsureSubDirs(root, "overflow", "exports")
	require.NoError(t, err)
	require.Equal(t, []string{filepath.Join(root, "overflow"), filepath.Join(root, "exports")}, got)
	for _, p := range got {
		fi, err := os.Stat(p)
		require.NoError(t, err)
		require.True(t, fi.IsDir())
	}
}
