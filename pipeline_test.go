package rescomp

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuild(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"a", "b", ".hidden"} {
		d := filepath.Join(dir, sub)
		require.NoError(t, os.Mkdir(d, 0o755))
		writeFile(t, d, "d.bin", []byte{1, 2})
		writeFile(t, d, "res.res", []byte(`BIN data "d.bin"`))
	}
	writeFile(t, dir, "notes.txt", []byte("not a resource file"))

	c, _ := newTestCompiler()
	require.NoError(t, c.Build(context.Background(), dir))

	for _, sub := range []string{"a", "b"} {
		for _, ext := range []string{".s", ".h", ".bin", ".sym"} {
			assert.FileExists(t, filepath.Join(dir, sub, "res"+ext))
		}
	}
	assert.NoFileExists(t, filepath.Join(dir, ".hidden", "res.s"))
}

func TestBuildError(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "good.res", []byte(""))
	writeFile(t, dir, "bad.res", []byte(`FOO bar`))

	c, _ := newTestCompiler()
	err := c.Build(context.Background(), dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errUnknownType))
}
