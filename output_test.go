package rescomp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/rescomp/symtab"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderGuard(t *testing.T) {
	assert.Equal(t, "RES_RESOURCES", headerGuard("res/sprites.res", "out/resources.s"))
	assert.Equal(t, "RES_GFX", headerGuard("gfx.res", "gfx.s"))
	assert.Equal(t, "LEVELS_LEVEL1", headerGuard(filepath.Join("src", "levels", "level1.res"), "level1.s"))
}

func TestDependencies(t *testing.T) {
	o := &Output{Files: []string{"res/gfx.res", "res/my sprite.png"}}
	assert.Equal(t, "out/gfx.o: res/gfx.res \\\n res/my\\ sprite.png\n", o.dependencies("out/gfx.o"))
}

func TestHeader(t *testing.T) {
	o := &Output{Header: "extern const Image img;\n"}
	assert.Equal(t, "#include <genesis.h>\n\n#ifndef _RES_GFX_H_\n#define _RES_GFX_H_\n\nextern const Image img;\n\n#endif // _RES_GFX_H_\n", o.header("RES_GFX"))
}

func TestCompile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "d.bin", []byte{1, 2, 3, 4})
	in := writeFile(t, dir, "gfx.res", []byte(`BIN data "d.bin"`))

	tables := []struct {
		name  string
		opts  Options
		files []string
	}{
		{"default", Options{}, []string{"gfx.s", "gfx.bin", "gfx.sym", "gfx.h"}},
		{"deps", Options{DepTarget: "gfx.o", NoHeader: true}, []string{"gfx.s", "gfx.bin", "gfx.sym", "gfx.d"}},
	}

	for _, table := range tables {
		t.Run(table.name, func(t *testing.T) {
			out := filepath.Join(t.TempDir(), "gfx.s")

			c, _ := newTestCompiler()
			require.NoError(t, c.Compile(context.Background(), in, out, table.opts))

			entries, err := os.ReadDir(filepath.Dir(out))
			require.NoError(t, err)
			names := make([]string, 0, len(entries))
			for _, e := range entries {
				names = append(names, e.Name())
			}
			assert.ElementsMatch(t, table.files, names)

			b, err := os.ReadFile(filepath.Join(filepath.Dir(out), "gfx.sym"))
			require.NoError(t, err)
			bin, err := os.ReadFile(filepath.Join(filepath.Dir(out), "gfx.bin"))
			require.NoError(t, err)

			st := symtab.New()
			require.NoError(t, st.UnmarshalBinary(b))
			assert.True(t, st.Verify(bin))
			e, ok := st.Lookup("data")
			require.True(t, ok)
			assert.Equal(t, uint32(4), e.Size)
		})
	}
}
