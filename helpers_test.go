package rescomp

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/bodgit/rescomp/pack"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"
)

var testPalette = func() color.Palette {
	p := color.Palette{color.RGBA{}}
	for i := 1; i < 16; i++ {
		p = append(p, color.RGBA{R: uint8(i * 16), G: uint8(255 - i*16), B: 0x80, A: 0xff})
	}
	return p
}()

// writePNG writes a w by h paletted image using the color index returned
// by at for each pixel
func writePNG(t *testing.T, dir, name string, w, h int, at func(x, y int) uint8) string {
	t.Helper()

	m := image.NewPaletted(image.Rect(0, 0, w, h), testPalette)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			m.SetColorIndex(x, y, at(x, y))
		}
	}

	file := filepath.Join(dir, name)
	f, err := os.Create(file)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, m))

	return file
}

func writeFile(t *testing.T, dir, name string, data []byte) string {
	t.Helper()

	file := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(file, data, 0o644))
	return file
}

func solid(c uint8) func(int, int) uint8 {
	return func(int, int) uint8 { return c }
}

// checker gives every tile of the image distinct content
func checker(x, y int) uint8 {
	return uint8((x/8+y/8+(x+y)%3)%15 + 1)
}

func newTestCompiler() (*Compiler, *test.Hook) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return New(DefaultConfig(), pack.Default(), logger), hook
}

func hasMessage(hook *test.Hook, msg string) bool {
	for _, e := range hook.AllEntries() {
		if e.Message == msg {
			return true
		}
	}
	return false
}
