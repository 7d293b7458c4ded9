/*
Package rescomp is a resource compiler for Sega Mega Drive programs.

A resource file lists declarations such as

	PALETTE  pal_player  "sprites/player.png"
	SPRITE   spr_player  "sprites/player.png" 4 4 AUTO 5 BOX
	MAP      map_level1  "maps/level1.png" ts_level1 LZ4

Each declaration is built into resources, the resources are deduplicated by
content and then exported as GNU assembler source, a C header, the binary
section holding every payload and a symbol table locating each payload
within it.
*/
package rescomp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/resource"
	"github.com/bodgit/rescomp/symtab"
	"github.com/sirupsen/logrus"
)

// Compiler compiles resource files
type Compiler struct {
	config Config
	packer *pack.Packer
	logger *logrus.Logger
}

// New returns a Compiler using packer to compress bins
func New(config Config, packer *pack.Packer, logger *logrus.Logger) *Compiler {
	return &Compiler{
		config: config,
		packer: packer,
		logger: logger,
	}
}

// Output is the result of compiling one resource file
type Output struct {
	Asm     string
	Header  string
	Binary  []byte
	Symbols *symtab.Table
	Summary resource.Summary
	// Files lists every file read, the resource file first
	Files []string
}

// CompileFile compiles the resource file in
func (c *Compiler) CompileFile(ctx context.Context, in string) (*Output, error) {
	f, err := os.Open(in)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	decls, err := Parse(f, in)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}

	u := newUnit(ctx, c, filepath.Dir(in))
	u.files = append(u.files, in)
	for _, d := range decls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := u.execute(d); err != nil {
			return nil, err
		}
	}

	u.reg.ResolveObjects()

	w := resource.NewWriter(c.packer, c.logger.WithField("file", in))
	if err := u.reg.Export(w); err != nil {
		return nil, fmt.Errorf("%s: %w", in, err)
	}

	out := &Output{
		Asm:     w.Asm(),
		Header:  w.Header(),
		Binary:  w.Binary(),
		Symbols: w.Symbols(),
		Summary: u.reg.Summary(),
		Files:   u.files,
	}
	c.logSummary(in, out.Summary)

	return out, nil
}

func (c *Compiler) logSummary(file string, s resource.Summary) {
	logger := c.logger.WithField("file", file)

	logger.Infof("Binary data: %d bytes", s.Binary())
	if s.Unpacked > 0 {
		logger.Infof("  Unpacked: %d bytes", s.Unpacked)
	}
	if s.Packed > 0 && s.Origin > 0 {
		logger.Infof("  Packed: %d bytes (%d%% - origin size: %d bytes)", s.Packed, s.Packed*100/s.Origin, s.Origin)
	}
	if s.Sprites > 0 {
		logger.Infof("Sprite metadata (all but tiles and palette data): %d bytes", s.Sprites)
	}
	if s.Misc > 0 {
		logger.Infof("Misc metadata (map, bitmap, image, tilemap, tileset, palette..): %d bytes", s.Misc)
	}
	logger.Infof("Total: %d bytes (%d KB)", s.Total(), (s.Total()+512)/1024)
}
