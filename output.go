package rescomp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Options controls the files written by Compile
type Options struct {
	// DepTarget is the make target of the dependency file, none is
	// written if empty
	DepTarget string
	// NoHeader skips the C header
	NoHeader bool
}

type outputFile struct {
	name string
	data []byte
}

func setExt(file, ext string) string {
	return strings.TrimSuffix(file, filepath.Ext(file)) + ext
}

// OutputFile returns the default assembler output for a resource file
func OutputFile(in string) string {
	return setExt(in, ".s")
}

func headerGuard(in, out string) string {
	dir := filepath.Base(filepath.Dir(in))
	if dir == "." || dir == string(filepath.Separator) {
		dir = "RES"
	}
	stem := strings.TrimSuffix(filepath.Base(out), filepath.Ext(out))
	return strings.ToUpper(dir + "_" + stem)
}

func (o *Output) header(guard string) string {
	var b strings.Builder
	b.WriteString("#include <genesis.h>\n\n")
	fmt.Fprintf(&b, "#ifndef _%s_H_\n", guard)
	fmt.Fprintf(&b, "#define _%s_H_\n\n", guard)
	b.WriteString(o.Header)
	b.WriteString("\n")
	fmt.Fprintf(&b, "#endif // _%s_H_\n", guard)
	return b.String()
}

func escapePath(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), " ", "\\ ")
}

// dependencies returns a make rule for target depending on every file read
func (o *Output) dependencies(target string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s:", escapePath(target))
	for i, f := range o.Files {
		if i > 0 {
			b.WriteString(" \\\n")
		}
		b.WriteString(" " + escapePath(f))
	}
	b.WriteString("\n")
	return b.String()
}

// Compile compiles in and writes the assembler source to out. The header,
// binary section, symbol table and dependency file are written alongside
// it with the .h, .bin, .sym and .d extensions.
func (c *Compiler) Compile(ctx context.Context, in, out string, opts Options) error {
	o, err := c.CompileFile(ctx, in)
	if err != nil {
		return err
	}

	sym, err := o.Symbols.MarshalBinary()
	if err != nil {
		return err
	}

	files := []outputFile{
		{out, []byte(o.Asm)},
		{setExt(out, ".bin"), o.Binary},
		{setExt(out, ".sym"), sym},
	}
	if c.config.Header && !opts.NoHeader {
		files = append(files, outputFile{setExt(out, ".h"), []byte(o.header(headerGuard(in, out)))})
	}
	if opts.DepTarget != "" {
		files = append(files, outputFile{setExt(out, ".d"), []byte(o.dependencies(opts.DepTarget))})
	}

	for _, f := range files {
		if err := os.WriteFile(f.name, f.data, 0o644); err != nil {
			return err
		}
		c.logger.WithField("file", in).Debugf("Wrote %s", f.name)
	}

	return nil
}
