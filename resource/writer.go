package resource

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/bodgit/rescomp/pack"
	"github.com/bodgit/rescomp/symtab"
	"github.com/sirupsen/logrus"
)

const bytesPerLine = 16

// Writer collects the output of exporting resources: GNU assembler source,
// C header declarations, the binary section and its symbol table
type Writer struct {
	asm     strings.Builder
	header  strings.Builder
	bin     bytes.Buffer
	stream  pack.Stream
	symbols *symtab.Table
	packer  *pack.Packer
	logger  logrus.FieldLogger
}

// NewWriter returns a Writer that packs bins with p
func NewWriter(p *pack.Packer, logger logrus.FieldLogger) *Writer {
	return &Writer{
		symbols: symtab.New(),
		packer:  p,
		logger:  logger,
	}
}

// Asm returns the assembler source
func (w *Writer) Asm() string {
	return w.asm.String()
}

// Header returns the C declarations of every global resource
func (w *Writer) Header() string {
	return w.header.String()
}

// Binary returns the concatenated payload of every bin
func (w *Writer) Binary() []byte {
	return w.bin.Bytes()
}

// Symbols returns the location of every bin within Binary
func (w *Writer) Symbols() *symtab.Table {
	w.symbols.Sum(w.bin.Bytes())
	return w.symbols
}

func (w *Writer) printf(format string, a ...interface{}) {
	fmt.Fprintf(&w.asm, format, a...)
}

func (w *Writer) blank() {
	w.asm.WriteByte('\n')
}

// Switching section or aligning beyond a word loses track of the bytes
// preceding the next payload
func (w *Writer) section(name string) {
	w.printf(".section %s\n\n", name)
	w.stream.Reset()
}

func (w *Writer) align(n int) {
	w.printf("    .align  %d\n\n", n)
	w.stream.Reset()
}

func (w *Writer) label(name string, align int, global bool) {
	if align < 2 {
		align = 2
	}
	w.printf("    .align  %d\n", align)
	if global {
		w.printf("    .global %s\n", name)
	}
	w.printf("%s:\n", name)
}

func (w *Writer) decl(typ, name string, align int, global bool) {
	w.label(name, align, global)
	if global {
		fmt.Fprintf(&w.header, "extern const %s %s;\n", typ, name)
	}
}

func (w *Writer) declArray(typ, name string, size, align int, global bool) {
	w.label(name, align, global)
	if global {
		fmt.Fprintf(&w.header, "extern const %s %s[%d];\n", typ, name, size)
	}
}

func (w *Writer) declArrayEnd(name string, global bool) {
	if global {
		w.printf("    .global %s_size\n", name)
	}
	w.printf("%s_size = .-%s\n", name, name)
}

func (w *Writer) dcb(data []byte) {
	for i := 0; i < len(data); i += bytesPerLine {
		end := i + bytesPerLine
		if end > len(data) {
			end = len(data)
		}
		values := make([]string, 0, end-i)
		for _, b := range data[i:end] {
			values = append(values, fmt.Sprintf("0x%02X", b))
		}
		w.printf("    dc.b    %s\n", strings.Join(values, ", "))
	}
	if len(data)&1 != 0 {
		w.printf("    dc.b    0x00\n")
	}
}

func (w *Writer) dcw(values ...int) {
	s := make([]string, len(values))
	for i, v := range values {
		s[i] = fmt.Sprint(v)
	}
	w.printf("    dc.w    %s\n", strings.Join(s, ", "))
}

func (w *Writer) dcl(value interface{}) {
	w.printf("    dc.l    %v\n", value)
}

// ref writes a pointer to e or a null pointer
func (w *Writer) ref(e *Entry) {
	if e == nil {
		w.dcl(0)
		return
	}
	w.dcl(e.ID)
}

// payload appends packed data to the binary section and records it in the
// symbol table
func (w *Writer) payload(id string, align int, p pack.Packed) error {
	for align > 1 && w.bin.Len()%align != 0 {
		w.bin.WriteByte(0)
	}
	offset := w.bin.Len()
	w.bin.Write(p.Data)

	return w.symbols.Add(symtab.Entry{
		ID:     id,
		Offset: uint32(offset),
		Size:   uint32(len(p.Data)),
		Scheme: int8(p.Scheme.Tag()),
	})
}
