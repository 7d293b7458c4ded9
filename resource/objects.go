package resource

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	errUnknownFieldType = errors.New("resource: unknown field type")
	errBadFieldDef      = errors.New("resource: invalid field definition")
)

// FieldType is the type of an exported object field
type FieldType int

// Field types
const (
	U8 FieldType = iota
	S8
	U16
	S16
	U32
	S32
	F16
	F32
	Bool
	String
	ObjectRef
)

var fieldTypes = map[string]FieldType{
	"U8":     U8,
	"S8":     S8,
	"U16":    U16,
	"S16":    S16,
	"U32":    U32,
	"S32":    S32,
	"F16":    F16,
	"F32":    F32,
	"BOOL":   Bool,
	"STRING": String,
	"OBJECT": ObjectRef,
}

// ParseFieldType parses the textual form of a FieldType
func ParseFieldType(s string) (FieldType, error) {
	if t, ok := fieldTypes[strings.ToUpper(s)]; ok {
		return t, nil
	}
	return U8, fmt.Errorf("%w: %q", errUnknownFieldType, s)
}

// Size returns the number of bytes a field of the type occupies
func (t FieldType) Size() int {
	switch t {
	case U8, S8, Bool:
		return 1
	case U16, S16, F16:
		return 2
	default:
		return 4
	}
}

// FieldDef names a field to export and its type
type FieldDef struct {
	Name string
	Type FieldType
}

// ParseFieldDefs parses a list of field definitions of the form
// name:type;name:type. Names are case insensitive.
func ParseFieldDefs(s string) ([]FieldDef, error) {
	var defs []FieldDef
	for _, def := range strings.Split(s, ";") {
		if def == "" {
			continue
		}
		parts := strings.Split(def, ":")
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, fmt.Errorf("%w: %q", errBadFieldDef, def)
		}
		t, err := ParseFieldType(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, err
		}
		defs = append(defs, FieldDef{Name: strings.ToLower(strings.TrimSpace(parts[0])), Type: t})
	}
	if len(defs) == 0 {
		return nil, fmt.Errorf("%w: empty", errBadFieldDef)
	}
	return defs, nil
}

// Field is a field value of an object
type Field struct {
	FieldDef
	Value string

	// Name of the object an ObjectRef field points at once resolved
	target string
}

// Object is a single exported object
type Object struct {
	Name    string
	File    string
	TiledID int
	Fields  []Field
}

func (o *Object) size() int {
	n := 0
	for _, f := range o.Fields {
		n += f.Type.Size()
	}
	return (n + 1) &^ 1
}

func (o *Object) stringLabel(f Field) string {
	return o.Name + "_" + f.Name
}

func number(s string) float64 {
	switch strings.ToLower(s) {
	case "true":
		return 1
	case "false", "":
		return 0
	}
	if v, err := strconv.ParseInt(s, 0, 64); err == nil {
		return float64(v)
	}
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func (o *Object) export(w *Writer) {
	w.decl("", o.Name, 2, false)

	n := 0
	for _, f := range o.Fields {
		n += f.Type.Size()
		switch f.Type {
		case U8, S8, Bool:
			w.printf("    dc.b    %d\n", int64(number(f.Value)))
		case U16, S16:
			w.dcw(int(number(f.Value)))
		case U32, S32:
			w.dcl(int64(number(f.Value)))
		case F16:
			w.dcw(int(math.Round(number(f.Value) * 256)))
		case F32:
			w.dcl(int64(math.Round(number(f.Value) * 65536)))
		case String:
			w.dcl(o.stringLabel(f))
		case ObjectRef:
			if f.target != "" {
				w.dcl(f.target)
			} else {
				w.dcl(0)
			}
		}
	}
	if n&1 != 0 {
		w.printf("    dc.b    0\n")
	}

	for _, f := range o.Fields {
		if f.Type != String {
			continue
		}
		w.printf("%s:\n", o.stringLabel(f))
		w.printf("    .ascii  %s\n", strconv.Quote(f.Value))
		w.printf("    dc.b    0\n")
		if (len(f.Value)+1)&1 != 0 {
			w.printf("    dc.b    0\n")
		}
	}

	w.blank()
}

// Objects is a list of objects exported as an array of pointers of type
// Type
type Objects struct {
	Type    string
	Objects []*Object
}

// Kind implements Resource
func (*Objects) Kind() Kind { return KindObjects }

func (o *Objects) hash(h *hasher) {
	h.string(o.Type)
	for _, obj := range o.Objects {
		h.string(obj.Name)
		for _, f := range obj.Fields {
			h.string(f.Name)
			h.int(int(f.Type))
			h.string(f.Value)
		}
	}
}

func (o *Objects) equal(r Resource) bool {
	other := r.(*Objects)
	if o.Type != other.Type || len(o.Objects) != len(other.Objects) {
		return false
	}
	for i, obj := range o.Objects {
		b := other.Objects[i]
		if obj.Name != b.Name || len(obj.Fields) != len(b.Fields) {
			return false
		}
		for j, f := range obj.Fields {
			if f.FieldDef != b.Fields[j].FieldDef || f.Value != b.Fields[j].Value {
				return false
			}
		}
	}
	return true
}

func (o *Objects) size() int {
	n := 4 * len(o.Objects)
	for _, obj := range o.Objects {
		n += obj.size()
	}
	return n
}

func (*Objects) bins() []*Entry { return nil }

func (o *Objects) export(w *Writer, e *Entry) error {
	w.stream.Reset()

	for _, obj := range o.Objects {
		obj.export(w)
	}

	typ := o.Type
	if typ == "" {
		typ = "void"
	}
	w.declArray(typ+"*", e.ID, len(o.Objects), 2, e.Global)
	for _, obj := range o.Objects {
		w.dcl(obj.Name)
	}
	w.blank()

	return nil
}

// ResolveObjects points every ObjectRef field at the object of the same file
// whose Tiled id is the field value
func (r *Registry) ResolveObjects() {
	type key struct {
		file string
		id   int
	}

	names := make(map[key]string)
	for _, e := range r.ofKind(KindObjects) {
		for _, obj := range e.Resource.(*Objects).Objects {
			names[key{obj.File, obj.TiledID}] = obj.Name
		}
	}

	for _, e := range r.ofKind(KindObjects) {
		for _, obj := range e.Resource.(*Objects).Objects {
			for i, f := range obj.Fields {
				if f.Type != ObjectRef {
					continue
				}
				id, err := strconv.Atoi(f.Value)
				if err != nil || id == 0 {
					continue
				}
				if name, ok := names[key{obj.File, id}]; ok {
					obj.Fields[i].target = name
				} else {
					r.logger.WithField("id", obj.Name).Warnf("field '%s' refers to unknown object %d", f.Name, id)
				}
			}
		}
	}
}
