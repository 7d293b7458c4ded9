package resource

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
)

var errNoLayer = errors.New("resource: object layer not found")

type tmxProperty struct {
	Name  string `xml:"name,attr"`
	Type  string `xml:"type,attr"`
	Value string `xml:"value,attr"`
	Text  string `xml:",chardata"`
}

type tmxObject struct {
	ID         int           `xml:"id,attr"`
	Name       string        `xml:"name,attr"`
	Type       string        `xml:"type,attr"`
	Class      string        `xml:"class,attr"`
	X          float64       `xml:"x,attr"`
	Y          float64       `xml:"y,attr"`
	Width      float64       `xml:"width,attr"`
	Height     float64       `xml:"height,attr"`
	Properties []tmxProperty `xml:"properties>property"`
}

type tmxObjectGroup struct {
	Name    string      `xml:"name,attr"`
	Objects []tmxObject `xml:"object"`
}

type tmxMap struct {
	XMLName      xml.Name         `xml:"map"`
	ObjectGroups []tmxObjectGroup `xml:"objectgroup"`
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (o *tmxObject) class() string {
	if o.Type != "" {
		return o.Type
	}
	return o.Class
}

func (o *tmxObject) value(name string) string {
	switch name {
	case "x":
		return formatFloat(o.X)
	case "y":
		return formatFloat(o.Y)
	case "w", "width":
		return formatFloat(o.Width)
	case "h", "height":
		return formatFloat(o.Height)
	case "id":
		return strconv.Itoa(o.ID)
	case "name":
		return o.Name
	case "type":
		return o.class()
	}
	for _, p := range o.Properties {
		if strings.EqualFold(p.Name, name) {
			if p.Value == "" {
				return strings.TrimSpace(p.Text)
			}
			return p.Value
		}
	}
	return ""
}

// ObjectQuery selects the objects to read from a Tiled map
type ObjectQuery struct {
	// Layer is the name of the object layer
	Layer string
	// Fields are the fields to export from each object
	Fields []FieldDef
	// SortBy optionally orders the objects by a field
	SortBy string
	// Type optionally keeps only objects of the given type or class
	Type string
}

// LoadObjects reads the objects matching q from the Tiled map in r. Objects
// are named prefix_n in the order they are exported.
func LoadObjects(r io.Reader, file, prefix string, q ObjectQuery) ([]*Object, error) {
	var m tmxMap
	if err := xml.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	var (
		found   bool
		objects []tmxObject
	)
	for _, g := range m.ObjectGroups {
		if g.Name != q.Layer {
			continue
		}
		found = true
		for _, o := range g.Objects {
			if q.Type != "" && !strings.EqualFold(o.class(), q.Type) {
				continue
			}
			objects = append(objects, o)
		}
	}
	if !found {
		return nil, fmt.Errorf("%s: %w: %s", file, errNoLayer, q.Layer)
	}

	if q.SortBy != "" {
		key := strings.ToLower(q.SortBy)
		sort.SliceStable(objects, func(i, j int) bool {
			a, b := objects[i].value(key), objects[j].value(key)
			fa, errA := strconv.ParseFloat(a, 64)
			fb, errB := strconv.ParseFloat(b, 64)
			if errA == nil && errB == nil {
				return fa < fb
			}
			return a < b
		})
	}

	out := make([]*Object, 0, len(objects))
	for i, o := range objects {
		obj := &Object{
			Name:    fmt.Sprintf("%s_%d", prefix, i),
			File:    file,
			TiledID: o.ID,
		}
		for _, def := range q.Fields {
			obj.Fields = append(obj.Fields, Field{FieldDef: def, Value: o.value(def.Name)})
		}
		out = append(out, obj)
	}

	return out, nil
}
