package rescomp

import (
	"bufio"
	"io"
	"strconv"
	"strings"
)

// Declaration is one line of a resource file split into fields. The first
// field is the resource type and, for most types, the second is the name.
type Declaration struct {
	File   string
	Line   int
	Fields []string
}

// Type returns the resource type in upper case
func (d Declaration) Type() string {
	if len(d.Fields) == 0 {
		return ""
	}
	return strings.ToUpper(d.Fields[0])
}

// ID returns the resource name
func (d Declaration) ID() string {
	return d.Arg(1)
}

// Arg returns field i or an empty string if there are not that many
func (d Declaration) Arg(i int) string {
	if i < len(d.Fields) {
		return d.Fields[i]
	}
	return ""
}

// Len returns the number of fields
func (d Declaration) Len() int {
	return len(d.Fields)
}

func comment(line string) bool {
	for _, prefix := range []string{"//", "#", ";"} {
		if strings.HasPrefix(line, prefix) {
			return true
		}
	}
	return false
}

// splitFields splits on whitespace. Double quotes group fields containing
// spaces and are removed.
func splitFields(line string) []string {
	var (
		fields  []string
		current strings.Builder
		quoted  bool
		pending bool
	)

	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			pending = true
		case (r == ' ' || r == '\t') && !quoted:
			if pending {
				fields = append(fields, current.String())
				current.Reset()
				pending = false
			}
		default:
			current.WriteRune(r)
			pending = true
		}
	}
	if pending {
		fields = append(fields, current.String())
	}

	return fields
}

// Parse reads the declarations of the resource file in r. Blank lines and
// lines starting with //, # or ; are skipped.
func Parse(r io.Reader, file string) ([]Declaration, error) {
	var decls []Declaration

	scanner := bufio.NewScanner(r)
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || comment(text) {
			continue
		}
		decls = append(decls, Declaration{
			File:   file,
			Line:   line,
			Fields: splitFields(text),
		})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return decls, nil
}

func parseInt(s string, def int) (int, error) {
	if s == "" {
		return def, nil
	}
	v, err := strconv.ParseInt(s, 0, 32)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

func parseBool(s string, def bool) bool {
	switch strings.ToUpper(s) {
	case "TRUE", "1", "YES":
		return true
	case "FALSE", "0", "NO":
		return false
	default:
		return def
	}
}
