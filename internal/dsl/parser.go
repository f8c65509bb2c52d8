package dsl

import (
	"bufio"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	entityRe  = regexp.MustCompile(`^entity\s+(\w+)(?:\s+table\s*=\s*([\w.]+))?\s*:$`)
	lineRe    = regexp.MustCompile(`^\s*([\w_]+):\s*([^\s#]+)(.*)$`)
	sectionRe = regexp.MustCompile(`^\s*(fields|relations|casts|appends)\s*:\s*$`)
)

type section int

const (
	sectionFields section = iota
	sectionRelations
	sectionCasts
	sectionAppends
)

// splitOptionTokens splits "k=v k2='v 2' flag" into tokens; quoted and bracketed runs stay whole.
func splitOptionTokens(s string) []string {
	var out []string
	var buf []rune
	inSingle, inDouble := false, false
	bracketDepth := 0

	flush := func() {
		if len(buf) > 0 {
			out = append(out, string(buf))
			buf = buf[:0]
		}
	}

	for _, r := range s {
		switch r {
		case '\'':
			if !inDouble && bracketDepth == 0 {
				inSingle = !inSingle
			}
			buf = append(buf, r)
		case '"':
			if !inSingle && bracketDepth == 0 {
				inDouble = !inDouble
			}
			buf = append(buf, r)
		case '[':
			if !inSingle && !inDouble {
				bracketDepth++
			}
			buf = append(buf, r)
		case ']':
			if !inSingle && !inDouble && bracketDepth > 0 {
				bracketDepth--
			}
			buf = append(buf, r)
		default:
			if (r == ' ' || r == '\t') && !inSingle && !inDouble && bracketDepth == 0 {
				flush()
				continue
			}
			buf = append(buf, r)
		}
	}
	flush()
	return out
}

// stripComment cuts a trailing "# ..." that is outside quotes.
func stripComment(s string) string {
	inSingle, inDouble := false, false
	for i, r := range s {
		switch r {
		case '\'':
			if !inDouble {
				inSingle = !inSingle
			}
		case '"':
			if !inSingle {
				inDouble = !inDouble
			}
		case '#':
			if !inSingle && !inDouble {
				return strings.TrimSpace(s[:i])
			}
		}
	}
	return strings.TrimSpace(s)
}

func unquote(v string) string {
	if len(v) >= 2 {
		if (v[0] == '"' && v[len(v)-1] == '"') || (v[0] == '\'' && v[len(v)-1] == '\'') {
			return v[1 : len(v)-1]
		}
	}
	return v
}

// parseOptions turns option tokens into a map; a bare flag becomes "true".
func parseOptions(tail string) map[string]string {
	opts := map[string]string{}
	raw := stripComment(tail)
	if strings.HasPrefix(strings.ToLower(raw), "options:") {
		raw = strings.TrimSpace(raw[len("options:"):])
	}
	for _, tok := range splitOptionTokens(raw) {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		if !strings.Contains(tok, "=") {
			opts[strings.ToLower(tok)] = "true"
			continue
		}
		kv := strings.SplitN(tok, "=", 2)
		k := strings.ToLower(strings.TrimSpace(kv[0]))
		if k != "" {
			opts[k] = unquote(strings.TrimSpace(kv[1]))
		}
	}
	return opts
}

func flag(opts map[string]string, k string) bool {
	v, ok := opts[k]
	if !ok {
		return false
	}
	v = strings.ToLower(v)
	return v == "true" || v == "1" || v == "yes"
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// ParseEntities reads declarative entity descriptions:
//
//	entity Invoice table=invoices:
//	  amount: decimal nullable default=0
//	  relations:
//	    customer: customer_id
//	  casts:
//	    amount: decimal:2
//	  appends:
//	    full_name: concatenar fields=first_name,last_name separator=' - '
func ParseEntities(r io.Reader) ([]EntityDraft, error) {
	var drafts []EntityDraft
	var current *EntityDraft
	sec := sectionFields

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := entityRe.FindStringSubmatch(line); m != nil {
			if current != nil {
				drafts = append(drafts, *current)
			}
			current = &EntityDraft{Name: m[1], Table: m[2]}
			sec = sectionFields
			continue
		}
		if current == nil {
			continue
		}

		if m := sectionRe.FindStringSubmatch(line); m != nil {
			switch m[1] {
			case "fields":
				sec = sectionFields
			case "relations":
				sec = sectionRelations
			case "casts":
				sec = sectionCasts
			case "appends":
				sec = sectionAppends
			}
			continue
		}

		m := lineRe.FindStringSubmatch(line)
		if m == nil {
			return nil, fmt.Errorf("line %d: cannot parse %q", lineNo, line)
		}
		name, value, tail := m[1], unquote(m[2]), m[3]

		switch sec {
		case sectionRelations:
			current.Relations = append(current.Relations, Relation{Name: name, ForeignKey: value})
		case sectionCasts:
			current.Casts = append(current.Casts, Cast{Key: name, Type: value})
		case sectionAppends:
			opts := parseOptions(tail)
			a := Append{Name: name, Type: value}
			if v, ok := opts["fields"]; ok {
				a.Fields = splitList(v)
				delete(opts, "fields")
			}
			if len(opts) > 0 {
				a.Options = make(map[string]any, len(opts))
				for k, v := range opts {
					a.Options[k] = v
				}
			}
			current.Appends = append(current.Appends, a)
		default:
			opts := parseOptions(tail)
			f := FieldDraft{
				Name:          name,
				Type:          value,
				Label:         opts["label"],
				Nullable:      flag(opts, "nullable"),
				Unique:        flag(opts, "unique"),
				Index:         flag(opts, "index"),
				Primary:       flag(opts, "primary"),
				AutoIncrement: flag(opts, "auto_increment"),
				Foreign:       flag(opts, "foreign"),
				ForeignTable:  opts["foreign_table"],
				ForeignKey:    opts["foreign_key"],
			}
			if dv, ok := opts["default"]; ok {
				f.Default = &dv
			}
			current.Fields = append(current.Fields, f)
		}
	}

	if current != nil {
		drafts = append(drafts, *current)
	}
	return drafts, scanner.Err()
}

// LoadEntities parses one .dsl file.
func LoadEntities(path string) ([]EntityDraft, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return ParseEntities(file)
}

// LoadAllEntities walks root for *.dsl files. Entity names must be unique across files.
func LoadAllEntities(root string) ([]EntityDraft, error) {
	var result []EntityDraft
	seen := make(map[string]string)

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !strings.EqualFold(filepath.Ext(d.Name()), ".dsl") {
			return nil
		}

		drafts, err := LoadEntities(path)
		if err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
		for _, e := range drafts {
			if prev, exists := seen[e.Name]; exists {
				return fmt.Errorf("duplicate entity %q in %s (first seen in %s)", e.Name, path, prev)
			}
			seen[e.Name] = path
			result = append(result, e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
