// Package template parses SQL templates with named :param placeholders.
//
// A template is parsed once into an immutable segment list, then bound against
// a method's parameter shape. Whether a placeholder is an IN-list placeholder
// is a syntactic property decided at parse time: it must sit inside an IN
// clause, "in (:ids)". Binding resolves every placeholder to a declared
// parameter; an IN-list placeholder bound directly to an iterable parameter
// expands per element at render time. Rendering substitutes placeholders with
// driver-level '?' markers and produces the positional argument list.
//
// Supported syntax:
//
//	:name          scalar placeholder, bound to the parameter called name
//	:name.path     dotted traversal into a struct or map parameter
//	in (:name)     IN-list placeholder, expanded per element of the collection
//	#table         replaced with the table name resolved per call
//
// Text inside quotes, backticks, brackets and SQL comments is never scanned
// for placeholders.
package template

import (
	"fmt"
	"reflect"
	"strings"
)

// StatementKind distinguishes read statements from write statements.
type StatementKind int

const (
	StatementUnknown StatementKind = iota
	StatementSelect
	StatementWrite
)

func (k StatementKind) String() string {
	switch k {
	case StatementSelect:
		return "select"
	case StatementWrite:
		return "write"
	default:
		return "unknown"
	}
}

// ParseError reports a malformed template.
type ParseError struct {
	Pos     int
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("template parse error at %d: %s", e.Pos, e.Message)
}

// BindError reports a placeholder that does not resolve to a declared parameter.
type BindError struct {
	Placeholder string
}

func (e *BindError) Error() string {
	return fmt.Sprintf("placeholder :%s does not match any declared parameter", e.Placeholder)
}

// ErrEmptyIterable is returned by Render when an IN-list placeholder receives
// an empty collection. Callers decide whether that is an error or an empty
// result.
var ErrEmptyIterable = fmt.Errorf("empty collection bound to in-list placeholder")

type segmentKind int

const (
	segLiteral segmentKind = iota
	segPlaceholder
	segTable
)

type segment struct {
	kind   segmentKind
	text   string // literal text, or the full placeholder path "name.a.b"
	inList bool   // placeholder sits inside an IN clause
}

// Template is a parsed SQL template. Immutable after Parse.
type Template struct {
	raw      string
	kind     StatementKind
	segments []segment
	hasTable bool
}

// Parameter is what a template binds against: the subset of the method
// parameter shape the binder needs.
type Parameter struct {
	Position int
	Name     string
	Iterable bool
}

// Parse scans the template text into segments. It never inspects parameter
// shapes; Bind does.
func Parse(text string) (*Template, error) {
	if strings.TrimSpace(text) == "" {
		return nil, &ParseError{Pos: 0, Message: "empty template"}
	}

	t := &Template{raw: text, kind: statementKind(text)}

	const (
		sText = iota
		sSQ   // '...'
		sDQ   // "..."
		sBT   // `...`
		sBR   // [...]
		sLC   // -- line comment
		sBC   // /* block comment */
	)

	var lit strings.Builder
	state := sText
	flush := func() {
		if lit.Len() > 0 {
			t.segments = append(t.segments, segment{kind: segLiteral, text: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(text); i++ {
		c := text[i]

		switch state {
		case sSQ:
			lit.WriteByte(c)
			if c == '\'' {
				state = sText
			}
			continue
		case sDQ:
			lit.WriteByte(c)
			if c == '"' {
				state = sText
			}
			continue
		case sBT:
			lit.WriteByte(c)
			if c == '`' {
				state = sText
			}
			continue
		case sBR:
			lit.WriteByte(c)
			if c == ']' {
				state = sText
			}
			continue
		case sLC:
			lit.WriteByte(c)
			if c == '\n' {
				state = sText
			}
			continue
		case sBC:
			lit.WriteByte(c)
			if c == '*' && i+1 < len(text) && text[i+1] == '/' {
				lit.WriteByte('/')
				i++
				state = sText
			}
			continue
		}

		switch {
		case c == '\'':
			lit.WriteByte(c)
			state = sSQ
		case c == '"':
			lit.WriteByte(c)
			state = sDQ
		case c == '`':
			lit.WriteByte(c)
			state = sBT
		case c == '[':
			lit.WriteByte(c)
			state = sBR
		case c == '-' && i+1 < len(text) && text[i+1] == '-':
			lit.WriteByte(c)
			state = sLC
		case c == '/' && i+1 < len(text) && text[i+1] == '*':
			lit.WriteByte(c)
			state = sBC
		case c == '#' && strings.HasPrefix(text[i:], "#table"):
			flush()
			t.segments = append(t.segments, segment{kind: segTable})
			t.hasTable = true
			i += len("#table") - 1
		case c == ':':
			if i+1 < len(text) && text[i+1] == ':' {
				// Postgres cast, both colons pass through as literal text.
				lit.WriteString("::")
				i++
				continue
			}
			path, width := scanPlaceholder(text[i+1:])
			if width == 0 {
				lit.WriteByte(c)
				continue
			}
			flush()
			t.segments = append(t.segments, segment{
				kind:   segPlaceholder,
				text:   path,
				inList: inListPosition(text, i),
			})
			i += width
		default:
			lit.WriteByte(c)
		}
	}

	if state == sSQ || state == sDQ || state == sBT || state == sBR {
		return nil, &ParseError{Pos: len(text), Message: "unterminated quoted section"}
	}
	flush()
	return t, nil
}

// scanPlaceholder reads an identifier path (name or name.a.b) and returns it
// together with the number of bytes consumed. width 0 means no placeholder.
func scanPlaceholder(s string) (string, int) {
	i := 0
	for i < len(s) {
		j := i
		for j < len(s) && isIdentByte(s[j], j > i) {
			j++
		}
		if j == i {
			break
		}
		i = j
		if i < len(s) && s[i] == '.' && i+1 < len(s) && isIdentByte(s[i+1], false) {
			i++
			continue
		}
		break
	}
	return s[:i], i
}

func isIdentByte(c byte, tail bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c == '_':
		return true
	case c >= '0' && c <= '9':
		return tail
	default:
		return false
	}
}

func isSpaceByte(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// inListPosition reports whether the placeholder whose colon sits at pos
// opens an IN clause: the nearest preceding non-space text must be the
// keyword "in" followed by "(".
func inListPosition(text string, pos int) bool {
	i := pos - 1
	for i >= 0 && isSpaceByte(text[i]) {
		i--
	}
	if i < 0 || text[i] != '(' {
		return false
	}
	i--
	for i >= 0 && isSpaceByte(text[i]) {
		i--
	}
	if i < 1 {
		return false
	}
	if text[i] != 'n' && text[i] != 'N' {
		return false
	}
	if text[i-1] != 'i' && text[i-1] != 'I' {
		return false
	}
	// Word boundary, so e.g. "min(:x)" is not an IN clause.
	return i-2 < 0 || !isIdentByte(text[i-2], true)
}

func statementKind(text string) StatementKind {
	s := strings.TrimSpace(text)
	for {
		switch {
		case strings.HasPrefix(s, "--"):
			if idx := strings.IndexByte(s, '\n'); idx >= 0 {
				s = strings.TrimSpace(s[idx+1:])
				continue
			}
			return StatementUnknown
		case strings.HasPrefix(s, "/*"):
			if idx := strings.Index(s, "*/"); idx >= 0 {
				s = strings.TrimSpace(s[idx+2:])
				continue
			}
			return StatementUnknown
		}
		break
	}
	word := s
	if idx := strings.IndexFunc(s, func(r rune) bool { return r == ' ' || r == '\t' || r == '\n' || r == '(' }); idx >= 0 {
		word = s[:idx]
	}
	switch strings.ToLower(word) {
	case "select", "with", "show", "describe", "explain":
		return StatementSelect
	default:
		return StatementWrite
	}
}

// Raw returns the original template text.
func (t *Template) Raw() string { return t.raw }

// Kind returns whether the statement reads or writes.
func (t *Template) Kind() StatementKind { return t.kind }

// HasTableToken reports whether the template contains a #table token.
func (t *Template) HasTableToken() bool { return t.hasTable }

// PlaceholderPaths returns the placeholder paths in template order.
func (t *Template) PlaceholderPaths() []string {
	var out []string
	for _, s := range t.segments {
		if s.kind == segPlaceholder {
			out = append(out, s.text)
		}
	}
	return out
}

type binding struct {
	position int
	path     []string
	inList   bool // expands into an IN-list at render time
}

// Bound is a template bound against a parameter shape. Immutable.
type Bound struct {
	tmpl     *Template
	bindings []binding // parallel to placeholder segments, in template order
}

// Bind resolves every placeholder against the given parameters. An IN-list
// position alone does not expand anything: only a placeholder inside an IN
// clause bound directly to an iterable parameter (no dotted path) renders per
// element. A bare iterable parameter outside an IN clause stays a single
// marker, which is what lets a write template drive per-element batching.
func (t *Template) Bind(params []Parameter) (*Bound, error) {
	byName := make(map[string]Parameter, len(params))
	for _, p := range params {
		byName[p.Name] = p
	}

	b := &Bound{tmpl: t}
	for _, s := range t.segments {
		if s.kind != segPlaceholder {
			continue
		}
		parts := strings.Split(s.text, ".")
		p, ok := byName[parts[0]]
		if !ok {
			return nil, &BindError{Placeholder: s.text}
		}
		b.bindings = append(b.bindings, binding{
			position: p.Position,
			path:     parts[1:],
			inList:   s.inList && p.Iterable && len(parts) == 1,
		})
	}
	return b, nil
}

// Template returns the underlying parsed template.
func (b *Bound) Template() *Template { return b.tmpl }

// InListPlaceholders returns the paths of placeholders that consume an
// iterable parameter inside an IN clause under the bound shape.
func (b *Bound) InListPlaceholders() []string {
	var out []string
	i := 0
	for _, s := range b.tmpl.segments {
		if s.kind != segPlaceholder {
			continue
		}
		if b.bindings[i].inList {
			out = append(out, s.text)
		}
		i++
	}
	return out
}

// Render produces the executable SQL with '?' markers and the positional
// argument list for one call. table replaces the #table token; args are the
// call's actual parameter values in declaration order.
func (b *Bound) Render(table string, args []any) (string, []any, error) {
	var sql strings.Builder
	sql.Grow(len(b.tmpl.raw) + 16)
	out := make([]any, 0, len(b.bindings))

	i := 0
	for _, s := range b.tmpl.segments {
		switch s.kind {
		case segLiteral:
			sql.WriteString(s.text)
		case segTable:
			if table == "" {
				return "", nil, fmt.Errorf("template uses #table but no table was resolved")
			}
			sql.WriteString(table)
		case segPlaceholder:
			bd := b.bindings[i]
			i++
			if bd.position >= len(args) {
				return "", nil, fmt.Errorf("placeholder :%s refers to parameter %d but only %d arguments were supplied",
					s.text, bd.position, len(args))
			}
			v, err := ResolveValue(args[bd.position], bd.path)
			if err != nil {
				return "", nil, fmt.Errorf("placeholder :%s: %w", s.text, err)
			}
			if bd.inList {
				elems, err := Elements(v)
				if err != nil {
					return "", nil, fmt.Errorf("placeholder :%s: %w", s.text, err)
				}
				if len(elems) == 0 {
					return "", nil, fmt.Errorf("placeholder :%s: %w", s.text, ErrEmptyIterable)
				}
				for j, e := range elems {
					if j > 0 {
						sql.WriteString(", ")
					}
					sql.WriteByte('?')
					out = append(out, e)
				}
			} else {
				sql.WriteByte('?')
				out = append(out, v)
			}
		}
	}
	return sql.String(), out, nil
}

// ResolveValue walks a dotted path into a struct or a string-keyed map.
func ResolveValue(root any, path []string) (any, error) {
	v := root
	for _, part := range path {
		rv := reflect.ValueOf(v)
		for rv.Kind() == reflect.Ptr || rv.Kind() == reflect.Interface {
			if rv.IsNil() {
				return nil, fmt.Errorf("nil value while resolving %q", part)
			}
			rv = rv.Elem()
		}
		switch rv.Kind() {
		case reflect.Map:
			if rv.Type().Key().Kind() != reflect.String {
				return nil, fmt.Errorf("cannot traverse map with %s keys", rv.Type().Key())
			}
			mv := rv.MapIndex(reflect.ValueOf(part))
			if !mv.IsValid() {
				return nil, fmt.Errorf("no entry %q in map", part)
			}
			v = mv.Interface()
		case reflect.Struct:
			fv := rv.FieldByName(part)
			if !fv.IsValid() {
				fv = rv.FieldByName(strings.ToUpper(part[:1]) + part[1:])
			}
			if !fv.IsValid() || !fv.CanInterface() {
				return nil, fmt.Errorf("no field %q in %s", part, rv.Type())
			}
			v = fv.Interface()
		default:
			return nil, fmt.Errorf("cannot traverse %s with %q", rv.Kind(), part)
		}
	}
	return v, nil
}

// Elements flattens a slice or array value into its elements.
func Elements(v any) ([]any, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return nil, fmt.Errorf("nil collection")
		}
		rv = rv.Elem()
	}
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]any, rv.Len())
		for i := range out {
			out[i] = rv.Index(i).Interface()
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a collection, got %T", v)
	}
}
