// Package preprocess splices registered structure definitions into shader
// source. A placeholder is a marker immediately followed by a parenthesized
// identifier, for example:
//
//	#struct(Uniforms)
//
// Each placeholder is replaced by the text registered under the identifier.
// The rewrite is purely textual; the compiler validates the result.
package preprocess

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/mattn/go-runewidth"
)

// DefaultMarker is the placeholder marker used when none is configured.
const DefaultMarker = "#struct"

// identPattern accepts Go/GLSL/WGSL style identifiers.
const identPattern = `(?P<name>[A-Za-z_][A-Za-z0-9_]*)`

// Lookuper resolves a structure name to its definition text.
type Lookuper interface {
	Lookup(name string) (string, error)
}

// PlaceholderError reports a placeholder whose name could not be resolved.
type PlaceholderError struct {
	Name string
	// Line and Column are 1-based; Column counts runes.
	Line   int
	Column int
	Err    error
}

func (e *PlaceholderError) Error() string {
	return fmt.Sprintf("%d:%d: placeholder %s: %v", e.Line, e.Column, e.Name, e.Err)
}

func (e *PlaceholderError) Unwrap() error { return e.Err }

// FormatWithContext renders the error with the offending source line and a
// caret under the placeholder.
func (e *PlaceholderError) FormatWithContext(source string) string {
	lines := strings.Split(source, "\n")
	if e.Line < 1 || e.Line > len(lines) {
		return e.Error()
	}
	line := lines[e.Line-1]
	prefix := line
	if n := runeOffset(line, e.Column-1); n <= len(line) {
		prefix = line[:n]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "error: placeholder %s: %v\n", e.Name, e.Err)
	fmt.Fprintf(&sb, "  --> line %d:%d\n", e.Line, e.Column)
	sb.WriteString("   |\n")
	fmt.Fprintf(&sb, "%3d| %s\n", e.Line, line)
	fmt.Fprintf(&sb, "   | %s^\n", strings.Repeat(" ", runewidth.StringWidth(prefix)))
	return sb.String()
}

// runeOffset returns the byte offset of the n-th rune in s.
func runeOffset(s string, n int) int {
	off := 0
	for i := 0; i < n && off < len(s); i++ {
		_, size := utf8.DecodeRuneInString(s[off:])
		off += size
	}
	return off
}

// Substituter rewrites placeholders for one marker.
type Substituter struct {
	marker string
	re     *regexp.Regexp
}

// New returns a Substituter for marker.
func New(marker string) (*Substituter, error) {
	if marker == "" {
		return nil, errors.New("preprocess: empty placeholder marker")
	}
	re, err := regexp.Compile(regexp.QuoteMeta(marker) + `\(` + identPattern + `\)`)
	if err != nil {
		return nil, fmt.Errorf("preprocess: marker %q: %w", marker, err)
	}
	return &Substituter{marker: marker, re: re}, nil
}

// Marker returns the configured marker.
func (s *Substituter) Marker() string {
	return s.marker
}

// Substitute replaces every placeholder in src, left to right. The first
// name that l cannot resolve aborts the whole rewrite.
func (s *Substituter) Substitute(src string, l Lookuper) (string, error) {
	matches := s.re.FindAllStringSubmatchIndex(src, -1)
	if len(matches) == 0 {
		return src, nil
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		start, end := m[0], m[1]
		name := src[m[2]:m[3]]
		text, err := l.Lookup(name)
		if err != nil {
			line, col := position(src, start)
			return "", &PlaceholderError{Name: name, Line: line, Column: col, Err: err}
		}
		sb.WriteString(src[last:start])
		sb.WriteString(text)
		last = end
	}
	sb.WriteString(src[last:])
	return sb.String(), nil
}

// References returns the distinct names referenced by src in first-seen order.
func (s *Substituter) References(src string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range s.re.FindAllStringSubmatch(src, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// position converts a byte offset to a 1-based line and rune column.
func position(src string, offset int) (line, col int) {
	before := src[:offset]
	line = strings.Count(before, "\n") + 1
	lineStart := strings.LastIndexByte(before, '\n') + 1
	col = utf8.RuneCountInString(before[lineStart:]) + 1
	return line, col
}
