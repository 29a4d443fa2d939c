// Package source resolves the text of a shader from its attributes: either
// an inline literal (src) or a file relative to the project root (path).
package source

import (
	"fmt"
	"os"
	"path/filepath"
	"unicode/utf8"
)

// Attribute names recognized by Resolve.
const (
	AttrSource = "src"
	AttrPath   = "path"
)

// Attribute is one name=value pair attached to a shader definition.
type Attribute struct {
	Name  string
	Value string
}

// Resolved is shader text ready for placeholder substitution.
type Resolved struct {
	Text string
	// Path is the file the text was read from; empty for inline text.
	Path string
}

// MissingSourceError reports a shader with neither src nor path.
type MissingSourceError struct{}

func (e *MissingSourceError) Error() string {
	return `shader has no source: add a "src" or a "path" attribute`
}

// AmbiguousSourceError reports more than one src/path attribute.
type AmbiguousSourceError struct {
	Count int
}

func (e *AmbiguousSourceError) Error() string {
	return fmt.Sprintf(`shader has %d source attributes; exactly one "src" or "path" is allowed`, e.Count)
}

// FileNotFoundError reports a path that is not a regular file.
type FileNotFoundError struct {
	Path string
}

func (e *FileNotFoundError) Error() string {
	return fmt.Sprintf("shader file %s not found", e.Path)
}

// FileReadError reports a shader file that exists but could not be read as text.
type FileReadError struct {
	Path string
	Err  error
}

func (e *FileReadError) Error() string {
	return fmt.Sprintf("read shader file %s: %v", e.Path, e.Err)
}

func (e *FileReadError) Unwrap() error { return e.Err }

var errNotUTF8 = fmt.Errorf("file is not valid UTF-8 text")

// Resolve selects the single source attribute in attrs and returns its text.
// Relative paths are joined to projectRoot; an empty root means the current
// directory. Files are read on every call.
func Resolve(attrs []Attribute, projectRoot string) (Resolved, error) {
	var picked *Attribute
	count := 0
	for i := range attrs {
		if attrs[i].Name == AttrSource || attrs[i].Name == AttrPath {
			count++
			picked = &attrs[i]
		}
	}
	switch {
	case count == 0:
		return Resolved{}, &MissingSourceError{}
	case count > 1:
		return Resolved{}, &AmbiguousSourceError{Count: count}
	}

	if picked.Name == AttrSource {
		return Resolved{Text: picked.Value}, nil
	}
	return readFile(picked.Value, projectRoot)
}

func readFile(path, root string) (Resolved, error) {
	full := path
	if !filepath.IsAbs(full) {
		if root == "" {
			root = "."
		}
		full = filepath.Join(root, path)
	}

	info, err := os.Stat(full)
	if err != nil || !info.Mode().IsRegular() {
		return Resolved{}, &FileNotFoundError{Path: full}
	}
	data, err := os.ReadFile(full)
	if err != nil {
		return Resolved{}, &FileReadError{Path: full, Err: err}
	}
	if !utf8.Valid(data) {
		return Resolved{}, &FileReadError{Path: full, Err: errNotUTF8}
	}
	return Resolved{Text: string(data), Path: full}, nil
}
