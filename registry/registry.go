// Package registry holds the shader-side text of registered structures.
//
// A Registry lives for one build session. Registration and lookup share a
// single mutex, so a Registry may be used from several goroutines.
package registry

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/gogpu/shaderbind/hosttype"
	"github.com/gogpu/shaderbind/typemap"
)

// StructDef is a host structure offered for registration.
type StructDef struct {
	Name   string
	Fields []hosttype.Field
	// StableLayout is true when the host declaration pins its memory layout
	// (a structs.HostLayout field in Go).
	StableLayout bool
}

// LayoutError reports a structure without a stable memory layout.
type LayoutError struct {
	Name string
}

func (e *LayoutError) Error() string {
	return fmt.Sprintf("struct %s: layout is not stable; add a structs.HostLayout field", e.Name)
}

// UnknownStructureError reports a lookup of a name that was never registered.
type UnknownStructureError struct {
	Name string
}

func (e *UnknownStructureError) Error() string {
	return fmt.Sprintf("struct %s is not registered", e.Name)
}

// Registry maps structure names to generated type-definition text.
type Registry struct {
	dialect typemap.Dialect
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]string
}

// New creates an empty registry producing text in dialect d.
func New(d typemap.Dialect) *Registry {
	return &Registry{
		dialect: d,
		logger:  slog.New(slog.DiscardHandler),
		entries: make(map[string]string),
	}
}

// SetLogger sets the logger used for registration diagnostics.
func (r *Registry) SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	r.mu.Lock()
	r.logger = l
	r.mu.Unlock()
}

// Dialect returns the dialect of the stored text.
func (r *Registry) Dialect() typemap.Dialect {
	return r.dialect
}

// Register renders def and stores it under def.Name, replacing any previous
// entry of the same name. It returns the stored text.
func (r *Registry) Register(def StructDef) (string, error) {
	if !def.StableLayout {
		return "", &LayoutError{Name: def.Name}
	}
	text, err := typemap.StructText(def.Name, def.Fields, r.dialect)
	if err != nil {
		return "", fmt.Errorf("struct %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.entries[def.Name]; exists {
		r.logger.Warn("registry: struct registered twice, replacing", "name", def.Name)
	}
	r.entries[def.Name] = text
	r.logger.Debug("registry: struct registered", "name", def.Name, "fields", len(def.Fields))
	return text, nil
}

// Lookup returns the text registered under name.
func (r *Registry) Lookup(name string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	text, ok := r.entries[name]
	if !ok {
		return "", &UnknownStructureError{Name: name}
	}
	return text, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	r.mu.Unlock()
	slices.Sort(names)
	return names
}

// Len returns the number of registered structures.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
