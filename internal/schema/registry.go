// Package schema provides the data-source registry consulted by the prompt
// builder and the rule validator.
//
// The registry is built once per session from an external loader (config,
// CSV headers, or the built-in defaults) and is read-only afterwards: no
// method mutates it, so one instance can be shared across sessions.
package schema

import (
	"fmt"
	"strings"

	"github.com/solatis/rulesmith/internal/types"
)

// Source describes one tabular data source and its ordered column names.
type Source struct {
	Name   string   `mapstructure:"name" json:"name"`
	Fields []string `mapstructure:"fields" json:"fields"`
}

// Registry maps data-source identifiers to their exact column names.
type Registry struct {
	order   []string
	sources map[string][]string
	members map[string]map[string]struct{}
	// lower-cased field -> canonical spelling across all sources, first registered wins
	canonical map[string]string
	// per-source lower-cased field -> canonical spelling
	local map[string]map[string]string
}

// New builds a registry from sources in the given order.
// Rejects empty names, duplicate sources and duplicate fields within a source.
func New(sources []Source) (*Registry, error) {
	r := &Registry{
		order:     make([]string, 0, len(sources)),
		sources:   make(map[string][]string, len(sources)),
		members:   make(map[string]map[string]struct{}, len(sources)),
		canonical: make(map[string]string),
		local:     make(map[string]map[string]string, len(sources)),
	}

	for _, src := range sources {
		name := strings.TrimSpace(src.Name)
		if name == "" {
			return nil, fmt.Errorf("data source name cannot be empty")
		}
		if _, exists := r.sources[name]; exists {
			return nil, fmt.Errorf("%w: %s", types.ErrDuplicateSource, name)
		}

		fields := make([]string, 0, len(src.Fields))
		members := make(map[string]struct{}, len(src.Fields))
		local := make(map[string]string, len(src.Fields))
		for _, f := range src.Fields {
			f = strings.TrimSpace(f)
			if f == "" {
				continue
			}
			if _, dup := members[f]; dup {
				return nil, fmt.Errorf("%w: %s in %s", types.ErrDuplicateField, f, name)
			}
			members[f] = struct{}{}
			fields = append(fields, f)

			lower := strings.ToLower(f)
			if _, ok := local[lower]; !ok {
				local[lower] = f
			}
			if _, ok := r.canonical[lower]; !ok {
				r.canonical[lower] = f
			}
		}

		r.order = append(r.order, name)
		r.sources[name] = fields
		r.members[name] = members
		r.local[name] = local
	}

	return r, nil
}

// MustNew is New for static tables; it panics on error.
func MustNew(sources []Source) *Registry {
	r, err := New(sources)
	if err != nil {
		panic(err)
	}
	return r
}

// ColumnsOf returns the ordered field names of source.
// Fails with *types.UnknownSourceError if source is not registered.
func (r *Registry) ColumnsOf(source string) ([]string, error) {
	fields, ok := r.sources[source]
	if !ok {
		return nil, &types.UnknownSourceError{Source: source}
	}
	out := make([]string, len(fields))
	copy(out, fields)
	return out, nil
}

// HasSource reports whether source is registered.
func (r *Registry) HasSource(source string) bool {
	_, ok := r.sources[source]
	return ok
}

// HasField reports whether field is a column of source. False for unknown sources.
func (r *Registry) HasField(source, field string) bool {
	members, ok := r.members[source]
	if !ok {
		return false
	}
	_, ok = members[field]
	return ok
}

// Sources returns the source identifiers in load order.
func (r *Registry) Sources() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len returns the number of registered sources.
func (r *Registry) Len() int {
	return len(r.order)
}

// Canonical returns the registered spelling of field, matched case-insensitively
// across all sources.
func (r *Registry) Canonical(field string) (string, bool) {
	f, ok := r.canonical[strings.ToLower(field)]
	return f, ok
}

// CanonicalIn returns the spelling of field within source, matched case-insensitively.
func (r *Registry) CanonicalIn(source, field string) (string, bool) {
	local, ok := r.local[source]
	if !ok {
		return "", false
	}
	f, ok := local[strings.ToLower(field)]
	return f, ok
}

// Snapshot returns the registry contents as loader input, in load order.
func (r *Registry) Snapshot() []Source {
	out := make([]Source, 0, len(r.order))
	for _, name := range r.order {
		fields, _ := r.ColumnsOf(name)
		out = append(out, Source{Name: name, Fields: fields})
	}
	return out
}
