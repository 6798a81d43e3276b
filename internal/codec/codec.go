package codec

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"crawlscope/internal/domain"
)

// ErrUnknownFormat is returned by Lookup for unregistered formats
var ErrUnknownFormat = errors.New("unknown export format")

// Exporter writes a graph snapshot in one format
type Exporter interface {
	Export(snap domain.Snapshot, w io.Writer) error
	Format() string
	ContentType() string
}

// Registry maps format names to exporters
type Registry struct {
	exporters map[string]Exporter
}

// NewRegistry creates a registry holding exporters
func NewRegistry(exporters ...Exporter) *Registry {
	r := &Registry{exporters: make(map[string]Exporter, len(exporters))}
	for _, e := range exporters {
		r.exporters[e.Format()] = e
	}
	return r
}

// DefaultRegistry holds the JSON and YAML exporters
func DefaultRegistry() *Registry {
	return NewRegistry(NewJSONCodec(), NewYAMLCodec())
}

// Lookup returns the exporter registered for format
func (r *Registry) Lookup(format string) (Exporter, error) {
	e, ok := r.exporters[format]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
	}
	return e, nil
}

// Formats lists registered format names in sorted order
func (r *Registry) Formats() []string {
	names := make([]string, 0, len(r.exporters))
	for name := range r.exporters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
