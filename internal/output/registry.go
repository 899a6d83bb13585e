package output

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FormatDat is the format used for pattern suffixes that name no
// registered format.
const FormatDat = "dat"

// Registry maps format names to serializers. A pattern suffix such as
// ".xy" selects the format of the same name.
type Registry struct {
	mu      sync.RWMutex
	formats map[string]Serializer
}

// NewRegistry creates an empty format registry.
func NewRegistry() *Registry {
	return &Registry{
		formats: make(map[string]Serializer),
	}
}

// Register adds a serializer under the given format name.
// Existing entries for the same name are overwritten.
func (r *Registry) Register(name string, s Serializer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.formats[name] = s
}

// Serializer returns the serializer for the given format, or an error if
// not found.
func (r *Registry) Serializer(name string) (Serializer, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.formats[name]
	if !ok {
		return nil, fmt.Errorf("unknown pattern format %q (available: %s)", name, r.availableLocked())
	}

	return s, nil
}

// ForSuffix picks the serializer named by a pattern file suffix, falling
// back to the dat format.
func (r *Registry) ForSuffix(suffix string) Serializer {
	name := strings.ToLower(strings.TrimPrefix(suffix, "."))

	if s, err := r.Serializer(name); err == nil {
		return s
	}

	s, err := r.Serializer(FormatDat)
	if err != nil {
		return SerializeDat
	}

	return s
}

// Formats returns the sorted list of registered format names.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.formatsLocked()
}

func (r *Registry) formatsLocked() []string {
	names := make([]string, 0, len(r.formats))
	for name := range r.formats {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

func (r *Registry) availableLocked() string {
	formats := r.formatsLocked()
	if len(formats) == 0 {
		return "none"
	}

	return strings.Join(formats, ", ")
}

// DefaultRegistry returns a registry pre-populated with the built-in
// pattern formats: dat, xy, csv.
func DefaultRegistry() *Registry {
	r := NewRegistry()

	r.Register(FormatDat, SerializeDat)
	r.Register("xy", SerializeXY)
	r.Register("csv", SerializeCSV)

	return r
}
