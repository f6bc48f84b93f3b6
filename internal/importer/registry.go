package importer

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNoDialectMatched means the header row matched no registered dialect.
	ErrNoDialectMatched = errors.New("no statement dialect matched the header row")
	// ErrUnknownDialect means a dialect hint named no registered dialect.
	ErrUnknownDialect = errors.New("unknown dialect")
)

// Registry holds dialects in detection priority order.
type Registry struct {
	dialects []*Dialect
	byKey    map[string]*Dialect
}

// NewRegistry creates an empty dialect registry.
func NewRegistry() *Registry {
	return &Registry{byKey: make(map[string]*Dialect)}
}

// Register appends a dialect at the lowest priority. Panics on duplicate key.
func (r *Registry) Register(d *Dialect) {
	key := strings.ToLower(d.Key)
	if _, ok := r.byKey[key]; ok {
		panic("duplicate dialect: " + key)
	}
	r.byKey[key] = d
	r.dialects = append(r.dialects, d)
}

// All returns the dialects in priority order.
func (r *Registry) All() []*Dialect {
	out := make([]*Dialect, len(r.dialects))
	copy(out, r.dialects)
	return out
}

// Get resolves a dialect hint. The hint may be a key ("hdfc"), a name
// ("HDFC Bank") or a substring of a name ("state bank"), case-insensitively.
func (r *Registry) Get(hint string) (*Dialect, error) {
	h := strings.ToLower(strings.TrimSpace(hint))
	if h == "" {
		return nil, fmt.Errorf("%w: empty hint", ErrUnknownDialect)
	}
	if d, ok := r.byKey[h]; ok {
		return d, nil
	}
	for _, d := range r.dialects {
		if strings.ToLower(d.Name) == h {
			return d, nil
		}
	}
	for _, d := range r.dialects {
		if strings.Contains(strings.ToLower(d.Name), h) {
			return d, nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownDialect, hint)
}

// Detect returns the first dialect, in priority order, whose header sets
// the header row satisfies.
func (r *Registry) Detect(headers []string) (*Dialect, error) {
	set := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		set[cleanHeader(h)] = struct{}{}
	}
	for _, d := range r.dialects {
		if d.Matches(set) {
			return d, nil
		}
	}
	return nil, ErrNoDialectMatched
}

// Resolve uses the hint when one is given, bypassing detection.
func (r *Registry) Resolve(headers []string, hint string) (*Dialect, error) {
	if strings.TrimSpace(hint) != "" {
		return r.Get(hint)
	}
	return r.Detect(headers)
}

// DefaultRegistry returns a registry with all built-in dialects.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, d := range builtinDialects() {
		r.Register(d)
	}
	return r
}

// cleanHeader trims whitespace and a UTF-8 byte order mark.
func cleanHeader(h string) string {
	return strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
}
