// Package symbol provides lazily populated name→vector registries. A Space
// assigns every name a fixed random unit vector on first lookup and returns
// the identical vector for the registry's lifetime. Roles and fillers live
// in separate Space instances so the same string never collides across the
// two namespaces.
package symbol

import (
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/Harshitk-cp/holomem/hrr"
)

var (
	// ErrEmptyName is returned when a nil-equivalent (empty) name is looked up.
	ErrEmptyName = errors.New("symbol: empty name")

	// ErrNameExists is returned by Restore for an already-registered name.
	ErrNameExists = errors.New("symbol: name already registered")
)

// Entry is one registered name and its vector, used for export/restore.
type Entry struct {
	Name   string
	Vector hrr.Vector
}

// Space is a registry mapping names to fixed random unit vectors.
//
// Vectors are not derived from the name: two independent Space instances
// assign different vectors to the same name unless both were built with the
// same seed and saw the same names in the same order, or one was restored
// from the other's export. A Space performs no internal locking; callers
// must serialize access.
type Space struct {
	dim     int
	rng     *rand.Rand
	vectors map[string]hrr.Vector
	order   []string
}

// Option configures a Space.
type Option func(*Space)

// WithSeed makes vector generation deterministic. Two spaces with the same
// seed that register the same names in the same order hold identical vectors.
func WithSeed(seed int64) Option {
	return func(s *Space) { s.rng = rand.New(rand.NewSource(seed)) }
}

// NewSpace creates an empty registry for vectors of the given dimension.
func NewSpace(dim int, opts ...Option) *Space {
	if dim < 2 {
		panic("symbol: dimension must be at least 2")
	}
	s := &Space{
		dim:     dim,
		vectors: make(map[string]hrr.Vector),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.rng == nil {
		s.rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	return s
}

// Dim returns the dimension of every vector in the registry.
func (s *Space) Dim() int { return s.dim }

// Len returns the number of registered names.
func (s *Space) Len() int { return len(s.order) }

// Get returns the vector registered under name, drawing and caching a fresh
// random unit vector on first lookup. The returned vector is shared; callers
// must not modify it.
func (s *Space) Get(name string) (hrr.Vector, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	if v, ok := s.vectors[name]; ok {
		return v, nil
	}
	v := hrr.Random(s.dim, s.rng)
	s.vectors[name] = v
	s.order = append(s.order, name)
	return v, nil
}

// Lookup returns the vector for name without registering a missing name.
func (s *Space) Lookup(name string) (hrr.Vector, bool) {
	v, ok := s.vectors[name]
	return v, ok
}

// Names returns all registered names in registration order.
func (s *Space) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Export returns every registered entry in registration order, for
// persistence layers that need to reconstruct this exact registry.
func (s *Space) Export() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, Entry{Name: name, Vector: s.vectors[name].Clone()})
	}
	return out
}

// Restore registers name with a previously exported vector. The name must
// not already be registered and the vector must match the space dimension.
func (s *Space) Restore(name string, v hrr.Vector) error {
	if name == "" {
		return ErrEmptyName
	}
	if _, ok := s.vectors[name]; ok {
		return fmt.Errorf("%w: %q", ErrNameExists, name)
	}
	if v.Dim() != s.dim {
		return fmt.Errorf("restore %q: %w: %d vs %d", name, hrr.ErrDimensionMismatch, v.Dim(), s.dim)
	}
	if err := hrr.Validate(v); err != nil {
		return fmt.Errorf("restore %q: %w", name, err)
	}
	s.vectors[name] = v.Clone()
	s.order = append(s.order, name)
	return nil
}
