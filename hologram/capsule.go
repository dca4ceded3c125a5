package hologram

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"

	"github.com/Harshitk-cp/holomem/hrr"
	"github.com/Harshitk-cp/holomem/symbol"
)

// binding is one role→filler association inside a capsule.
type binding struct {
	filler hrr.Vector
	symbol string // filler's registry name; empty when bound from a raw vector
	weight float64
}

// binderFunc computes Bind(roleVector, filler) for a named role. The store
// injects a caching implementation; the default binds directly.
type binderFunc func(role string, filler hrr.Vector, fillerName string) (hrr.Vector, error)

// BindingInfo describes one binding without exposing the filler vector.
type BindingInfo struct {
	Symbol string  // registry name of the filler; empty for raw-vector bindings
	Weight float64
}

// Capsule is one associative episode: a set of role→filler bindings plus
// their holographic superposition. The aggregate vector always equals the
// renormalized weighted sum of Bind(roleVector, filler) over all current
// bindings; AddBinding recomputes it from scratch rather than drifting it
// incrementally.
type Capsule struct {
	id         uuid.UUID
	roles      *symbol.Space
	bindings   map[string]binding
	order      []string
	aggregate  hrr.Vector
	importance float64
	createdAt  time.Time
	lastAccess time.Time
	decay      DecayFunc
	bind       binderFunc
}

// NewCapsule creates an empty capsule drawing role vectors from roles.
// Capsules that should participate in a store's queries are created through
// Memory.CreateCapsule instead, so that roles and fillers come from the
// store's shared registries.
func NewCapsule(roles *symbol.Space, importance float64) *Capsule {
	return newCapsule(roles, importance, ExponentialDecay(DefaultHalfLife), time.Now())
}

func newCapsule(roles *symbol.Space, importance float64, decay DecayFunc, now time.Time) *Capsule {
	c := &Capsule{
		id:         uuid.New(),
		roles:      roles,
		bindings:   make(map[string]binding),
		aggregate:  make(hrr.Vector, roles.Dim()),
		importance: importance,
		createdAt:  now,
		lastAccess: now,
		decay:      decay,
	}
	c.bind = func(role string, filler hrr.Vector, _ string) (hrr.Vector, error) {
		rv, err := c.roles.Get(role)
		if err != nil {
			return nil, err
		}
		return hrr.Bind(rv, filler)
	}
	return c
}

// ID returns the capsule's identity.
func (c *Capsule) ID() uuid.UUID { return c.id }

// Importance returns the capsule's stored importance.
func (c *Capsule) Importance() float64 { return c.importance }

// CreatedAt returns the capsule's creation time.
func (c *Capsule) CreatedAt() time.Time { return c.createdAt }

// LastAccessedAt returns the time of the last UnbindRole call, or the
// creation time if the capsule was never unbound.
func (c *Capsule) LastAccessedAt() time.Time { return c.lastAccess }

// Age returns the capsule's age relative to now.
func (c *Capsule) Age(now time.Time) time.Duration {
	if now.Before(c.createdAt) {
		return 0
	}
	return now.Sub(c.createdAt)
}

// EffectiveWeight returns the age-decayed importance. It never exceeds
// Importance because the decay factor stays within [0, 1].
func (c *Capsule) EffectiveWeight(now time.Time) float64 {
	return c.importance * c.decay(c.Age(now))
}

// Roles returns the bound role names in binding order.
func (c *Capsule) Roles() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// Binding returns metadata for the binding under role.
func (c *Capsule) Binding(role string) (BindingInfo, bool) {
	b, ok := c.bindings[role]
	if !ok {
		return BindingInfo{}, false
	}
	return BindingInfo{Symbol: b.symbol, Weight: b.weight}, true
}

// Aggregate returns a copy of the capsule's superposition vector.
func (c *Capsule) Aggregate() hrr.Vector { return c.aggregate.Clone() }

// AddBinding binds the role's vector to filler, scaled by weight, and
// recomputes the aggregate. Re-binding an already-bound role silently
// overwrites the previous binding.
func (c *Capsule) AddBinding(role string, filler hrr.Vector, weight float64) error {
	return c.addNamed(role, "", filler, weight)
}

func (c *Capsule) addNamed(role, fillerName string, filler hrr.Vector, weight float64) error {
	if role == "" {
		return ErrInvalidRoleName
	}
	if filler.Dim() != c.roles.Dim() {
		return fmt.Errorf("add binding %q: %w: %d vs %d", role, hrr.ErrDimensionMismatch, filler.Dim(), c.roles.Dim())
	}
	if err := hrr.Validate(filler); err != nil {
		return fmt.Errorf("add binding %q: %w", role, err)
	}
	if _, exists := c.bindings[role]; !exists {
		c.order = append(c.order, role)
	}
	c.bindings[role] = binding{
		filler: hrr.Normalize(filler),
		symbol: fillerName,
		weight: weight,
	}
	return c.rebuild()
}

// rebuild recomputes the aggregate from every current binding.
func (c *Capsule) rebuild() error {
	sum := make(hrr.Vector, c.roles.Dim())
	for _, role := range c.order {
		b := c.bindings[role]
		bound, err := c.bind(role, b.filler, b.symbol)
		if err != nil {
			return fmt.Errorf("rebuild binding %q: %w", role, err)
		}
		floats.AddScaled(sum, b.weight, bound)
	}
	c.aggregate = hrr.Normalize(sum)
	return nil
}

// UnbindRole returns an approximate recovery of the filler bound to role by
// correlating the aggregate with the role's vector. Accuracy degrades with
// the number of distinct bindings in the capsule. The call records an access.
func (c *Capsule) UnbindRole(role string) (hrr.Vector, error) {
	if role == "" {
		return nil, ErrInvalidRoleName
	}
	rv, err := c.roles.Get(role)
	if err != nil {
		return nil, fmt.Errorf("unbind role %q: %w", role, err)
	}
	out, err := hrr.Unbind(c.aggregate, rv)
	if err != nil {
		return nil, fmt.Errorf("unbind role %q: %w", role, err)
	}
	c.lastAccess = time.Now()
	return out, nil
}

func (c *Capsule) has(role string) bool {
	_, ok := c.bindings[role]
	return ok
}
