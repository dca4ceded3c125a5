// Package hologram implements a holographic associative memory: capsules of
// role-filler bindings superposed into fixed-dimension vectors, stored in an
// ordered collection that supports per-role nearest-symbol lookup and
// compositional partial-binding queries.
package hologram

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dgraph-io/ristretto"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"

	"github.com/Harshitk-cp/holomem/hrr"
	"github.com/Harshitk-cp/holomem/symbol"
)

const (
	// DefaultPairCacheBytes bounds the cache of bound (role, value) vectors.
	DefaultPairCacheBytes = 8 << 20

	// shortlistFactor sets how many index candidates are fetched per
	// requested result before the exact re-rank.
	shortlistFactor = 4
)

var (
	// ErrInvalidSymbolName is returned when a filler/value name is empty.
	ErrInvalidSymbolName = errors.New("hologram: invalid symbol name")

	// ErrInvalidRoleName is returned when a role name is empty.
	ErrInvalidRoleName = errors.New("hologram: invalid role name")
)

// SymbolMatch is one ranked result of FindBestSymbolForRole.
type SymbolMatch struct {
	Symbol     string
	Similarity float64
}

// CapsuleMatch is one ranked result of CompositionalQuery. Score is the
// probe-aggregate cosine similarity weighted by the capsule's effective
// weight; Similarity is the unweighted cosine.
type CapsuleMatch struct {
	Capsule    *Capsule
	Similarity float64
	Score      float64
}

// Memory is the queryable store of capsules plus the shared symbol and role
// registries used to build them. It performs no internal locking: callers
// must serialize mutating calls (CreateCapsule, RestoreCapsule, Consolidate,
// DecaySweep) against everything else. Queries are read-only and never
// register new names.
type Memory struct {
	dim      int
	symbols  *symbol.Space
	roles    *symbol.Space
	capsules []*Capsule
	byID     map[uuid.UUID]*Capsule
	decay    DecayFunc
	logger   *zap.Logger
	pairs    *ristretto.Cache
	index    *symbolIndex
	now      func() time.Time
}

type options struct {
	dim            int
	seed           int64
	seeded         bool
	symbols        *symbol.Space
	roles          *symbol.Space
	decay          DecayFunc
	logger         *zap.Logger
	clock          func() time.Time
	indexSymbols   bool
	pairCacheBytes int64
}

// Option configures a Memory.
type Option func(*options)

// WithDimension sets the vector dimension (default 512).
func WithDimension(dim int) Option { return func(o *options) { o.dim = dim } }

// WithSeed makes both registries draw deterministically from the seed, so
// two stores built with the same seed that register the same names in the
// same order hold identical vectors.
func WithSeed(seed int64) Option {
	return func(o *options) { o.seed, o.seeded = seed, true }
}

// WithSpaces shares existing registries instead of constructing fresh ones.
// Both spaces must have the same dimension; it overrides WithDimension and
// WithSeed. The registries live as long as the longest-lived store
// referencing them.
func WithSpaces(symbols, roles *symbol.Space) Option {
	return func(o *options) { o.symbols, o.roles = symbols, roles }
}

// WithDecay sets the decay policy applied to capsule importance (default
// exponential with DefaultHalfLife).
func WithDecay(d DecayFunc) Option { return func(o *options) { o.decay = d } }

// WithLogger sets the structured logger (default no-op).
func WithLogger(l *zap.Logger) Option { return func(o *options) { o.logger = l } }

// WithClock overrides the time source used for capsule ages; tests use it to
// pin effective weights.
func WithClock(now func() time.Time) Option { return func(o *options) { o.clock = now } }

// WithSymbolIndex maintains an embedded cosine index over the symbol
// registry, shortlisting candidates for FindBestSymbolForRole before the
// exact re-rank. Worth enabling for large symbol vocabularies.
func WithSymbolIndex() Option { return func(o *options) { o.indexSymbols = true } }

// WithPairCache bounds the cache of bound (role, value) probe components in
// bytes; 0 disables the cache. Default DefaultPairCacheBytes.
func WithPairCache(bytes int64) Option {
	return func(o *options) { o.pairCacheBytes = bytes }
}

// New creates an empty Memory.
func New(opts ...Option) (*Memory, error) {
	o := &options{
		dim:            hrr.DefaultDimension,
		decay:          ExponentialDecay(DefaultHalfLife),
		logger:         zap.NewNop(),
		clock:          time.Now,
		pairCacheBytes: DefaultPairCacheBytes,
	}
	for _, opt := range opts {
		opt(o)
	}

	m := &Memory{
		decay:  o.decay,
		logger: o.logger,
		byID:   make(map[uuid.UUID]*Capsule),
		now:    o.clock,
	}

	switch {
	case o.symbols != nil || o.roles != nil:
		if o.symbols == nil || o.roles == nil {
			return nil, errors.New("hologram: WithSpaces requires both registries")
		}
		if o.symbols.Dim() != o.roles.Dim() {
			return nil, fmt.Errorf("hologram: registry dimensions differ: %w: %d vs %d",
				hrr.ErrDimensionMismatch, o.symbols.Dim(), o.roles.Dim())
		}
		m.symbols, m.roles = o.symbols, o.roles
		m.dim = o.symbols.Dim()
	default:
		if o.dim < 2 {
			return nil, fmt.Errorf("hologram: dimension must be at least 2, got %d", o.dim)
		}
		m.dim = o.dim
		if o.seeded {
			m.symbols = symbol.NewSpace(o.dim, symbol.WithSeed(o.seed))
			m.roles = symbol.NewSpace(o.dim, symbol.WithSeed(o.seed+1))
		} else {
			m.symbols = symbol.NewSpace(o.dim)
			m.roles = symbol.NewSpace(o.dim)
		}
	}

	if o.pairCacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config{
			NumCounters: 10_000,
			MaxCost:     o.pairCacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("hologram: pair cache: %w", err)
		}
		m.pairs = cache
	}
	if o.indexSymbols {
		idx, err := newSymbolIndex()
		if err != nil {
			return nil, fmt.Errorf("hologram: symbol index: %w", err)
		}
		m.index = idx
	}
	return m, nil
}

// Dimension returns the store's configured vector dimension.
func (m *Memory) Dimension() int { return m.dim }

// Len returns the number of stored capsules.
func (m *Memory) Len() int { return len(m.capsules) }

// Capsules returns the stored capsules in insertion order.
func (m *Memory) Capsules() []*Capsule {
	out := make([]*Capsule, len(m.capsules))
	copy(out, m.capsules)
	return out
}

// Get returns the capsule with the given ID.
func (m *Memory) Get(id uuid.UUID) (*Capsule, bool) {
	c, ok := m.byID[id]
	return c, ok
}

// Symbols returns the shared filler registry.
func (m *Memory) Symbols() *symbol.Space { return m.symbols }

// Roles returns the shared role registry.
func (m *Memory) Roles() *symbol.Space { return m.roles }

// CreateCapsule builds a capsule from role→value name pairs, resolving each
// value through the symbol registry, stores it, and returns it. The capsule
// is immediately visible to subsequent queries. Role names are processed in
// sorted order so that seeded stores register names deterministically.
func (m *Memory) CreateCapsule(bindings map[string]string, importance float64) (*Capsule, error) {
	c := newCapsule(m.roles, importance, m.decay, m.now())
	c.bind = m.boundPair

	for _, role := range sortedKeys(bindings) {
		value := bindings[role]
		if role == "" {
			return nil, ErrInvalidRoleName
		}
		if value == "" {
			return nil, fmt.Errorf("%w: role %q", ErrInvalidSymbolName, role)
		}
		filler, err := m.symbols.Get(value)
		if err != nil {
			return nil, fmt.Errorf("create capsule: resolve %q: %w", value, err)
		}
		if m.index != nil {
			if err := m.index.ensure(value, filler); err != nil {
				return nil, fmt.Errorf("create capsule: index %q: %w", value, err)
			}
		}
		if err := c.addNamed(role, value, filler, 1.0); err != nil {
			return nil, fmt.Errorf("create capsule: %w", err)
		}
	}

	m.capsules = append(m.capsules, c)
	m.byID[c.id] = c
	m.logger.Debug("capsule created",
		zap.String("capsule_id", c.id.String()),
		zap.Int("bindings", len(c.order)),
		zap.Float64("importance", importance))
	return c, nil
}

// FindBestSymbolForRole unbinds role from every capsule that has it bound,
// compares each candidate against the registered symbols, and returns the
// global top-k (symbol, similarity) pairs, best first. A symbol appearing in
// several capsules is reported once with its best similarity. Ties break by
// symbol registration order. An empty store, or a role no capsule has bound,
// yields an empty result, not an error.
func (m *Memory) FindBestSymbolForRole(role string, topK int) ([]SymbolMatch, error) {
	if role == "" {
		return nil, ErrInvalidRoleName
	}
	if topK <= 0 || len(m.capsules) == 0 {
		return nil, nil
	}
	roleVec, ok := m.roles.Lookup(role)
	if !ok {
		return nil, nil
	}

	names := m.symbols.Names()
	best := make(map[string]float64)
	for _, c := range m.capsules {
		if !c.has(role) {
			continue
		}
		candidate, err := hrr.Unbind(c.aggregate, roleVec)
		if err != nil {
			return nil, fmt.Errorf("find symbol for role %q: %w", role, err)
		}
		scan := names
		if m.index != nil && m.index.usable(len(names)) {
			shortlist, err := m.index.shortlist(candidate, topK*shortlistFactor)
			if err != nil {
				return nil, fmt.Errorf("find symbol for role %q: %w", role, err)
			}
			scan = shortlist
		}
		for _, name := range scan {
			sv, ok := m.symbols.Lookup(name)
			if !ok {
				continue
			}
			sim, err := hrr.Similarity(candidate, sv)
			if err != nil {
				return nil, fmt.Errorf("find symbol for role %q: %w", role, err)
			}
			if prev, seen := best[name]; !seen || sim > prev {
				best[name] = sim
			}
		}
	}
	if len(best) == 0 {
		return nil, nil
	}

	// Assemble in registration order so the stable sort breaks ties by the
	// first-registered symbol.
	matches := make([]SymbolMatch, 0, len(best))
	for _, name := range names {
		if sim, ok := best[name]; ok {
			matches = append(matches, SymbolMatch{Symbol: name, Similarity: sim})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Similarity > matches[j].Similarity
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// CompositionalQuery builds a probe vector from the partial role→value
// bindings exactly the way CreateCapsule would superpose them, without
// storing it, and ranks all capsules by probe-aggregate cosine similarity
// weighted by each capsule's effective weight. Pairs whose role or value was
// never registered contribute nothing; if no pair is known the result is
// empty. Empty role or value names are rejected even when the store or the
// query is otherwise empty. Ties break by capsule insertion order.
func (m *Memory) CompositionalQuery(partial map[string]string, topK int) ([]CapsuleMatch, error) {
	for role, value := range partial {
		if role == "" {
			return nil, ErrInvalidRoleName
		}
		if value == "" {
			return nil, fmt.Errorf("%w: role %q", ErrInvalidSymbolName, role)
		}
	}
	if topK <= 0 || len(partial) == 0 || len(m.capsules) == 0 {
		return nil, nil
	}

	probe := make(hrr.Vector, m.dim)
	known := 0
	for _, role := range sortedKeys(partial) {
		value := partial[role]
		if _, ok := m.roles.Lookup(role); !ok {
			continue
		}
		filler, ok := m.symbols.Lookup(value)
		if !ok {
			continue
		}
		bound, err := m.boundPair(role, filler, value)
		if err != nil {
			return nil, fmt.Errorf("compositional query: %w", err)
		}
		floats.AddScaled(probe, 1.0, bound)
		known++
	}
	if known == 0 {
		return nil, nil
	}
	probe = hrr.Normalize(probe)

	now := m.now()
	matches := make([]CapsuleMatch, 0, len(m.capsules))
	for _, c := range m.capsules {
		sim, err := hrr.Similarity(probe, c.aggregate)
		if err != nil {
			return nil, fmt.Errorf("compositional query: %w", err)
		}
		matches = append(matches, CapsuleMatch{
			Capsule:    c,
			Similarity: sim,
			Score:      sim * c.EffectiveWeight(now),
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// boundPair returns Bind(roleVector, filler), caching by (role, value) name
// when the filler is a registered symbol.
func (m *Memory) boundPair(role string, filler hrr.Vector, fillerName string) (hrr.Vector, error) {
	var key string
	if m.pairs != nil && fillerName != "" {
		key = role + "\x1f" + fillerName
		if v, ok := m.pairs.Get(key); ok {
			if vec, ok := v.(hrr.Vector); ok {
				return vec, nil
			}
		}
	}
	roleVec, err := m.roles.Get(role)
	if err != nil {
		return nil, err
	}
	bound, err := hrr.Bind(roleVec, filler)
	if err != nil {
		return nil, err
	}
	if key != "" {
		m.pairs.Set(key, bound, int64(8*len(bound)))
	}
	return bound, nil
}

// RestoredBinding is one persisted binding of a snapshot capsule.
type RestoredBinding struct {
	Role   string
	Symbol string
	Weight float64
}

// RestoredCapsule carries the persisted state a snapshot layer replays
// through RestoreCapsule.
type RestoredCapsule struct {
	ID             uuid.UUID
	Importance     float64
	CreatedAt      time.Time
	LastAccessedAt time.Time
	Bindings       []RestoredBinding
}

// RestoreCapsule rebuilds a capsule from persisted name-level state,
// preserving its identity and timestamps. The registries must already hold
// (or be able to regenerate) the named vectors; persistence layers restore
// the registries first so replay reproduces the original vectors exactly.
func (m *Memory) RestoreCapsule(rc RestoredCapsule) (*Capsule, error) {
	c := newCapsule(m.roles, rc.Importance, m.decay, rc.CreatedAt)
	c.bind = m.boundPair
	c.id = rc.ID
	c.lastAccess = rc.LastAccessedAt

	for _, b := range rc.Bindings {
		if b.Role == "" {
			return nil, ErrInvalidRoleName
		}
		if b.Symbol == "" {
			return nil, fmt.Errorf("%w: role %q", ErrInvalidSymbolName, b.Role)
		}
		filler, err := m.symbols.Get(b.Symbol)
		if err != nil {
			return nil, fmt.Errorf("restore capsule: resolve %q: %w", b.Symbol, err)
		}
		if m.index != nil {
			if err := m.index.ensure(b.Symbol, filler); err != nil {
				return nil, fmt.Errorf("restore capsule: index %q: %w", b.Symbol, err)
			}
		}
		if err := c.addNamed(b.Role, b.Symbol, filler, b.Weight); err != nil {
			return nil, fmt.Errorf("restore capsule: %w", err)
		}
	}

	m.capsules = append(m.capsules, c)
	m.byID[c.id] = c
	return c, nil
}

// SweepResult reports what a decay sweep changed.
type SweepResult struct {
	Evicted int
	Kept    int
}

// DecaySweep evicts every capsule whose effective weight has decayed below
// ArchiveThreshold.
func (m *Memory) DecaySweep() SweepResult {
	now := m.now()
	kept := m.capsules[:0]
	evicted := 0
	for _, c := range m.capsules {
		if c.EffectiveWeight(now) < ArchiveThreshold {
			delete(m.byID, c.id)
			evicted++
			continue
		}
		kept = append(kept, c)
	}
	m.capsules = kept
	if evicted > 0 {
		m.logger.Info("decay sweep complete",
			zap.Int("evicted", evicted),
			zap.Int("kept", len(kept)))
	}
	return SweepResult{Evicted: evicted, Kept: len(kept)}
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
