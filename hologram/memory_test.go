package hologram

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/Harshitk-cp/holomem/hrr"
	"github.com/Harshitk-cp/holomem/symbol"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func newTestMemory(t *testing.T, opts ...Option) *Memory {
	t.Helper()
	m, err := New(opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func TestCreateCapsule_ImmediatelyVisible(t *testing.T) {
	m := newTestMemory(t, WithSeed(1))
	c, err := m.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0)
	if err != nil {
		t.Fatalf("CreateCapsule: %v", err)
	}
	if m.Len() != 1 {
		t.Fatalf("Len = %d, want 1", m.Len())
	}
	if got, ok := m.Get(c.ID()); !ok || got != c {
		t.Fatal("capsule not retrievable by ID")
	}

	matches, err := m.FindBestSymbolForRole("WHO", 1)
	if err != nil {
		t.Fatalf("FindBestSymbolForRole: %v", err)
	}
	if len(matches) != 1 || matches[0].Symbol != "alice" {
		t.Fatalf("matches = %v, want [alice]", matches)
	}
}

func TestFindBestSymbolForRole_RecoversFiller(t *testing.T) {
	m := newTestMemory(t, WithSeed(42))
	_, err := m.CreateCapsule(map[string]string{
		"WHO":   "alice",
		"WHAT":  "reading",
		"WHERE": "library",
	}, 1.0)
	if err != nil {
		t.Fatalf("CreateCapsule: %v", err)
	}

	matches, err := m.FindBestSymbolForRole("WHAT", 1)
	if err != nil {
		t.Fatalf("FindBestSymbolForRole: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].Symbol != "reading" {
		t.Errorf("best symbol = %q, want \"reading\"", matches[0].Symbol)
	}
	// Crosstalk from the two sibling bindings bounds the attainable
	// similarity near 1/sqrt(3); anything clearly above the noise floor
	// and first in the ranking is a correct recovery.
	if matches[0].Similarity < 0.45 {
		t.Errorf("similarity = %f, want well above noise", matches[0].Similarity)
	}
}

func TestCompositionalQuery_RanksMatchingCapsules(t *testing.T) {
	now := time.Now()
	m := newTestMemory(t, WithSeed(2), WithClock(fixedClock(now)))

	mustCreate := func(where string) *Capsule {
		c, err := m.CreateCapsule(map[string]string{"WHERE": where}, 1.0)
		if err != nil {
			t.Fatalf("CreateCapsule(%s): %v", where, err)
		}
		return c
	}
	lib1 := mustCreate("library")
	mustCreate("kitchen")
	lib2 := mustCreate("library")

	matches, err := m.CompositionalQuery(map[string]string{"WHERE": "library"}, 2)
	if err != nil {
		t.Fatalf("CompositionalQuery: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("got %d matches, want 2", len(matches))
	}
	got := map[*Capsule]bool{matches[0].Capsule: true, matches[1].Capsule: true}
	if !got[lib1] || !got[lib2] {
		t.Errorf("top-2 should be the two library capsules, got %v", matches)
	}
	if matches[0].Score < matches[1].Score {
		t.Errorf("results not sorted by score: %f < %f", matches[0].Score, matches[1].Score)
	}
}

func TestQueries_EmptyStoreAndUnknownNames(t *testing.T) {
	m := newTestMemory(t, WithSeed(3))

	if matches, err := m.FindBestSymbolForRole("WHAT", 5); err != nil || len(matches) != 0 {
		t.Errorf("empty store lookup: matches=%v err=%v, want empty and nil", matches, err)
	}

	if _, err := m.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0); err != nil {
		t.Fatal(err)
	}

	if matches, err := m.FindBestSymbolForRole("NEVER_BOUND", 5); err != nil || len(matches) != 0 {
		t.Errorf("unknown role lookup: matches=%v err=%v, want empty and nil", matches, err)
	}

	symbolsBefore := m.Symbols().Len()
	rolesBefore := m.Roles().Len()
	matches, err := m.CompositionalQuery(map[string]string{"COLOR": "purple"}, 5)
	if err != nil || len(matches) != 0 {
		t.Errorf("unknown pair query: matches=%v err=%v, want empty and nil", matches, err)
	}
	if m.Symbols().Len() != symbolsBefore || m.Roles().Len() != rolesBefore {
		t.Error("read-only query registered new names")
	}
}

func TestQueries_InvalidNames(t *testing.T) {
	m := newTestMemory(t, WithSeed(4))

	if _, err := m.CreateCapsule(map[string]string{"": "alice"}, 1.0); !errors.Is(err, ErrInvalidRoleName) {
		t.Errorf("empty role on create: got %v, want ErrInvalidRoleName", err)
	}
	if _, err := m.CreateCapsule(map[string]string{"WHO": ""}, 1.0); !errors.Is(err, ErrInvalidSymbolName) {
		t.Errorf("empty value on create: got %v, want ErrInvalidSymbolName", err)
	}
	if _, err := m.FindBestSymbolForRole("", 1); !errors.Is(err, ErrInvalidRoleName) {
		t.Errorf("empty role on lookup: got %v, want ErrInvalidRoleName", err)
	}
	if _, err := m.CompositionalQuery(map[string]string{"": "x"}, 1); !errors.Is(err, ErrInvalidRoleName) {
		t.Errorf("empty role on query: got %v, want ErrInvalidRoleName", err)
	}
	if _, err := m.CompositionalQuery(map[string]string{"WHO": ""}, 1); !errors.Is(err, ErrInvalidSymbolName) {
		t.Errorf("empty value on query: got %v, want ErrInvalidSymbolName", err)
	}
	// Name validation must win over every short-circuit: empty store (no
	// capsule was created above), zero topK, and both at once.
	if m.Len() != 0 {
		t.Fatalf("store should still be empty, has %d capsules", m.Len())
	}
	if _, err := m.CompositionalQuery(map[string]string{"": "x"}, 0); !errors.Is(err, ErrInvalidRoleName) {
		t.Errorf("empty role with zero topK: got %v, want ErrInvalidRoleName", err)
	}
	if _, err := m.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0); err != nil {
		t.Fatal(err)
	}
	if _, err := m.CompositionalQuery(map[string]string{"WHO": ""}, 0); !errors.Is(err, ErrInvalidSymbolName) {
		t.Errorf("empty value with zero topK: got %v, want ErrInvalidSymbolName", err)
	}
}

func TestQueries_Deterministic(t *testing.T) {
	now := time.Now()
	m := newTestMemory(t, WithSeed(5), WithClock(fixedClock(now)))

	for _, bindings := range []map[string]string{
		{"WHO": "alice", "WHAT": "reading", "WHERE": "library"},
		{"WHO": "bob", "WHAT": "cooking", "WHERE": "kitchen"},
		{"WHO": "alice", "WHAT": "writing", "WHERE": "office"},
	} {
		if _, err := m.CreateCapsule(bindings, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	first, err := m.FindBestSymbolForRole("WHAT", 3)
	if err != nil {
		t.Fatal(err)
	}
	second, err := m.FindBestSymbolForRole("WHAT", 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(first) != len(second) {
		t.Fatalf("result sizes differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Errorf("result %d differs across calls: %v vs %v", i, first[i], second[i])
		}
	}

	q1, err := m.CompositionalQuery(map[string]string{"WHO": "alice"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	q2, err := m.CompositionalQuery(map[string]string{"WHO": "alice"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := range q1 {
		if q1[i].Capsule != q2[i].Capsule || q1[i].Score != q2[i].Score {
			t.Errorf("query result %d differs across calls", i)
		}
	}
}

func TestCompositionalQuery_WeighsImportanceAndAge(t *testing.T) {
	now := time.Now()
	clock := now
	m := newTestMemory(t, WithSeed(6), WithClock(func() time.Time { return clock }))

	weak, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	strong, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	matches, err := m.CompositionalQuery(map[string]string{"WHERE": "library"}, 2)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Capsule != strong || matches[1].Capsule != weak {
		t.Error("higher importance should outrank lower at equal similarity and age")
	}

	// Age the store past several half-lives and add a fresh duplicate: the
	// young capsule outranks the decayed ones.
	clock = now.Add(10 * DefaultHalfLife)
	fresh, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	matches, err = m.CompositionalQuery(map[string]string{"WHERE": "library"}, 3)
	if err != nil {
		t.Fatal(err)
	}
	if matches[0].Capsule != fresh {
		t.Error("fresh capsule should outrank decayed capsules of equal similarity")
	}
}

func TestMemory_InsertionOrderPreserved(t *testing.T) {
	m := newTestMemory(t, WithSeed(7))
	var created []*Capsule
	for _, who := range []string{"alice", "bob", "carol"} {
		c, err := m.CreateCapsule(map[string]string{"WHO": who}, 1.0)
		if err != nil {
			t.Fatal(err)
		}
		created = append(created, c)
	}
	stored := m.Capsules()
	for i := range created {
		if stored[i] != created[i] {
			t.Fatalf("capsule %d out of insertion order", i)
		}
	}
}

func TestMemory_SharedSpaces(t *testing.T) {
	symbols := symbol.NewSpace(testDims, symbol.WithSeed(8))
	roles := symbol.NewSpace(testDims, symbol.WithSeed(9))

	m1 := newTestMemory(t, WithSpaces(symbols, roles))
	m2 := newTestMemory(t, WithSpaces(symbols, roles))

	if _, err := m1.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0); err != nil {
		t.Fatal(err)
	}
	if _, err := m2.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0); err != nil {
		t.Fatal(err)
	}

	a1, _ := m1.Symbols().Lookup("alice")
	a2, _ := m2.Symbols().Lookup("alice")
	sim, err := hrr.Similarity(a1, a2)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(sim-1) > 1e-9 {
		t.Errorf("shared registries should yield identical vectors, similarity = %f", sim)
	}
}

func TestMemory_IndependentStoresDoNotContaminate(t *testing.T) {
	m1 := newTestMemory(t)
	m2 := newTestMemory(t)

	if _, err := m1.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0); err != nil {
		t.Fatal(err)
	}
	if m2.Symbols().Len() != 0 || m2.Len() != 0 {
		t.Error("creating a capsule in one store affected another")
	}
}

func TestDecaySweep_EvictsStaleCapsules(t *testing.T) {
	now := time.Now()
	clock := now
	m := newTestMemory(t, WithSeed(10), WithClock(func() time.Time { return clock }))

	old, err := m.CreateCapsule(map[string]string{"WHO": "alice"}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	clock = now.Add(10 * DefaultHalfLife)
	young, err := m.CreateCapsule(map[string]string{"WHO": "bob"}, 1.0)
	if err != nil {
		t.Fatal(err)
	}

	result := m.DecaySweep()
	if result.Evicted != 1 || result.Kept != 1 {
		t.Fatalf("sweep = %+v, want 1 evicted / 1 kept", result)
	}
	if _, ok := m.Get(old.ID()); ok {
		t.Error("decayed capsule still retrievable")
	}
	if _, ok := m.Get(young.ID()); !ok {
		t.Error("fresh capsule was evicted")
	}
}

func TestConsolidate_MergesDuplicates(t *testing.T) {
	now := time.Now()
	m := newTestMemory(t, WithSeed(11), WithClock(fixedClock(now)))

	dup1, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 0.5)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.CreateCapsule(map[string]string{"WHERE": "kitchen"}, 1.0); err != nil {
		t.Fatal(err)
	}
	dup2, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 0.6)
	if err != nil {
		t.Fatal(err)
	}

	result, err := m.Consolidate(0)
	if err != nil {
		t.Fatalf("Consolidate: %v", err)
	}
	if result.Merged != 1 || result.Kept != 2 {
		t.Fatalf("result = %+v, want 1 merged / 2 kept", result)
	}
	if _, ok := m.Get(dup2.ID()); ok {
		t.Error("merged duplicate still present")
	}
	want := 0.6 + 0.25*0.6
	if got := dup1.Importance(); math.Abs(got-want) > 1e-9 {
		t.Errorf("survivor importance = %f, want %f", got, want)
	}
}

func TestConsolidate_ReinforcementIsCapped(t *testing.T) {
	now := time.Now()
	m := newTestMemory(t, WithSeed(11), WithClock(fixedClock(now)))

	survivor, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 1.0)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		if _, err := m.CreateCapsule(map[string]string{"WHERE": "library"}, 1.0); err != nil {
			t.Fatal(err)
		}
		result, err := m.Consolidate(0)
		if err != nil {
			t.Fatalf("Consolidate: %v", err)
		}
		if result.Merged != 1 {
			t.Fatalf("pass %d: merged %d capsules, want 1", i, result.Merged)
		}
		if got := survivor.Importance(); got > 1.0 {
			t.Fatalf("pass %d: importance grew to %f, want at most 1.0", i, got)
		}
	}
	if got := survivor.Importance(); got != 1.0 {
		t.Errorf("survivor importance = %f, want 1.0", got)
	}
}

func TestFindBestSymbolForRole_IndexMatchesLinearScan(t *testing.T) {
	episodes := []map[string]string{
		{"WHO": "alice", "WHAT": "reading"},
		{"WHO": "bob", "WHAT": "cooking"},
		{"WHO": "carol", "WHAT": "writing"},
		{"WHO": "dave", "WHAT": "running"},
	}

	plain := newTestMemory(t, WithSeed(12))
	indexed := newTestMemory(t, WithSeed(12), WithSymbolIndex())
	for _, e := range episodes {
		if _, err := plain.CreateCapsule(e, 1.0); err != nil {
			t.Fatal(err)
		}
		if _, err := indexed.CreateCapsule(e, 1.0); err != nil {
			t.Fatal(err)
		}
	}

	want, err := plain.FindBestSymbolForRole("WHAT", 1)
	if err != nil {
		t.Fatal(err)
	}
	got, err := indexed.FindBestSymbolForRole("WHAT", 1)
	if err != nil {
		t.Fatal(err)
	}
	if len(want) != 1 || len(got) != 1 {
		t.Fatalf("want/got sizes = %d/%d, want 1/1", len(want), len(got))
	}
	if got[0].Symbol != want[0].Symbol {
		t.Errorf("indexed best = %q, linear best = %q", got[0].Symbol, want[0].Symbol)
	}
	if math.Abs(got[0].Similarity-want[0].Similarity) > 1e-9 {
		t.Errorf("indexed similarity %f differs from linear %f", got[0].Similarity, want[0].Similarity)
	}
}

func TestNew_InvalidConfigurations(t *testing.T) {
	if _, err := New(WithDimension(1)); err == nil {
		t.Error("dimension 1 accepted")
	}
	s := symbol.NewSpace(128)
	if _, err := New(WithSpaces(s, symbol.NewSpace(256))); !errors.Is(err, hrr.ErrDimensionMismatch) {
		t.Errorf("mismatched registries: got %v, want ErrDimensionMismatch", err)
	}
	if _, err := New(WithSpaces(s, nil)); err == nil {
		t.Error("half-supplied registries accepted")
	}
}
