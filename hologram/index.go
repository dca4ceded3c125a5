package hologram

import (
	"context"

	chromem "github.com/philippgille/chromem-go"

	"github.com/Harshitk-cp/holomem/hrr"
)

// symbolIndex keeps an embedded cosine index over the symbol registry so
// FindBestSymbolForRole can shortlist candidates instead of scanning every
// registered symbol. The shortlist is always re-ranked with exact cosine
// similarity, so result ordering and tie-breaking match the linear scan.
type symbolIndex struct {
	col  *chromem.Collection
	seen map[string]bool
}

func newSymbolIndex() (*symbolIndex, error) {
	db := chromem.NewDB()
	col, err := db.CreateCollection("symbols", nil, nil)
	if err != nil {
		return nil, err
	}
	return &symbolIndex{col: col, seen: make(map[string]bool)}, nil
}

// ensure indexes the symbol if it is not present yet.
func (x *symbolIndex) ensure(name string, v hrr.Vector) error {
	if x.seen[name] {
		return nil
	}
	err := x.col.AddDocument(context.Background(), chromem.Document{
		ID:        name,
		Content:   name,
		Embedding: toFloat32(v),
	})
	if err != nil {
		return err
	}
	x.seen[name] = true
	return nil
}

// usable reports whether the index covers the whole registry. Symbols
// registered on a shared registry by another store bypass the index, in
// which case callers fall back to the linear scan.
func (x *symbolIndex) usable(symbolCount int) bool {
	return symbolCount > 0 && len(x.seen) == symbolCount
}

// shortlist returns the names of up to n nearest indexed symbols.
func (x *symbolIndex) shortlist(candidate hrr.Vector, n int) ([]string, error) {
	if n > len(x.seen) {
		n = len(x.seen)
	}
	if n <= 0 {
		return nil, nil
	}
	results, err := x.col.QueryEmbedding(context.Background(), toFloat32(candidate), n, nil, nil)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(results))
	for _, r := range results {
		names = append(names, r.ID)
	}
	return names, nil
}

func toFloat32(v hrr.Vector) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
