// Public domain.

package trend

import (
	"sort"

	"github.com/justincely/cosmo/internal/cos"
)

// Relation is the cross-dispersion shift against the dispersion shift of
// one cenwave and segment.
type Relation struct {
	Cenwave int
	Segment string
	X, Y    []float64
	Fit     Fit
}

// Relations collects (x_shift, y_shift) pairs per cenwave and segment in
// record order, ordered by cenwave then segment.  Records missing either
// shift are skipped.
func Relations(records []cos.Record) []Relation {
	type key struct {
		cenwave int
		segment string
	}
	m := map[key]*Relation{}
	for _, r := range SortRecords(records) {
		if !r.XShift.Valid || !r.YShift.Valid {
			continue
		}
		k := key{r.Cenwave, r.Segment}
		rel := m[k]
		if rel == nil {
			rel = &Relation{Cenwave: r.Cenwave, Segment: r.Segment}
			m[k] = rel
		}
		rel.X = append(rel.X, r.XShift.Float64)
		rel.Y = append(rel.Y, r.YShift.Float64)
	}
	rels := make([]Relation, 0, len(m))
	for _, rel := range m {
		rel.Fit = FitLine(rel.X, rel.Y)
		rels = append(rels, *rel)
	}
	sort.Slice(rels, func(i, j int) bool {
		if rels[i].Cenwave != rels[j].Cenwave {
			return rels[i].Cenwave < rels[j].Cenwave
		}
		return rels[i].Segment < rels[j].Segment
	})
	return rels
}
