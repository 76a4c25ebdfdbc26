// Public domain.

package trend

import (
	"bufio"
	"fmt"
	"io"
	"sort"

	"github.com/justincely/cosmo/internal/cos"
)

// Diff pairs the dispersion shifts of the two FUV segments of one
// dataset.  Exposure fields come from the FUVA record.
type Diff struct {
	Dataset string
	MJD     float64
	OptElem string
	Cenwave int
	FPPos   int64 // -1 when unknown
	A, B    float64
}

// Value is the segment difference A - B.
func (d Diff) Value() float64 { return d.A - d.B }

// Differences pairs the first FUVA and first FUVB record of every FUV
// dataset, in dataset order.  A dataset lacking either segment, or whose
// first record of a segment has no dispersion shift, is left out.
func Differences(records []cos.Record) []Diff {
	type pair struct{ a, b *cos.Record }
	byDS := map[string]*pair{}
	for i := range records {
		r := &records[i]
		if r.Detector != cos.FUV {
			continue
		}
		p := byDS[r.Dataset]
		if p == nil {
			p = &pair{}
			byDS[r.Dataset] = p
		}
		switch {
		case r.Segment == cos.FUVA && p.a == nil:
			p.a = r
		case r.Segment == cos.FUVB && p.b == nil:
			p.b = r
		}
	}
	names := make([]string, 0, len(byDS))
	for ds := range byDS {
		names = append(names, ds)
	}
	sort.Strings(names)

	var diffs []Diff
	for _, ds := range names {
		p := byDS[ds]
		if p.a == nil || p.b == nil || !p.a.XShift.Valid || !p.b.XShift.Valid {
			continue
		}
		fp := int64(-1)
		if p.a.FPPos.Valid {
			fp = p.a.FPPos.Int64
		}
		diffs = append(diffs, Diff{
			Dataset: ds,
			MJD:     p.a.MJD,
			OptElem: p.a.OptElem,
			Cenwave: p.a.Cenwave,
			FPPos:   fp,
			A:       p.a.XShift.Float64,
			B:       p.b.XShift.Float64,
		})
	}
	return diffs
}

// ByCenwave groups diffs by central wavelength.  The cenwaves are
// returned in increasing order; each group keeps the order of diffs.
func ByCenwave(diffs []Diff) (cenwaves []int, groups map[int][]Diff) {
	groups = map[int][]Diff{}
	for _, d := range diffs {
		if _, ok := groups[d.Cenwave]; !ok {
			cenwaves = append(cenwaves, d.Cenwave)
		}
		groups[d.Cenwave] = append(groups[d.Cenwave], d)
	}
	sort.Ints(cenwaves)
	return
}

// WriteDifferences writes the difference report, one line per diff.
func WriteDifferences(w io.Writer, diffs []Diff) error {
	bw := bufio.NewWriter(w)
	for _, d := range diffs {
		fmt.Fprintf(bw, "%5.5f  %s  %d  %d   %3.2f  %3.2f  \n",
			d.MJD, d.OptElem, d.Cenwave, d.FPPos, d.A, d.B)
	}
	return bw.Flush()
}
