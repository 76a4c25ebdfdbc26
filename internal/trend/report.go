// Public domain.

package trend

import (
	"bufio"
	"fmt"
	"io"
)

// WriteReport writes the fit of every bucket and relation, one per line:
//
//	fit <view> <key> <n> <slope> <intercept> <slope_err>
//	relation <cenwave> <segment> <n> <slope> <intercept> <slope_err>
//
// Undefined values are written as NaN.
func WriteReport(w io.Writer, r *Result, rels []Relation) error {
	bw := bufio.NewWriter(w)
	for _, v := range r.Views() {
		for _, b := range v.Buckets {
			f := b.Fit
			fmt.Fprintf(bw, "fit %s %s %d %.6g %.6g %.6g\n",
				v.Name, b.Key, f.N, f.Slope, f.Intercept, f.SlopeErr)
		}
	}
	for _, rel := range rels {
		f := rel.Fit
		fmt.Fprintf(bw, "relation %d %s %d %.6g %.6g %.6g\n",
			rel.Cenwave, rel.Segment, f.N, f.Slope, f.Intercept, f.SlopeErr)
	}
	return bw.Flush()
}
