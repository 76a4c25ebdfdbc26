// Public domain.

// Package trend aggregates measured shifts over time.
//
// Records are grouped by configuration, reduced to one median per day,
// and fitted with a straight line in MJD.  The package also pairs the two
// FUV segments of each exposure for the segment difference report and
// collects the cross-dispersion against dispersion relations.
package trend

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"gonum.org/v1/gonum/stat"

	"github.com/justincely/cosmo/internal/cos"
)

// Key identifies a bucket.  Fields that are not part of a grouping are
// zero.
type Key struct {
	OptElem string
	Cenwave int
	Segment string
}

func (k Key) String() string {
	s := k.OptElem
	if k.Cenwave != 0 {
		s += "/" + strconv.Itoa(k.Cenwave)
	}
	if k.Segment != "" {
		s += "/" + k.Segment
	}
	return s
}

func (k Key) less(o Key) bool {
	switch {
	case k.OptElem != o.OptElem:
		return k.OptElem < o.OptElem
	case k.Cenwave != o.Cenwave:
		return k.Cenwave < o.Cenwave
	}
	return k.Segment < o.Segment
}

// Day is the median dispersion shift of one integer MJD.
type Day struct {
	MJD    int
	Median float64
	N      int
}

// Fit is a least squares line y = Intercept + Slope*x.  With fewer than
// two distinct x values the line is undefined and all three parameters
// are NaN.  SlopeErr, the standard error of the slope, needs at least
// three points.
type Fit struct {
	Slope     float64
	Intercept float64
	SlopeErr  float64
	N         int
}

// At evaluates the line at x.
func (f Fit) At(x float64) float64 { return f.Intercept + f.Slope*x }

// Valid reports whether the line is defined.
func (f Fit) Valid() bool { return !math.IsNaN(f.Slope) }

func (f Fit) String() string {
	return fmt.Sprintf("%3.5fx +/- %3.5f (n=%d)", f.Slope, f.SlopeErr, f.N)
}

// Bucket holds the records of one configuration in MJD order with the
// derived daily series and its fit.
type Bucket struct {
	Key     Key
	Records []cos.Record
	Days    []Day
	Fit     Fit
}

// Options control aggregation.
type Options struct {
	// PositiveOnly lists optical elements for which only positive
	// dispersion shifts are meaningful.  Other records of these elements
	// are left out of every view.
	PositiveOnly []string
}

// DefaultPositiveOnly are the NUV mirrors, which report non-positive
// shifts when the lamp was not found.
var DefaultPositiveOnly = []string{"MIRRORA", "MIRRORB"}

// DefaultOptions returns the options the monitor runs with.
func DefaultOptions() Options {
	return Options{PositiveOnly: DefaultPositiveOnly}
}

// Result holds the aggregated views.  Buckets in each view are ordered
// by key.
type Result struct {
	// Records are the input records in aggregation order: by MJD, then
	// dataset, segment and flash.
	Records []cos.Record

	ByElementSegment []*Bucket
	ByElementCenwave []*Bucket
	ByElement        []*Bucket
}

// Aggregate groups records into the three views and fits each bucket.
// The input is not modified.  Records without a dispersion shift appear
// in Result.Records but in no bucket.
func Aggregate(records []cos.Record, opts Options) *Result {
	sorted := SortRecords(records)
	pos := map[string]bool{}
	for _, e := range opts.PositiveOnly {
		pos[e] = true
	}
	bySeg := map[Key]*Bucket{}
	byCen := map[Key]*Bucket{}
	byElem := map[Key]*Bucket{}
	add := func(m map[Key]*Bucket, k Key, r cos.Record) {
		b := m[k]
		if b == nil {
			b = &Bucket{Key: k}
			m[k] = b
		}
		b.Records = append(b.Records, r)
	}
	for _, r := range sorted {
		if !r.XShift.Valid {
			continue
		}
		if pos[r.OptElem] && r.XShift.Float64 <= 0 {
			continue
		}
		add(bySeg, Key{OptElem: r.OptElem, Segment: r.Segment}, r)
		add(byCen, Key{OptElem: r.OptElem, Cenwave: r.Cenwave}, r)
		add(byElem, Key{OptElem: r.OptElem}, r)
	}
	return &Result{
		Records:          sorted,
		ByElementSegment: finish(bySeg),
		ByElementCenwave: finish(byCen),
		ByElement:        finish(byElem),
	}
}

func finish(m map[Key]*Bucket) []*Bucket {
	bs := make([]*Bucket, 0, len(m))
	for _, b := range m {
		b.Days = Daily(b.Records)
		x := make([]float64, len(b.Days))
		y := make([]float64, len(b.Days))
		for i, d := range b.Days {
			x[i] = float64(d.MJD)
			y[i] = d.Median
		}
		b.Fit = FitLine(x, y)
		bs = append(bs, b)
	}
	sort.Slice(bs, func(i, j int) bool { return bs[i].Key.less(bs[j].Key) })
	return bs
}

// Names of the views of a Result.
const (
	ViewElementSegment = "element_segment"
	ViewElementCenwave = "element_cenwave"
	ViewElement        = "element"
)

// View is one grouping of a Result.
type View struct {
	Name    string
	Buckets []*Bucket
}

// Views lists the groupings of r in a fixed order.
func (r *Result) Views() []View {
	return []View{
		{ViewElementSegment, r.ByElementSegment},
		{ViewElementCenwave, r.ByElementCenwave},
		{ViewElement, r.ByElement},
	}
}

// Find returns the bucket with key k, or nil.
func Find(bs []*Bucket, k Key) *Bucket {
	i := sort.Search(len(bs), func(i int) bool { return !bs[i].Key.less(k) })
	if i < len(bs) && bs[i].Key == k {
		return bs[i]
	}
	return nil
}

// SortRecords returns a copy of records ordered by MJD, then dataset,
// segment and flash.  Equal records keep their input order.
func SortRecords(records []cos.Record) []cos.Record {
	s := append([]cos.Record(nil), records...)
	sort.SliceStable(s, func(i, j int) bool {
		a, b := &s[i], &s[j]
		switch {
		case a.MJD != b.MJD:
			return a.MJD < b.MJD
		case a.Dataset != b.Dataset:
			return a.Dataset < b.Dataset
		case a.Segment != b.Segment:
			return a.Segment < b.Segment
		}
		return a.Flash < b.Flash
	})
	return s
}

// Daily reduces records to the median dispersion shift of each distinct
// integer MJD, in day order.  Records without a dispersion shift are
// ignored.
func Daily(records []cos.Record) []Day {
	byDay := map[int][]float64{}
	for _, r := range records {
		if !r.XShift.Valid {
			continue
		}
		d := int(math.Floor(r.MJD))
		byDay[d] = append(byDay[d], r.XShift.Float64)
	}
	days := make([]Day, 0, len(byDay))
	for d, v := range byDay {
		days = append(days, Day{MJD: d, Median: Median(v), N: len(v)})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].MJD < days[j].MJD })
	return days
}

// Median returns the middle value of v, or the mean of the two middle
// values when len(v) is even.  v is reordered.  The median of nothing
// is NaN.
func Median(v []float64) float64 {
	n := len(v)
	if n == 0 {
		return math.NaN()
	}
	sort.Float64s(v)
	if n%2 == 1 {
		return v[n/2]
	}
	return (v[n/2-1] + v[n/2]) / 2
}

// FitLine fits y = a + bx by ordinary least squares.
func FitLine(x, y []float64) Fit {
	nan := math.NaN()
	f := Fit{Slope: nan, Intercept: nan, SlopeErr: nan, N: len(x)}
	if len(x) < 2 {
		return f
	}
	mx := stat.Mean(x, nil)
	var sxx float64
	for _, xi := range x {
		sxx += (xi - mx) * (xi - mx)
	}
	if sxx == 0 {
		return f
	}
	f.Intercept, f.Slope = stat.LinearRegression(x, y, nil, false)
	if len(x) < 3 {
		return f
	}
	var ssr float64
	for i := range x {
		r := y[i] - f.At(x[i])
		ssr += r * r
	}
	f.SlopeErr = math.Sqrt(ssr / float64(len(x)-2) / sxx)
	return f
}
