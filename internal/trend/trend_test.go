// Public domain.

package trend_test

import (
	"bytes"
	"database/sql"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/trend"
)

func rec(ds string, mjd float64, elem string, cenwave int, seg string, x float64) cos.Record {
	det := cos.FUV
	if seg != cos.FUVA && seg != cos.FUVB {
		det = cos.NUV
	}
	return cos.Record{
		MJD:      mjd,
		Dataset:  ds,
		Detector: det,
		OptElem:  elem,
		Cenwave:  cenwave,
		Segment:  seg,
		FPPos:    sql.NullInt64{Int64: 3, Valid: true},
		Flash:    1,
		XShift:   sql.NullFloat64{Float64: x, Valid: true},
		YShift:   sql.NullFloat64{Float64: x / 10, Valid: true},
		Found:    true,
	}
}

var medianCases = []struct {
	v    []float64
	want float64
}{
	{[]float64{3}, 3},
	{[]float64{1, 3}, 2},
	{[]float64{5, 1, 3}, 3},
	{[]float64{4, 1, 3, 2}, 2.5},
	{[]float64{-1, -1, 7}, -1},
}

func TestMedian(t *testing.T) {
	for _, tc := range medianCases {
		assert.Equal(t, tc.want, trend.Median(tc.v), "%v", tc.v)
	}
	assert.True(t, math.IsNaN(trend.Median(nil)))
}

func TestDaily(t *testing.T) {
	null := rec("x", 55001.5, "G130M", 1291, "FUVA", 0)
	null.XShift.Valid = false
	got := trend.Daily([]cos.Record{
		rec("a", 55002.5, "G130M", 1291, "FUVA", 10),
		rec("b", 55000.1, "G130M", 1291, "FUVA", 1),
		null,
		rec("c", 55000.9, "G130M", 1291, "FUVA", 3),
	})
	assert.Equal(t, []trend.Day{{MJD: 55000, Median: 2, N: 2}, {MJD: 55002, Median: 10, N: 1}}, got)
}

func TestFitLine(t *testing.T) {
	f := trend.FitLine([]float64{0, 1, 2, 3}, []float64{1, 3, 5, 7})
	assert.InDelta(t, 2, f.Slope, 1e-12)
	assert.InDelta(t, 1, f.Intercept, 1e-12)
	assert.InDelta(t, 0, f.SlopeErr, 1e-12)
	assert.Equal(t, 4, f.N)
	assert.True(t, f.Valid())

	f = trend.FitLine([]float64{0, 1, 2, 3}, []float64{0, 1, 1, 2})
	assert.InDelta(t, 0.6, f.Slope, 1e-12)
	assert.InDelta(t, 0.1, f.Intercept, 1e-12)
	assert.InDelta(t, math.Sqrt(0.02), f.SlopeErr, 1e-12)

	f = trend.FitLine([]float64{10, 11}, []float64{1, 2})
	assert.InDelta(t, 1, f.Slope, 1e-12)
	assert.True(t, math.IsNaN(f.SlopeErr))

	for _, x := range [][]float64{nil, {5}, {5, 5, 5}} {
		f = trend.FitLine(x, make([]float64, len(x)))
		assert.False(t, f.Valid(), "%v", x)
		assert.Equal(t, len(x), f.N)
	}
}

func shiftTable() []cos.Record {
	mirror := rec("m1", 55010.2, "MIRRORA", 0, "NUVA", -5)
	mirror.Detector = cos.NUV
	null := rec("n1", 55010.2, "G130M", 1291, "FUVA", 0)
	null.XShift.Valid = false
	return []cos.Record{
		rec("d3", 55002.7, "G130M", 1291, "FUVA", 6),
		rec("d1", 55000.5, "G130M", 1291, "FUVA", 2),
		rec("d1", 55000.5, "G130M", 1291, "FUVB", 1),
		rec("d2", 55001.5, "G130M", 1309, "FUVA", 4),
		rec("d2", 55001.5, "G130M", 1309, "FUVB", 3),
		rec("d3", 55002.7, "G130M", 1291, "FUVB", 5),
		rec("m2", 55011.2, "MIRRORA", 0, "NUVA", 500),
		mirror,
		null,
	}
}

func keys(bs []*trend.Bucket) []string {
	var s []string
	for _, b := range bs {
		s = append(s, b.Key.String())
	}
	return s
}

func TestAggregate(t *testing.T) {
	in := shiftTable()
	r := trend.Aggregate(in, trend.DefaultOptions())

	assert.Len(t, r.Records, len(in))
	assert.Equal(t, "d1", r.Records[0].Dataset)
	assert.Equal(t, []string{"G130M/FUVA", "G130M/FUVB", "MIRRORA/NUVA"}, keys(r.ByElementSegment))
	assert.Equal(t, []string{"G130M/1291", "G130M/1309", "MIRRORA"}, keys(r.ByElementCenwave))
	assert.Equal(t, []string{"G130M", "MIRRORA"}, keys(r.ByElement))

	a := trend.Find(r.ByElementSegment, trend.Key{OptElem: "G130M", Segment: "FUVA"})
	require.NotNil(t, a)
	assert.Len(t, a.Records, 3)
	assert.Equal(t, []trend.Day{{MJD: 55000, Median: 2, N: 1}, {MJD: 55001, Median: 4, N: 1}, {MJD: 55002, Median: 6, N: 1}}, a.Days)
	assert.InDelta(t, 2, a.Fit.Slope, 1e-9)
	assert.InDelta(t, 0, a.Fit.SlopeErr, 1e-9)

	m := trend.Find(r.ByElement, trend.Key{OptElem: "MIRRORA"})
	require.NotNil(t, m)
	require.Len(t, m.Records, 1)
	assert.Equal(t, 500.0, m.Records[0].XShift.Float64)
	assert.False(t, m.Fit.Valid())

	assert.Nil(t, trend.Find(r.ByElement, trend.Key{OptElem: "G160M"}))

	all := trend.Aggregate(in, trend.Options{})
	m = trend.Find(all.ByElement, trend.Key{OptElem: "MIRRORA"})
	assert.Len(t, m.Records, 2)
}

func TestAggregateIdempotent(t *testing.T) {
	in := shiftTable()
	first := trend.Aggregate(in, trend.DefaultOptions())
	again := trend.Aggregate(in, trend.DefaultOptions())
	if d := cmp.Diff(first, again, cmpopts.EquateNaNs()); d != "" {
		t.Fatalf("second run differs (-first +again):\n%s", d)
	}
	rev := make([]cos.Record, len(in))
	for i, r := range in {
		rev[len(in)-1-i] = r
	}
	shuffled := trend.Aggregate(rev, trend.DefaultOptions())
	if d := cmp.Diff(first, shuffled, cmpopts.EquateNaNs()); d != "" {
		t.Fatalf("input order changes result (-first +reversed):\n%s", d)
	}
	assert.Equal(t, shiftTable(), in, "input modified")
}

func TestDifferences(t *testing.T) {
	nuv := rec("n1", 55003, "G185M", 1786, "NUVA", 1)
	diffs := trend.Differences([]cos.Record{
		rec("ds2", 55001.25, "G160M", 1600, "FUVA", 9),
		rec("ds1", 55000.5, "G130M", 1291, "FUVA", 5),
		rec("ds1", 55000.5, "G130M", 1291, "FUVB", 3),
		rec("ds1", 55000.5, "G130M", 1291, "FUVA", 100),
		nuv,
		rec("ds3", 55002.5, "G130M", 1309, "FUVB", 1),
		rec("ds3", 55002.5, "G130M", 1309, "FUVA", 1.5),
	})
	require.Len(t, diffs, 2)
	assert.Equal(t, "ds1", diffs[0].Dataset)
	assert.Equal(t, 2.0, diffs[0].Value())
	assert.Equal(t, "ds3", diffs[1].Dataset)
	assert.Equal(t, 0.5, diffs[1].Value())

	cw, groups := trend.ByCenwave(diffs)
	assert.Equal(t, []int{1291, 1309}, cw)
	assert.Len(t, groups[1291], 1)

	var buf bytes.Buffer
	require.NoError(t, trend.WriteDifferences(&buf, diffs))
	assert.Equal(t, ""+
		"55000.50000  G130M  1291  3   5.00  3.00  \n"+
		"55002.50000  G130M  1309  3   1.50  1.00  \n",
		buf.String())
}

func TestRelations(t *testing.T) {
	rels := trend.Relations(shiftTable())
	var got []string
	for _, r := range rels {
		got = append(got, fmt.Sprintf("%d/%s/%d", r.Cenwave, r.Segment, len(r.X)))
	}
	assert.Equal(t, []string{"0/NUVA/2", "1291/FUVA/2", "1291/FUVB/2", "1309/FUVA/1", "1309/FUVB/1"}, got)
	assert.InDelta(t, 0.1, rels[1].Fit.Slope, 1e-12)
}

func TestWriteReport(t *testing.T) {
	in := shiftTable()
	var buf bytes.Buffer
	require.NoError(t, trend.WriteReport(&buf, trend.Aggregate(in, trend.DefaultOptions()), trend.Relations(in)))
	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 13)
	assert.True(t, strings.HasPrefix(lines[0], "fit element_segment G130M/FUVA 3 2 "), lines[0])
	assert.Equal(t, "fit element MIRRORA 1 NaN NaN NaN", lines[7])
	assert.True(t, strings.HasPrefix(lines[8], "relation 0 NUVA 2 "), lines[8])
}

func ExampleMedian() {
	fmt.Println(trend.Median([]float64{4, 1, 3, 2}))
	// Output:
	// 2.5
}
