// Public domain.

package drift_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/justincely/cosmo/internal/corpus"
	"github.com/justincely/cosmo/internal/drift"
	"github.com/justincely/cosmo/internal/fitsutil/fitstest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func fuv(root string, start float64) fitstest.Exposure {
	return fitstest.Exposure{
		Rootname: root,
		ProposID: 11484,
		Detector: "FUV",
		OptElem:  "G130M",
		Cenwave:  1291,
		FPPos:    3,
		ExpStart: start,
		ExpTime:  1200,
	}
}

// corpusTree writes a small corpus and returns its root.
func corpusTree(t *testing.T) string {
	root := t.TempDir()
	leaf := func(parts ...string) string {
		d := filepath.Join(append([]string{root, "11484", "visit01"}, parts...)...)
		require.NoError(t, os.MkdirAll(d, 0o755))
		return d
	}
	a, b, c := leaf("a"), leaf("b"), leaf("c")
	anom := leaf("Anomalies")

	fitstest.Lampflash(t, filepath.Join(a, "la1_lampflash.fits"), fuv("la1", 55100.5), []fitstest.FlashRow{
		{Segment: "FUVA", ShiftXDisp: .5},
		{Segment: "FUVB", ShiftXDisp: 1},
		{Segment: "FUVA", ShiftXDisp: -.3},
		{Segment: "FUVB", ShiftXDisp: 1.5},
		{Segment: "FUVA", ShiftXDisp: .1},
	})
	nuv := fuv("la2", 55101.5)
	nuv.Detector = "NUV"
	fitstest.Lampflash(t, filepath.Join(a, "la2_lampflash.fits"), nuv, []fitstest.FlashRow{
		{Segment: "NUVA", ShiftXDisp: 1},
		{Segment: "NUVA", ShiftXDisp: 9},
		{Segment: "NUVA", ShiftXDisp: 1},
	})
	fitstest.Lampflash(t, filepath.Join(a, "la3_lampflash.fits"), fuv("la3", 55102.5), []fitstest.FlashRow{
		{Segment: "FUVA", ShiftXDisp: 1},
		{Segment: "FUVB", ShiftXDisp: 2},
	})
	fitstest.Lampflash(t, filepath.Join(a, "la6_lampflash.gz"), fuv("la6", 55106.5), nil) // not a lampflash name
	fitstest.Lampflash(t, filepath.Join(a, "la6_lampflash.fits.gz"), fuv("la6", 55106.5), []fitstest.FlashRow{
		{Segment: "FUVA", ShiftXDisp: 0},
		{Segment: "FUVB", ShiftXDisp: 7},
		{Segment: "FUVA", ShiftXDisp: 2.5},
	})
	fitstest.Lampflash(t, filepath.Join(b, "la4_lampflash.fits"), fuv("la4", 55104.5), nil)
	require.NoError(t, os.WriteFile(filepath.Join(b, "la5_lampflash.fits"), []byte("not fits"), 0o644))
	fitstest.Lampflash(t, filepath.Join(c, "la1_lampflash.fits"), fuv("la1", 55100.5), []fitstest.FlashRow{
		{Segment: "FUVA", ShiftXDisp: 0},
		{Segment: "FUVB", ShiftXDisp: 0},
		{Segment: "FUVA", ShiftXDisp: 50},
	})
	fitstest.Lampflash(t, filepath.Join(anom, "la9_lampflash.fits"), fuv("la9", 55109.5), []fitstest.FlashRow{
		{Segment: "FUVA", ShiftXDisp: 0},
		{Segment: "FUVA", ShiftXDisp: 50},
	})
	return root
}

func scanner(t *testing.T, root string, mode corpus.DedupMode) *drift.Scanner {
	return &drift.Scanner{
		Walker:  corpus.Walker{Root: root, Exclude: corpus.DefaultExclude, LeafDepth: corpus.DefaultLeafDepth},
		Dedup:   mode,
		Workers: 3,
		Log:     zaptest.NewLogger(t),
	}
}

func TestScan(t *testing.T) {
	root := corpusTree(t)
	rep, err := scanner(t, root, corpus.DedupExposure).Scan(context.Background())
	require.NoError(t, err)

	a := filepath.Join(root, "11484", "visit01", "a")
	want := []drift.Row{
		{Path: filepath.Join(a, "la1_lampflash.fits"), Segment: "FUVA", Spread: .8, ExpTime: 1200},
		{Path: filepath.Join(a, "la1_lampflash.fits"), Segment: "FUVB", Spread: .5, ExpTime: 1200},
		{Path: filepath.Join(a, "la6_lampflash.fits.gz"), Segment: "FUVA", Spread: 2.5, ExpTime: 1200},
	}
	approx := cmp.Comparer(func(x, y float64) bool { return math.Abs(x-y) < 1e-12 })
	if d := cmp.Diff(want, rep.Rows, approx); d != "" {
		t.Fatalf("rows (-want +got):\n%s", d)
	}
	assert.Equal(t, 7, rep.Files)
	assert.Equal(t, 2, rep.Measured)
	assert.Equal(t, 1, rep.Duplicates)
	assert.Equal(t, 1, rep.NUV)
	assert.Equal(t, 1, rep.SingleFlash)
	assert.Equal(t, 1, rep.Empty)
	assert.Equal(t, 1, rep.Walk.ExcludedDirs)
	require.Len(t, rep.Failed, 1)
	assert.Equal(t, "la5_lampflash.fits", filepath.Base(rep.Failed[0].Path))
	assert.Contains(t, rep.Summary(), "1 failed")
}

func TestScanPathMode(t *testing.T) {
	root := corpusTree(t)
	rep, err := scanner(t, root, corpus.DedupPath).Scan(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Duplicates)
	assert.Equal(t, 3, rep.Measured)
	last := rep.Rows[len(rep.Rows)-1]
	assert.Equal(t, "c", filepath.Base(filepath.Dir(last.Path)))
	assert.Equal(t, 50.0, last.Spread)
}

func TestScanDeterministic(t *testing.T) {
	root := corpusTree(t)
	first, err := scanner(t, root, corpus.DedupExposure).Scan(context.Background())
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		s := scanner(t, root, corpus.DedupExposure)
		s.Workers = i + 1
		rep, err := s.Scan(context.Background())
		require.NoError(t, err)
		assert.Equal(t, first.Rows, rep.Rows)
	}
}

func TestScanCanceled(t *testing.T) {
	root := corpusTree(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := scanner(t, root, corpus.DedupExposure).Scan(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSpread(t *testing.T) {
	_, ok := drift.Spread([]float64{3})
	assert.False(t, ok)
	sp, ok := drift.Spread([]float64{0.5, -0.3, 0.1})
	assert.True(t, ok)
	assert.InDelta(t, 0.8, sp, 1e-12)
}

var pyFloatCases = []struct {
	x    float64
	want string
}{
	{0, "0.0"},
	{math.Copysign(0, -1), "-0.0"},
	{1200, "1200.0"},
	{2.5, "2.5"},
	{-0.75, "-0.75"},
	{0.1 + 0.2, "0.30000000000000004"},
	{0.0001, "0.0001"},
	{0.00001, "1e-05"},
	{0.000015, "1.5e-05"},
	{1e15, "1000000000000000.0"},
	{1e16, "1e+16"},
	{1.5e16, "1.5e+16"},
	{math.Inf(1), "inf"},
	{math.Inf(-1), "-inf"},
	{math.NaN(), "nan"},
}

func TestPyFloat(t *testing.T) {
	for _, tc := range pyFloatCases {
		assert.Equal(t, tc.want, drift.PyFloat(tc.x), "%v", tc.x)
	}
}

func TestLog(t *testing.T) {
	rows := []drift.Row{
		{Path: "/smov/cos/Data/11484/otfrdata/01/x_lampflash.fits", Segment: "FUVA", Spread: 0.75, ExpTime: 1200},
		{Path: "/smov/cos/Data/11484/otfrdata/01/x_lampflash.fits", Segment: "FUVB", Spread: 2.5, ExpTime: 0.5},
	}
	var buf bytes.Buffer
	require.NoError(t, drift.WriteLog(&buf, rows))
	assert.Equal(t, ""+
		"/smov/cos/Data/11484/otfrdata/01/x_lampflash.fits FUVA 0.75 1200.0\n"+
		"/smov/cos/Data/11484/otfrdata/01/x_lampflash.fits FUVB 2.5 0.5\n",
		buf.String())

	got, err := drift.ReadLog(strings.NewReader(buf.String() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = drift.ReadLog(strings.NewReader("a FUVA x 1.0\n"))
	assert.Error(t, err)
}

func TestAppendLog(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "drift.txt")
	r := drift.Row{Path: "p", Segment: "FUVA", Spread: 3, ExpTime: 10}
	require.NoError(t, drift.AppendLog(fn, []drift.Row{r}))
	require.NoError(t, drift.AppendLog(fn, []drift.Row{r}))
	got, err := drift.ReadLogFile(fn)
	require.NoError(t, err)
	assert.Equal(t, []drift.Row{r, r}, got)
}

func ExamplePyFloat() {
	fmt.Println(drift.PyFloat(3), drift.PyFloat(0.125), drift.PyFloat(2e-7))
	// Output:
	// 3.0 0.125 2e-07
}
