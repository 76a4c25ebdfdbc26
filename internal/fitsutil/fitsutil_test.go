// Public domain.

package fitsutil_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justincely/cosmo/internal/fitsutil"
	"github.com/justincely/cosmo/internal/fitsutil/fitstest"
)

func readRows(t *testing.T, path string) []fitsutil.Row {
	f, err := fitsutil.Open(path)
	require.NoError(t, err)
	defer f.Close()
	tbl, err := f.Table(1)
	require.NoError(t, err)
	rows, skipped, err := fitsutil.ReadAll(tbl)
	require.NoError(t, err)
	require.Zero(t, skipped)
	return rows
}

func TestSegmentText(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "la1_lampflash.fits.gz")
	fitstest.Lampflash(t, fn, fitstest.Exposure{Rootname: "la1"}, []fitstest.FlashRow{
		{Segment: "FUVA", ShiftDisp: 1},
		{Segment: "FUVB", ShiftDisp: 2},
	})
	rows := readRows(t, fn)
	require.Len(t, rows, 2)
	for i, want := range []string{"FUVA", "FUVB"} {
		got, err := rows[i].String("segment")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	lt := filepath.Join(dir, "lamp.fits")
	fitstest.LampTab(t, lt,
		fitstest.LampRow{Segment: "FUVB", OptElem: "MIRRORB", Cenwave: 1291})
	rows = readRows(t, lt)
	require.Len(t, rows, 1)
	seg, err := rows[0].String("SEGMENT")
	require.NoError(t, err)
	assert.Equal(t, "FUVB", seg)
	opt, err := rows[0].String("OPT_ELEM")
	require.NoError(t, err)
	assert.Equal(t, "MIRRORB", opt)
}

func TestAsString(t *testing.T) {
	for _, tc := range []struct{ in, want string }{
		{"FUVA", "FUVA"},
		{"\x00FUVA", "FUVA"},
		{"FUVA\x00\x00", "FUVA"},
		{" G130M  ", "G130M"},
	} {
		got, ok := fitsutil.AsString(tc.in)
		assert.True(t, ok)
		assert.Equal(t, tc.want, got, "%q", tc.in)
	}
	_, ok := fitsutil.AsString(3.5)
	assert.False(t, ok)
}
