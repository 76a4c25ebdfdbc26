// Public domain.

// Package fitstest writes small synthetic FITS products for tests.
package fitstest

import (
	"bytes"
	"compress/gzip"
	"os"
	"path/filepath"
	"testing"

	"github.com/astrogo/fitsio"
)

// Ext describes a binary table extension.  Rows are pointers to structs
// whose fields carry fits tags naming the columns.
type Ext struct {
	Name   string
	Cols   []fitsio.Column
	Header []fitsio.Card
	Rows   []interface{}
}

// Write creates path with a primary HDU holding the given cards, followed
// by the listed table extensions.  Paths ending in .gz are compressed.
func Write(t testing.TB, path string, primary []fitsio.Card, exts ...Ext) {
	t.Helper()
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		t.Fatal(err)
	}
	phdu, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(primary, fitsio.IMAGE_HDU, 8, nil))
	if err != nil {
		t.Fatal(err)
	}
	if err = f.Write(phdu); err != nil {
		t.Fatal(err)
	}
	for _, e := range exts {
		tbl, err := fitsio.NewTable(e.Name, e.Cols, fitsio.BINARY_TBL)
		if err != nil {
			t.Fatal(err)
		}
		if len(e.Header) > 0 {
			if err = tbl.Header().Append(e.Header...); err != nil {
				t.Fatal(err)
			}
		}
		for _, r := range e.Rows {
			if err = tbl.Write(r); err != nil {
				t.Fatal(err)
			}
		}
		if err = f.Write(tbl); err != nil {
			t.Fatal(err)
		}
		tbl.Close()
	}
	if err = f.Close(); err != nil {
		t.Fatal(err)
	}
	b := buf.Bytes()
	if filepath.Ext(path) == ".gz" {
		var zb bytes.Buffer
		zw := gzip.NewWriter(&zb)
		if _, err = zw.Write(b); err != nil {
			t.Fatal(err)
		}
		if err = zw.Close(); err != nil {
			t.Fatal(err)
		}
		b = zb.Bytes()
	}
	if err = os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err = os.WriteFile(path, b, 0644); err != nil {
		t.Fatal(err)
	}
}

// FlashRow is one row of a lampflash table.
type FlashRow struct {
	Segment    string  `fits:"SEGMENT"`
	ShiftDisp  float64 `fits:"SHIFT_DISP"`
	ShiftXDisp float64 `fits:"SHIFT_XDISP"`
	SpecFound  bool    `fits:"SPEC_FOUND"`
}

// FlashCols are the columns of a lampflash table.
var FlashCols = []fitsio.Column{
	{Name: "SEGMENT", Format: "8A"},
	{Name: "SHIFT_DISP", Format: "D"},
	{Name: "SHIFT_XDISP", Format: "D"},
	{Name: "SPEC_FOUND", Format: "L"},
}

// Exposure holds the keywords written to a synthetic product.
type Exposure struct {
	Rootname string
	ProposID int
	Detector string
	OptElem  string
	Cenwave  int
	FPPos    int // 0 omits the keyword
	LampTab  string
	ExpStart float64
	ExpTime  float64
}

func (e Exposure) primary() []fitsio.Card {
	c := []fitsio.Card{
		{Name: "ROOTNAME", Value: e.Rootname},
		{Name: "PROPOSID", Value: e.ProposID},
		{Name: "DETECTOR", Value: e.Detector},
		{Name: "OPT_ELEM", Value: e.OptElem},
		{Name: "CENWAVE", Value: e.Cenwave},
	}
	if e.FPPos != 0 {
		c = append(c, fitsio.Card{Name: "FPPOS", Value: e.FPPos})
	}
	if e.LampTab != "" {
		c = append(c, fitsio.Card{Name: "LAMPTAB", Value: e.LampTab})
	}
	return c
}

// Lampflash writes a lampflash product with the given rows.  NUMFLASH is
// set to half the row count, rounded up.
func Lampflash(t testing.TB, path string, e Exposure, rows []FlashRow) {
	t.Helper()
	ext := Ext{
		Name: "LAMPFLASH",
		Cols: FlashCols,
		Header: []fitsio.Card{
			{Name: "EXPSTART", Value: e.ExpStart},
			{Name: "EXPTIME", Value: e.ExpTime},
			{Name: "NUMFLASH", Value: (len(rows) + 1) / 2},
		},
	}
	for i := range rows {
		ext.Rows = append(ext.Rows, &rows[i])
	}
	Write(t, path, e.primary(), ext)
}

// Rawacq writes an acquisition product.  Its single extension carries only
// the exposure start.
func Rawacq(t testing.TB, path string, e Exposure) {
	t.Helper()
	Write(t, path, e.primary(), Ext{
		Name:   "ACQ",
		Cols:   []fitsio.Column{{Name: "DUMMY", Format: "J"}},
		Header: []fitsio.Card{{Name: "EXPSTART", Value: e.ExpStart}},
	})
}

// Spt writes an acquisition support file with the two LQTA keywords in
// its first extension.
func Spt(t testing.TB, path string, lqtaxcor, lqtaycor int) {
	t.Helper()
	Write(t, path, nil, Ext{
		Name: "UDL",
		Cols: []fitsio.Column{{Name: "DUMMY", Format: "J"}},
		Header: []fitsio.Card{
			{Name: "LQTAXCOR", Value: lqtaxcor},
			{Name: "LQTAYCOR", Value: lqtaycor},
		},
	})
}

// LampRow is one row of a LAMPTAB reference table.
type LampRow struct {
	Segment  string  `fits:"SEGMENT"`
	OptElem  string  `fits:"OPT_ELEM"`
	Cenwave  int32   `fits:"CENWAVE"`
	FPOffset int32   `fits:"FPOFFSET"`
	Shift    float64 `fits:"FP_PIXEL_SHIFT"`
}

// LampRowNoFP is a LAMPTAB row from a table without the FPOFFSET column.
type LampRowNoFP struct {
	Segment string `fits:"SEGMENT"`
	OptElem string `fits:"OPT_ELEM"`
	Cenwave int32  `fits:"CENWAVE"`
}

// LampTab writes a reference table.  Rows are LampRow or LampRowNoFP
// values; the column set follows the type of the first row.
func LampTab(t testing.TB, path string, rows ...interface{}) {
	t.Helper()
	cols := []fitsio.Column{
		{Name: "SEGMENT", Format: "8A"},
		{Name: "OPT_ELEM", Format: "12A"},
		{Name: "CENWAVE", Format: "J"},
	}
	fp := true
	if len(rows) > 0 {
		_, fp = rows[0].(LampRow)
	}
	if fp {
		cols = append(cols,
			fitsio.Column{Name: "FPOFFSET", Format: "J"},
			fitsio.Column{Name: "FP_PIXEL_SHIFT", Format: "D"})
	}
	ext := Ext{Name: "LAMPTAB", Cols: cols}
	for _, r := range rows {
		switch r := r.(type) {
		case LampRow:
			ext.Rows = append(ext.Rows, &r)
		case LampRowNoFP:
			ext.Rows = append(ext.Rows, &r)
		}
	}
	Write(t, path, nil, ext)
}
