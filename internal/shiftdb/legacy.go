// Public domain.

package shiftdb

import (
	"bytes"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/astrogo/fitsio"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil"
)

// legacyRow is a row of all_shifts.fits.  Missing shifts are NaN.
type legacyRow struct {
	MJD      float64 `fits:"mjd"`
	Date     string  `fits:"date"`
	Dataset  string  `fits:"dataset"`
	Filename string  `fits:"filename"`
	ProposID int32   `fits:"proposid"`
	Detector string  `fits:"detector"`
	OptElem  string  `fits:"opt_elem"`
	Cenwave  int32   `fits:"cenwave"`
	Segment  string  `fits:"segment"`
	FPPos    int32   `fits:"fppos"`
	LampTab  string  `fits:"lamptab"`
	Flash    int32   `fits:"flash"`
	XShift   float64 `fits:"x_shift"`
	YShift   float64 `fits:"y_shift"`
	Found    bool    `fits:"found"`
}

var legacyCols = []fitsio.Column{
	{Name: "mjd", Format: "D"},
	{Name: "date", Format: "12A"},
	{Name: "dataset", Format: "16A"},
	{Name: "filename", Format: "256A"},
	{Name: "proposid", Format: "J"},
	{Name: "detector", Format: "8A"},
	{Name: "opt_elem", Format: "12A"},
	{Name: "cenwave", Format: "J"},
	{Name: "segment", Format: "8A"},
	{Name: "fppos", Format: "J"},
	{Name: "lamptab", Format: "32A"},
	{Name: "flash", Format: "J"},
	{Name: "x_shift", Format: "D"},
	{Name: "y_shift", Format: "D"},
	{Name: "found", Format: "L"},
}

// noFPPos stands for a missing FP-POS in all_shifts.fits.
const noFPPos = -999

// WriteFITS writes records as an all_shifts.fits table.
func WriteFITS(path string, recs []cos.Record) error {
	var buf bytes.Buffer
	f, err := fitsio.Create(&buf)
	if err != nil {
		return err
	}
	phdu, err := fitsio.NewPrimaryHDU(fitsio.NewHeader(nil, fitsio.IMAGE_HDU, 8, nil))
	if err != nil {
		return err
	}
	if err := f.Write(phdu); err != nil {
		return err
	}
	tbl, err := fitsio.NewTable("SHIFTS", legacyCols, fitsio.BINARY_TBL)
	if err != nil {
		return err
	}
	defer tbl.Close()
	for _, r := range recs {
		row := legacyRow{
			MJD:      r.MJD,
			Date:     r.Date().Format(time.DateOnly),
			Dataset:  r.Dataset,
			Filename: r.Filename,
			ProposID: int32(r.ProposID),
			Detector: r.Detector,
			OptElem:  r.OptElem,
			Cenwave:  int32(r.Cenwave),
			Segment:  r.Segment,
			FPPos:    noFPPos,
			LampTab:  r.LampTab,
			Flash:    int32(r.Flash),
			XShift:   orNaN(r.XShift),
			YShift:   orNaN(r.YShift),
			Found:    r.Found,
		}
		if r.FPPos.Valid {
			row.FPPos = int32(r.FPPos.Int64)
		}
		if err := tbl.Write(&row); err != nil {
			return fmt.Errorf("%s: row %s: %w", path, r.Dataset, err)
		}
	}
	if err := f.Write(tbl); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0o644)
}

// ReadFITS reads an all_shifts.fits table.  The columns mjd, dataset,
// detector, opt_elem, cenwave, segment and x_shift are required of every
// row; the others default when the table lacks them.  Rows with a
// missing or mistyped field are skipped and counted.
func ReadFITS(path string) (recs []cos.Record, skipped int, err error) {
	f, err := fitsutil.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	tbl, err := f.Table(1)
	if err != nil {
		return nil, 0, err
	}
	rows, skipped, err := fitsutil.ReadAll(tbl)
	if err != nil {
		return nil, skipped, fmt.Errorf("%s: %w", path, err)
	}
	has := func(col string) bool { return fitsutil.HasColumn(tbl, col) }
	for _, row := range rows {
		r, err := legacyRecord(row, has)
		if err != nil {
			skipped++
			continue
		}
		if r.Filename == "" {
			r.Filename = r.Dataset
		}
		recs = append(recs, r)
	}
	return recs, skipped, nil
}

func legacyRecord(row fitsutil.Row, has func(string) bool) (r cos.Record, err error) {
	if r.MJD, err = row.Float("mjd"); err != nil {
		return
	}
	if r.Dataset, err = row.String("dataset"); err != nil {
		return
	}
	if r.Detector, err = row.String("detector"); err != nil {
		return
	}
	if r.OptElem, err = row.String("opt_elem"); err != nil {
		return
	}
	if r.Cenwave, err = row.Int("cenwave"); err != nil {
		return
	}
	if r.Segment, err = row.String("segment"); err != nil {
		return
	}
	if r.XShift, err = nullFloat(row, "x_shift"); err != nil {
		return
	}
	if math.IsNaN(r.MJD) {
		return r, &cos.MalformedRecordError{Row: row.Index, Column: "mjd",
			Err: errors.New("NaN")}
	}
	if has("y_shift") {
		if r.YShift, err = nullFloat(row, "y_shift"); err != nil {
			return
		}
	}
	if has("fppos") {
		fp, err := row.Int("fppos")
		if err != nil {
			return r, err
		}
		if fp != noFPPos {
			r.FPPos = sql.NullInt64{Int64: int64(fp), Valid: true}
		}
	}
	if has("found") {
		if r.Found, err = row.Bool("found"); err != nil {
			return
		}
	}
	r.Flash = 1
	if has("flash") {
		if r.Flash, err = row.Int("flash"); err != nil {
			return
		}
	}
	if has("proposid") {
		if r.ProposID, err = row.Int("proposid"); err != nil {
			return
		}
	}
	if has("lamptab") {
		if r.LampTab, err = row.String("lamptab"); err != nil {
			return
		}
	}
	if has("filename") {
		if r.Filename, err = row.String("filename"); err != nil {
			return
		}
	}
	return r, nil
}

func nullFloat(row fitsutil.Row, col string) (sql.NullFloat64, error) {
	x, err := row.Float(col)
	if err != nil || math.IsNaN(x) {
		return sql.NullFloat64{}, err
	}
	return sql.NullFloat64{Float64: x, Valid: true}, nil
}
