// Public domain.

package flash

import (
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil"
	"github.com/justincely/cosmo/internal/lamptab"
)

// Lampflash extracts one record per lampflash table row.  Two rows (one
// per segment) make up a flash, so row i belongs to flash i/2+1.
//
// The dispersion shift is corrected by the reference FP shift for the
// row's segment; a reference lookup miss leaves it uncorrected and is
// counted in Stream.Misses.
type Lampflash struct {
	Resolver Resolver
	Log      *zap.Logger
}

func (x *Lampflash) Extract(path string) (*Stream, error) {
	f, err := fitsutil.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	base, err := exposure(f, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if !base.FPPos.Valid {
		return nil, fmt.Errorf("%s: keyword FPPOS: %w", path, cos.ErrMissingField)
	}
	if base.LampTab == "" {
		return nil, fmt.Errorf("%s: keyword LAMPTAB: %w", path, cos.ErrMissingField)
	}
	tbl, err := f.Table(1)
	if err != nil {
		return nil, err
	}
	// rows are decoded now; the file is closed when Extract returns
	rows := fitsutil.RowReader(tbl)
	var buf []fitsutil.Row
	var rowErrs []error
	for {
		r, err := rows()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var mre *cos.MalformedRecordError
			if !errors.As(err, &mre) {
				return nil, fmt.Errorf("%s: %w", path, err)
			}
			rowErrs = append(rowErrs, err)
			continue
		}
		buf = append(buf, r)
	}

	fpoffset := int(base.FPPos.Int64) - cos.FPCenter
	log := x.Log
	if log == nil {
		log = zap.NewNop()
	}
	s := &Stream{Path: path, Kind: cos.KindLampflash, Skipped: len(rowErrs)}
	s.next = func(s *Stream) (cos.Record, error) {
		for len(buf) > 0 {
			row := buf[0]
			buf = buf[1:]
			rec, err := x.record(base, row, fpoffset)
			var mre *cos.MalformedRecordError
			switch {
			case err == nil:
				return rec, nil
			case errors.Is(err, cos.ErrLookupMiss):
				s.Misses++
				log.Warn("reference shift not found, using zero",
					zap.String("file", path), zap.Int("row", row.Index),
					zap.Error(err))
				return rec, nil
			case errors.As(err, &mre):
				s.Skipped++
				continue
			default:
				buf = nil
				return cos.Record{}, fmt.Errorf("%s: %w", path, err)
			}
		}
		return cos.Record{}, io.EOF
	}
	return s, nil
}

// record builds the record for one row.  With a cos.ErrLookupMiss error
// the returned record is still valid, with zero correction applied.
func (x *Lampflash) record(base cos.Record, row fitsutil.Row, fpoffset int) (cos.Record, error) {
	seg, err := row.String("SEGMENT")
	if err != nil {
		return cos.Record{}, err
	}
	disp, err := row.Float("SHIFT_DISP")
	if err != nil {
		return cos.Record{}, err
	}
	xdisp, err := row.Float("SHIFT_XDISP")
	if err != nil {
		return cos.Record{}, err
	}
	found, err := row.Bool("SPEC_FOUND")
	if err != nil {
		return cos.Record{}, err
	}
	ref, rerr := x.Resolver.Resolve(base.LampTab, lamptab.Key{
		Segment:  seg,
		OptElem:  base.OptElem,
		Cenwave:  base.Cenwave,
		FPOffset: fpoffset,
	})
	if rerr != nil && !errors.Is(rerr, cos.ErrLookupMiss) {
		return cos.Record{}, rerr
	}
	rec := base
	rec.Segment = seg
	rec.Flash = row.Index/2 + 1
	rec.XShift.Float64, rec.XShift.Valid = round5(disp-ref), true
	rec.YShift.Float64, rec.YShift.Valid = round5(xdisp), true
	rec.Found = found
	return rec, rerr
}
