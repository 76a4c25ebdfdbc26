// Public domain.

package flash

import (
	"fmt"
	"io"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil"
)

// Rawacq makes the single record of an acquisition product from the
// LQTAXCOR and LQTAYCOR keywords of its support file.
//
// Those positions are in raw detector coordinates, rotated 90 degrees from
// user coordinates and reversed, so x comes from LQTAYCOR and y from
// LQTAXCOR, each subtracted from the frame size.  The feature counts as not
// found, FPPOS is -1 and the flash number is 1.  LQTAYCOR <= 0 means the
// target was not located; both shifts are then null.
type Rawacq struct {
	FrameSize float64
}

func (x *Rawacq) Extract(path string) (*Stream, error) {
	rec, err := x.record(path)
	if err != nil {
		return nil, err
	}
	done := false
	return &Stream{Path: path, Kind: cos.KindRawacq,
		next: func(*Stream) (cos.Record, error) {
			if done {
				return cos.Record{}, io.EOF
			}
			done = true
			return rec, nil
		}}, nil
}

func (x *Rawacq) record(path string) (cos.Record, error) {
	f, err := fitsutil.Open(path)
	if err != nil {
		return cos.Record{}, err
	}
	defer f.Close()
	rec, err := exposure(f, false)
	if err != nil {
		return cos.Record{}, fmt.Errorf("%s: %w", path, err)
	}

	spt := cos.CompanionPath(path)
	sf, err := fitsutil.Open(spt)
	if err != nil {
		return cos.Record{}, fmt.Errorf("%s: %w: %v", path, cos.ErrMissingCompanion, err)
	}
	defer sf.Close()
	h, err := sf.Header(1)
	if err != nil {
		return cos.Record{}, fmt.Errorf("%s: %w", spt, err)
	}
	ycor, err := fitsutil.Float(h, "LQTAYCOR")
	if err != nil {
		return cos.Record{}, fmt.Errorf("%s: %w", spt, err)
	}

	rec.Found = false
	rec.FPPos.Int64, rec.FPPos.Valid = -1, true
	rec.Flash = 1
	rec.Segment = cos.NoSegment
	if ycor > 0 {
		xcor, err := fitsutil.Float(h, "LQTAXCOR")
		if err != nil {
			return cos.Record{}, fmt.Errorf("%s: %w", spt, err)
		}
		rec.XShift.Float64, rec.XShift.Valid = x.frame()-ycor, true
		rec.YShift.Float64, rec.YShift.Valid = x.frame()-xcor, true
	}
	return rec, nil
}

func (x *Rawacq) frame() float64 {
	if x.FrameSize == 0 {
		return DefaultFrameSize
	}
	return x.FrameSize
}
