// Public domain.

// Package flash extracts measured shift records from COS exposure
// products.
//
// Two product kinds carry shift measurements.  Lampflash tables hold one
// row per segment per lamp flash, with shifts already measured by the
// calibration pipeline.  Acquisition products hold a single target
// position in their support file, from which one synthetic record is made.
// The kind is decided once from the file name and selects the strategy.
package flash

import (
	"errors"
	"fmt"
	"io"
	"math"

	"go.uber.org/zap"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil"
	"github.com/justincely/cosmo/internal/lamptab"
)

// ErrUnknownKind is returned for files that are neither lampflash nor
// acquisition products.
var ErrUnknownKind = errors.New("not a shift product")

// DefaultFrameSize is the detector frame size used to convert acquisition
// positions from raw to user coordinates.
const DefaultFrameSize = 1023

// Resolver supplies reference shifts.  *lamptab.Cache implements it.
type Resolver interface {
	Resolve(table string, k lamptab.Key) (float64, error)
}

// Extractor is the capability shared by the per-kind strategies: produce
// the records of one file.
type Extractor interface {
	Extract(path string) (*Stream, error)
}

// Stream yields the records of one file.  Next returns io.EOF after the
// last record.  Rows that could not be decoded are skipped and counted.
type Stream struct {
	Path    string
	Kind    cos.ProductKind
	Skipped int // malformed rows
	Misses  int // rows corrected by zero after a reference lookup miss

	next func(s *Stream) (cos.Record, error)
}

// Next returns the next record.
func (s *Stream) Next() (cos.Record, error) {
	return s.next(s)
}

// Collect drains s.
func Collect(s *Stream) ([]cos.Record, error) {
	var recs []cos.Record
	for {
		r, err := s.Next()
		if err == io.EOF {
			return recs, nil
		}
		if err != nil {
			return recs, err
		}
		recs = append(recs, r)
	}
}

// Dispatcher routes each file to the strategy for its product kind.
type Dispatcher struct {
	strategies map[cos.ProductKind]Extractor
}

// Option configures New.
type Option func(*options)

type options struct {
	frame float64
	log   *zap.Logger
}

// WithFrameSize sets the raw frame size for acquisition coordinates.
func WithFrameSize(n int) Option {
	return func(o *options) { o.frame = float64(n) }
}

// WithLogger sets the logger used to report lookup misses.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// New returns a Dispatcher handling lampflash and acquisition products.
func New(res Resolver, opts ...Option) *Dispatcher {
	o := options{frame: DefaultFrameSize, log: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	return &Dispatcher{strategies: map[cos.ProductKind]Extractor{
		cos.KindLampflash: &Lampflash{Resolver: res, Log: o.log},
		cos.KindRawacq:    &Rawacq{FrameSize: o.frame},
	}}
}

// Extract opens path with the strategy for its kind.
func (d *Dispatcher) Extract(path string) (*Stream, error) {
	x, ok := d.strategies[cos.KindOf(path)]
	if !ok {
		return nil, fmt.Errorf("%s: %w", path, ErrUnknownKind)
	}
	return x.Extract(path)
}

// round5 rounds to five decimal places.
func round5(x float64) float64 {
	return math.Round(x*1e5) / 1e5
}

// exposure reads the keywords common to both product kinds.  Primary
// keywords come from HDU 0, EXPSTART from HDU 1.
func exposure(f *fitsutil.File, strict bool) (r cos.Record, err error) {
	ph, err := f.Header(0)
	if err != nil {
		return
	}
	eh, err := f.Header(1)
	if err != nil {
		return
	}
	r.Filename = f.Path
	if r.MJD, err = fitsutil.Float(eh, "EXPSTART"); err != nil {
		return
	}
	if r.ProposID, err = fitsutil.Int(ph, "PROPOSID"); err != nil {
		return
	}
	if r.Detector, err = fitsutil.String(ph, "DETECTOR"); err != nil {
		return
	}
	if r.OptElem, err = fitsutil.String(ph, "OPT_ELEM"); err != nil {
		return
	}
	if r.Cenwave, err = fitsutil.Int(ph, "CENWAVE"); err != nil {
		if strict || !errors.Is(err, cos.ErrMissingField) {
			return
		}
	}
	r.Dataset, err = fitsutil.String(ph, "ROOTNAME")
	if err != nil || r.Dataset == "" {
		r.Dataset = cos.Rootname(f.Path)
	}
	if fp, ferr := fitsutil.Int(ph, "FPPOS"); ferr == nil {
		r.FPPos.Int64, r.FPPos.Valid = int64(fp), true
	}
	if lt, lerr := fitsutil.String(ph, "LAMPTAB"); lerr == nil {
		r.LampTab = lamptab.TableName(lt)
	}
	return r, nil
}
