// Public domain.

// Package drift measures how far the cross-dispersion position of the lamp
// spectrum wanders within single exposures.
//
// Every FUV lampflash product with more than one flash is read, and for
// each segment with at least two flashes the spread (max - min) of
// SHIFT_XDISP is reported together with the exposure time.
package drift

import (
	"context"
	"fmt"
	"runtime"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/corpus"
	"github.com/justincely/cosmo/internal/fitsutil"
)

// Segments are the segments a spread is computed for.
var Segments = []string{cos.FUVA, cos.FUVB}

// Row is one drift measurement.
type Row struct {
	Path    string
	Segment string
	Spread  float64
	ExpTime float64
}

// FileError records a file the scan could not read.
type FileError struct {
	Path string
	Err  error
}

// Report is the result of a scan.  Files passed over for a reason that is
// not an error are counted separately from files that failed.
type Report struct {
	Rows        []Row
	Walk        corpus.Stats
	Files       int // lampflash files offered by the walk
	Measured    int // files contributing rows
	Duplicates  int // exposures already seen under another path
	NUV         int
	Empty       int
	SingleFlash int
	NoPairs     int // no segment with two or more flashes
	Failed      []FileError
}

// Summary is a one line account of the report.
func (r *Report) Summary() string {
	return fmt.Sprintf("%d files, %d measured, %d rows; skipped %d duplicate, %d NUV, %d empty, %d single flash, %d unpaired; %d failed",
		r.Files, r.Measured, len(r.Rows), r.Duplicates+r.Walk.Duplicates, r.NUV,
		r.Empty, r.SingleFlash, r.NoPairs, len(r.Failed))
}

// Scanner scans a corpus for drift.
type Scanner struct {
	Walker  corpus.Walker
	Dedup   corpus.DedupMode
	Workers int // <= 0 uses GOMAXPROCS
	Log     *zap.Logger
}

type status int

const (
	measured status = iota
	skipNUV
	skipEmpty
	skipSingle
	skipNoPairs
)

type result struct {
	status   status
	rows     []Row
	dataset  string
	expstart float64
	err      error
}

// Scan walks the corpus and measures every selected file.  Files are read
// in parallel; rows come out in walk order.  A file that cannot be read is
// logged, listed in Report.Failed and otherwise ignored.  The returned
// error is for failures of the walk itself or cancellation.
func (s *Scanner) Scan(ctx context.Context) (*Report, error) {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	dd := corpus.NewDeduper(s.Dedup)
	paths, ws, err := s.Walker.Files(ctx, isLampflash, dd)
	rep := &Report{Walk: ws, Files: len(paths)}
	if err != nil {
		return rep, err
	}
	log.Info("drift scan", zap.String("root", s.Walker.Root),
		zap.Int("files", len(paths)), zap.Int("excluded_dirs", ws.ExcludedDirs))

	results := make([]result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	n := s.Workers
	if n <= 0 {
		n = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(n)
	for i, p := range paths {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = measure(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	for i, r := range results {
		if r.err != nil {
			log.Warn("skipping file", zap.String("file", paths[i]), zap.Error(r.err))
			rep.Failed = append(rep.Failed, FileError{paths[i], r.err})
			continue
		}
		if dd.SeenExposure(r.dataset, r.expstart) {
			rep.Duplicates++
			continue
		}
		switch r.status {
		case skipNUV:
			rep.NUV++
		case skipEmpty:
			rep.Empty++
		case skipSingle:
			rep.SingleFlash++
		case skipNoPairs:
			rep.NoPairs++
		default:
			rep.Measured++
			rep.Rows = append(rep.Rows, r.rows...)
		}
	}
	log.Info("drift scan done", zap.String("summary", rep.Summary()))
	return rep, nil
}

func isLampflash(name string) bool {
	return cos.KindOf(name) == cos.KindLampflash
}

// measure reads one lampflash product.
func measure(path string) (r result) {
	f, err := fitsutil.Open(path)
	if err != nil {
		r.err = err
		return
	}
	defer f.Close()
	ph, err := f.Header(0)
	if err != nil {
		r.err = err
		return
	}
	tbl, err := f.Table(1)
	if err != nil {
		r.err = err
		return
	}
	eh := tbl.Header()
	exptime, err := fitsutil.Float(eh, "EXPTIME")
	if err != nil {
		r.err = fmt.Errorf("%s: %w", path, err)
		return
	}
	det, err := fitsutil.String(ph, "DETECTOR")
	if err != nil {
		r.err = fmt.Errorf("%s: %w", path, err)
		return
	}
	r.dataset, _ = fitsutil.String(ph, "ROOTNAME")
	if r.dataset == "" {
		r.dataset = cos.Rootname(path)
	}
	r.expstart, _ = fitsutil.Float(eh, "EXPSTART")

	switch {
	case strings.EqualFold(det, cos.NUV):
		r.status = skipNUV
		return
	case tbl.NumRows() == 0:
		r.status = skipEmpty
		return
	}
	nflash, err := fitsutil.Int(eh, "NUMFLASH")
	if err != nil {
		r.err = fmt.Errorf("%s: %w", path, err)
		return
	}
	if nflash <= 1 {
		r.status = skipSingle
		return
	}

	rows, _, err := fitsutil.ReadAll(tbl)
	if err != nil {
		r.err = fmt.Errorf("%s: %w", path, err)
		return
	}
	xdisp := map[string][]float64{}
	for _, row := range rows {
		seg, err := row.String("SEGMENT")
		if err != nil {
			continue
		}
		y, err := row.Float("SHIFT_XDISP")
		if err != nil {
			continue
		}
		xdisp[seg] = append(xdisp[seg], y)
	}
	for _, seg := range Segments {
		if sp, ok := Spread(xdisp[seg]); ok {
			r.rows = append(r.rows, Row{path, seg, sp, exptime})
		}
	}
	if len(r.rows) == 0 {
		r.status = skipNoPairs
	}
	return
}

// Spread is max - min of ys.  It is undefined, ok false, for fewer than
// two values.
func Spread(ys []float64) (spread float64, ok bool) {
	if len(ys) < 2 {
		return 0, false
	}
	lo, hi := ys[0], ys[0]
	for _, y := range ys[1:] {
		lo = min(lo, y)
		hi = max(hi, y)
	}
	return hi - lo, true
}
