// Public domain.

// Package collect builds the shift table from the exposure corpus.
//
// Lampflash and acquisition products found by the corpus walk are
// extracted in parallel and stored, in walk order, as one run of the
// shift database.
package collect

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/justincely/cosmo/internal/corpus"
	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/flash"
	"github.com/justincely/cosmo/internal/shiftdb"
)

// Store receives collected records.  *shiftdb.DB implements it.
type Store interface {
	BeginRun(ctx context.Context, root string) (shiftdb.Run, error)
	Insert(ctx context.Context, run shiftdb.Run, recs []cos.Record) error
}

// Collector walks a corpus into a Store.
type Collector struct {
	Walker    corpus.Walker
	Dedup     corpus.DedupMode
	Extractor flash.Extractor
	Store     Store
	Workers   int // <= 0 uses GOMAXPROCS
	Log       *zap.Logger
}

// FileError records a file that could not be extracted.
type FileError struct {
	Path  string
	Class string
	Err   error
}

// Report describes a collection.
type Report struct {
	Run        shiftdb.Run
	Walk       corpus.Stats
	Files      int // products offered by the walk
	Collected  int // files contributing records
	Records    int
	Duplicates int // exposures already seen under another path
	Skipped    int // malformed rows
	Misses     int // rows corrected by zero
	Failed     []FileError
}

// FailedByClass counts failures per error class.
func (r *Report) FailedByClass() map[string]int {
	m := map[string]int{}
	for _, f := range r.Failed {
		m[f.Class]++
	}
	return m
}

// Summary is a one line account of the report.
func (r *Report) Summary() string {
	var classes []string
	for c, n := range r.FailedByClass() {
		classes = append(classes, fmt.Sprintf("%s %d", c, n))
	}
	sort.Strings(classes)
	s := fmt.Sprintf("%d files, %d collected, %d records; %d duplicate, %d malformed rows, %d lookup misses; %d failed",
		r.Files, r.Collected, r.Records, r.Duplicates+r.Walk.Duplicates, r.Skipped, r.Misses, len(r.Failed))
	if len(classes) > 0 {
		s += " (" + strings.Join(classes, ", ") + ")"
	}
	return s
}

// Classify names the failure class of an extraction error.
func Classify(err error) string {
	var mre *cos.MalformedRecordError
	switch {
	case errors.Is(err, cos.ErrMissingCompanion):
		return "missing companion"
	case errors.Is(err, cos.ErrMissingField):
		return "missing field"
	case errors.As(err, &mre):
		return "malformed"
	case errors.Is(err, flash.ErrUnknownKind):
		return "unknown kind"
	}
	return "unreadable"
}

type result struct {
	recs    []cos.Record
	skipped int
	misses  int
	err     error
}

func isProduct(name string) bool {
	return cos.KindOf(name) != cos.KindUnknown
}

// Run collects the corpus.  Files failing extraction are logged, listed
// in Report.Failed and skipped.  The returned error is for failures of the
// walk or the store, and for cancellation; nothing is stored then.
func (c *Collector) Run(ctx context.Context) (*Report, error) {
	log := c.Log
	if log == nil {
		log = zap.NewNop()
	}
	dd := corpus.NewDeduper(c.Dedup)
	paths, ws, err := c.Walker.Files(ctx, isProduct, dd)
	rep := &Report{Walk: ws, Files: len(paths)}
	if err != nil {
		return rep, err
	}
	log.Info("collecting", zap.String("root", c.Walker.Root), zap.Int("files", len(paths)))

	results := make([]result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	n := c.Workers
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
			results[i] = c.extract(p)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return rep, err
	}
	if err := ctx.Err(); err != nil {
		return rep, err
	}

	var recs []cos.Record
	for i, r := range results {
		rep.Skipped += r.skipped
		rep.Misses += r.misses
		if r.err != nil {
			fe := FileError{Path: paths[i], Class: Classify(r.err), Err: r.err}
			log.Warn("skipping file", zap.String("file", fe.Path),
				zap.String("class", fe.Class), zap.Error(fe.Err))
			rep.Failed = append(rep.Failed, fe)
			continue
		}
		if len(r.recs) == 0 {
			continue
		}
		if dd.SeenExposure(r.recs[0].Dataset, r.recs[0].MJD) {
			rep.Duplicates++
			continue
		}
		rep.Collected++
		recs = append(recs, r.recs...)
	}
	rep.Records = len(recs)

	if rep.Run, err = c.Store.BeginRun(ctx, c.Walker.Root); err != nil {
		return rep, err
	}
	if err := c.Store.Insert(ctx, rep.Run, recs); err != nil {
		return rep, err
	}
	log.Info("collected", zap.String("run", rep.Run.ID), zap.String("summary", rep.Summary()))
	return rep, nil
}

func (c *Collector) extract(path string) (r result) {
	s, err := c.Extractor.Extract(path)
	if err != nil {
		r.err = err
		return
	}
	r.recs, r.err = flash.Collect(s)
	r.skipped, r.misses = s.Skipped, s.Misses
	return
}
