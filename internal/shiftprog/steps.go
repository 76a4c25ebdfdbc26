// Public domain.

package shiftprog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"github.com/justincely/cosmo/internal/anomaly"
	"github.com/justincely/cosmo/internal/collect"
	"github.com/justincely/cosmo/internal/config"
	"github.com/justincely/cosmo/internal/drift"
	"github.com/justincely/cosmo/internal/flash"
	"github.com/justincely/cosmo/internal/lamptab"
	"github.com/justincely/cosmo/internal/shiftdb"
	"github.com/justincely/cosmo/internal/trend"
)

func (p *program) openDB() (*shiftdb.DB, error) {
	return shiftdb.Open(p.cfg.DatabasePath())
}

func (p *program) collect(ctx context.Context) (*collect.Report, error) {
	db, err := p.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	c := &collect.Collector{
		Walker: p.cfg.Walker(),
		Dedup:  p.cfg.DedupMode(),
		Extractor: flash.New(lamptab.NewCache(p.cfg.Paths.LrefDir),
			flash.WithFrameSize(p.cfg.Processing.FrameSize),
			flash.WithLogger(p.log)),
		Store:   db,
		Workers: p.cfg.Walk.Workers,
		Log:     p.log.Named("collect"),
	}
	rep, err := c.Run(ctx)
	if err != nil {
		return rep, fmt.Errorf("collect: %w", err)
	}
	fmt.Fprintln(p.out, "collect:", rep.Summary())
	return rep, nil
}

// trends fits the shift table, stores the fits, and writes the trend
// report and the legacy table export.
func (p *program) trends(ctx context.Context) (*trend.Result, error) {
	db, err := p.openDB()
	if err != nil {
		return nil, err
	}
	defer db.Close()
	recs, err := db.Records(ctx)
	if err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	res := trend.Aggregate(recs, p.cfg.TrendOptions())
	if err := db.ReplaceFits(ctx, shiftdb.FitRows(res)); err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	rels := trend.Relations(recs)
	err = p.writeFile(config.TrendsName, func(f *os.File) error {
		return trend.WriteReport(f, res, rels)
	})
	if err != nil {
		return nil, err
	}
	if err := shiftdb.WriteFITS(p.cfg.MonitorPath(config.LegacyTableName), res.Records); err != nil {
		return nil, fmt.Errorf("trends: %w", err)
	}
	fmt.Fprintf(p.out, "trends: %d records, %d configurations, %d relations\n",
		len(recs), len(res.ByElementCenwave), len(rels))
	return res, nil
}

func (p *program) differences(ctx context.Context) error {
	db, err := p.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	recs, err := db.Records(ctx)
	if err != nil {
		return fmt.Errorf("diff: %w", err)
	}
	diffs := trend.Differences(recs)
	err = p.writeFile(config.DifferencesName, func(f *os.File) error {
		return trend.WriteDifferences(f, diffs)
	})
	if err != nil {
		return err
	}
	cw, _ := trend.ByCenwave(diffs)
	fmt.Fprintf(p.out, "diff: %d datasets over %d cenwaves\n", len(diffs), len(cw))
	return nil
}

func (p *program) drift(ctx context.Context) (*drift.Report, error) {
	s := &drift.Scanner{
		Walker:  p.cfg.Walker(),
		Dedup:   p.cfg.DedupMode(),
		Workers: p.cfg.Walk.Workers,
		Log:     p.log.Named("drift"),
	}
	rep, err := s.Scan(ctx)
	if err != nil {
		return rep, fmt.Errorf("drift: %w", err)
	}
	if err := drift.AppendLog(p.cfg.MonitorPath(config.DriftLogName), rep.Rows); err != nil {
		return rep, fmt.Errorf("drift: %w", err)
	}
	fmt.Fprintln(p.out, "drift:", rep.Summary())
	return rep, nil
}

// flagLog flags the whole drift log and the aggregated shift table.  A
// missing log has no rows.
func (p *program) flagLog(ctx context.Context) error {
	rows, err := drift.ReadLogFile(p.cfg.MonitorPath(config.DriftLogName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("flag: %w", err)
	}
	db, err := p.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	recs, err := db.Records(ctx)
	if err != nil {
		return fmt.Errorf("flag: %w", err)
	}
	return p.flag(rows, trend.Aggregate(recs, p.cfg.TrendOptions()))
}

// flag checks drift rows against the tolerance and the records of res
// against their search ranges.
func (p *program) flag(rows []drift.Row, res *trend.Result) error {
	pol := p.cfg.Policy()
	da := pol.FlagDrift(rows)
	sa := pol.FlagShifts(res.Records)
	for _, a := range da {
		p.log.Warn("drift beyond tolerance", zap.String("file", a.Source),
			zap.String("segment", a.Group), zap.Float64("spread", a.Value))
	}
	err := p.writeFile(config.AnomaliesName, func(f *os.File) error {
		return anomaly.WriteReport(f, append(da, sa...))
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(p.out, "flag: %d drift, %d shift anomalies\n", len(da), len(sa))
	return nil
}

func (p *program) importFITS(ctx context.Context, path string) error {
	recs, skipped, err := shiftdb.ReadFITS(path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if skipped > 0 {
		p.log.Warn("malformed rows skipped", zap.String("file", path), zap.Int("rows", skipped))
	}
	db, err := p.openDB()
	if err != nil {
		return err
	}
	defer db.Close()
	run, err := db.BeginRun(ctx, path)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}
	if err := db.Insert(ctx, run, recs); err != nil {
		return fmt.Errorf("import: %w", err)
	}
	fmt.Fprintf(p.out, "import: %d records, %d skipped\n", len(recs), skipped)
	return nil
}

// writeFile replaces name in the monitor directory with what fill writes.
func (p *program) writeFile(name string, fill func(*os.File) error) error {
	fn := p.cfg.MonitorPath(name)
	f, err := os.Create(fn)
	if err != nil {
		return err
	}
	if err := fill(f); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", fn, err)
	}
	return f.Close()
}
