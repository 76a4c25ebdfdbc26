// Public domain.

// Package shiftdb persists the aggregated shift table.
//
// The table lives in a SQLite database.  Each collection is a run; the
// records it stores are keyed on file, segment and flash so a file
// collected again replaces its earlier records.  Trend fits computed from
// the table are stored alongside it.
package shiftdb

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/trend"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id      TEXT PRIMARY KEY,
	started TEXT NOT NULL,
	root    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS shifts (
	run_id   TEXT NOT NULL REFERENCES runs(id),
	mjd      REAL NOT NULL,
	date     TEXT NOT NULL,
	dataset  TEXT NOT NULL,
	filename TEXT NOT NULL,
	proposid INTEGER NOT NULL,
	detector TEXT NOT NULL,
	opt_elem TEXT NOT NULL,
	cenwave  INTEGER NOT NULL,
	segment  TEXT NOT NULL,
	fppos    INTEGER,
	lamptab  TEXT NOT NULL,
	flash    INTEGER NOT NULL,
	x_shift  REAL,
	y_shift  REAL,
	found    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS shifts_mjd ON shifts (mjd);
CREATE INDEX IF NOT EXISTS shifts_filename ON shifts (filename);
CREATE TABLE IF NOT EXISTS fits (
	kind      TEXT NOT NULL,
	opt_elem  TEXT NOT NULL,
	cenwave   INTEGER NOT NULL,
	segment   TEXT NOT NULL,
	slope     REAL,
	intercept REAL,
	slope_err REAL,
	n         INTEGER NOT NULL,
	PRIMARY KEY (kind, opt_elem, cenwave, segment)
);
`

// DB is an open shift table.
type DB struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// a single connection keeps ":memory:" databases whole
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: schema: %w", path, err)
	}
	return &DB{db}, nil
}

// Close closes the database.
func (d *DB) Close() error { return d.db.Close() }

// Run identifies one collection.
type Run struct {
	ID      string
	Started time.Time
	Root    string
}

// BeginRun records the start of a collection over root.
func (d *DB) BeginRun(ctx context.Context, root string) (Run, error) {
	r := Run{ID: uuid.NewString(), Started: time.Now().UTC(), Root: root}
	_, err := d.db.ExecContext(ctx, `INSERT INTO runs (id, started, root) VALUES (?, ?, ?)`,
		r.ID, r.Started.Format(time.RFC3339Nano), r.Root)
	if err != nil {
		return Run{}, fmt.Errorf("begin run: %w", err)
	}
	return r, nil
}

// Runs lists the recorded runs, oldest first.
func (d *DB) Runs(ctx context.Context) ([]Run, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT id, started, root FROM runs ORDER BY started, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var runs []Run
	for rows.Next() {
		var r Run
		var started string
		if err := rows.Scan(&r.ID, &started, &r.Root); err != nil {
			return runs, err
		}
		if r.Started, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return runs, fmt.Errorf("run %s: %w", r.ID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Insert stores records under run in one transaction.  The records of
// each file named in recs replace whatever the table held for that file.
func (d *DB) Insert(ctx context.Context, run Run, recs []cos.Record) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	del, err := tx.PrepareContext(ctx, `DELETE FROM shifts WHERE filename = ?`)
	if err != nil {
		return err
	}
	defer del.Close()
	seen := map[string]bool{}
	for _, r := range recs {
		if seen[r.Filename] {
			continue
		}
		seen[r.Filename] = true
		if _, err := del.ExecContext(ctx, r.Filename); err != nil {
			return fmt.Errorf("replace %s: %w", r.Filename, err)
		}
	}
	st, err := tx.PrepareContext(ctx, `INSERT INTO shifts (
		run_id, mjd, date, dataset, filename, proposid, detector, opt_elem,
		cenwave, segment, fppos, lamptab, flash, x_shift, y_shift, found)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer st.Close()
	for _, r := range recs {
		_, err := st.ExecContext(ctx, run.ID, r.MJD, r.Date().Format(time.RFC3339),
			r.Dataset, r.Filename, r.ProposID, r.Detector, r.OptElem,
			r.Cenwave, r.Segment, r.FPPos, r.LampTab, r.Flash,
			dropNaN(r.XShift), dropNaN(r.YShift), r.Found)
		if err != nil {
			return fmt.Errorf("insert %s flash %d: %w", r.Filename, r.Flash, err)
		}
	}
	return tx.Commit()
}

// Records returns the whole table ordered by MJD, dataset, segment and
// flash.  Ties keep insertion order.
func (d *DB) Records(ctx context.Context) ([]cos.Record, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
		mjd, dataset, filename, proposid, detector, opt_elem, cenwave,
		segment, fppos, lamptab, flash, x_shift, y_shift, found
		FROM shifts ORDER BY mjd, dataset, segment, flash, filename, rowid`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var recs []cos.Record
	for rows.Next() {
		var r cos.Record
		if err := rows.Scan(&r.MJD, &r.Dataset, &r.Filename, &r.ProposID,
			&r.Detector, &r.OptElem, &r.Cenwave, &r.Segment, &r.FPPos,
			&r.LampTab, &r.Flash, &r.XShift, &r.YShift, &r.Found); err != nil {
			return recs, err
		}
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// FitRow is a stored trend fit.  Kind names the trend view the bucket
// came from.
type FitRow struct {
	Kind string
	Key  trend.Key
	Fit  trend.Fit
}

// FitRows flattens the fits of an aggregation result.
func FitRows(r *trend.Result) []FitRow {
	var fr []FitRow
	for _, v := range r.Views() {
		for _, b := range v.Buckets {
			fr = append(fr, FitRow{v.Name, b.Key, b.Fit})
		}
	}
	return fr
}

// ReplaceFits replaces all stored fits with fr.
func (d *DB) ReplaceFits(ctx context.Context, fr []FitRow) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM fits`); err != nil {
		return err
	}
	for _, f := range fr {
		_, err := tx.ExecContext(ctx, `INSERT INTO fits
			(kind, opt_elem, cenwave, segment, slope, intercept, slope_err, n)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			f.Kind, f.Key.OptElem, f.Key.Cenwave, f.Key.Segment,
			nullable(f.Fit.Slope), nullable(f.Fit.Intercept), nullable(f.Fit.SlopeErr), f.Fit.N)
		if err != nil {
			return fmt.Errorf("fit %s %s: %w", f.Kind, f.Key, err)
		}
	}
	return tx.Commit()
}

// Fits returns the stored fits ordered by kind and key.
func (d *DB) Fits(ctx context.Context) ([]FitRow, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT
		kind, opt_elem, cenwave, segment, slope, intercept, slope_err, n
		FROM fits ORDER BY kind, opt_elem, cenwave, segment`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var fr []FitRow
	for rows.Next() {
		var f FitRow
		var slope, icept, serr sql.NullFloat64
		if err := rows.Scan(&f.Kind, &f.Key.OptElem, &f.Key.Cenwave,
			&f.Key.Segment, &slope, &icept, &serr, &f.Fit.N); err != nil {
			return fr, err
		}
		f.Fit.Slope, f.Fit.Intercept, f.Fit.SlopeErr = orNaN(slope), orNaN(icept), orNaN(serr)
		fr = append(fr, f)
	}
	return fr, rows.Err()
}

// SQLite has no NaN; it is stored as NULL.

func dropNaN(x sql.NullFloat64) sql.NullFloat64 {
	if x.Valid && math.IsNaN(x.Float64) {
		return sql.NullFloat64{}
	}
	return x
}

func nullable(x float64) sql.NullFloat64 {
	return dropNaN(sql.NullFloat64{Float64: x, Valid: true})
}

func orNaN(x sql.NullFloat64) float64 {
	if !x.Valid {
		return math.NaN()
	}
	return x.Float64
}
