// Public domain.

package fitsutil

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/justincely/cosmo/internal/cos"
)

// Row is one decoded table row keyed by upper case column name.
type Row struct {
	Index int
	vals  map[string]interface{}
}

func (r Row) get(col string) (interface{}, error) {
	v, ok := r.vals[strings.ToUpper(col)]
	if !ok {
		return nil, &cos.MalformedRecordError{Row: r.Index, Column: col,
			Err: cos.ErrMissingField}
	}
	return v, nil
}

func (r Row) mistyped(col string, v interface{}) error {
	return &cos.MalformedRecordError{Row: r.Index, Column: col,
		Err: fmt.Errorf("unexpected value %v (%T)", v, v)}
}

// Float, Int, String and Bool read a column of the row.  Failures are
// *cos.MalformedRecordError.
func (r Row) Float(col string) (float64, error) {
	v, err := r.get(col)
	if err != nil {
		return 0, err
	}
	x, ok := AsFloat(v)
	if !ok {
		return 0, r.mistyped(col, v)
	}
	return x, nil
}

func (r Row) Int(col string) (int, error) {
	v, err := r.get(col)
	if err != nil {
		return 0, err
	}
	n, ok := AsInt(v)
	if !ok {
		return 0, r.mistyped(col, v)
	}
	return n, nil
}

func (r Row) String(col string) (string, error) {
	v, err := r.get(col)
	if err != nil {
		return "", err
	}
	s, ok := AsString(v)
	if !ok {
		return "", r.mistyped(col, v)
	}
	return s, nil
}

func (r Row) Bool(col string) (bool, error) {
	v, err := r.get(col)
	if err != nil {
		return false, err
	}
	b, ok := AsBool(v)
	if !ok {
		return false, r.mistyped(col, v)
	}
	return b, nil
}

// RowReader returns a function that yields the rows of t one at a time.
// After the last row it returns io.EOF.  An empty table yields io.EOF
// immediately.
func RowReader(t *fitsio.Table) func() (Row, error) {
	n := t.NumRows()
	if n == 0 {
		return func() (Row, error) { return Row{}, io.EOF }
	}
	rows, err := t.Read(0, n)
	if err != nil {
		return func() (Row, error) { return Row{}, err }
	}
	i := 0
	done := false
	return func() (Row, error) {
		if done {
			return Row{}, io.EOF
		}
		if !rows.Next() {
			done = true
			err := rows.Err()
			rows.Close()
			if err == nil {
				err = io.EOF
			}
			return Row{}, err
		}
		m := map[string]interface{}{}
		if err := rows.Scan(&m); err != nil {
			// the row is unreadable as a whole; report it and move on
			r := Row{Index: i}
			i++
			return r, &cos.MalformedRecordError{Row: r.Index, Column: "*", Err: err}
		}
		r := Row{Index: i, vals: make(map[string]interface{}, len(m))}
		for k, v := range m {
			r.vals[strings.ToUpper(strings.TrimSpace(k))] = v
		}
		i++
		return r, nil
	}
}

// ReadAll collects all readable rows of t.  Malformed rows are counted and
// skipped.
func ReadAll(t *fitsio.Table) (rows []Row, skipped int, err error) {
	next := RowReader(t)
	for {
		r, err := next()
		switch {
		case err == nil:
			rows = append(rows, r)
		case errors.Is(err, io.EOF):
			return rows, skipped, nil
		default:
			var mre *cos.MalformedRecordError
			if !errors.As(err, &mre) {
				return rows, skipped, err
			}
			skipped++
		}
	}
}
