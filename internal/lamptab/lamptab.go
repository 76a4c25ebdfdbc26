// Public domain.

// Package lamptab resolves reference FP pixel shifts from a COS LAMPTAB.
//
// A LAMPTAB maps (segment, optical element, central wavelength, FP offset)
// to the pixel shift expected between lamp flashes at that setting.  Tables
// that predate FP-dependent shifts have no FPOFFSET column; for them no
// correction is defined and every lookup returns zero.
package lamptab

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil"
)

// Key selects a reference row.
type Key struct {
	Segment  string
	OptElem  string
	Cenwave  int
	FPOffset int // FPPOS - cos.FPCenter
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%d/%+d", k.Segment, k.OptElem, k.Cenwave, k.FPOffset)
}

type row struct {
	key   Key
	shift float64
}

// Table is a loaded reference table.  It is not modified after Load and
// may be shared between goroutines.
type Table struct {
	Name     string
	fpOffset bool // table has an FPOFFSET column
	rows     []row
}

// Len is the number of usable rows.
func (t *Table) Len() int { return len(t.rows) }

// Corrects reports whether the table defines FP-dependent shifts.
func (t *Table) Corrects() bool { return t.fpOffset }

// Load reads the reference rows from the first extension of the LAMPTAB
// at path.  Rows with unreadable fields are dropped.
func Load(path string) (*Table, error) {
	f, err := fitsutil.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	tbl, err := f.Table(1)
	if err != nil {
		return nil, err
	}
	t := &Table{
		Name:     filepath.Base(path),
		fpOffset: fitsutil.HasColumn(tbl, "FPOFFSET"),
	}
	if !t.fpOffset {
		return t, nil
	}
	rows, _, err := fitsutil.ReadAll(tbl)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	for _, r := range rows {
		var k Key
		var s float64
		if k.Segment, err = r.String("SEGMENT"); err != nil {
			continue
		}
		if k.OptElem, err = r.String("OPT_ELEM"); err != nil {
			continue
		}
		if k.Cenwave, err = r.Int("CENWAVE"); err != nil {
			continue
		}
		if k.FPOffset, err = r.Int("FPOFFSET"); err != nil {
			continue
		}
		if s, err = r.Float("FP_PIXEL_SHIFT"); err != nil {
			continue
		}
		t.rows = append(t.rows, row{k, s})
	}
	return t, nil
}

// Resolve returns the reference shift for k.
//
// A table without an FPOFFSET column returns 0 and no error.  Otherwise
// the first row equal to k on all four fields wins.  If none matches the
// result is 0 with an error wrapping cos.ErrLookupMiss; callers choose
// whether zero is an acceptable default.
func (t *Table) Resolve(k Key) (float64, error) {
	if !t.fpOffset {
		return 0, nil
	}
	for _, r := range t.rows {
		if r.key == k {
			return r.shift, nil
		}
	}
	return 0, fmt.Errorf("%s %v: %w", t.Name, k, cos.ErrLookupMiss)
}

// Cache loads reference tables by name from a reference directory, once
// each, and serves the loaded tables to any number of goroutines.
type Cache struct {
	Dir string

	mu     sync.Mutex
	tables map[string]*entry
}

type entry struct {
	once sync.Once
	t    *Table
	err  error
}

// NewCache returns a cache reading from dir.
func NewCache(dir string) *Cache {
	return &Cache{Dir: dir, tables: map[string]*entry{}}
}

// TableName strips the environment prefix from a LAMPTAB keyword value,
// as in "lref$x6q17586l_lamp.fits".
func TableName(keyword string) string {
	if i := strings.LastIndexByte(keyword, '$'); i >= 0 {
		return keyword[i+1:]
	}
	return keyword
}

// Table returns the named table, loading it on first use.  A failed load
// is remembered and returned to later callers too.
func (c *Cache) Table(name string) (*Table, error) {
	name = TableName(name)
	c.mu.Lock()
	if c.tables == nil {
		c.tables = map[string]*entry{}
	}
	e, ok := c.tables[name]
	if !ok {
		e = &entry{}
		c.tables[name] = e
	}
	c.mu.Unlock()
	e.once.Do(func() {
		e.t, e.err = Load(filepath.Join(c.Dir, name))
	})
	return e.t, e.err
}

// Resolve looks up k in the named table.
func (c *Cache) Resolve(name string, k Key) (float64, error) {
	t, err := c.Table(name)
	if err != nil {
		return 0, err
	}
	return t.Resolve(k)
}
