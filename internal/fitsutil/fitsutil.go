// Public domain.

// Package fitsutil wraps github.com/astrogo/fitsio with the tolerant
// access the monitor needs: gzip-transparent opening, case-insensitive
// keyword and column lookup, and coercion of whatever numeric type a file
// happens to store into the type the caller wants.
package fitsutil

import (
	"bytes"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/astrogo/fitsio"

	"github.com/justincely/cosmo/internal/cos"
)

// File is an open FITS file held in memory.
type File struct {
	*fitsio.File
	Path string
}

// Open reads the FITS file at path.  Files ending in .gz are decompressed.
// The whole file is read up front; products handled here are small.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		defer zr.Close()
		r = zr
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	ff, err := fitsio.Open(bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &File{File: ff, Path: path}, nil
}

// Header returns the header of HDU i, or an error if the file has fewer
// HDUs.
func (f *File) Header(i int) (*fitsio.Header, error) {
	if i >= len(f.HDUs()) {
		return nil, fmt.Errorf("%s: HDU %d: %w", f.Path, i, cos.ErrMissingField)
	}
	return f.HDU(i).Header(), nil
}

// Table returns HDU i as a table.
func (f *File) Table(i int) (*fitsio.Table, error) {
	if i >= len(f.HDUs()) {
		return nil, fmt.Errorf("%s: HDU %d: %w", f.Path, i, cos.ErrMissingField)
	}
	t, ok := f.HDU(i).(*fitsio.Table)
	if !ok {
		return nil, fmt.Errorf("%s: HDU %d is not a table", f.Path, i)
	}
	return t, nil
}

// Card finds a keyword, ignoring case.
func Card(h *fitsio.Header, key string) (*fitsio.Card, bool) {
	if c := h.Get(strings.ToUpper(key)); c != nil {
		return c, true
	}
	for _, k := range h.Keys() {
		if strings.EqualFold(k, key) {
			return h.Get(k), true
		}
	}
	return nil, false
}

// String, Int, Float and Bool read a keyword value.  An absent keyword is
// reported with cos.ErrMissingField, a value of the wrong type with a
// plain error.
func String(h *fitsio.Header, key string) (string, error) {
	c, ok := Card(h, key)
	if !ok {
		return "", fmt.Errorf("keyword %s: %w", key, cos.ErrMissingField)
	}
	s, ok := AsString(c.Value)
	if !ok {
		return "", fmt.Errorf("keyword %s: not a string (%T)", key, c.Value)
	}
	return s, nil
}

func Int(h *fitsio.Header, key string) (int, error) {
	c, ok := Card(h, key)
	if !ok {
		return 0, fmt.Errorf("keyword %s: %w", key, cos.ErrMissingField)
	}
	n, ok := AsInt(c.Value)
	if !ok {
		return 0, fmt.Errorf("keyword %s: not an integer (%v)", key, c.Value)
	}
	return n, nil
}

func Float(h *fitsio.Header, key string) (float64, error) {
	c, ok := Card(h, key)
	if !ok {
		return 0, fmt.Errorf("keyword %s: %w", key, cos.ErrMissingField)
	}
	x, ok := AsFloat(c.Value)
	if !ok {
		return 0, fmt.Errorf("keyword %s: not a number (%v)", key, c.Value)
	}
	return x, nil
}

// ColumnIndex returns the index of the named column, ignoring case, or -1.
func ColumnIndex(t *fitsio.Table, name string) int {
	for i, c := range t.Cols() {
		if strings.EqualFold(strings.TrimSpace(c.Name), name) {
			return i
		}
	}
	return -1
}

// HasColumn reports whether t has the named column.
func HasColumn(t *fitsio.Table, name string) bool {
	return ColumnIndex(t, name) >= 0
}
