// Public domain.

package corpus

import (
	"fmt"
	"path/filepath"
	"strconv"
)

// DedupMode selects what makes two corpus files the same exposure.
type DedupMode string

const (
	// DedupBasename treats files with the same name as the same exposure
	// wherever they are.  The first one seen in walk order is kept.
	DedupBasename DedupMode = "basename"

	// DedupPath never treats two paths as the same.
	DedupPath DedupMode = "path"

	// DedupExposure keys files on the dataset rootname and exposure start
	// read from the file, so copies under different names collapse and
	// distinct exposures sharing a name do not.
	DedupExposure DedupMode = "exposure"
)

// ParseDedupMode validates a mode name.
func ParseDedupMode(s string) (DedupMode, error) {
	switch m := DedupMode(s); m {
	case DedupBasename, DedupPath, DedupExposure:
		return m, nil
	case "":
		return DedupExposure, nil
	}
	return "", fmt.Errorf("unknown dedup mode %q", s)
}

// Deduper remembers exposures already seen.  It is not safe for
// concurrent use; callers feed it in walk order.
type Deduper struct {
	Mode DedupMode
	seen map[string]bool
}

// NewDeduper returns an empty Deduper.
func NewDeduper(m DedupMode) *Deduper {
	return &Deduper{Mode: m, seen: map[string]bool{}}
}

func (d *Deduper) seenKey(k string) bool {
	if d.seen == nil {
		d.seen = map[string]bool{}
	}
	if d.seen[k] {
		return true
	}
	d.seen[k] = true
	return false
}

// SeenPath applies the name based modes.  For DedupPath and
// DedupExposure it always reports false.
func (d *Deduper) SeenPath(path string) bool {
	if d.Mode != DedupBasename {
		return false
	}
	return d.seenKey(filepath.Base(path))
}

// SeenExposure applies DedupExposure.  Other modes report false.
func (d *Deduper) SeenExposure(dataset string, expstart float64) bool {
	if d.Mode != DedupExposure {
		return false
	}
	return d.seenKey(dataset + "@" + strconv.FormatFloat(expstart, 'f', -1, 64))
}
