// Public domain.

// Package corpus walks the exposure archive the way the monitors expect it
// to be laid out: exposures live in directories a fixed number of levels
// below the root, and a set of holding and staging areas is never read.
package corpus

import (
	"context"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
)

// DefaultExclude lists the directory names whose subtrees are not part of
// the corpus: quality control holding, fast track staging, target
// catalogs, pod files, compressed archives, experimental data, anomaly
// reports and on-the-fly reprocessing staging.
var DefaultExclude = []string{
	"Quality",
	"Fasttrack",
	"targets",
	"podfiles",
	"gzip",
	"experimental",
	"Anomalies",
	"otfrdata",
}

// DefaultLeafDepth is the depth of exposure directories below the root,
// as in <root>/<program>/<visit>/<exposures>.
const DefaultLeafDepth = 3

// Walker selects files from a corpus.
type Walker struct {
	Root      string
	Exclude   []string
	LeafDepth int // 0 accepts files at any depth
}

// Stats counts what a walk passed over.  None of these are errors.
type Stats struct {
	Dirs         int // leaf directories read
	ExcludedDirs int // subtrees pruned by the exclude list
	OffDepthDirs int // directories pruned for being below the leaf depth
	Duplicates   int // files dropped by the deduper
}

// Files returns the paths of files for which keep returns true, in
// depth-first lexical order.  If d is not nil each file is also offered to
// d.SeenPath and dropped when already seen.
func (w *Walker) Files(ctx context.Context, keep func(name string) bool, d *Deduper) ([]string, Stats, error) {
	var st Stats
	var paths []string
	err := filepath.WalkDir(w.Root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(w.Root, path)
		if err != nil {
			return err
		}
		depth := 0
		if rel != "." {
			depth = strings.Count(filepath.ToSlash(rel), "/") + 1
		}
		if de.IsDir() {
			switch {
			case rel != "." && w.excluded(rel):
				st.ExcludedDirs++
				return filepath.SkipDir
			case w.LeafDepth > 0 && depth > w.LeafDepth:
				st.OffDepthDirs++
				return filepath.SkipDir
			case w.LeafDepth == 0 || depth == w.LeafDepth:
				st.Dirs++
			}
			return nil
		}
		// files sit one level below their directory
		if w.LeafDepth > 0 && depth-1 != w.LeafDepth {
			return nil
		}
		if !keep(de.Name()) {
			return nil
		}
		if d != nil && d.SeenPath(path) {
			st.Duplicates++
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return paths, st, fmt.Errorf("walking %s: %w", w.Root, err)
	}
	return paths, st, nil
}

func (w *Walker) excluded(rel string) bool {
	for _, x := range w.Exclude {
		if x != "" && strings.Contains(rel, x) {
			return true
		}
	}
	return false
}
