// Public domain.

// Package cos holds the types shared by the shift monitor: the measured
// shift record, product kinds recognized from file names, detector and
// segment names, and the error values components report to each other.
package cos

import (
	"database/sql"
	"path/filepath"
	"strings"
	"time"

	"github.com/soniakeys/meeus/v3/julian"
)

// Detector names as they appear in the DETECTOR keyword.
const (
	FUV = "FUV"
	NUV = "NUV"
)

// Segment names as they appear in the SEGMENT column of lampflash tables.
const (
	FUVA = "FUVA"
	FUVB = "FUVB"
	NUVA = "NUVA"
	NUVB = "NUVB"
	NUVC = "NUVC"

	// NoSegment marks records of products that carry no per-segment rows.
	NoSegment = "N/A"
)

// FPCenter is the FP-POS setting that a focal plane offset is relative to.
const FPCenter = 3

// Record is one measured shift, as emitted by a flash extractor and as
// stored in the shift table.  Records are values and are not modified
// once emitted.
type Record struct {
	MJD      float64 // EXPSTART
	Dataset  string
	Filename string
	ProposID int
	Detector string
	OptElem  string
	Cenwave  int
	Segment  string
	FPPos    sql.NullInt64
	LampTab  string
	Flash    int // 1-based
	XShift   sql.NullFloat64
	YShift   sql.NullFloat64
	Found    bool
}

// Date is the calendar time of the record's exposure start.
func (r Record) Date() time.Time {
	return MJDToTime(r.MJD)
}

// mjdOffset converts between Julian day and modified Julian day.
const mjdOffset = 2400000.5

// MJDToTime converts a modified Julian date to UTC.
func MJDToTime(mjd float64) time.Time {
	return julian.JDToTime(mjd + mjdOffset).UTC()
}

// TimeToMJD converts a time to modified Julian date.
func TimeToMJD(t time.Time) float64 {
	return julian.TimeToJD(t) - mjdOffset
}

// ProductKind identifies which extraction strategy applies to a file.
type ProductKind int

const (
	KindUnknown ProductKind = iota
	KindLampflash
	KindRawacq
)

func (k ProductKind) String() string {
	switch k {
	case KindLampflash:
		return "lampflash"
	case KindRawacq:
		return "rawacq"
	}
	return "unknown"
}

// product suffixes, with or without trailing .gz
const (
	lampflashSuffix = "_lampflash.fits"
	rawacqSuffix    = "_rawacq.fits"
)

// KindOf classifies a product by its file name.  The decision is made once
// here so name matching does not recur through the pipeline.
func KindOf(path string) ProductKind {
	base := strings.TrimSuffix(filepath.Base(path), ".gz")
	switch {
	case strings.HasSuffix(base, lampflashSuffix):
		return KindLampflash
	case strings.HasSuffix(base, rawacqSuffix):
		return KindRawacq
	}
	return KindUnknown
}

// Rootname returns the dataset rootname encoded in a product file name,
// the part before the first underscore.
func Rootname(path string) string {
	base := filepath.Base(path)
	if i := strings.IndexByte(base, '_'); i > 0 {
		return base[:i]
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// CompanionPath derives the support (spt) file of an acquisition product
// by substituting the product marker in the base name.
func CompanionPath(path string) string {
	dir, base := filepath.Split(path)
	return dir + strings.Replace(base, "rawacq", "spt", 1)
}
