// Public domain.

// Package anomaly flags measurements outside their tolerances.
//
// Two checks are made.  Drift rows are flagged when the cross-dispersion
// spread within one exposure exceeds a fixed tolerance.  Shift records are
// flagged when the dispersion shift leaves the search range of the optical
// element.  Search ranges are piecewise constant in time: an element may
// have one range before an epoch and another from the epoch on.
package anomaly

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strconv"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/drift"
)

// Range is a closed interval.
type Range struct {
	Lo float64 `yaml:"lo"`
	Hi float64 `yaml:"hi"`
}

// Within returns the symmetric range [-w, w].
func Within(w float64) Range { return Range{-w, w} }

// Contains reports whether v lies in r.
func (r Range) Contains(v float64) bool { return v >= r.Lo && v <= r.Hi }

// Band is the search range of one optical element.  With a zero Epoch,
// Before applies at all times.
type Band struct {
	OptElem string  `yaml:"opt_elem"`
	Epoch   float64 `yaml:"epoch"` // MJD
	Before  Range   `yaml:"before"`
	After   Range   `yaml:"after"`
}

// At returns the range in effect at mjd.
func (b Band) At(mjd float64) Range {
	if b.Epoch != 0 && mjd >= b.Epoch {
		return b.After
	}
	return b.Before
}

// Policy holds the tolerances.
type Policy struct {
	DriftTolerance float64
	Bands          []Band
}

// DefaultDriftTolerance is the largest acceptable cross-dispersion spread
// within an exposure, in pixels.
const DefaultDriftTolerance = 2

// DefaultBands are the search ranges of the lamp flash wavecal.
var DefaultBands = []Band{
	{OptElem: "G130M", Before: Within(285)},
	{OptElem: "G160M", Before: Within(285)},
	{OptElem: "G140L", Before: Within(285)},
	{OptElem: "G185M", Epoch: 56500, Before: Within(58), After: Range{-78, 38}},
	{OptElem: "G225M", Epoch: 56500, Before: Within(58), After: Range{-68, 48}},
	{OptElem: "G230L", Epoch: 55535, Before: Within(58), After: Range{-98, 18}},
	{OptElem: "G285M", Before: Within(58)},
}

// DefaultPolicy returns the tolerances the monitor runs with.
func DefaultPolicy() Policy {
	return Policy{
		DriftTolerance: DefaultDriftTolerance,
		Bands:          append([]Band(nil), DefaultBands...),
	}
}

// Envelope returns the search range for optElem at mjd.  ok is false
// when no band covers the element.
func (p Policy) Envelope(optElem string, mjd float64) (r Range, ok bool) {
	for _, b := range p.Bands {
		if b.OptElem == optElem {
			return b.At(mjd), true
		}
	}
	return Range{}, false
}

// Kind is the check that produced an anomaly.
type Kind int

const (
	Drift Kind = iota
	Shift
)

func (k Kind) String() string {
	if k == Drift {
		return "drift"
	}
	return "shift"
}

// Anomaly is one flagged measurement.  Source is the file of a drift row
// or the dataset of a shift record.  Group is the segment of a drift row
// or the optical element of a shift record.  MJD is NaN for drift rows.
type Anomaly struct {
	Kind   Kind
	Source string
	Group  string
	MJD    float64
	Value  float64
	Limit  Range
}

// FlagDrift returns the rows whose spread magnitude exceeds the drift
// tolerance, in row order.
func (p Policy) FlagDrift(rows []drift.Row) []Anomaly {
	var as []Anomaly
	lim := Within(p.DriftTolerance)
	for _, r := range rows {
		if math.Abs(r.Spread) > p.DriftTolerance {
			as = append(as, Anomaly{
				Kind:   Drift,
				Source: r.Path,
				Group:  r.Segment,
				MJD:    math.NaN(),
				Value:  r.Spread,
				Limit:  lim,
			})
		}
	}
	return as
}

// FlagShifts returns the records whose dispersion shift is outside the
// envelope of their optical element, in record order.  Records without
// a dispersion shift or without a band are not checked.
func (p Policy) FlagShifts(records []cos.Record) []Anomaly {
	var as []Anomaly
	for _, r := range records {
		if !r.XShift.Valid {
			continue
		}
		env, ok := p.Envelope(r.OptElem, r.MJD)
		if !ok || env.Contains(r.XShift.Float64) {
			continue
		}
		as = append(as, Anomaly{
			Kind:   Shift,
			Source: r.Dataset,
			Group:  r.OptElem,
			MJD:    r.MJD,
			Value:  r.XShift.Float64,
			Limit:  env,
		})
	}
	return as
}

// WriteReport writes one line per anomaly:
//
//	<kind> <source> <group> <mjd> <value> <lo> <hi>
//
// A drift row has "-" for its MJD.
func WriteReport(w io.Writer, as []Anomaly) error {
	bw := bufio.NewWriter(w)
	for _, a := range as {
		mjd := "-"
		if !math.IsNaN(a.MJD) {
			mjd = strconv.FormatFloat(a.MJD, 'f', 5, 64)
		}
		fmt.Fprintf(bw, "%s %s %s %s %.5f %g %g\n",
			a.Kind, a.Source, a.Group, mjd, a.Value, a.Limit.Lo, a.Limit.Hi)
	}
	return bw.Flush()
}
