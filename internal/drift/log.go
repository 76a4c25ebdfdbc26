// Public domain.

package drift

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
)

// Line formats a row as a drift log line, without the newline.
func (r Row) Line() string {
	return r.Path + " " + r.Segment + " " + PyFloat(r.Spread) + " " + PyFloat(r.ExpTime)
}

// WriteLog writes rows one per line.
func WriteLog(w io.Writer, rows []Row) error {
	bw := bufio.NewWriter(w)
	for _, r := range rows {
		bw.WriteString(r.Line())
		bw.WriteByte('\n')
	}
	return bw.Flush()
}

// AppendLog appends rows to the drift log at path, creating it if needed.
func AppendLog(path string, rows []Row) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if err := WriteLog(f, rows); err != nil {
		f.Close()
		return fmt.Errorf("%s: %w", path, err)
	}
	return f.Close()
}

// ReadLog parses a drift log.  The last three fields of a line are
// segment, spread and exposure time; whatever precedes them is the path.
// Blank lines are ignored.
func ReadLog(r io.Reader) ([]Row, error) {
	var rows []Row
	sc := bufio.NewScanner(r)
	for ln := 1; sc.Scan(); ln++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f := strings.Fields(line)
		if len(f) < 4 {
			return rows, fmt.Errorf("drift log line %d: %d fields", ln, len(f))
		}
		n := len(f)
		spread, err := strconv.ParseFloat(f[n-2], 64)
		if err != nil {
			return rows, fmt.Errorf("drift log line %d: spread: %w", ln, err)
		}
		exptime, err := strconv.ParseFloat(f[n-1], 64)
		if err != nil {
			return rows, fmt.Errorf("drift log line %d: exptime: %w", ln, err)
		}
		rows = append(rows, Row{
			Path:    strings.Join(f[:n-3], " "),
			Segment: f[n-3],
			Spread:  spread,
			ExpTime: exptime,
		})
	}
	return rows, sc.Err()
}

// ReadLogFile reads the drift log at path.
func ReadLogFile(path string) ([]Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	rows, err := ReadLog(f)
	if err != nil {
		return rows, fmt.Errorf("%s: %w", path, err)
	}
	return rows, nil
}

// PyFloat formats x the way Python's str(float) does: shortest round-trip
// digits, a trailing ".0" on integral values, and exponent form below 1e-4
// or from 1e16 up.
func PyFloat(x float64) string {
	switch {
	case math.IsNaN(x):
		return "nan"
	case math.IsInf(x, 1):
		return "inf"
	case math.IsInf(x, -1):
		return "-inf"
	case x == 0:
		if math.Signbit(x) {
			return "-0.0"
		}
		return "0.0"
	}
	e := strconv.FormatFloat(x, 'e', -1, 64)
	exp, _ := strconv.Atoi(e[strings.IndexByte(e, 'e')+1:])
	if exp < -4 || exp >= 16 {
		return e
	}
	s := strconv.FormatFloat(x, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}
