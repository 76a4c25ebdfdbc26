// Public domain.

package cos

import (
	"errors"
	"fmt"
)

var (
	// ErrLookupMiss: no reference table row matches a configuration key.
	// Recoverable; the resolver's defined default is a zero offset.
	ErrLookupMiss = errors.New("no matching reference table row")

	// ErrMissingCompanion: the support file an acquisition product needs
	// could not be opened.
	ErrMissingCompanion = errors.New("missing companion file")

	// ErrMissingField: a keyword or column required to extract a record
	// is absent.
	ErrMissingField = errors.New("missing required field")
)

// MalformedRecordError reports a single table row with an absent or
// mistyped field.  The row is skipped; the rest of the file is kept.
type MalformedRecordError struct {
	Row    int
	Column string
	Err    error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("row %d, column %s: %v", e.Row, e.Column, e.Err)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }
