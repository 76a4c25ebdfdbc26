// Public domain.

package lamptab_test

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/justincely/cosmo/internal/cos"
	"github.com/justincely/cosmo/internal/fitsutil/fitstest"
	"github.com/justincely/cosmo/internal/lamptab"
)

var resolveCases = []struct {
	key   lamptab.Key
	shift float64
	miss  bool
}{
	{lamptab.Key{"FUVA", "G130M", 1291, -1}, -2.5, false},
	{lamptab.Key{"FUVA", "G130M", 1291, 0}, 1.2345, false},
	{lamptab.Key{"FUVB", "G130M", 1291, 0}, 0.75, false},
	{lamptab.Key{"FUVA", "G160M", 1600, 2}, 100.125, false},
	{lamptab.Key{"FUVA", "G130M", 1309, 0}, 0, true},
	{lamptab.Key{"FUVA", "G130M", 1291, 1}, 0, true},
}

func writeTable(t *testing.T) string {
	fn := filepath.Join(t.TempDir(), "x1u1459il_lamp.fits")
	fitstest.LampTab(t, fn,
		fitstest.LampRow{Segment: "FUVA", OptElem: "G130M", Cenwave: 1291, FPOffset: -1, Shift: -2.5},
		fitstest.LampRow{Segment: "FUVA", OptElem: "G130M", Cenwave: 1291, FPOffset: 0, Shift: 1.2345},
		fitstest.LampRow{Segment: "FUVB", OptElem: "G130M", Cenwave: 1291, FPOffset: 0, Shift: .75},
		fitstest.LampRow{Segment: "FUVA", OptElem: "G160M", Cenwave: 1600, FPOffset: 2, Shift: 100.125},
		// duplicate key, first row wins
		fitstest.LampRow{Segment: "FUVA", OptElem: "G130M", Cenwave: 1291, FPOffset: 0, Shift: 9},
	)
	return fn
}

func TestResolve(t *testing.T) {
	tab, err := lamptab.Load(writeTable(t))
	require.NoError(t, err)
	require.True(t, tab.Corrects())
	assert.Equal(t, 5, tab.Len())
	for _, c := range resolveCases {
		s, err := tab.Resolve(c.key)
		switch {
		case c.miss:
			assert.ErrorIs(t, err, cos.ErrLookupMiss, c.key.String())
			assert.Zero(t, s)
		default:
			require.NoError(t, err, c.key.String())
			assert.Equal(t, c.shift, s, c.key.String())
		}
	}
}

func TestResolveNoFPOffset(t *testing.T) {
	fn := filepath.Join(t.TempDir(), "old_lamp.fits")
	fitstest.LampTab(t, fn,
		fitstest.LampRowNoFP{Segment: "FUVA", OptElem: "G130M", Cenwave: 1291})
	tab, err := lamptab.Load(fn)
	require.NoError(t, err)
	assert.False(t, tab.Corrects())
	for _, c := range resolveCases {
		s, err := tab.Resolve(c.key)
		assert.NoError(t, err)
		assert.Zero(t, s)
	}
}

func TestCache(t *testing.T) {
	fn := writeTable(t)
	c := lamptab.NewCache(filepath.Dir(fn))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s, err := c.Resolve("lref$x1u1459il_lamp.fits",
				lamptab.Key{"FUVA", "G130M", 1291, 0})
			assert.NoError(t, err)
			assert.Equal(t, 1.2345, s)
		}()
	}
	wg.Wait()

	t1, err := c.Table("x1u1459il_lamp.fits")
	require.NoError(t, err)
	t2, err := c.Table("lref$x1u1459il_lamp.fits")
	require.NoError(t, err)
	assert.Same(t, t1, t2)

	_, err = c.Table("missing_lamp.fits")
	assert.Error(t, err)
	assert.False(t, errors.Is(err, cos.ErrLookupMiss))
}

func ExampleTableName() {
	fmt.Println(lamptab.TableName("lref$x6q17586l_lamp.fits"))
	fmt.Println(lamptab.TableName("x6q17586l_lamp.fits"))
	// Output:
	// x6q17586l_lamp.fits
	// x6q17586l_lamp.fits
}
