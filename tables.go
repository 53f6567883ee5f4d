package gogusplayer

import (
	"math"
	"sync"

	"github.com/GeoffreyPlitt/debuggo"
)

var tablesDebug = debuggo.Debug("gusplayer:tables")

const (
	// GaussN is the order of the windowed interpolation kernel; each kernel
	// has GaussN+1 taps centred on the current sample.
	GaussN = 34

	// NewtonMaxOrder bounds the Newton forward-difference table.
	NewtonMaxOrder = 58

	gaussHalf  = GaussN >> 1
	gaussTaps  = GaussN + 1
	gaussSteps = 1 << FracBits
)

// InterpTables holds the read-only interpolation coefficients shared by every
// high-quality render call.
type InterpTables struct {
	gauss  []float64 // gaussSteps rows of gaussTaps weights
	newton [NewtonMaxOrder + 1][NewtonMaxOrder + 1]float64
}

var (
	defaultTablesOnce sync.Once
	defaultTables     *InterpTables
)

// DefaultTables returns the process-wide tables, building them on first use.
func DefaultTables() *InterpTables {
	defaultTablesOnce.Do(func() {
		defaultTables = BuildTables()
	})
	return defaultTables
}

// BuildTables computes the Newton coefficient table and the trigonometric
// ("gauss") kernel table for every fractional offset.
func BuildTables() *InterpTables {
	t := &InterpTables{
		gauss: make([]float64, gaussSteps*gaussTaps),
	}

	// newton[i][j] = C(i,j)/i!, signed by the parity of i-j, so that
	// sum_j newton[i][j]*f[j] is the i-th forward difference over i!.
	t.newton[0][0] = 1
	for i := 1; i <= NewtonMaxOrder; i++ {
		t.newton[i][0] = t.newton[i-1][0] / float64(i)
		t.newton[i][i] = t.newton[i-1][0] / float64(i)
		for j := 1; j < i; j++ {
			t.newton[i][j] = (t.newton[i-1][j-1] + t.newton[i-1][j]) / float64(i)
		}
	}
	for i := 0; i <= NewtonMaxOrder; i++ {
		for j := 0; j <= i; j++ {
			if (i-j)&1 == 1 {
				t.newton[i][j] = -t.newton[i][j]
			}
		}
	}

	var z [gaussTaps]float64
	for i := range z {
		z[i] = float64(i) / (4 * math.Pi)
	}

	// The denominators only depend on the node positions.
	var denom [gaussTaps]float64
	for k := range denom {
		d := 1.0
		for i := range z {
			if i != k {
				d *= math.Sin(z[k] - z[i])
			}
		}
		denom[k] = d
	}

	var num [gaussTaps]float64
	for m := 0; m < gaussSteps; m++ {
		x := float64(m) / gaussSteps
		xz := (x + gaussHalf) / (4 * math.Pi)
		for i := range z {
			num[i] = math.Sin(xz - z[i])
		}

		row := t.gauss[m*gaussTaps : (m+1)*gaussTaps]
		for k := range row {
			ck := 1.0
			for i := range num {
				if i != k {
					ck *= num[i]
				}
			}
			row[k] = ck / denom[k]
		}
	}

	tablesDebug("Built interpolation tables: %d kernels of %d taps, newton order %d",
		gaussSteps, gaussTaps, NewtonMaxOrder)
	return t
}

// GaussKernel returns the tap weights for a fractional offset in [0, 1024).
func (t *InterpTables) GaussKernel(frac int) []float64 {
	return t.gauss[frac*gaussTaps : (frac+1)*gaussTaps]
}

// NewtonRow returns the forward-difference coefficients of the given order.
func (t *InterpTables) NewtonRow(order int) []float64 {
	return t.newton[order][:order+1]
}
