package fu

import (
	"math"
	"path/filepath"
	"testing"

	"gotest.tools/assert"
)

func Test_Floats(t *testing.T) {
	a := []float64{1, 2, 3}
	b := []float64{1, 3, 5}
	assert.Assert(t, Mean(a) == 2)
	assert.Assert(t, Mse(a, b) == 5.0/3)
	assert.Assert(t, Mae(a, b) == 1)
	assert.Assert(t, Finite(a))
	assert.Assert(t, !Finite([]float64{1, math.NaN()}))
	assert.Assert(t, !Finite([]float64{math.Inf(-1)}))
	assert.DeepEqual(t, Column([][]float64{{1, 2}, {3, 4}}, 1), []float64{2, 4})
}

func Test_Fnz(t *testing.T) {
	assert.Assert(t, Fnzi(0, 0, 3, 4) == 3)
	assert.Assert(t, Fnzi() == 0)
	assert.Assert(t, Fnzs("", "b") == "b")
	assert.Assert(t, Fnzf(0, 0.5) == 0.5)
}

func Test_ArtifactPath(t *testing.T) {
	abs, _ := filepath.Abs("x")
	assert.Assert(t, ArtifactPath(abs) == abs)
	assert.Assert(t, filepath.IsAbs(ArtifactPath("runs")))
}
