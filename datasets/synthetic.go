package datasets

import (
	"fmt"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/zorros/zorros"
	"math"
	"math/rand"
)

/*
Task selects how synthetic labels are derived from features
*/
type Task int

const (
	Regression Task = iota
	Classification
)

const (
	FeatureMax = 10.0
	Slope      = 2.0
	Bias       = 1.0
	Noise      = 2.0
)

/*
Synthetic generates Samples rows of Width features drawn uniformly from [0,10)

Regression labels are Slope*sum(x)+Bias plus gaussian noise with Noise deviation.
Classification labels are Bernoulli draws with p = sigmoid(sum(x) - 5*Width).
Rand is required, seed it to get reproducible datasets.
*/
type Synthetic struct {
	Samples int
	Width   int
	Task    Task
	Rand    *rand.Rand
}

func (s Synthetic) Dataset() (ds model.Dataset, err error) {
	if s.Samples <= 0 {
		return ds, zorros.Errorf("synthetic dataset needs positive number of samples, got %d", s.Samples)
	}
	width := s.Width
	if width <= 0 {
		width = 1
	}
	rnd := s.Rand
	if rnd == nil {
		return ds, zorros.Errorf("synthetic dataset needs random source")
	}
	ds.Features = make([][]float64, s.Samples)
	ds.Labels = make([]float64, s.Samples)
	ds.FeatureNames = make([]string, width)
	for j := range ds.FeatureNames {
		ds.FeatureNames[j] = fmt.Sprintf("x%d", j)
	}
	ds.Label = "y"
	for i := range ds.Features {
		x := make([]float64, width)
		sum := 0.0
		for j := range x {
			x[j] = rnd.Float64() * FeatureMax
			sum += x[j]
		}
		ds.Features[i] = x
		switch s.Task {
		case Classification:
			p := 1 / (1 + math.Exp(-(sum - FeatureMax/2*float64(width))))
			if rnd.Float64() < p {
				ds.Labels[i] = 1
			}
		default:
			ds.Labels[i] = Slope*sum + Bias + rnd.NormFloat64()*Noise
		}
	}
	return
}
