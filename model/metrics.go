package model

import (
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/zorros/zorros"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
	"math"
)

const (
	MaeCol  = "mae"
	RmseCol = "rmse"
	R2Col   = "r2"
)

/*
Metrics evaluates predictions against the ground truth labels
*/
type Metrics interface {
	// Names of all metrics Evaluate returns
	Names() []string
	Evaluate(labels, predicted []float64) (map[string]float64, error)
}

/*
Regression metrics are MAE, RMSE and R2
*/
type Regression struct{}

func (Regression) Names() []string {
	return []string{MaeCol, RmseCol, R2Col}
}

func (Regression) Evaluate(labels, predicted []float64) (map[string]float64, error) {
	if len(labels) != len(predicted) {
		return nil, zorros.Errorf("%d labels but %d predictions", len(labels), len(predicted))
	}
	if len(labels) == 0 {
		return nil, zorros.Errorf("nothing to evaluate")
	}
	return map[string]float64{
		MaeCol:  fu.Mae(labels, predicted),
		RmseCol: math.Sqrt(fu.Mse(labels, predicted)),
		R2Col:   R2(labels, predicted),
	}, nil
}

/*
R2 is the coefficient of determination
for constant labels it's 1 when predictions are exact and 0 otherwise
*/
func R2(labels, predicted []float64) float64 {
	if len(labels) < 2 || stat.Variance(labels, nil) == 0 {
		if floats.EqualApprox(labels, predicted, 1e-12) {
			return 1
		}
		return 0
	}
	return stat.RSquaredFrom(predicted, labels, nil)
}

/*
Placeholder is a fixed diagnostic metric not depending on predictions
*/
type Placeholder struct {
	Name  string
	Value float64
}

func (p Placeholder) Names() []string {
	return []string{p.Name}
}

func (p Placeholder) Evaluate(labels, predicted []float64) (map[string]float64, error) {
	return map[string]float64{p.Name: p.Value}, nil
}
