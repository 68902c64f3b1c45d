/*
Package linear implements ordinary least squares regression
*/
package linear

import (
	"fmt"
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"gonum.org/v1/gonum/mat"
	"math"
	"strconv"
)

const Kind = "LinearRegression"

func init() {
	model.Register(Kind, func() model.PredictionModel { return &Model{} })
}

/*
Estimator is a linear regression estimator fitted by least squares
*/
type Estimator struct {
	FitIntercept bool
}

func (e Estimator) Kind() string  { return Kind }
func (e Estimator) Title() string { return "Linear Regression" }

func (e Estimator) Params() model.Params {
	return model.Params{"fit_intercept": strconv.FormatBool(e.FitIntercept)}
}

func (e Estimator) Metrics() model.Metrics {
	return model.Regression{}
}

/*
Check tests the dataset can be used to fit the estimator
*/
func (e Estimator) Check(ds model.Dataset) error {
	return ds.Validate()
}

/*
Feed binds estimator to the dataset
*/
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
Fit finds the minimum norm least squares solution of X*w = y

Singular values below the rank tolerance are dropped, so constant
or collinear features do not break the fit. If FitIntercept, features and
labels are centered first and the intercept is not a part of the norm.
*/
func (e Estimator) Fit(ds model.Dataset) (*Model, error) {
	if err := e.Check(ds); err != nil {
		return nil, zorros.Trace(err)
	}
	n, w := ds.Len(), ds.Width()
	xm := make([]float64, w)
	ym := 0.0
	if e.FitIntercept {
		for j := range xm {
			xm[j] = fu.Mean(fu.Column(ds.Features, j))
		}
		ym = fu.Mean(ds.Labels)
	}
	x := mat.NewDense(n, w, nil)
	for i, row := range ds.Features {
		for j, v := range row {
			x.Set(i, j, v-xm[j])
		}
	}
	y := mat.NewVecDense(n, nil)
	for i, v := range ds.Labels {
		y.SetVec(i, v-ym)
	}

	coef, rank, err := lstsq(x, y)
	if err != nil {
		return nil, err
	}
	if rank < w {
		zlog.Warning(fmt.Sprintf("linear: features matrix has rank %d of %d, minimum norm solution is used", rank, w))
	}
	m := &Model{Coef: coef, Intercept: ym}
	for j, c := range coef {
		m.Intercept -= c * xm[j]
	}
	if !fu.Finite(coef) || !fu.Finite([]float64{m.Intercept}) {
		return nil, model.Fitfail("linear: coefficients are not finite")
	}
	return m, nil
}

// lstsq solves x*w = y via thin SVD, rcond is eps*max(rows,cols) like numpy
func lstsq(x *mat.Dense, y *mat.VecDense) ([]float64, int, error) {
	n, k := x.Dims()
	var svd mat.SVD
	if !svd.Factorize(x, mat.SVDThin) {
		return nil, 0, model.Fitfail("linear: singular value decomposition failed")
	}
	s := svd.Values(nil)
	var u, v mat.Dense
	svd.UTo(&u)
	svd.VTo(&v)
	tol := 0.0
	if len(s) > 0 {
		tol = s[0] * (math.Nextafter(1, 2) - 1) * math.Max(float64(n), float64(k))
	}
	beta := mat.NewVecDense(k, nil)
	rank := 0
	for i, sv := range s {
		if sv <= tol {
			continue
		}
		rank++
		beta.AddScaledVec(beta, mat.Dot(u.ColView(i), y)/sv, v.ColView(i))
	}
	coef := make([]float64, k)
	for i := range coef {
		coef[i] = beta.AtVec(i)
	}
	return coef, rank, nil
}

/*
Model is a fitted linear model y = Coef*x + Intercept
*/
type Model struct {
	Coef      []float64 `json:"coef"`
	Intercept float64   `json:"intercept"`
}

func (m *Model) Kind() string { return Kind }

func (m *Model) Predict(features [][]float64) []float64 {
	r := make([]float64, len(features))
	for i, row := range features {
		s := m.Intercept
		for j, v := range row {
			s += m.Coef[j] * v
		}
		r[i] = s
	}
	return r
}
