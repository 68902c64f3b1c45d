package logistic

import (
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/zorros/zorros"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

type objective struct {
	x         [][]float64 // rows with trailing 1 for intercept
	y         []float64   // -1 or +1
	c         float64
	penalized int // count of leading coefficients under L2 penalty
}

func newObjective(ds model.Dataset, c float64, penalizeIntercept bool) *objective {
	o := &objective{
		x: make([][]float64, ds.Len()),
		y: make([]float64, ds.Len()),
		c: c,
	}
	for i, row := range ds.Features {
		r := make([]float64, len(row)+1)
		copy(r, row)
		r[len(row)] = 1
		o.x[i] = r
		o.y[i] = 2*ds.Labels[i] - 1
	}
	o.penalized = ds.Width()
	if penalizeIntercept {
		o.penalized++
	}
	return o
}

func (o *objective) dim() int {
	return len(o.x[0])
}

func (o *objective) value(w []float64) float64 {
	s := 0.0
	for i, x := range o.x {
		s += log1pexp(-o.y[i] * floats.Dot(w, x))
	}
	r := floats.Dot(w[:o.penalized], w[:o.penalized])
	return 0.5*r + o.c*s
}

func (o *objective) grad(g, w []float64) {
	for j := range g {
		g[j] = 0
	}
	for i, x := range o.x {
		d := o.c * (sigmoid(o.y[i]*floats.Dot(w, x)) - 1) * o.y[i]
		floats.AddScaled(g, d, x)
	}
	floats.Add(g[:o.penalized], w[:o.penalized])
}

func (o *objective) hess(h *mat.SymDense, w []float64) {
	k := o.dim()
	for a := 0; a < k; a++ {
		for b := a; b < k; b++ {
			h.SetSym(a, b, 0)
		}
	}
	for _, x := range o.x {
		p := sigmoid(floats.Dot(w, x))
		d := o.c * p * (1 - p)
		for a := 0; a < k; a++ {
			for b := a; b < k; b++ {
				h.SetSym(a, b, h.At(a, b)+d*x[a]*x[b])
			}
		}
	}
	for a := 0; a < o.penalized; a++ {
		h.SetSym(a, a, h.At(a, a)+1)
	}
}

// newton is a damped Newton method with backtracking line search,
// it stops when the gradient norm decreased by tol relative to the starting point
func newton(o *objective, maxIter int, tol float64) ([]float64, error) {
	k := o.dim()
	w := make([]float64, k)
	g := make([]float64, k)
	h := mat.NewSymDense(k, nil)
	o.grad(g, w)
	g0 := floats.Norm(g, 2)
	f := o.value(w)
	for it := 0; it < maxIter; it++ {
		if floats.Norm(g, 2) <= tol*g0 {
			return w, nil
		}
		o.hess(h, w)
		d := mat.NewVecDense(k, nil)
		if err := d.SolveVec(h, mat.NewVecDense(k, append([]float64(nil), g...))); err != nil {
			if _, ok := err.(mat.Condition); !ok {
				return nil, &model.FitError{Err: zorros.Trace(err)}
			}
		}
		step := 1.0
		q := make([]float64, k)
		for ; step > 1e-10; step /= 2 {
			floats.AddScaledTo(q, w, -step, d.RawVector().Data)
			if fq := o.value(q); fq <= f {
				f = fq
				break
			}
		}
		if step <= 1e-10 {
			break
		}
		copy(w, q)
		o.grad(g, w)
	}
	if floats.Norm(g, 2) <= tol*g0 {
		return w, nil
	}
	return nil, model.Fitfail("logistic: liblinear solver failed to converge in %d iterations", maxIter)
}

func minimize(o *objective, maxIter int, tol float64, method optimize.Method) ([]float64, error) {
	p := optimize.Problem{
		Func: o.value,
		Grad: o.grad,
		Hess: o.hess,
	}
	settings := &optimize.Settings{
		GradientThreshold: tol,
		MajorIterations:   maxIter,
	}
	result, err := optimize.Minimize(p, make([]float64, o.dim()), settings, method)
	if err != nil {
		return nil, &model.FitError{Err: zorros.Trace(err)}
	}
	if result.Status == optimize.IterationLimit {
		return nil, model.Fitfail("logistic: failed to converge in %d iterations", maxIter)
	}
	return result.X, nil
}

func lbfgs(o *objective, maxIter int, tol float64) ([]float64, error) {
	return minimize(o, maxIter, tol, &optimize.LBFGS{})
}

func newtonCG(o *objective, maxIter int, tol float64) ([]float64, error) {
	return minimize(o, maxIter, tol, &optimize.Newton{})
}
