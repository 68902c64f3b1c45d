package model

import (
	"go-ml.dev/pkg/zorros/zorros"
)

/*
HungryModel is an ML algorithm grows from a data to predict something
Needs to be fattened by Feed method to fit.
*/
type HungryModel interface {
	Feed(Dataset) FatModel
}

/*
Estimator is a hungry model which knows how to describe itself in a run record
*/
type Estimator interface {
	HungryModel
	// Kind is the model_type value the estimator is selected by
	Kind() string
	// Title is a human readable name like 'Linear Regression'
	Title() string
	// Params are hyper-parameters to log, n_samples is added by the caller
	Params() Params
	// Metrics the estimator is evaluated with
	Metrics() Metrics
	// Check tests the dataset can be used to fit the estimator
	Check(Dataset) error
}

/*
Report is an ML training report
*/
type Report struct {
	Model   PredictionModel    // fitted model
	Metrics map[string]float64 // metrics evaluated on the training data
}

/*
FatModel is fattened model (a training function of model instance bounded to a dataset)
*/
type FatModel func(training Training) (*Report, error)

/*
Train a fattened (Fat) model
*/
func (f FatModel) Train(training Training) (*Report, error) {
	return f(training)
}

/*
PredictionModel is a fitted model with deterministic prediction
*/
type PredictionModel interface {
	// Kind of the estimator produced the model, used to restore memorized model
	Kind() string
	// Predict returns one value per features row
	Predict(features [][]float64) []float64
}

/*
Params is a set of hyper-parameters logged with a run
*/
type Params map[string]string

/*
Merge returns new params where values of q overwrite values of p
*/
func (p Params) Merge(q Params) Params {
	r := make(Params, len(p)+len(q))
	for k, v := range p {
		r[k] = v
	}
	for k, v := range q {
		r[k] = v
	}
	return r
}

/*
FitError is returned by estimators failed to fit or to converge
*/
type FitError struct {
	Err error
}

func (e *FitError) Error() string {
	return "fit failed: " + e.Err.Error()
}

func (e *FitError) Unwrap() error {
	return e.Err
}

/*
Fitfail wraps formatted error as a FitError
*/
func Fitfail(format string, a ...interface{}) error {
	return &FitError{zorros.Errorf(format, a...)}
}
