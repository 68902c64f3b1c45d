package model

import (
	"fmt"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/zorros/zorros"
	"sort"
)

/*
Training is the default training backend, it evaluates fitted model and stores it
*/
type Training struct {
	Metrics   Metrics      // evaluating metrics
	ModelFile iokit.Output // file to store fitted model
	Compress  bool         // compress stored model with xz
	Verbose   func(string) // print function
}

/*
Complete evaluates fitted model on the dataset it was fitted on and memorizes it
*/
func (t Training) Complete(m PredictionModel, ds Dataset) (report *Report, err error) {
	report = &Report{Model: m, Metrics: map[string]float64{}}
	if t.Metrics != nil {
		predicted := m.Predict(ds.Features)
		if report.Metrics, err = t.Metrics.Evaluate(ds.Labels, predicted); err != nil {
			err = zorros.Trace(err)
			return
		}
	}
	if t.ModelFile != nil {
		if err = Memorize(t.ModelFile, m, t.Compress); err != nil {
			err = zorros.Wrapf(err, "failed to memorize model: %v", err.Error())
			return
		}
	}
	if t.Verbose != nil {
		names := make([]string, 0, len(report.Metrics))
		for k := range report.Metrics {
			names = append(names, k)
		}
		sort.Strings(names)
		s := fmt.Sprintf("[%v] fitted on %d rows", m.Kind(), ds.Len())
		for _, n := range names {
			s += fmt.Sprintf(", %v: %.5f", n, report.Metrics[n])
		}
		t.Verbose(s)
	}
	return
}
