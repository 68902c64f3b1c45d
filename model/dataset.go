package model

import (
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/zorros/zorros"
)

/*
Dataset is a set of fixed-width feature rows with one label per row
*/
type Dataset struct {
	Features     [][]float64 // rows of features
	Labels       []float64   // one label per row
	FeatureNames []string    // optional names of features
	Label        string      // optional name of label
}

func (d Dataset) Len() int {
	return len(d.Labels)
}

/*
Width is the count of features in a row
*/
func (d Dataset) Width() int {
	if len(d.Features) == 0 {
		return 0
	}
	return len(d.Features[0])
}

/*
Validate checks the dataset is not empty, rectangular and finite
*/
func (d Dataset) Validate() error {
	if len(d.Features) != len(d.Labels) {
		return zorros.Errorf("dataset has %d feature rows but %d labels", len(d.Features), len(d.Labels))
	}
	if len(d.Labels) == 0 {
		return zorros.Errorf("dataset is empty")
	}
	w := d.Width()
	if w == 0 {
		return zorros.Errorf("dataset has no features")
	}
	if d.FeatureNames != nil && len(d.FeatureNames) != w {
		return zorros.Errorf("dataset has %d feature names for %d features", len(d.FeatureNames), w)
	}
	for i, x := range d.Features {
		if len(x) != w {
			return zorros.Errorf("row %d has %d features, expected %d", i, len(x), w)
		}
		if !fu.Finite(x) {
			return zorros.Errorf("row %d has not finite features", i)
		}
	}
	if !fu.Finite(d.Labels) {
		return zorros.Errorf("dataset has not finite labels")
	}
	return nil
}
