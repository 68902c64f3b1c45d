/*
Package datasets provides sources of data to feed estimators
*/
package datasets

import (
	"go-ml.dev/pkg/mlrun/model"
)

const (
	DefaultFeature = "machine_load"
	DefaultLabel   = "power_consumption"
)

/*
Source produces a dataset
*/
type Source interface {
	Dataset() (model.Dataset, error)
}
