package runner

import (
	"fmt"
)

/*
ConfigError reports invalid run configuration
*/
type ConfigError struct {
	Key string // optional key caused the error
	Err error
}

func (e *ConfigError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("config error: key `%v`: %v", e.Key, e.Err.Error())
	}
	return "config error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error { return e.Err }

/*
DataError reports missing or malformed dataset
*/
type DataError struct {
	Err error
}

func (e *DataError) Error() string { return "data error: " + e.Err.Error() }
func (e *DataError) Unwrap() error { return e.Err }

/*
FitError reports estimator failed to fit or to converge
*/
type FitError struct {
	Err error
}

func (e *FitError) Error() string { return "fit error: " + e.Err.Error() }
func (e *FitError) Unwrap() error { return e.Err }

/*
TrackingError reports failed interaction with the tracking service or artifact storage
*/
type TrackingError struct {
	Op  string
	Err error
}

func (e *TrackingError) Error() string {
	return fmt.Sprintf("tracking error: %v: %v", e.Op, e.Err.Error())
}

func (e *TrackingError) Unwrap() error { return e.Err }
