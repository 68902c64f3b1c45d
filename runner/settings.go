package runner

import (
	"go-ml.dev/pkg/mlrun/datasets"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/mlrun/model/linear"
	"go-ml.dev/pkg/mlrun/model/logistic"
	"go-ml.dev/pkg/zorros/zorros"
	"strings"
)

// recognized config keys
const (
	ModelTypeKey      = "model_type"
	SamplesKey        = "n_samples"
	FeaturesKey       = "n_features"
	FitInterceptKey   = "fit_intercept"
	SolverKey         = "solver"
	CKey              = "C"
	MaxIterKey        = "max_iter"
	SeedKey           = "seed"
	CsvPathKey        = "csv_path"
	FeatureColumnsKey = "feature_columns"
	LabelColumnKey    = "label_column"
	ExperimentKey     = "experiment_name"
	RunNameKey        = "run_name"
	ArtifactNameKey   = "artifact_name"
)

type variant struct {
	samples    int
	experiment string
	artifact   string
	task       datasets.Task
	estimator  func(*Settings) (model.Estimator, error)
}

var variants = map[string]*variant{
	linear.Kind: {
		samples:    100,
		experiment: "My_Linear_Model_Experiment",
		artifact:   "linear_regression_model.json",
		task:       datasets.Regression,
		estimator: func(s *Settings) (model.Estimator, error) {
			return linear.Estimator{FitIntercept: s.FitIntercept}, nil
		},
	},
	logistic.Kind: {
		samples:    200,
		experiment: "My_Logistic_Model_Experiment",
		artifact:   "logistic_regression_model.json",
		task:       datasets.Classification,
		estimator: func(s *Settings) (model.Estimator, error) {
			e, err := logistic.New(s.Solver, s.C, s.MaxIter)
			if err != nil {
				return nil, &ConfigError{SolverKey, err}
			}
			return e, nil
		},
	},
}

var aliases = map[string]string{
	"linear":              linear.Kind,
	"linear_regression":   linear.Kind,
	"logistic":            logistic.Kind,
	"logistic_regression": logistic.Kind,
}

const DefaultModelType = linear.Kind

/*
Settings are resolved run parameters with defaults applied
*/
type Settings struct {
	ModelType      string // resolved estimator kind
	ModelTypeValue string // model_type as configured, logged with the run
	Samples        int
	Width          int
	FitIntercept   bool
	Solver         string
	C              float64
	MaxIter        int
	Seed           int64
	Seeded         bool
	CsvPath        string
	FeatureColumns []string
	LabelColumn    string
	Experiment     string
	RunName        string
	ArtifactName   string

	variant *variant
}

/*
Settings resolves config keys, it fails with ConfigError on a key of wrong type
*/
func (c RunConfig) Settings() (s *Settings, err error) {
	s = &Settings{}
	mt, err := c.String(ModelTypeKey, DefaultModelType)
	if err != nil {
		return
	}
	s.ModelTypeValue = mt
	if a, ok := aliases[strings.ToLower(mt)]; ok {
		mt = a
	}
	if s.variant = variants[mt]; s.variant == nil {
		return nil, &ConfigError{ModelTypeKey, zorros.Errorf("unsupported model type `%v`", mt)}
	}
	s.ModelType = mt
	if s.Samples, err = c.Int(SamplesKey, s.variant.samples); err != nil {
		return
	}
	if s.Samples < 0 {
		return nil, &ConfigError{SamplesKey, zorros.Errorf("must not be negative, got %d", s.Samples)}
	}
	if s.Width, err = c.Int(FeaturesKey, 1); err != nil {
		return
	}
	if s.Width < 1 {
		return nil, &ConfigError{FeaturesKey, zorros.Errorf("must be positive, got %d", s.Width)}
	}
	if s.FitIntercept, err = c.Bool(FitInterceptKey, true); err != nil {
		return
	}
	if s.Solver, err = c.String(SolverKey, logistic.DefaultSolver); err != nil {
		return
	}
	if s.C, err = c.Float(CKey, logistic.DefaultC); err != nil {
		return
	}
	if s.C <= 0 {
		return nil, &ConfigError{CKey, zorros.Errorf("must be positive, got %v", s.C)}
	}
	if s.MaxIter, err = c.Int(MaxIterKey, logistic.DefaultMaxIter); err != nil {
		return
	}
	if s.MaxIter < 1 {
		return nil, &ConfigError{MaxIterKey, zorros.Errorf("must be positive, got %d", s.MaxIter)}
	}
	if s.Seeded = c.Has(SeedKey); s.Seeded {
		var seed int
		if seed, err = c.Int(SeedKey, 0); err != nil {
			return
		}
		s.Seed = int64(seed)
	}
	if s.CsvPath, err = c.String(CsvPathKey, ""); err != nil {
		return
	}
	fc, err := c.String(FeatureColumnsKey, datasets.DefaultFeature)
	if err != nil {
		return
	}
	for _, f := range strings.Split(fc, ",") {
		if f = strings.TrimSpace(f); f != "" {
			s.FeatureColumns = append(s.FeatureColumns, f)
		}
	}
	if len(s.FeatureColumns) == 0 {
		return nil, &ConfigError{FeatureColumnsKey, zorros.Errorf("no feature columns")}
	}
	if s.LabelColumn, err = c.String(LabelColumnKey, datasets.DefaultLabel); err != nil {
		return
	}
	if s.Experiment, err = c.String(ExperimentKey, s.variant.experiment); err != nil {
		return
	}
	if s.RunName, err = c.String(RunNameKey, ""); err != nil {
		return
	}
	if s.ArtifactName, err = c.String(ArtifactNameKey, s.variant.artifact); err != nil {
		return
	}
	if s.ArtifactName == "" || strings.ContainsAny(s.ArtifactName, `/\`) {
		return nil, &ConfigError{ArtifactNameKey, zorros.Errorf("must be a plain file name, got `%v`", s.ArtifactName)}
	}
	return
}

/*
Estimator creates the estimator variant selected by model_type
*/
func (s *Settings) Estimator() (model.Estimator, error) {
	return s.variant.estimator(s)
}

/*
Task is the kind of labels the selected estimator fits
*/
func (s *Settings) Task() datasets.Task {
	return s.variant.task
}
