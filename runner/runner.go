/*
Package runner fits one estimator per run and records it in the tracking service

A run resolves a dataset (csv file or synthetic), fits the estimator selected by
model_type, evaluates it on the training data, memorizes the fitted model as
a run artifact and logs parameters, metrics and the artifact.
Metrics are computed on the same data the model was fitted on, there is no test split.
*/
package runner

import (
	"context"
	"fmt"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/mlrun/datasets"
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/mlrun/tracking"
	"go-ml.dev/pkg/zorros/zlog"
	"go-ml.dev/pkg/zorros/zorros"
	"golang.org/x/xerrors"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"
)

/*
Record is the result of a complete run
*/
type Record struct {
	RunID    string
	Title    string             // human readable estimator name
	Params   map[string]string  // logged parameters
	Metrics  map[string]float64 // logged metrics
	Artifact string             // local path of the memorized model
}

/*
Summary is the completion line of a run
*/
func (r *Record) Summary() string {
	return fmt.Sprintf("%v Model trained and saved with MLflow tracking.", r.Title)
}

/*
Runner executes runs one by one
*/
type Runner struct {
	Tracker    tracking.Client
	WorkDir    string            // directory for model artifacts, relative path is resolved into the iokit cache
	Experiment string            // overrides experiment_name of config
	Tags       map[string]string // tags of every started run
	Verbose    func(string)      // print function
}

/*
Run executes one run described by config
*/
func (r *Runner) Run(ctx context.Context, config RunConfig) (rec *Record, err error) {
	s, err := config.Settings()
	if err != nil {
		return
	}
	est, err := s.Estimator()
	if err != nil {
		return
	}
	src, err := r.source(s)
	if err != nil {
		return nil, &DataError{err}
	}
	ds, err := src.Dataset()
	if err != nil {
		return nil, &DataError{err}
	}
	if err = est.Check(ds); err != nil {
		return nil, &DataError{err}
	}

	experiment := fu.Fnzs(r.Experiment, s.Experiment)
	if _, err = r.Tracker.SetExperiment(ctx, experiment); err != nil {
		return nil, &TrackingError{"set experiment " + experiment, err}
	}
	run, err := r.Tracker.StartRun(ctx, tracking.RunOptions{Name: s.RunName, Tags: r.Tags})
	if err != nil {
		return nil, &TrackingError{"start run", err}
	}
	defer func() {
		status := tracking.Finished
		if err != nil {
			status = tracking.Failed
			if ctx.Err() != nil {
				status = tracking.Killed
			}
		}
		if e := run.End(context.WithoutCancel(ctx), status); e != nil && err == nil {
			rec, err = nil, &TrackingError{"end run", e}
		}
	}()
	r.verbose(fmt.Sprintf("run %v started in experiment %v", run.ID(), experiment))

	dir := filepath.Join(fu.ArtifactPath(fu.Fnzs(r.WorkDir, "runs")), run.ID())
	if err = os.MkdirAll(dir, 0755); err != nil {
		return nil, &TrackingError{"create artifact directory", zorros.Trace(err)}
	}
	artifact := filepath.Join(dir, s.ArtifactName)
	report, err := est.Feed(ds).Train(model.Training{
		Metrics:   est.Metrics(),
		ModelFile: iokit.File(artifact),
		Compress:  strings.HasSuffix(artifact, ".xz"),
		Verbose:   r.Verbose,
	})
	if err != nil {
		fe := &model.FitError{}
		if xerrors.As(err, &fe) {
			return nil, &FitError{err}
		}
		return nil, &TrackingError{"persist model", err}
	}

	params := model.Params{
		ModelTypeKey: s.ModelTypeValue,
		SamplesKey:   strconv.Itoa(ds.Len()),
	}.Merge(est.Params())
	if s.Seeded {
		params[SeedKey] = strconv.FormatInt(s.Seed, 10)
	}
	if s.CsvPath != "" {
		params[CsvPathKey] = s.CsvPath
	}
	rec = &Record{
		RunID:    run.ID(),
		Title:    est.Title(),
		Params:   params,
		Metrics:  report.Metrics,
		Artifact: artifact,
	}

	for _, k := range sorted(rec.Params) {
		if err = run.LogParam(ctx, k, rec.Params[k]); err != nil {
			return nil, &TrackingError{"log param " + k, err}
		}
	}
	for _, k := range est.Metrics().Names() {
		if err = run.LogMetric(ctx, k, rec.Metrics[k]); err != nil {
			return nil, &TrackingError{"log metric " + k, err}
		}
	}
	if err = run.LogArtifact(ctx, artifact); err != nil {
		return nil, &TrackingError{"log artifact " + s.ArtifactName, err}
	}
	zlog.Info(fmt.Sprintf("run %v complete: %v", rec.RunID, rec.Summary()))
	return
}

/*
LuckyRun executes run and throws any occurred errors as a panic
*/
func (r *Runner) LuckyRun(ctx context.Context, config RunConfig) *Record {
	rec, err := r.Run(ctx, config)
	if err != nil {
		panic(zorros.Panic(err))
	}
	return rec
}

func (r *Runner) source(s *Settings) (datasets.Source, error) {
	if s.CsvPath != "" {
		if _, err := os.Stat(s.CsvPath); err != nil {
			return nil, zorros.Wrapf(err, "dataset file is not accessible: %v", err.Error())
		}
		r.verbose(fmt.Sprintf("loading %v from %v", strings.Join(s.FeatureColumns, ","), s.CsvPath))
		return datasets.CSV{
			Source:   iokit.File(s.CsvPath),
			Features: s.FeatureColumns,
			Label:    s.LabelColumn,
		}, nil
	}
	seed := time.Now().UnixNano()
	if s.Seeded {
		seed = s.Seed
	}
	return datasets.Synthetic{
		Samples: s.Samples,
		Width:   s.Width,
		Task:    s.Task(),
		Rand:    rand.New(rand.NewSource(seed)),
	}, nil
}

func (r *Runner) verbose(s string) {
	if r.Verbose != nil {
		r.Verbose(s)
	}
}

func sorted(m map[string]string) []string {
	r := make([]string, 0, len(m))
	for k := range m {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}
