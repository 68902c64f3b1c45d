package runner

import (
	"context"
	"errors"
	"io/ioutil"
	"math"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/mlrun/model"
	"go-ml.dev/pkg/mlrun/tracking"
	"golang.org/x/xerrors"
	"gotest.tools/assert"
)

type fakeRun struct {
	t         *fakeTracker
	id        string
	params    map[string]string
	metrics   map[string]float64
	artifacts []string
	status    tracking.Status
}

func (r *fakeRun) ID() string          { return r.id }
func (r *fakeRun) ArtifactURI() string { return "" }

func (r *fakeRun) LogParam(ctx context.Context, key, value string) error {
	if r.t.cancel != nil {
		r.t.cancel()
		return ctx.Err()
	}
	r.params[key] = value
	return nil
}

func (r *fakeRun) LogMetric(ctx context.Context, key string, value float64) error {
	if r.t.failMetric {
		return errors.New("connection refused")
	}
	r.metrics[key] = value
	return nil
}

func (r *fakeRun) LogArtifact(ctx context.Context, localPath string) error {
	r.artifacts = append(r.artifacts, localPath)
	return nil
}

func (r *fakeRun) End(ctx context.Context, status tracking.Status) error {
	r.status = status
	return nil
}

type fakeTracker struct {
	experiment string
	runs       []*fakeRun
	failMetric bool
	cancel     context.CancelFunc
}

func (t *fakeTracker) SetExperiment(ctx context.Context, name string) (string, error) {
	t.experiment = name
	return "1", nil
}

func (t *fakeTracker) StartRun(ctx context.Context, opts tracking.RunOptions) (tracking.Run, error) {
	r := &fakeRun{
		t:       t,
		id:      "run" + string(rune('0'+len(t.runs))),
		params:  map[string]string{},
		metrics: map[string]float64{},
		status:  tracking.Running,
	}
	t.runs = append(t.runs, r)
	return r, nil
}

func (t *fakeTracker) Close() error { return nil }

func newRunner(t *testing.T) (*Runner, *fakeTracker) {
	ft := &fakeTracker{}
	return &Runner{Tracker: ft, WorkDir: t.TempDir()}, ft
}

func machinesCsv(t *testing.T) string {
	p := filepath.Join(t.TempDir(), "machines.csv")
	assert.NilError(t, ioutil.WriteFile(p, []byte("machine_load,power_consumption\n1,3\n2,5\n3,7\n"), 0644))
	return p
}

func keys(m map[string]float64) []string {
	r := []string{}
	for k := range m {
		r = append(r, k)
	}
	sort.Strings(r)
	return r
}

func Test_LinearDefaults(t *testing.T) {
	r, ft := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(nil))
	assert.NilError(t, err)
	assert.Assert(t, ft.experiment == "My_Linear_Model_Experiment")
	assert.DeepEqual(t, rec.Params, map[string]string{
		"model_type":    "LinearRegression",
		"n_samples":     "100",
		"fit_intercept": "true",
	})
	assert.DeepEqual(t, keys(rec.Metrics), []string{"mae", "r2", "rmse"})
	run := ft.runs[0]
	assert.Assert(t, run.status == tracking.Finished)
	assert.DeepEqual(t, run.params, rec.Params)
	assert.DeepEqual(t, run.metrics, rec.Metrics)
	assert.DeepEqual(t, run.artifacts, []string{rec.Artifact})
	assert.Assert(t, filepath.Base(rec.Artifact) == "linear_regression_model.json")
	assert.Assert(t, rec.Summary() == "Linear Regression Model trained and saved with MLflow tracking.")
	_, err = os.Stat(rec.Artifact)
	assert.NilError(t, err)
}

func Test_LogisticDefaults(t *testing.T) {
	r, ft := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"model_type": "LogisticRegression", "seed": 3}))
	assert.NilError(t, err)
	assert.Assert(t, ft.experiment == "My_Logistic_Model_Experiment")
	assert.Assert(t, rec.Params["solver"] == "liblinear")
	assert.Assert(t, rec.Params["n_samples"] == "200")
	assert.Assert(t, rec.Params["seed"] == "3")
	_, hasIntercept := rec.Params["fit_intercept"]
	assert.Assert(t, !hasIntercept)
	assert.DeepEqual(t, rec.Metrics, map[string]float64{"dummy_metric": 0.88})
	assert.Assert(t, ft.runs[0].status == tracking.Finished)
	m, err := model.Restore(iokit.File(rec.Artifact))
	assert.NilError(t, err)
	assert.Assert(t, m.Kind() == "LogisticRegression")
}

func Test_CsvExactlyLinear(t *testing.T) {
	r, _ := newRunner(t)
	cfg := NewRunConfig(map[string]interface{}{"csv_path": machinesCsv(t), "fit_intercept": true})
	rec, err := r.Run(context.Background(), cfg)
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(rec.Metrics["r2"]-1) < 1e-9)
	assert.Assert(t, rec.Metrics["mae"] < 1e-9)
	assert.Assert(t, rec.Params["n_samples"] == "3")
	m, err := model.Restore(iokit.File(rec.Artifact))
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(m.Predict([][]float64{{4}})[0]-9) < 1e-9)
}

func Test_Idempotent(t *testing.T) {
	for _, cfg := range []RunConfig{
		NewRunConfig(map[string]interface{}{"seed": 11, "n_samples": 50}),
		NewRunConfig(map[string]interface{}{"csv_path": machinesCsv(t), "fit_intercept": false}),
	} {
		r, _ := newRunner(t)
		a, err := r.Run(context.Background(), cfg)
		assert.NilError(t, err)
		b, err := r.Run(context.Background(), cfg)
		assert.NilError(t, err)
		for k, v := range a.Metrics {
			assert.Assert(t, math.Abs(b.Metrics[k]-v) < 1e-9, k)
		}
		assert.Assert(t, a.Artifact != b.Artifact)
	}
}

func Test_MissingCsv(t *testing.T) {
	r, ft := newRunner(t)
	cfg := NewRunConfig(map[string]interface{}{"csv_path": filepath.Join(t.TempDir(), "nonexistent.csv")})
	_, err := r.Run(context.Background(), cfg)
	de := &DataError{}
	assert.Assert(t, xerrors.As(err, &de))
	assert.Assert(t, len(ft.runs) == 0)
}

func Test_ZeroSamples(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"n_samples": 0}))
	de := &DataError{}
	assert.Assert(t, xerrors.As(err, &de))
}

func Test_ConfigErrors(t *testing.T) {
	r, ft := newRunner(t)
	for _, m := range []map[string]interface{}{
		{"n_samples": "many"},
		{"n_samples": 1.5},
		{"n_samples": -1},
		{"fit_intercept": "yes"},
		{"model_type": "RandomForest"},
		{"model_type": "LogisticRegression", "solver": "saga"},
		{"csv_path": 12},
		{"artifact_name": "../model.json"},
	} {
		_, err := r.Run(context.Background(), NewRunConfig(m))
		ce := &ConfigError{}
		assert.Assert(t, xerrors.As(err, &ce), "%v", m)
	}
	assert.Assert(t, len(ft.runs) == 0)
}

func Test_FitFailureMarksRunFailed(t *testing.T) {
	p := filepath.Join(t.TempDir(), "one_class.csv")
	assert.NilError(t, ioutil.WriteFile(p, []byte("machine_load,power_consumption\n1,1\n2,1\n"), 0644))
	r, ft := newRunner(t)
	_, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"model_type": "logistic", "csv_path": p}))
	fe := &FitError{}
	assert.Assert(t, xerrors.As(err, &fe))
	assert.Assert(t, ft.runs[0].status == tracking.Failed)
}

func Test_NotBinaryLabels(t *testing.T) {
	r, _ := newRunner(t)
	_, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"model_type": "logistic", "csv_path": machinesCsv(t)}))
	de := &DataError{}
	assert.Assert(t, xerrors.As(err, &de))
}

func Test_TrackingFailureMarksRunFailed(t *testing.T) {
	r, ft := newRunner(t)
	ft.failMetric = true
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"seed": 1}))
	te := &TrackingError{}
	assert.Assert(t, xerrors.As(err, &te))
	assert.Assert(t, rec == nil)
	assert.Assert(t, ft.runs[0].status == tracking.Failed)
}

func Test_DefaultFitIntercept(t *testing.T) {
	r, _ := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"n_samples": 10}))
	assert.NilError(t, err)
	assert.Assert(t, rec.Params["fit_intercept"] == "true")
}

func Test_ExperimentOverride(t *testing.T) {
	r, ft := newRunner(t)
	r.Experiment = "nightly"
	_, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"experiment_name": "ignored", "n_samples": 5}))
	assert.NilError(t, err)
	assert.Assert(t, ft.experiment == "nightly")
}

func Test_CompressedArtifact(t *testing.T) {
	r, _ := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"artifact_name": "model.json.xz", "n_samples": 20}))
	assert.NilError(t, err)
	b, err := ioutil.ReadFile(rec.Artifact)
	assert.NilError(t, err)
	assert.Assert(t, string(b[:6]) == "\xfd7zXZ\x00")
	_, err = model.Restore(iokit.File(rec.Artifact))
	assert.NilError(t, err)
}

func Test_SqliteTracking(t *testing.T) {
	ctx := context.Background()
	store, err := tracking.OpenSqlite(filepath.Join(t.TempDir(), "mlruns.db"), tracking.Options{})
	assert.NilError(t, err)
	defer store.Close()
	r := &Runner{Tracker: store, WorkDir: t.TempDir()}
	rec := r.LuckyRun(ctx, NewRunConfig(map[string]interface{}{"csv_path": machinesCsv(t)}))
	rd, err := store.GetRun(ctx, rec.RunID)
	assert.NilError(t, err)
	assert.Assert(t, rd.Status == tracking.Finished)
	assert.DeepEqual(t, rd.Params, rec.Params)
	assert.DeepEqual(t, rd.Metrics, rec.Metrics)
	_, err = os.Stat(filepath.Join(rd.ArtifactURI, "linear_regression_model.json"))
	assert.NilError(t, err)
}

func Test_LuckyRunPanics(t *testing.T) {
	r, _ := newRunner(t)
	defer func() {
		assert.Assert(t, recover() != nil)
	}()
	r.LuckyRun(context.Background(), NewRunConfig(map[string]interface{}{"model_type": "nope"}))
}

func Test_ModelTypeLoggedAsConfigured(t *testing.T) {
	r, ft := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"model_type": "linear", "n_samples": 10}))
	assert.NilError(t, err)
	assert.Assert(t, rec.Params["model_type"] == "linear")
	assert.Assert(t, rec.Title == "Linear Regression")
	assert.Assert(t, ft.experiment == "My_Linear_Model_Experiment")
}

func Test_ConstantFeatureCsv(t *testing.T) {
	p := filepath.Join(t.TempDir(), "constant.csv")
	assert.NilError(t, ioutil.WriteFile(p, []byte("machine_load,power_consumption\n1,3\n1,5\n1,7\n"), 0644))
	r, ft := newRunner(t)
	rec, err := r.Run(context.Background(), NewRunConfig(map[string]interface{}{"csv_path": p}))
	assert.NilError(t, err)
	assert.Assert(t, math.Abs(rec.Metrics["r2"]) < 1e-9)
	assert.Assert(t, math.Abs(rec.Metrics["mae"]-4.0/3) < 1e-9)
	assert.Assert(t, ft.runs[0].status == tracking.Finished)
}

func Test_CancelledRunKilled(t *testing.T) {
	r, ft := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	ft.cancel = cancel
	_, err := r.Run(ctx, NewRunConfig(map[string]interface{}{"n_samples": 10}))
	te := &TrackingError{}
	assert.Assert(t, xerrors.As(err, &te))
	assert.Assert(t, xerrors.Is(err, context.Canceled))
	assert.Assert(t, ft.runs[0].status == tracking.Killed)
}
