package runner

import (
	"io/ioutil"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/xerrors"
	"gotest.tools/assert"
)

func Test_ParseJSON(t *testing.T) {
	c, err := ParseJSON(strings.NewReader(`{"n_samples": 150, "model_type": "LinearRegression", "fit_intercept": false, "C": 0.5, "extra": [1,2]}`))
	assert.NilError(t, err)
	n, err := c.Int("n_samples", 0)
	assert.NilError(t, err)
	assert.Assert(t, n == 150)
	b, err := c.Bool("fit_intercept", true)
	assert.NilError(t, err)
	assert.Assert(t, !b)
	f, err := c.Float("C", 1)
	assert.NilError(t, err)
	assert.Assert(t, f == 0.5)
	_, err = c.String("extra", "")
	assert.ErrorContains(t, err, "expected string, got array")
	s, err := c.String("solver", "liblinear")
	assert.NilError(t, err)
	assert.Assert(t, s == "liblinear")
}

func Test_ParseJSONMalformed(t *testing.T) {
	_, err := ParseJSON(strings.NewReader(`{"n_samples": `))
	ce := &ConfigError{}
	assert.Assert(t, xerrors.As(err, &ce))
	_, err = ParseJSON(strings.NewReader(`[1,2]`))
	assert.Assert(t, xerrors.As(err, &ce))
}

func Test_IntegralFloat(t *testing.T) {
	c, err := ParseJSON(strings.NewReader(`{"n_samples": 100.0, "max_iter": 1e2}`))
	assert.NilError(t, err)
	n, err := c.Int("n_samples", 0)
	assert.NilError(t, err)
	assert.Assert(t, n == 100)
	n, err = c.Int("max_iter", 0)
	assert.NilError(t, err)
	assert.Assert(t, n == 100)
}

func Test_ParseHCL(t *testing.T) {
	c, err := ParseHCL([]byte(`
model_type    = "LogisticRegression"
n_samples     = 300
C             = 0.25
fit_intercept = true
run_name      = null
`), "params.hcl")
	assert.NilError(t, err)
	assert.Assert(t, !c.Has("run_name"))
	s, err := c.Settings()
	assert.NilError(t, err)
	assert.Assert(t, s.ModelType == "LogisticRegression")
	assert.Assert(t, s.Samples == 300)
	assert.Assert(t, s.C == 0.25)
	assert.Assert(t, s.Solver == "liblinear")

	_, err = ParseHCL([]byte(`solver = ["lbfgs"]`), "params.hcl")
	assert.ErrorContains(t, err, "expected scalar value")
	_, err = ParseHCL([]byte(`solver = `), "params.hcl")
	ce := &ConfigError{}
	assert.Assert(t, xerrors.As(err, &ce))
}

func Test_LoadConfig(t *testing.T) {
	dir := t.TempDir()
	js := filepath.Join(dir, "params.json")
	assert.NilError(t, ioutil.WriteFile(js, []byte(`{"n_samples": 7}`), 0644))
	c, err := LoadConfig(js)
	assert.NilError(t, err)
	n, _ := c.Int("n_samples", 0)
	assert.Assert(t, n == 7)

	hc := filepath.Join(dir, "params.hcl")
	assert.NilError(t, ioutil.WriteFile(hc, []byte(`n_samples = 8`), 0644))
	c, err = LoadConfig(hc)
	assert.NilError(t, err)
	n, _ = c.Int("n_samples", 0)
	assert.Assert(t, n == 8)

	yml := filepath.Join(dir, "params.yaml")
	assert.NilError(t, ioutil.WriteFile(yml, []byte(`n_samples: 8`), 0644))
	_, err = LoadConfig(yml)
	assert.ErrorContains(t, err, "unsupported config file")

	_, err = LoadConfig(filepath.Join(dir, "missing.json"))
	ce := &ConfigError{}
	assert.Assert(t, xerrors.As(err, &ce))
}

func Test_Settings(t *testing.T) {
	s, err := NewRunConfig(nil).Settings()
	assert.NilError(t, err)
	assert.Assert(t, s.ModelType == "LinearRegression")
	assert.Assert(t, s.Samples == 100)
	assert.Assert(t, s.FitIntercept)
	assert.Assert(t, !s.Seeded)
	assert.DeepEqual(t, s.FeatureColumns, []string{"machine_load"})
	assert.Assert(t, s.LabelColumn == "power_consumption")
	assert.Assert(t, s.ArtifactName == "linear_regression_model.json")

	s, err = NewRunConfig(map[string]interface{}{"model_type": "logistic", "feature_columns": "a, b,", "seed": 0}).Settings()
	assert.NilError(t, err)
	assert.Assert(t, s.ModelType == "LogisticRegression")
	assert.Assert(t, s.Samples == 200)
	assert.Assert(t, s.Seeded && s.Seed == 0)
	assert.DeepEqual(t, s.FeatureColumns, []string{"a", "b"})
	assert.Assert(t, s.Experiment == "My_Logistic_Model_Experiment")
}

func Test_SettingsErrors(t *testing.T) {
	for key, value := range map[string]interface{}{
		"n_features":      0,
		"C":               -1.0,
		"max_iter":        0,
		"seed":            "x",
		"feature_columns": " , ",
		"label_column":    false,
		"artifact_name":   "",
		"model_type":      1,
	} {
		_, err := NewRunConfig(map[string]interface{}{key: value}).Settings()
		ce := &ConfigError{}
		assert.Assert(t, xerrors.As(err, &ce), key)
		assert.Assert(t, ce.Key == key, key)
	}
}

func Test_With(t *testing.T) {
	a := NewRunConfig(map[string]interface{}{"n_samples": 5})
	b := a.With("n_samples", 6)
	n, _ := a.Int("n_samples", 0)
	assert.Assert(t, n == 5)
	n, _ = b.Int("n_samples", 0)
	assert.Assert(t, n == 6)
	assert.Assert(t, len(b.Keys()) == 1)
}
