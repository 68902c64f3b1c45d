package tracking

import (
	"context"
	"encoding/json"
	"fmt"
	"go-ml.dev/pkg/zorros/zorros"
	"net/http"
	"resty.dev/v3"
	"strings"
	"time"
)

const apiPrefix = "/api/2.0/mlflow"

/*
ServerError is an error response of the tracking server
*/
type ServerError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"error_code"`
	Message    string `json:"message"`
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("tracking server responded %d %v: %v", e.StatusCode, e.Code, e.Message)
}

const resourceDoesNotExist = "RESOURCE_DOES_NOT_EXIST"

/*
Mlflow is a client of MLflow tracking server REST API
*/
type Mlflow struct {
	uri          string
	client       *resty.Client
	opts         Options
	experimentID string
}

/*
NewMlflow creates client of the tracking server at uri
*/
func NewMlflow(uri string, opts Options) *Mlflow {
	uri = strings.TrimRight(uri, "/")
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	client := resty.New().
		SetBaseURL(uri).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Mlflow{uri: uri, client: client, opts: opts}
}

func (m *Mlflow) Close() error {
	return m.client.Close()
}

func (m *Mlflow) call(ctx context.Context, method, path string, body interface{}, result interface{}) error {
	r := m.client.R().SetContext(ctx)
	if method == http.MethodGet {
		if q, ok := body.(map[string]string); ok {
			r.SetQueryParams(q)
		}
	} else if body != nil {
		r.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	res, err := r.Execute(method, apiPrefix+path)
	if err != nil {
		return zorros.Wrapf(err, "%v %v failed: %v", method, path, err.Error())
	}
	if res.IsError() {
		e := &ServerError{StatusCode: res.StatusCode()}
		if json.Unmarshal([]byte(res.String()), e) != nil || e.Code == "" {
			e.Code = http.StatusText(res.StatusCode())
			e.Message = res.String()
		}
		return e
	}
	if result != nil {
		if err = json.Unmarshal([]byte(res.String()), result); err != nil {
			return zorros.Wrapf(err, "%v %v returned malformed response: %v", method, path, err.Error())
		}
	}
	return nil
}

type experiment struct {
	ID               string `json:"experiment_id"`
	Name             string `json:"name"`
	ArtifactLocation string `json:"artifact_location"`
}

func (m *Mlflow) SetExperiment(ctx context.Context, name string) (string, error) {
	var got struct {
		Experiment experiment `json:"experiment"`
	}
	err := m.call(ctx, http.MethodGet, "/experiments/get-by-name", map[string]string{"experiment_name": name}, &got)
	if err == nil {
		m.experimentID = got.Experiment.ID
		return m.experimentID, nil
	}
	if se, ok := err.(*ServerError); !ok || se.Code != resourceDoesNotExist {
		return "", err
	}
	var created struct {
		ID string `json:"experiment_id"`
	}
	if err = m.call(ctx, http.MethodPost, "/experiments/create", map[string]string{"name": name}, &created); err != nil {
		return "", err
	}
	m.experimentID = created.ID
	return m.experimentID, nil
}

type tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type runInfo struct {
	RunID        string `json:"run_id"`
	ExperimentID string `json:"experiment_id"`
	RunName      string `json:"run_name"`
	Status       string `json:"status"`
	ArtifactURI  string `json:"artifact_uri"`
}

func (m *Mlflow) StartRun(ctx context.Context, opts RunOptions) (Run, error) {
	if m.experimentID == "" {
		if _, err := m.SetExperiment(ctx, "Default"); err != nil {
			return nil, err
		}
	}
	req := map[string]interface{}{
		"experiment_id": m.experimentID,
		"start_time":    Timestamp(time.Now()),
	}
	if opts.Name != "" {
		req["run_name"] = opts.Name
	}
	if len(opts.Tags) > 0 {
		tags := make([]tag, 0, len(opts.Tags))
		for k, v := range opts.Tags {
			tags = append(tags, tag{k, v})
		}
		req["tags"] = tags
	}
	var created struct {
		Run struct {
			Info runInfo `json:"info"`
		} `json:"run"`
	}
	if err := m.call(ctx, http.MethodPost, "/runs/create", req, &created); err != nil {
		return nil, err
	}
	return &mlflowRun{m: m, info: created.Run.Info}, nil
}

type mlflowRun struct {
	m    *Mlflow
	info runInfo
	repo ArtifactRepository
}

func (r *mlflowRun) ID() string          { return r.info.RunID }
func (r *mlflowRun) ArtifactURI() string { return r.info.ArtifactURI }

func (r *mlflowRun) LogParam(ctx context.Context, key, value string) error {
	return r.m.call(ctx, http.MethodPost, "/runs/log-parameter", map[string]string{
		"run_id": r.info.RunID,
		"key":    key,
		"value":  value,
	}, nil)
}

func (r *mlflowRun) LogMetric(ctx context.Context, key string, value float64) error {
	return r.m.call(ctx, http.MethodPost, "/runs/log-metric", map[string]interface{}{
		"run_id":    r.info.RunID,
		"key":       key,
		"value":     value,
		"timestamp": Timestamp(time.Now()),
		"step":      0,
	}, nil)
}

func (r *mlflowRun) LogArtifact(ctx context.Context, localPath string) (err error) {
	if r.repo == nil {
		if r.repo, err = NewArtifactRepository(r.info.ArtifactURI, r.m.uri, r.m.opts); err != nil {
			return
		}
	}
	return r.repo.LogArtifact(ctx, localPath, "")
}

func (r *mlflowRun) End(ctx context.Context, status Status) error {
	return r.m.call(ctx, http.MethodPost, "/runs/update", map[string]interface{}{
		"run_id":   r.info.RunID,
		"status":   string(status),
		"end_time": Timestamp(time.Now()),
	}, nil)
}
