/*
Package tracking records runs in an experiment tracking service

Backend is selected by the tracking URI scheme:

	http://host:port, https://host   MLflow tracking server REST API
	sqlite:///path/to/mlruns.db      local sqlite store

Artifacts are uploaded to the run's artifact URI which is a local path,
mlflow-artifacts: proxied location or s3://bucket/prefix.
*/
package tracking

import (
	"context"
	"go-ml.dev/pkg/zorros/zorros"
	"net/url"
	"time"
)

/*
Status of a run
*/
type Status string

const (
	Running  Status = "RUNNING"
	Finished Status = "FINISHED"
	Failed   Status = "FAILED"
	Killed   Status = "KILLED"
)

/*
RunOptions are optional attributes of a new run
*/
type RunOptions struct {
	Name string
	Tags map[string]string
}

/*
Client is a connection to the tracking service
*/
type Client interface {
	// SetExperiment makes the named experiment active, creating it if not exists
	SetExperiment(ctx context.Context, name string) (string, error)
	// StartRun starts a new run in the active experiment
	StartRun(ctx context.Context, opts RunOptions) (Run, error)
	Close() error
}

/*
Run is an active run, it must be ended with End
*/
type Run interface {
	ID() string
	ArtifactURI() string
	LogParam(ctx context.Context, key, value string) error
	LogMetric(ctx context.Context, key string, value float64) error
	// LogArtifact uploads local file into the run's artifact root
	LogArtifact(ctx context.Context, localPath string) error
	End(ctx context.Context, status Status) error
}

/*
Options configure tracking backends and artifact repositories
*/
type Options struct {
	Timeout     time.Duration // request timeout for http backends
	S3Endpoint  string        // host:port of s3 compatible storage
	S3AccessKey string
	S3SecretKey string
	S3Secure    bool
	S3Region    string
}

const DefaultTimeout = 30 * time.Second

/*
Open connects to the tracking service addressed by uri
*/
func Open(uri string, opts Options) (Client, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return nil, zorros.Wrapf(err, "bad tracking uri `%v`", uri)
	}
	switch u.Scheme {
	case "http", "https":
		return NewMlflow(uri, opts), nil
	case "sqlite":
		return OpenSqlite(sqlitePath(u), opts)
	default:
		return nil, zorros.Errorf("unsupported tracking uri `%v`", uri)
	}
}

/*
Timestamp is the milliseconds since epoch
*/
func Timestamp(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
