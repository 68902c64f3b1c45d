package tracking

import (
	"context"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go-ml.dev/pkg/iokit"
	"go-ml.dev/pkg/mlrun/fu"
	"go-ml.dev/pkg/zorros/zorros"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"resty.dev/v3"
	"strings"
)

/*
ArtifactRepository stores run artifacts
*/
type ArtifactRepository interface {
	// LogArtifact stores local file as artifactPath/basename relative to the artifact root
	LogArtifact(ctx context.Context, localPath, artifactPath string) error
}

/*
NewArtifactRepository selects repository by the artifact URI scheme
trackingURI is used to resolve mlflow-artifacts: locations
*/
func NewArtifactRepository(artifactURI, trackingURI string, opts Options) (ArtifactRepository, error) {
	u, err := url.Parse(artifactURI)
	if err != nil {
		return nil, zorros.Wrapf(err, "bad artifact uri `%v`", artifactURI)
	}
	switch u.Scheme {
	case "", "file":
		return LocalRepository(u.Path), nil
	case "mlflow-artifacts":
		base := trackingURI
		if u.Host != "" {
			scheme := "http"
			if strings.HasPrefix(trackingURI, "https:") {
				scheme = "https"
			}
			base = scheme + "://" + u.Host
		}
		if base == "" {
			return nil, zorros.Errorf("artifact uri `%v` needs http tracking uri", artifactURI)
		}
		return NewHTTPRepository(strings.TrimRight(base, "/")+"/api/2.0/mlflow-artifacts/artifacts"+u.Path, opts), nil
	case "http", "https":
		return NewHTTPRepository(artifactURI, opts), nil
	case "s3":
		return NewS3Repository(u.Host, strings.Trim(u.Path, "/"), opts)
	default:
		return nil, zorros.Errorf("unsupported artifact uri `%v`", artifactURI)
	}
}

/*
LocalRepository copies artifacts into the local directory
*/
type LocalRepository string

func (r LocalRepository) LogArtifact(ctx context.Context, localPath, artifactPath string) (err error) {
	dir := filepath.Join(string(r), filepath.FromSlash(artifactPath))
	if err = os.MkdirAll(dir, 0755); err != nil {
		return zorros.Trace(err)
	}
	src, err := os.Open(localPath)
	if err != nil {
		return zorros.Trace(err)
	}
	defer src.Close()
	wh, err := iokit.File(filepath.Join(dir, filepath.Base(localPath))).Create()
	if err != nil {
		return zorros.Trace(err)
	}
	defer wh.End()
	if _, err = io.Copy(wh, src); err != nil {
		return zorros.Trace(err)
	}
	if err = wh.Commit(); err != nil {
		return zorros.Trace(err)
	}
	return
}

/*
HTTPRepository uploads artifacts by PUT requests, it's the way MLflow artifacts proxy works
*/
type HTTPRepository struct {
	base   string
	client *resty.Client
}

func NewHTTPRepository(base string, opts Options) *HTTPRepository {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &HTTPRepository{
		base:   strings.TrimRight(base, "/"),
		client: resty.New().SetTimeout(timeout),
	}
}

func (r *HTTPRepository) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	f, err := os.Open(localPath)
	if err != nil {
		return zorros.Trace(err)
	}
	defer f.Close()
	target := r.base + "/" + path.Join(artifactPath, filepath.Base(localPath))
	res, err := r.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/octet-stream").
		SetBody(f).
		Put(target)
	if err != nil {
		return zorros.Wrapf(err, "failed to upload artifact to %v: %v", target, err.Error())
	}
	if res.IsError() {
		return &ServerError{StatusCode: res.StatusCode(), Code: res.Status(), Message: res.String()}
	}
	return nil
}

/*
S3Repository puts artifacts into the bucket under the prefix
*/
type S3Repository struct {
	client *minio.Client
	bucket string
	prefix string
}

/*
NewS3Repository connects to s3 compatible storage, default endpoint is AWS
*/
func NewS3Repository(bucket, prefix string, opts Options) (*S3Repository, error) {
	endpoint, secure := S3Endpoint(opts.S3Endpoint)
	if opts.S3Endpoint != "" && !strings.Contains(opts.S3Endpoint, "://") {
		secure = opts.S3Secure
	}
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.S3AccessKey, opts.S3SecretKey, ""),
		Secure: secure,
		Region: opts.S3Region,
	})
	if err != nil {
		return nil, zorros.Wrapf(err, "new minio client failed: %v", err.Error())
	}
	return &S3Repository{client: client, bucket: bucket, prefix: prefix}, nil
}

/*
S3Endpoint splits endpoint url like http://minio:9000 into host and secure flag
*/
func S3Endpoint(s string) (string, bool) {
	if s == "" {
		return "s3.amazonaws.com", true
	}
	if u, err := url.Parse(s); err == nil && u.Host != "" {
		return u.Host, u.Scheme == "https"
	}
	return s, true
}

func (r *S3Repository) LogArtifact(ctx context.Context, localPath, artifactPath string) error {
	key := path.Join(r.prefix, artifactPath, filepath.Base(localPath))
	_, err := r.client.FPutObject(ctx, r.bucket, key, localPath, minio.PutObjectOptions{
		ContentType: fu.Fnzs(contentType(localPath), "application/octet-stream"),
	})
	if err != nil {
		return zorros.Wrapf(err, "failed to put s3://%v/%v: %v", r.bucket, key, err.Error())
	}
	return nil
}

func contentType(p string) string {
	switch filepath.Ext(p) {
	case ".json":
		return "application/json"
	case ".xz":
		return "application/x-xz"
	}
	return ""
}
