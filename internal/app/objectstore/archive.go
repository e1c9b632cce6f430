package objectstore

import (
	"bytes"
	"context"
	"encoding/json"
	"github.com/beldeveloper/release-promoter/internal/app"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/pkg/errors"
	"io"
	"net"
	"net/http"
	"path"
	"time"
)

// Config holds the object store connection settings.
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Enabled reports whether the archive is configured.
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

// Validate checks the settings of an enabled archive.
func (c Config) Validate() error {
	if c.Endpoint == "" {
		return errors.New("archive endpoint is required")
	}
	if c.Bucket == "" {
		return errors.New("archive bucket is required")
	}
	return nil
}

// NewClient creates the MinIO client.
func NewClient(cfg Config) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
	return client, errors.Wrapf(err, "objectstore.NewClient: endpoint=%v", cfg.Endpoint)
}

// EnsureBucket creates the archive bucket if it is missing.
func EnsureBucket(ctx context.Context, client *minio.Client, cfg Config) error {
	exists, err := client.BucketExists(ctx, cfg.Bucket)
	if err != nil {
		return errors.Wrapf(err, "objectstore.EnsureBucket.BucketExists: bucket=%v", cfg.Bucket)
	}
	if exists {
		return nil
	}
	err = client.MakeBucket(ctx, cfg.Bucket, minio.MakeBucketOptions{Region: cfg.Region})
	return errors.Wrapf(err, "objectstore.EnsureBucket.MakeBucket: bucket=%v", cfg.Bucket)
}

// Putter is the part of the MinIO client used by the archive.
type Putter interface {
	PutObject(ctx context.Context, bucketName, objectName string, reader io.Reader, objectSize int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// NewArchive creates a new instance of the promotions archive.
func NewArchive(client Putter, bucket string) app.ArchiveSvc {
	return Archive{client: client, bucket: bucket}
}

// Archive stores the finished promotions as JSON documents.
type Archive struct {
	client Putter
	bucket string
}

// Archive uploads the promotion record.
func (a Archive) Archive(ctx context.Context, p app.Promotion) error {
	data, err := json.Marshal(p)
	if err != nil {
		return errors.Wrapf(err, "objectstore.Archive.Marshal: promotion=%v", p.DeploymentID)
	}
	key := ObjectKey(p)
	_, err = a.client.PutObject(ctx, a.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
		UserMetadata: map[string]string{
			"state":       string(p.State),
			"environment": string(p.Environment),
		},
	})
	return errors.Wrapf(err, "objectstore.Archive.PutObject: bucket=%v, key=%v", a.bucket, key)
}

// ObjectKey returns the location of the promotion record inside the bucket.
func ObjectKey(p app.Promotion) string {
	return path.Join(p.ServiceName, p.DeploymentID+".json")
}

// Noop is used when the archive is disabled.
type Noop struct{}

// Archive does nothing.
func (Noop) Archive(context.Context, app.Promotion) error {
	return nil
}

func newTransport() *http.Transport {
	dialer := &net.Dialer{
		Timeout:   5 * time.Second,
		KeepAlive: 30 * time.Second,
	}
	return &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           dialer.DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}
