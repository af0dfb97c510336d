package traceexport

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/roach88/phdtrack/internal/store"
)

// MinIOConfig addresses an S3-compatible bucket.
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Region    string
	UseSSL    bool
}

// Validate rejects incomplete settings.
func (c MinIOConfig) Validate() error {
	if strings.TrimSpace(c.Endpoint) == "" {
		return errors.New("minio endpoint is required")
	}
	if strings.Contains(c.Endpoint, "://") {
		return errors.New("minio endpoint must be host:port without scheme")
	}
	if strings.TrimSpace(c.AccessKey) == "" {
		return errors.New("minio access key is required")
	}
	if strings.TrimSpace(c.SecretKey) == "" {
		return errors.New("minio secret key is required")
	}
	if strings.TrimSpace(c.Bucket) == "" {
		return errors.New("minio bucket is required")
	}
	return nil
}

// NewMinIOClient builds a client for cfg. Nothing is dialed until the
// first request.
func NewMinIOClient(cfg MinIOConfig) (*minio.Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return minio.New(cfg.Endpoint, &minio.Options{
		Creds:     credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure:    cfg.UseSSL,
		Region:    cfg.Region,
		Transport: newTransport(),
	})
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
		MaxIdleConns:          16,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   5 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
}

// ObjectStore is the subset of *minio.Client the exporter uses.
type ObjectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64,
		opts minio.PutObjectOptions) (minio.UploadInfo, error)
}

// MinIOExporter stores each trace as its own object.
type MinIOExporter struct {
	client ObjectStore
	bucket string
}

// NewMinIOExporter ensures the bucket exists and returns an exporter
// writing into it.
func NewMinIOExporter(ctx context.Context, client ObjectStore, bucket, region string) (*MinIOExporter, error) {
	exists, err := client.BucketExists(ctx, bucket)
	if err != nil {
		return nil, fmt.Errorf("bucket exists: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{Region: region}); err != nil {
			return nil, fmt.Errorf("make bucket %s: %w", bucket, err)
		}
	}
	return &MinIOExporter{client: client, bucket: bucket}, nil
}

// ObjectKey is traces/<orchestrator>/<request_id>/<attempt>.json.
func ObjectKey(tr store.TraceRecord) string {
	return "traces/" + tr.OrchestratorName + "/" + tr.RequestID + "/" + strconv.Itoa(tr.Attempt) + ".json"
}

// Export implements Exporter. Objects already written stay in place when
// a later put fails.
func (e *MinIOExporter) Export(ctx context.Context, traces []store.TraceRecord) (Result, error) {
	res := Result{Destination: "s3://" + e.bucket}
	for _, tr := range traces {
		b, err := encode(tr)
		if err != nil {
			return res, err
		}
		key := ObjectKey(tr)
		_, err = e.client.PutObject(ctx, e.bucket, key, bytes.NewReader(b), int64(len(b)),
			minio.PutObjectOptions{ContentType: "application/json"})
		if err != nil {
			return res, fmt.Errorf("put %s: %w", key, err)
		}
		res.Exported++
		res.Objects = append(res.Objects, key)
	}
	return res, nil
}
