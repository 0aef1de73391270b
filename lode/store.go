package lode

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/justapithecus/lode/lode"
	lodes3 "github.com/justapithecus/lode/lode/s3"
)

// ErrInvalidFilename is returned for sidecar names that are not a single
// plain path element.
var ErrInvalidFilename = errors.New("invalid sidecar filename")

// S3Config locates a history dataset in S3 or an S3-compatible service.
type S3Config struct {
	Bucket string
	Prefix string
	// Region falls back to the AWS default chain when empty.
	Region string
	// Endpoint overrides the service URL (MinIO, LocalStack).
	Endpoint     string
	UsePathStyle bool
}

// Validate reports a missing bucket.
func (c S3Config) Validate() error {
	if c.Bucket == "" {
		return errors.New("s3 storage needs a bucket")
	}
	return nil
}

// ParseS3Path splits "bucket/some/prefix" into bucket and prefix.
func ParseS3Path(p string) (bucket, prefix string) {
	bucket, prefix, _ = strings.Cut(strings.TrimPrefix(p, "s3://"), "/")
	return bucket, strings.Trim(prefix, "/")
}

func (c S3Config) clientOptions() []func(*s3.Options) {
	endpoint, pathStyle := c.Endpoint, c.UsePathStyle
	return []func(*s3.Options){func(o *s3.Options) {
		if endpoint != "" {
			o.BaseEndpoint = &endpoint
		}
		o.UsePathStyle = pathStyle
	}}
}

// NewS3Factory returns a store factory for c. Credentials come from the AWS
// default chain.
func NewS3Factory(ctx context.Context, c S3Config) (lode.StoreFactory, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	var loadOpts []func(*awsconfig.LoadOptions) error
	if c.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(c.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg, c.clientOptions()...)
	return func() (lode.Store, error) {
		return lodes3.New(client, lodes3.Config{Bucket: c.Bucket, Prefix: c.Prefix})
	}, nil
}

// NewLodeS3Client creates a history client that writes to S3.
func NewLodeS3Client(ctx context.Context, cfg Config, s3cfg S3Config) (*LodeClient, error) {
	factory, err := NewS3Factory(ctx, s3cfg)
	if err != nil {
		return nil, err
	}
	return NewLodeClientWithFactory(cfg, factory)
}

// NewReadDataset opens dataset for queries with the write path's layout.
func NewReadDataset(dataset string, factory lode.StoreFactory) (lode.Dataset, error) {
	ds, err := newDataset(dataset, factory)
	if err != nil {
		return nil, WrapInitError(err, dataset)
	}
	return ds, nil
}

// NewReadDatasetFS opens a dataset rooted at a local directory.
func NewReadDatasetFS(dataset, root string) (lode.Dataset, error) {
	return NewReadDataset(dataset, lode.NewFSFactory(root))
}

// NewReadDatasetS3 opens a dataset stored in S3.
func NewReadDatasetS3(ctx context.Context, dataset string, c S3Config) (lode.Dataset, error) {
	factory, err := NewS3Factory(ctx, c)
	if err != nil {
		return nil, err
	}
	return NewReadDataset(dataset, factory)
}

// SidecarPath is where a sidecar file of this session is stored:
// datasets/<dataset>/partitions/day=<day>/session_id=<id>/files/<name>.
func (c *LodeClient) SidecarPath(name string) string {
	return path.Join("datasets", c.config.Dataset, "partitions",
		"day="+c.config.Day, "session_id="+c.config.SessionID, "files", name)
}

// PutSidecar stores data next to the session's history, outside the
// dataset's snapshots. Session recordings are written this way.
func (c *LodeClient) PutSidecar(ctx context.Context, name string, data []byte) error {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
	}
	c.storeOnce.Do(func() {
		c.store, c.storeErr = c.storeFactory()
	})
	if c.storeErr != nil {
		return WrapInitError(fmt.Errorf("sidecar store: %w", c.storeErr), c.config.Dataset)
	}
	p := c.SidecarPath(name)
	if err := c.store.Put(ctx, p, bytes.NewReader(data)); err != nil {
		return WrapWriteError(err, p)
	}
	return nil
}
