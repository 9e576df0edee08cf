// Package storage implements the lolrus storage client: a single configured
// connection to one S3-compatible endpoint exposing blocking calls for fast
// metadata work and pool-backed async operations for anything that iterates
// many remote objects or transfers bulk bytes.
//
// Transient network errors are retried by the SDK transport below this
// layer; only exhausted-retry failures surface here. Credentials are always
// static per connection -- the default AWS credential chain is deliberately
// not consulted, because each client is bound to one saved connection.
package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	lolerr "github.com/lolrus/lolrus/internal/errors"
)

const defaultDownloadChunk = 1 << 20

// Settings configures a Client. Zero values fall back to the documented
// defaults.
type Settings struct {
	// Endpoint is the S3-compatible endpoint URL
	// (e.g., https://us-east-1.linodeobjects.com).
	Endpoint string
	// Region defaults to us-east-1.
	Region    string
	AccessKey string
	SecretKey string
	// UsePathStyle forces path-style addressing.
	UsePathStyle bool
	// Workers is the async pool size (default 4).
	Workers int
	// RetryMaxAttempts bounds transport retries (default 3, adaptive mode).
	RetryMaxAttempts int
	// ConnectTimeout is the TCP connect timeout (default 10s).
	ConnectTimeout time.Duration
	// ReadTimeout is the response header timeout (default 30s).
	ReadTimeout time.Duration
}

func (st *Settings) applyDefaults() {
	if st.Region == "" {
		st.Region = "us-east-1"
	}
	if st.Workers < 1 {
		st.Workers = 4
	}
	if st.RetryMaxAttempts < 1 {
		st.RetryMaxAttempts = 3
	}
	if st.ConnectTimeout == 0 {
		st.ConnectTimeout = 10 * time.Second
	}
	if st.ReadTimeout == 0 {
		st.ReadTimeout = 30 * time.Second
	}
}

// Client owns a connection to one endpoint/region/credential set. All
// methods are safe for concurrent use.
type Client struct {
	api      S3API
	uploader *manager.Uploader
	logger   *slog.Logger
	endpoint string
	pool     *workerPool

	// mu guards the operation registry and the ID counter.
	mu        sync.Mutex
	ops       map[string]*Operation
	opCounter int

	downloadChunk int
}

// New creates a Client for the given endpoint and credentials. The retry
// and timeout policy lives in the SDK transport: RetryMaxAttempts attempts
// with adaptive backoff, ConnectTimeout to dial, ReadTimeout for response
// headers.
func New(ctx context.Context, st Settings, logger *slog.Logger) (*Client, error) {
	st.applyDefaults()

	httpClient := awshttp.NewBuildableClient().
		WithDialerOptions(func(d *net.Dialer) {
			d.Timeout = st.ConnectTimeout
		}).
		WithTransportOptions(func(tr *http.Transport) {
			tr.ResponseHeaderTimeout = st.ReadTimeout
		})

	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(st.Region),
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(st.AccessKey, st.SecretKey, ""),
		),
		awsconfig.WithHTTPClient(httpClient),
		awsconfig.WithRetryer(func() aws.Retryer {
			return retry.AddWithMaxAttempts(retry.NewAdaptiveMode(), st.RetryMaxAttempts)
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	api := s3.NewFromConfig(cfg, func(o *s3.Options) {
		if st.Endpoint != "" {
			o.BaseEndpoint = aws.String(st.Endpoint)
		}
		o.UsePathStyle = st.UsePathStyle
	})

	c := newClient(api, logger, st.Workers)
	c.endpoint = st.Endpoint
	c.logger.Debug("storage client initialized", "endpoint", st.Endpoint, "region", st.Region)
	return c, nil
}

// NewWithClient creates a Client with a pre-configured S3 client. This is
// primarily used for testing with mock clients.
func NewWithClient(api S3API, logger *slog.Logger) *Client {
	return newClient(api, logger, 4)
}

func newClient(api S3API, logger *slog.Logger, workers int) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		api:           api,
		uploader:      manager.NewUploader(api),
		logger:        logger,
		pool:          newWorkerPool(workers),
		ops:           make(map[string]*Operation),
		downloadChunk: defaultDownloadChunk,
	}
}

// Close requests best-effort pool shutdown without waiting for in-flight
// operations. Already-running workers may still mutate their Operations
// after Close returns; queued tasks may never run.
func (c *Client) Close() {
	c.pool.close()
}

// nextOperationID generates a unique operation ID.
func (c *Client) nextOperationID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opCounter++
	return fmt.Sprintf("op-%d", c.opCounter)
}

func (c *Client) register(op *Operation) {
	c.mu.Lock()
	c.ops[op.ID()] = op
	c.mu.Unlock()
}

// Operation looks up a registered operation by ID.
func (c *Client) Operation(id string) (*Operation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	op, ok := c.ops[id]
	return op, ok
}

// Operations returns all registered operations in unspecified order.
func (c *Client) Operations() []*Operation {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Operation, 0, len(c.ops))
	for _, op := range c.ops {
		out = append(out, op)
	}
	return out
}

// TestConnection attempts a cheap listing call and reports whether it
// succeeded. It never returns an error.
func (c *Client) TestConnection(ctx context.Context) bool {
	if _, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{}); err != nil {
		c.logger.Warn("connection test failed", "endpoint", c.endpoint, "error", err)
		return false
	}
	return true
}

// ListBuckets lists all buckets, preserving provider order.
func (c *Client) ListBuckets(ctx context.Context) ([]Bucket, error) {
	resp, err := c.api.ListBuckets(ctx, &s3.ListBucketsInput{})
	if err != nil {
		return nil, &lolerr.ConnectionError{Endpoint: c.endpoint, Err: err}
	}
	buckets := make([]Bucket, 0, len(resp.Buckets))
	for _, b := range resp.Buckets {
		buckets = append(buckets, Bucket{
			Name:         aws.ToString(b.Name),
			CreationDate: aws.ToTime(b.CreationDate),
		})
	}
	return buckets, nil
}

// ListObjects lists objects under prefix, paginating transparently until
// exhausted. The delimiter produces folder-like common prefixes, returned
// in provider order. An entry whose key exactly equals the prefix is
// skipped: some providers echo the prefix marker itself as a zero-size
// object.
func (c *Client) ListObjects(ctx context.Context, bucket, prefix, delimiter string) ([]Object, []string, error) {
	input := &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	}
	if prefix != "" {
		input.Prefix = aws.String(prefix)
	}
	if delimiter != "" {
		input.Delimiter = aws.String(delimiter)
	}

	var objects []Object
	var prefixes []string

	paginator := s3.NewListObjectsV2Paginator(c.api, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, nil, &lolerr.TransferError{Op: "ListObjectsV2", Err: err}
		}
		for _, obj := range page.Contents {
			key := aws.ToString(obj.Key)
			if key == prefix {
				continue
			}
			class := string(obj.StorageClass)
			if class == "" {
				class = "STANDARD"
			}
			objects = append(objects, Object{
				Key:          key,
				Size:         aws.ToInt64(obj.Size),
				LastModified: aws.ToTime(obj.LastModified),
				ETag:         strings.Trim(aws.ToString(obj.ETag), `"`),
				StorageClass: class,
			})
		}
		for _, p := range page.CommonPrefixes {
			prefixes = append(prefixes, aws.ToString(p.Prefix))
		}
	}

	return objects, prefixes, nil
}

// GetObjectInfo fetches metadata for a single object via a head call.
func (c *Client) GetObjectInfo(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	resp, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if lolerr.IsNotFound(err) {
			return ObjectInfo{}, fmt.Errorf("object not found: %s/%s", bucket, key)
		}
		return ObjectInfo{}, &lolerr.TransferError{Op: "HeadObject", Err: err}
	}

	contentType := aws.ToString(resp.ContentType)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	class := string(resp.StorageClass)
	if class == "" {
		class = "STANDARD"
	}

	return ObjectInfo{
		ContentType:   contentType,
		ContentLength: aws.ToInt64(resp.ContentLength),
		LastModified:  aws.ToTime(resp.LastModified),
		ETag:          strings.Trim(aws.ToString(resp.ETag), `"`),
		Metadata:      resp.Metadata,
		StorageClass:  class,
	}, nil
}

// DownloadToMemory fetches an object body into memory. The declared length
// is checked with a head call first; if it exceeds maxSize the call fails
// with *errors.SizeLimitError and no payload is transferred. Callers use
// this to bound preview-sized downloads.
func (c *Client) DownloadToMemory(ctx context.Context, bucket, key string, maxSize int64) ([]byte, error) {
	info, err := c.GetObjectInfo(ctx, bucket, key)
	if err != nil {
		return nil, err
	}
	if info.ContentLength > maxSize {
		return nil, &lolerr.SizeLimitError{
			Bucket: bucket,
			Key:    key,
			Size:   info.ContentLength,
			Limit:  maxSize,
		}
	}

	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, &lolerr.TransferError{Op: "GetObject", Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &lolerr.TransferError{Op: "GetObject", Err: err}
	}
	return data, nil
}
