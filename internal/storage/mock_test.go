package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// mockS3 implements S3API for unit testing. All state is guarded by mu so
// tests can exercise concurrent async operations.
type mockS3 struct {
	mu sync.Mutex

	// buckets is the fixed ListBuckets response.
	buckets []types.Bucket
	// objects stores object bodies keyed by object key.
	objects map[string][]byte
	// listPages overrides paginated listing: each element is one page,
	// chained with synthetic continuation tokens.
	listPages []s3.ListObjectsV2Output
	// headOverrides replaces the default HeadObject output per key.
	headOverrides map[string]*s3.HeadObjectOutput

	listBucketsErr error
	listErr        error
	headErr        error
	getErr         error
	putErr         error
	deleteErr      error

	// onList runs (under mu) on every ListObjectsV2 call.
	onList func()

	listBucketsCalls int
	listCalls        int
	headCalls        int
	getCalls         int
	putCalls         int
	deleteCalls      int
	// deletedBatches records the keys of each DeleteObjects call.
	deletedBatches [][]string
}

func newMockS3() *mockS3 {
	return &mockS3{
		objects:       make(map[string][]byte),
		headOverrides: make(map[string]*s3.HeadObjectOutput),
	}
}

// mockAPIError implements smithy.APIError for simulating AWS errors.
type mockAPIError struct {
	code       string
	message    string
	httpStatus int
}

func (e *mockAPIError) Error() string {
	return fmt.Sprintf("%s: %s", e.code, e.message)
}
func (e *mockAPIError) ErrorCode() string             { return e.code }
func (e *mockAPIError) ErrorMessage() string          { return e.message }
func (e *mockAPIError) ErrorFault() smithy.ErrorFault { return smithy.FaultClient }
func (e *mockAPIError) HTTPStatusCode() int           { return e.httpStatus }

func notFoundErr() error {
	return &mockAPIError{code: "NotFound", message: "Not Found", httpStatus: 404}
}

func (m *mockS3) ListBuckets(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listBucketsCalls++
	if m.listBucketsErr != nil {
		return nil, m.listBucketsErr
	}
	return &s3.ListBucketsOutput{Buckets: m.buckets}, nil
}

func (m *mockS3) ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.onList != nil {
		m.onList()
	}
	if m.listErr != nil {
		return nil, m.listErr
	}

	idx := 0
	if params.ContinuationToken != nil {
		idx, _ = strconv.Atoi(aws.ToString(params.ContinuationToken))
	}
	if idx >= len(m.listPages) {
		return &s3.ListObjectsV2Output{}, nil
	}
	out := m.listPages[idx]
	if idx+1 < len(m.listPages) {
		out.IsTruncated = aws.Bool(true)
		out.NextContinuationToken = aws.String(strconv.Itoa(idx + 1))
	} else {
		out.IsTruncated = aws.Bool(false)
		out.NextContinuationToken = nil
	}
	return &out, nil
}

func (m *mockS3) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.headCalls++
	if m.headErr != nil {
		return nil, m.headErr
	}
	key := aws.ToString(params.Key)
	if out, ok := m.headOverrides[key]; ok {
		return out, nil
	}
	data, ok := m.objects[key]
	if !ok {
		return nil, notFoundErr()
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(int64(len(data))),
		ETag:          aws.String(`"mock-etag"`),
		LastModified:  aws.Time(time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)),
	}, nil
}

func (m *mockS3) GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	data, ok := m.objects[aws.ToString(params.Key)]
	if !ok {
		return nil, &mockAPIError{code: "NoSuchKey", message: "The specified key does not exist.", httpStatus: 404}
	}
	return &s3.GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(data)),
		ContentLength: aws.Int64(int64(len(data))),
	}, nil
}

func (m *mockS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putCalls++
	if m.putErr != nil {
		return nil, m.putErr
	}
	m.objects[aws.ToString(params.Key)] = data
	return &s3.PutObjectOutput{ETag: aws.String(`"mock-etag"`)}, nil
}

func (m *mockS3) DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteCalls++
	if m.deleteErr != nil {
		return nil, m.deleteErr
	}
	batch := make([]string, 0, len(params.Delete.Objects))
	for _, obj := range params.Delete.Objects {
		key := aws.ToString(obj.Key)
		batch = append(batch, key)
		delete(m.objects, key)
	}
	m.deletedBatches = append(m.deletedBatches, batch)
	return &s3.DeleteObjectsOutput{}, nil
}

// Multipart methods exist to satisfy S3API; the tests only exercise
// single-part uploads, so reaching these is a test failure.
func (m *mockS3) CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error) {
	return nil, &mockAPIError{code: "NotImplemented", message: "multipart not supported by mock", httpStatus: 501}
}

func (m *mockS3) UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error) {
	return nil, &mockAPIError{code: "NotImplemented", message: "multipart not supported by mock", httpStatus: 501}
}

func (m *mockS3) CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error) {
	return nil, &mockAPIError{code: "NotImplemented", message: "multipart not supported by mock", httpStatus: 501}
}

func (m *mockS3) AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error) {
	return nil, &mockAPIError{code: "NotImplemented", message: "multipart not supported by mock", httpStatus: 501}
}

var _ S3API = (*mockS3)(nil)

// snapshotCounts returns the current call counters.
func (m *mockS3) snapshotCounts() (list, head, get, put, del int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listCalls, m.headCalls, m.getCalls, m.putCalls, m.deleteCalls
}

// batches returns a copy of the recorded delete batches.
func (m *mockS3) batches() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, len(m.deletedBatches))
	copy(out, m.deletedBatches)
	return out
}

// blockPool saturates the client's worker pool so subsequently submitted
// operations stay queued until the returned release func is called.
func blockPool(c *Client, size int) (release func()) {
	gate := make(chan struct{})
	started := make(chan struct{}, size)
	for i := 0; i < size; i++ {
		c.pool.submit(func() {
			started <- struct{}{}
			<-gate
		})
	}
	for i := 0; i < size; i++ {
		<-started
	}
	return func() { close(gate) }
}
