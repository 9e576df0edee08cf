package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	lolerr "github.com/lolrus/lolrus/internal/errors"
	"github.com/lolrus/lolrus/internal/metrics"
)

// deleteBatchSize is the provider hard limit for one batched delete call.
const deleteBatchSize = 1000

// errCancelled signals caller-requested early stop inside a worker. It is
// mapped to StatusCancelled, never surfaced as a failure.
var errCancelled = errors.New("operation cancelled")

// finish resolves an operation to its terminal state and invokes the
// completion callback exactly once. Cancellation is not a failure; partial
// side effects stay visible via CompletedItems.
func (c *Client) finish(op *Operation, kind string, start time.Time, err error, onComplete OperationCallback) {
	switch {
	case err == nil:
		op.complete()
	case errors.Is(err, errCancelled):
		op.setStatus(StatusCancelled)
	default:
		op.fail(err)
		c.logger.Error("operation failed", "op", op.ID(), "description", op.Description(), "error", err)
	}
	metrics.OperationsTotal.WithLabelValues(kind, op.Status().String()).Inc()
	metrics.OperationDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	if onComplete != nil {
		onComplete(op)
	}
}

// DeleteObjectsAsync deletes the given keys in batches on the worker pool.
// It returns the Operation handle immediately; TotalItems is the key count.
// Cancellation is checked before each batch: already-issued batches are not
// rolled back.
func (c *Client) DeleteObjectsAsync(ctx context.Context, bucket string, keys []string, onProgress, onComplete OperationCallback) *Operation {
	op := newOperation(c.nextOperationID(), fmt.Sprintf("Deleting %d objects from %s", len(keys), bucket))
	op.setTotal(int64(len(keys)))
	c.register(op)
	c.pool.submit(func() {
		start := time.Now()
		op.setStatus(StatusRunning)
		c.logger.Debug("starting delete", "bucket", bucket, "count", len(keys), "op", op.ID())
		err := c.deleteInBatches(ctx, op, bucket, keys, onProgress)
		c.finish(op, "delete", start, err, onComplete)
	})
	return op
}

// DownloadObjectAsync downloads an object to localPath on the worker pool.
// TotalItems is the remote object's byte length, fetched via a head call
// before the body fetch. The file is written to localPath+".part" and
// renamed on success; a cancelled or failed transfer leaves no partial file.
func (c *Client) DownloadObjectAsync(ctx context.Context, bucket, key, localPath string, onProgress, onComplete OperationCallback) *Operation {
	op := newOperation(c.nextOperationID(), "Downloading "+key)
	c.register(op)
	c.pool.submit(func() {
		start := time.Now()
		op.setStatus(StatusRunning)
		err := c.runDownload(ctx, op, bucket, key, localPath, onProgress)
		c.finish(op, "download", start, err, onComplete)
	})
	return op
}

// UploadFileAsync uploads a local file on the worker pool via the transfer
// manager (multi-part capable). TotalItems is the local file's byte length.
func (c *Client) UploadFileAsync(ctx context.Context, bucket, key, localPath string, onProgress, onComplete OperationCallback) *Operation {
	op := newOperation(c.nextOperationID(), "Uploading "+filepath.Base(localPath))
	c.register(op)
	c.pool.submit(func() {
		start := time.Now()
		op.setStatus(StatusRunning)
		err := c.runUpload(ctx, op, bucket, key, localPath, onProgress)
		c.finish(op, "upload", start, err, onComplete)
	})
	return op
}

// EmptyBucketAsync deletes every object in the bucket. Phase 1 enumerates
// all pages (cancellation between pages resolves to Cancelled with no
// deletions); phase 2 batches deletes like DeleteObjectsAsync. A bucket
// that enumerates to zero keys resolves Completed with TotalItems 0 and no
// delete call issued.
func (c *Client) EmptyBucketAsync(ctx context.Context, bucket string, onProgress, onComplete OperationCallback) *Operation {
	op := newOperation(c.nextOperationID(), "Emptying bucket "+bucket)
	c.register(op)
	c.pool.submit(func() {
		start := time.Now()
		op.setStatus(StatusRunning)
		err := c.runEmptyBucket(ctx, op, bucket, onProgress)
		c.finish(op, "empty_bucket", start, err, onComplete)
	})
	return op
}

func (c *Client) deleteInBatches(ctx context.Context, op *Operation, bucket string, keys []string, onProgress OperationCallback) error {
	for batchStart := 0; batchStart < len(keys); batchStart += deleteBatchSize {
		if op.CancelRequested() {
			return errCancelled
		}
		batch := keys[batchStart:min(batchStart+deleteBatchSize, len(keys))]

		ids := make([]types.ObjectIdentifier, 0, len(batch))
		for _, k := range batch {
			ids = append(ids, types.ObjectIdentifier{Key: aws.String(k)})
		}
		_, err := c.api.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: ids, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return &lolerr.TransferError{Op: "DeleteObjects", Err: err}
		}
		metrics.DeleteBatchesTotal.Inc()
		metrics.ObjectsDeletedTotal.Add(float64(len(batch)))
		c.logger.Debug("deleted batch", "bucket", bucket, "count", len(batch), "op", op.ID())

		done := op.addCompleted(int64(len(batch)))
		if total := op.TotalItems(); total > 0 {
			op.setProgress(float64(done) / float64(total))
		}
		if onProgress != nil {
			onProgress(op)
		}
	}
	return nil
}

func (c *Client) runDownload(ctx context.Context, op *Operation, bucket, key, localPath string, onProgress OperationCallback) error {
	head, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &lolerr.TransferError{Op: "HeadObject", Err: err}
	}
	total := aws.ToInt64(head.ContentLength)
	op.setTotal(total)

	resp, err := c.api.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return &lolerr.TransferError{Op: "GetObject", Err: err}
	}
	defer resp.Body.Close()

	tmp := localPath + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return &lolerr.TransferError{Op: "CreateFile", Err: err}
	}
	discard := func() {
		f.Close()
		os.Remove(tmp)
	}

	buf := make([]byte, c.downloadChunk)
	for {
		// Cancellation checkpoint: once per transfer chunk.
		if op.CancelRequested() {
			discard()
			return errCancelled
		}
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := f.Write(buf[:n]); werr != nil {
				discard()
				return &lolerr.TransferError{Op: "WriteFile", Err: werr}
			}
			done := op.addCompleted(int64(n))
			if total > 0 {
				op.setProgress(float64(done) / float64(total))
			} else {
				op.setProgress(1.0)
			}
			metrics.BytesDownloadedTotal.Add(float64(n))
			if onProgress != nil {
				onProgress(op)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			discard()
			return &lolerr.TransferError{Op: "GetObject", Err: rerr}
		}
	}

	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return &lolerr.TransferError{Op: "WriteFile", Err: err}
	}
	if err := os.Rename(tmp, localPath); err != nil {
		os.Remove(tmp)
		return &lolerr.TransferError{Op: "RenameFile", Err: err}
	}
	return nil
}

func (c *Client) runUpload(ctx context.Context, op *Operation, bucket, key, localPath string, onProgress OperationCallback) error {
	fi, err := os.Stat(localPath)
	if err != nil {
		return &lolerr.TransferError{Op: "StatFile", Err: err}
	}
	op.setTotal(fi.Size())

	f, err := os.Open(localPath)
	if err != nil {
		return &lolerr.TransferError{Op: "OpenFile", Err: err}
	}
	defer f.Close()

	pr := &progressReader{r: f, op: op, onProgress: onProgress}
	_, err = c.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
		Body:   pr,
	})
	if err != nil {
		// The transfer manager may wrap the reader's cancellation error.
		if errors.Is(err, errCancelled) || op.CancelRequested() {
			return errCancelled
		}
		return &lolerr.TransferError{Op: "PutObject", Err: err}
	}
	return nil
}

func (c *Client) runEmptyBucket(ctx context.Context, op *Operation, bucket string, onProgress OperationCallback) error {
	// Phase 1: enumerate the entire bucket, ignoring prefix grouping.
	var keys []string
	paginator := s3.NewListObjectsV2Paginator(c.api, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
	})
	for paginator.HasMorePages() {
		// Cancellation checkpoint: before each page fetch. Nothing has
		// been deleted yet.
		if op.CancelRequested() {
			return errCancelled
		}
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return &lolerr.TransferError{Op: "ListObjectsV2", Err: err}
		}
		for _, obj := range page.Contents {
			keys = append(keys, aws.ToString(obj.Key))
		}
	}

	op.setTotal(int64(len(keys)))
	c.logger.Debug("emptying bucket", "bucket", bucket, "count", len(keys), "op", op.ID())

	// Phase 2: same batching as DeleteObjectsAsync. A zero-key bucket
	// falls straight through to Completed without a delete call.
	return c.deleteInBatches(ctx, op, bucket, keys, onProgress)
}

// progressReader counts bytes handed to the transfer manager, updating the
// operation and firing the progress callback per read. A pending cancel
// aborts the transfer by failing the next read.
type progressReader struct {
	r          io.Reader
	op         *Operation
	onProgress OperationCallback
}

func (pr *progressReader) Read(p []byte) (int, error) {
	if pr.op.CancelRequested() {
		return 0, errCancelled
	}
	n, err := pr.r.Read(p)
	if n > 0 {
		done := pr.op.addCompleted(int64(n))
		if total := pr.op.TotalItems(); total > 0 {
			pr.op.setProgress(float64(done) / float64(total))
		} else {
			pr.op.setProgress(1.0)
		}
		metrics.BytesUploadedTotal.Add(float64(n))
		if pr.onProgress != nil {
			pr.onProgress(pr.op)
		}
	}
	return n, err
}
