// Package errors defines the typed error taxonomy for lolrus storage
// operations.
package errors

import (
	"errors"
	"fmt"

	"github.com/aws/smithy-go"
)

// ConnectionError indicates the endpoint was unreachable or the credentials
// were rejected. Synchronous calls propagate it; TestConnection converts it
// to false.
type ConnectionError struct {
	// Endpoint is the endpoint URL the client was configured with.
	Endpoint string
	// Err is the underlying transport or provider error.
	Err error
}

// Error implements the error interface for ConnectionError.
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection to %s failed: %v", e.Endpoint, e.Err)
}

// Unwrap returns the underlying error.
func (e *ConnectionError) Unwrap() error { return e.Err }

// SizeLimitError indicates an in-memory download was refused because the
// object's declared length exceeds the caller-specified cap. No payload
// bytes were transferred.
type SizeLimitError struct {
	Bucket string
	Key    string
	// Size is the object's declared content length in bytes.
	Size int64
	// Limit is the caller-specified maximum in bytes.
	Limit int64
}

// Error implements the error interface for SizeLimitError.
func (e *SizeLimitError) Error() string {
	return fmt.Sprintf("object %s/%s too large: %d bytes (max: %d)", e.Bucket, e.Key, e.Size, e.Limit)
}

// TransferError indicates a provider-side failure during an upload,
// download, delete, or list after the transport layer exhausted its
// retries.
type TransferError struct {
	// Op names the failed call (e.g., "DeleteObjects", "ListObjectsV2").
	Op  string
	Err error
}

// Error implements the error interface for TransferError.
func (e *TransferError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error.
func (e *TransferError) Unwrap() error { return e.Err }

// IsNotFound reports whether an AWS error is a 404/NoSuchKey/NoSuchBucket
// class error.
func IsNotFound(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "404", "NoSuchBucket":
			return true
		}
	}
	var respErr interface{ HTTPStatusCode() int }
	if errors.As(err, &respErr) {
		return respErr.HTTPStatusCode() == 404
	}
	return false
}
