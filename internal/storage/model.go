package storage

import (
	"strings"
	"time"
)

// Object represents a single object in a bucket listing. It is a value type;
// listings hand ownership of the slice to the caller.
type Object struct {
	// Key is the full path-like identifier, unique within a bucket.
	Key string
	// Size is the object size in bytes.
	Size int64
	// LastModified is the provider-reported modification time.
	LastModified time.Time
	// ETag is the provider content fingerprint, stripped of quoting.
	ETag string
	// StorageClass is the provider tier label (default "STANDARD").
	StorageClass string
}

// Name returns the display name: the final path segment after stripping one
// trailing separator.
func (o Object) Name() string {
	k := strings.TrimSuffix(o.Key, "/")
	if i := strings.LastIndex(k, "/"); i >= 0 {
		return k[i+1:]
	}
	return k
}

// IsFolder reports whether the key represents a folder-style prefix marker.
func (o Object) IsFolder() bool {
	return strings.HasSuffix(o.Key, "/")
}

// Bucket represents a bucket at the storage endpoint. Ephemeral; recreated
// on each ListBuckets call.
type Bucket struct {
	Name string
	// CreationDate is zero when the provider omits it.
	CreationDate time.Time
}

// ObjectInfo is the metadata returned by a head-style call for one object.
type ObjectInfo struct {
	// ContentType defaults to application/octet-stream when absent.
	ContentType string
	// ContentLength is the declared object size in bytes.
	ContentLength int64
	LastModified  time.Time
	// ETag is stripped of quoting.
	ETag string
	// Metadata holds the user-defined x-amz-meta-* pairs.
	Metadata map[string]string
	// StorageClass defaults to STANDARD when absent.
	StorageClass string
}
