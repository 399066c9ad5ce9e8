// Package objectstore defines the Store interface for the S3-compatible
// bucket that backs the lakehouse.
//
// Seeds are uploaded here as Parquet and read back by DuckDB through
// read_parquet('s3://bucket/key'). The Iceberg catalog writes its own data
// and metadata files to the same bucket; this package never touches those.
//
//	store, err := s3.New(ctx, cfg)
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	err = store.Put(ctx, "seeds/customers.parquet", r, size, objectstore.PutOptions{
//	    ContentType: objectstore.ContentTypeParquet,
//	})
//
//	meta, err := store.Head(ctx, "seeds/customers.parquet")
//	if errors.Is(err, objectstore.ErrNotFound) {
//	    // not uploaded yet
//	}
package objectstore

import (
	"context"
	"errors"
	"fmt"
	"io"
)

// Common errors returned by Store implementations.
var (
	// ErrNotFound is returned when the requested object does not exist.
	ErrNotFound = errors.New("object not found")

	// ErrPreconditionFailed is returned when a conditional write fails.
	ErrPreconditionFailed = errors.New("precondition failed")

	// ErrBucketNotFound is returned when the configured bucket does not exist.
	ErrBucketNotFound = errors.New("bucket not found")

	// ErrAccessDenied is returned when the credentials lack permission for the operation.
	ErrAccessDenied = errors.New("access denied")

	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("store is closed")
)

// Content types used for lakehouse objects.
const (
	ContentTypeParquet = "application/vnd.apache.parquet"
	ContentTypeCSV     = "text/csv"
	ContentTypeOctet   = "application/octet-stream"
)

// ObjectError wraps an error with the object key for context.
type ObjectError struct {
	Op  string // Operation that failed (e.g., "Put", "Get", "Delete")
	Key string // Object key
	Err error  // Underlying error
}

func (e *ObjectError) Error() string {
	return fmt.Sprintf("objectstore: %s %q: %v", e.Op, e.Key, e.Err)
}

func (e *ObjectError) Unwrap() error {
	return e.Err
}

// ObjectMeta contains metadata about an object.
type ObjectMeta struct {
	Key         string
	Size        int64
	ContentType string
	ETag        string

	// LastModified is the Unix timestamp (milliseconds) when the object was last modified.
	LastModified int64

	// Metadata contains user-defined key-value metadata. S3 lowercases keys.
	Metadata map[string]string
}

// PutOptions configures a Put.
type PutOptions struct {
	// ContentType defaults to ContentTypeOctet.
	ContentType string

	// Metadata is stored with the object.
	Metadata map[string]string

	// IfNoneMatch set to "*" fails the Put with ErrPreconditionFailed when
	// an object already exists at the key.
	IfNoneMatch string
}

// ContentTypeOrDefault returns ContentType, defaulting to ContentTypeOctet.
func (o PutOptions) ContentTypeOrDefault() string {
	if o.ContentType == "" {
		return ContentTypeOctet
	}
	return o.ContentType
}

// Store is the interface for object storage operations.
//
// Implementations must be safe for concurrent use and return *ObjectError
// wrapping one of the sentinel errors where one applies.
type Store interface {
	// Put stores size bytes read from reader at key.
	Put(ctx context.Context, key string, reader io.Reader, size int64, opts PutOptions) error

	// Get retrieves an entire object. The caller closes the reader.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Head retrieves object metadata without the body.
	Head(ctx context.Context, key string) (ObjectMeta, error)

	// Delete removes an object. Deleting a missing object succeeds.
	Delete(ctx context.Context, key string) error

	// List returns objects under prefix in key order.
	List(ctx context.Context, prefix string) ([]ObjectMeta, error)

	// Close releases resources. Later calls fail with ErrClosed.
	Close() error
}
