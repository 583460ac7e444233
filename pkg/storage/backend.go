// Package storage provides the small key-value layer the controller uses to
// checkpoint run state. Values are opaque []byte; callers pick their own
// encoding (the controller uses JSON).
package storage

// Backend is a bucketed key-value store.
type Backend interface {
	// CreateBucket ensures a bucket exists. Creating an existing bucket is a
	// no-op.
	CreateBucket(name []byte) error

	// KV operations within buckets
	Put(bucket, key, value []byte) error
	Get(bucket, key []byte) ([]byte, error)
	Delete(bucket, key []byte) error

	// ForEach iterates over all key-value pairs in a bucket.
	ForEach(bucket []byte, fn func(k, v []byte) error) error

	Close() error
}
