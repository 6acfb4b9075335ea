// Package storage publishes media payloads to durable locations reachable by
// the renderer backends. It defines the Uploader port and implementations
// for local disk and S3.
package storage

import (
	"context"
	"io"
)

// Uploader publishes a payload under a key and returns a durable URL (or an
// absolute path, for the local backend) that a renderer can fetch.
type Uploader interface {
	// Upload stores data under key and returns the durable reference.
	Upload(ctx context.Context, key string, data io.Reader) (url string, err error)
}
