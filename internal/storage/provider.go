package storage

import (
	"context"
	"io"
)

type Object struct {
	Name string
	Size int64
}

// Provider is the object store the pipeline moves datasets and pipeline
// artifacts through. Objects are written whole and never mutated in place.
type Provider interface {
	CreateBucket(ctx context.Context, bucket string) error

	PutObject(ctx context.Context, bucket, key string, data io.Reader) error

	GetObject(ctx context.Context, bucket, key string) ([]byte, error)

	DownloadObject(ctx context.Context, bucket, key, filename string) error

	ListObjects(ctx context.Context, bucket, prefix string) ([]Object, error)

	DownloadDir(ctx context.Context, bucket, prefix, dest string, overwrite bool) error

	UploadDir(ctx context.Context, bucket, prefix, src string) error
}

// Well-known buckets.
const (
	DatasetBucket = "datasets"
	ModelBucket   = "models"
)

// Dataset bucket prefixes.
const (
	InterimPrefix   = "interim"
	ProcessedPrefix = "processed"
)
