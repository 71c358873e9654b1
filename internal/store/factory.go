package store

import (
	"context"
	"fmt"
	"path/filepath"
)

// Options selects and configures a backend.
type Options struct {
	Driver    Driver
	Path      string // directory for fs, key prefix for s3
	Bucket    string
	Region    string
	Endpoint  string
	PathStyle bool

	AccessKeyID     string
	SecretAccessKey string
}

// Open creates the store described by opts.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case DriverFilesystem, "":
		return NewFilesystem(opts.Path)
	case DriverS3:
		return NewS3(ctx, S3Config{
			Region:    opts.Region,
			Bucket:    opts.Bucket,
			Prefix:    filepath.ToSlash(opts.Path),
			Endpoint:  opts.Endpoint,
			PathStyle: opts.PathStyle,

			AccessKeyID:     opts.AccessKeyID,
			SecretAccessKey: opts.SecretAccessKey,
		})
	case DriverMemory:
		return NewMemory(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %s", opts.Driver)
	}
}
