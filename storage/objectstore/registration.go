package objectstore

import (
	"context"
	"flag"
	"fmt"

	"xdao.co/depot/storage"
	"xdao.co/depot/storage/driverregistry"
)

var (
	flagBucket   string
	flagRegion   string
	flagEndpoint string
)

func init() {
	driverregistry.MustRegister(driverregistry.Backend{
		Name:        "s3",
		Description: "S3-compatible object store driver",
		Usage:       driverregistry.UsageCLI | driverregistry.UsageDaemon,
		RegisterFlags: func(fs *flag.FlagSet) {
			fs.StringVar(&flagBucket, "s3-bucket", "", "bucket name (for --backend=s3)")
			fs.StringVar(&flagRegion, "s3-region", "us-east-1", "AWS region")
			fs.StringVar(&flagEndpoint, "s3-endpoint", "", "custom S3-compatible endpoint (MinIO, LocalStack)")
		},
		Open: func() (storage.Driver, func() error, error) {
			if flagBucket == "" {
				return nil, nil, fmt.Errorf("missing --s3-bucket")
			}
			d, err := New(context.Background(), Config{
				Region:   flagRegion,
				Endpoint: flagEndpoint,
				Buckets:  SingleBucket(flagBucket),
			})
			return d, nil, err
		},
	})
}
