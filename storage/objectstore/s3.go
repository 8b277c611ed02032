// Package objectstore is an S3-like storage.Driver: aws-sdk-go-v2 config
// loading, a custom endpoint + path-style option for S3-compatible stores
// (MinIO, LocalStack), and a Head-before-Put idempotence check.
//
// Each namespace maps to a separately configured bucket. Keys carry a
// ".bali" suffix. On versioned buckets a delete leaves a delete marker
// rather than removing the object outright; this driver treats a
// delete-marker response as non-existence, consistent with every other
// backend reporting absence rather than an error.
package objectstore

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"xdao.co/depot/storage"
)

// BucketMap assigns a bucket name to every namespace this driver serves.
type BucketMap map[storage.Namespace]string

// SingleBucket returns a BucketMap routing every namespace to the same
// bucket, differentiated only by key prefix — the common deployment shape
// for smaller installations that do not want five buckets provisioned.
func SingleBucket(name string) BucketMap {
	return BucketMap{
		storage.NamespaceNames:     name,
		storage.NamespaceDrafts:    name,
		storage.NamespaceDocuments: name,
		storage.NamespaceContracts: name,
		storage.NamespaceMessages:  name,
	}
}

// Config configures the object store driver.
type Config struct {
	Region   string
	Endpoint string // optional custom endpoint (MinIO, LocalStack)
	Buckets  BucketMap
	Prefix   string // optional key prefix applied within every bucket
}

// Driver is an S3-backed storage.Driver.
type Driver struct {
	client  *s3.Client
	buckets BucketMap
	prefix  string
}

// New constructs an object store driver from cfg.
func New(ctx context.Context, cfg Config) (*Driver, error) {
	if len(cfg.Buckets) == 0 {
		return nil, errors.New("objectstore: at least one namespace/bucket mapping is required")
	}
	awsCfg, err := awshttp.LoadDefaultConfig(ctx, awshttp.WithRegion(cfg.Region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return &Driver{client: client, buckets: cfg.Buckets, prefix: cfg.Prefix}, nil
}

var _ storage.Driver = (*Driver)(nil)

func (d *Driver) bucket(namespace storage.Namespace) (string, error) {
	b, ok := d.buckets[namespace]
	if !ok {
		return "", errors.New("objectstore: no bucket configured for namespace " + string(namespace))
	}
	return b, nil
}

func (d *Driver) objectKey(key string) string {
	return d.prefix + key + ".bali"
}

func (d *Driver) Exists(ctx context.Context, namespace storage.Namespace, key string) (bool, error) {
	bucket, err := d.bucket(namespace)
	if err != nil {
		return false, storage.NewIOError("exists", namespace, key, err)
	}
	_, err = d.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err == nil {
		return true, nil
	}
	if isNotFound(err) {
		return false, nil
	}
	return false, storage.NewIOError("exists", namespace, key, err)
}

func (d *Driver) Read(ctx context.Context, namespace storage.Namespace, key string) ([]byte, bool, error) {
	bucket, err := d.bucket(namespace)
	if err != nil {
		return nil, false, storage.NewIOError("read", namespace, key, err)
	}
	out, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, storage.NewIOError("read", namespace, key, err)
	}
	defer out.Body.Close()

	if aws.ToBool(out.DeleteMarker) {
		return nil, false, nil
	}
	body, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, false, storage.NewIOError("read", namespace, key, err)
	}
	return body, true, nil
}

func (d *Driver) Write(ctx context.Context, namespace storage.Namespace, key string, data []byte, allowOverwrite bool) error {
	bucket, err := d.bucket(namespace)
	if err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	objectKey := d.objectKey(key)

	if !allowOverwrite {
		exists, err := d.Exists(ctx, namespace, key)
		if err != nil {
			return err
		}
		if exists {
			return storage.NewConflictError("write", namespace, key)
		}
	}

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(objectKey),
		Body:        strings.NewReader(string(data)),
		ContentType: aws.String("application/bali"),
	})
	if err != nil {
		return storage.NewIOError("write", namespace, key, err)
	}
	return nil
}

func (d *Driver) Delete(ctx context.Context, namespace storage.Namespace, key string) (bool, error) {
	existed, err := d.Exists(ctx, namespace, key)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	bucket, err := d.bucket(namespace)
	if err != nil {
		return false, storage.NewIOError("delete", namespace, key, err)
	}
	_, err = d.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(d.objectKey(key)),
	})
	if err != nil {
		return false, storage.NewIOError("delete", namespace, key, err)
	}
	return true, nil
}

func (d *Driver) List(ctx context.Context, namespace storage.Namespace, prefix string, maxKeys int) ([]string, error) {
	bucket, err := d.bucket(namespace)
	if err != nil {
		return nil, storage.NewIOError("list", namespace, prefix, err)
	}
	fullPrefix := d.prefix + prefix

	var out []string
	var token *string
	for {
		page, err := d.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
			Bucket:            aws.String(bucket),
			Prefix:            aws.String(fullPrefix),
			ContinuationToken: token,
		})
		if err != nil {
			return nil, storage.NewIOError("list", namespace, prefix, err)
		}
		for _, obj := range page.Contents {
			k := aws.ToString(obj.Key)
			k = strings.TrimPrefix(k, d.prefix)
			k = strings.TrimPrefix(k, prefix)
			k = strings.TrimPrefix(k, "/")
			k = strings.TrimSuffix(k, ".bali")
			if k == "" {
				continue
			}
			out = append(out, k)
			if maxKeys > 0 && len(out) >= maxKeys {
				sort.Strings(out)
				return out, nil
			}
		}
		if !aws.ToBool(page.IsTruncated) {
			break
		}
		token = page.NextContinuationToken
	}
	sort.Strings(out)
	return out, nil
}

func isNotFound(err error) bool {
	var nf *types.NoSuchKey
	if errors.As(err, &nf) {
		return true
	}
	var nb *types.NotFound
	if errors.As(err, &nb) {
		return true
	}
	return strings.Contains(err.Error(), "NotFound") || strings.Contains(err.Error(), "NoSuchKey")
}
