package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"drugscreen/internal/services"
)

// S3Config holds construction parameters for an S3-compatible backend.
type S3Config struct {
	Bucket    string
	Region    string
	Endpoint  string // optional, e.g. MinIO
	Prefix    string
	PathStyle bool

	AccessKeyID     string
	SecretAccessKey string
}

// S3Blob stores objects in a single bucket under an optional key prefix.
type S3Blob struct {
	client *s3.Client
	bucket string
	prefix string
}

// NewS3Blob builds a client from static keys when both are set, otherwise
// from the default AWS credential chain.
func NewS3Blob(ctx context.Context, cfg S3Config) (*S3Blob, error) {
	if cfg.Bucket == "" {
		return nil, services.Wrap(services.ErrConfiguration, "documents", "s3", "bucket is required", nil)
	}
	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "documents", "s3", "load aws config", err)
	}
	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.PathStyle
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return newS3BlobWithClient(client, cfg.Bucket, cfg.Prefix), nil
}

func newS3BlobWithClient(client *s3.Client, bucket, prefix string) *S3Blob {
	return &S3Blob{client: client, bucket: bucket, prefix: prefix}
}

func (b *S3Blob) Driver() string { return "s3" }

func (b *S3Blob) objectKey(key string) (string, error) {
	clean, err := sanitizeKey(key)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "documents", "s3", "invalid key", err)
	}
	if b.prefix == "" {
		return clean, nil
	}
	return path.Join(b.prefix, clean), nil
}

func (b *S3Blob) Put(ctx context.Context, key string, data []byte, contentType string) error {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return err
	}
	input := &s3.PutObjectInput{
		Bucket:        aws.String(b.bucket),
		Key:           aws.String(objectKey),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if _, err := b.client.PutObject(ctx, input); err != nil {
		return services.Wrap(services.ErrTransport, "documents", "s3 put", objectKey, err)
	}
	return nil
}

func (b *S3Blob) Get(ctx context.Context, key string) ([]byte, error) {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return nil, err
	}
	out, err := b.client.GetObject(ctx, &s3.GetObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(objectKey)})
	if err != nil {
		if isS3NotFound(err) {
			return nil, services.Wrap(services.ErrNotFound, "documents", "s3 get", objectKey, nil)
		}
		return nil, services.Wrap(services.ErrTransport, "documents", "s3 get", objectKey, err)
	}
	defer out.Body.Close()
	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, services.Wrap(services.ErrTransport, "documents", "s3 read", objectKey, err)
	}
	return data, nil
}

func (b *S3Blob) Delete(ctx context.Context, key string) error {
	objectKey, err := b.objectKey(key)
	if err != nil {
		return err
	}
	if _, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{Bucket: aws.String(b.bucket), Key: aws.String(objectKey)}); err != nil {
		return fmt.Errorf("s3 delete %s: %w", objectKey, err)
	}
	return nil
}

func isS3NotFound(err error) bool {
	var noSuchKey *types.NoSuchKey
	if errors.As(err, &noSuchKey) {
		return true
	}
	var status interface{ HTTPStatusCode() int }
	return errors.As(err, &status) && status.HTTPStatusCode() == http.StatusNotFound
}
