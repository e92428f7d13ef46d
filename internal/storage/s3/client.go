// Package s3 uploads export archives to an S3 compatible bucket.
package s3

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"illust_nest/internal/config"
	"illust_nest/internal/storage"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/smithy-go"
)

const partSize = 8 << 20

type Client struct {
	C        *awss3.Client
	Bucket   *string
	prefix   string
	uploader *manager.Uploader
}

// New connects to the bucket in cfg and checks that it exists.
func New(ctx context.Context, cfg config.S3Config) (*Client, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is not configured")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID,
			cfg.SecretAccessKey,
			"",
		)),
	)
	if err != nil {
		return nil, err
	}

	bucket := aws.String(cfg.Bucket)

	client := awss3.NewFromConfig(awsCfg, func(o *awss3.Options) {
		o.Region = cfg.Region
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	_, err = client.HeadBucket(ctx, &awss3.HeadBucketInput{
		Bucket: bucket,
	})
	if err != nil {
		var apiErr smithy.APIError

		if errors.As(err, &apiErr) {
			if apiErr.ErrorCode() == "NotFound" {
				return nil, fmt.Errorf("bucket '%s': %w", cfg.Bucket, storage.ErrBucketNotFound)
			}
		}

		return nil, fmt.Errorf("failed to check if bucket exists, %w", err)
	}

	return &Client{
		C:      client,
		Bucket: bucket,
		prefix: cfg.Prefix,
		uploader: manager.NewUploader(client, func(u *manager.Uploader) {
			u.Concurrency = 3
			u.PartSize = partSize
		}),
	}, nil
}

// Put streams src to prefix+name. Archives of unknown length go up in
// multipart chunks. It returns the s3:// location of the object.
func (c *Client) Put(ctx context.Context, name string, src io.Reader, contentType string) (string, error) {
	key := ObjectKey(c.prefix, name)

	input := &awss3.PutObjectInput{
		Bucket: c.Bucket,
		Key:    aws.String(key),
		Body:   src,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	if _, err := c.uploader.Upload(ctx, input); err != nil {
		return "", fmt.Errorf("failed to upload %s to s3, %w", key, err)
	}

	return "s3://" + *c.Bucket + "/" + key, nil
}

// ObjectKey joins prefix and the base name of name.
func ObjectKey(prefix, name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return name
	}
	return prefix + "/" + name
}
