package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	"github.com/aws/smithy-go/middleware"
	smithyhttp "github.com/aws/smithy-go/transport/http"
)

// S3Storage implements ObjectStore for AWS S3 and S3-compatible services.
type S3Storage struct {
	client    *s3.Client
	presigner *s3.PresignClient
	bucket    string
	prefix    string
	expiry    time.Duration
}

// S3Config holds S3-specific configuration.
type S3Config struct {
	AccessKeyID     string
	SecretAccessKey string
	Region          string
	Bucket          string
	Endpoint        string        // Optional custom endpoint
	Prefix          string        // Optional prefix for all keys
	UsePathStyle    bool          // For S3-compatible services
	PresignExpiry   time.Duration // Lifetime of presigned URLs
}

// NewS3Storage creates a new S3 storage provider.
func NewS3Storage(ctx context.Context, cfg S3Config) (*S3Storage, error) {
	region := cfg.Region
	if region == "" {
		// S3-compatible endpoints ignore the region but the signer needs one.
		region = "us-east-1"
	}

	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	clientOpts := []func(*s3.Options){
		func(o *s3.Options) {
			o.UsePathStyle = cfg.UsePathStyle
		},
	}
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	client := s3.NewFromConfig(awsCfg, clientOpts...)

	return &S3Storage{
		client:    client,
		presigner: s3.NewPresignClient(client),
		bucket:    cfg.Bucket,
		prefix:    cfg.Prefix,
		expiry:    cfg.PresignExpiry,
	}, nil
}

// List implements ObjectStore.List.
func (s *S3Storage) List(ctx context.Context, prefix string) ([]string, error) {
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(objectName(s.prefix, prefix)),
	})

	var keys []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return keys, fmt.Errorf("failed to list S3 objects: %w", err)
		}

		for _, obj := range page.Contents {
			if key, ok := logicalKey(s.prefix, aws.ToString(obj.Key)); ok {
				keys = append(keys, key)
			}
		}
	}

	return keys, nil
}

// Stat implements ObjectStore.Stat.
func (s *S3Storage) Stat(ctx context.Context, key string) (ObjectInfo, error) {
	resp, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(s.prefix, key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ObjectInfo{}, ErrNotFound
		}
		return ObjectInfo{}, fmt.Errorf("failed to stat S3 object: %w", err)
	}

	return ObjectInfo{
		Key:          key,
		Size:         aws.ToInt64(resp.ContentLength),
		LastModified: aws.ToTime(resp.LastModified),
		Metadata:     resp.Metadata,
	}, nil
}

// PresignUpload implements ObjectStore.PresignUpload.
//
// Metadata travels as signed x-amz-meta-* query parameters, so a client
// holding only the URL can upload. S3 stores the keys lowercased and Stat
// returns them that way.
func (s *S3Storage) PresignUpload(ctx context.Context, key string, metadata map[string]string, contentType string) (string, error) {
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(s.prefix, key)),
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}

	req, err := s.presigner.PresignPutObject(ctx, input,
		s3.WithPresignExpires(s.expiry),
		func(o *s3.PresignOptions) {
			o.ClientOptions = append(o.ClientOptions, func(opts *s3.Options) {
				opts.APIOptions = append(opts.APIOptions, addMetadataQuery(metadata))
			})
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 upload: %w", err)
	}
	return req.URL, nil
}

// PresignDownload implements ObjectStore.PresignDownload.
func (s *S3Storage) PresignDownload(ctx context.Context, key string) (string, error) {
	req, err := s.presigner.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(s.prefix, key)),
	}, s3.WithPresignExpires(s.expiry))
	if err != nil {
		return "", fmt.Errorf("failed to presign S3 download: %w", err)
	}
	return req.URL, nil
}

// Remove implements ObjectStore.Remove.
//
// DeleteObject succeeds for absent keys, so the key is checked with HeadObject
// first. Two removals racing between the check and the delete can still both
// succeed.
func (s *S3Storage) Remove(ctx context.Context, key string) error {
	if _, err := s.Stat(ctx, key); err != nil {
		if errors.Is(err, ErrNotFound) {
			return fmt.Errorf("remove %s: %w", key, ErrNotFound)
		}
		return err
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(objectName(s.prefix, key)),
	})
	if err != nil {
		if isS3NotFound(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from S3: %w", err)
	}

	return nil
}

// addMetadataQuery adds metadata to the request URL as x-amz-meta-* query
// parameters. It runs in the build step, before the presigner signs the URL.
func addMetadataQuery(metadata map[string]string) func(*middleware.Stack) error {
	return func(stack *middleware.Stack) error {
		return stack.Build.Add(middleware.BuildMiddlewareFunc("MetadataQuery",
			func(ctx context.Context, in middleware.BuildInput, next middleware.BuildHandler) (middleware.BuildOutput, middleware.Metadata, error) {
				req, ok := in.Request.(*smithyhttp.Request)
				if !ok {
					return middleware.BuildOutput{}, middleware.Metadata{}, fmt.Errorf("unexpected request type %T", in.Request)
				}

				q := req.URL.Query()
				for k, v := range metadata {
					q.Set("x-amz-meta-"+strings.ToLower(k), v)
				}
				req.URL.RawQuery = q.Encode()

				return next.HandleBuild(ctx, in)
			}), middleware.After)
	}
}

func isS3NotFound(err error) bool {
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return true
		}
	}
	return false
}
