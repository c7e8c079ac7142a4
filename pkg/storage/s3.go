package storage

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"

	"github.com/azhur-katering/katering-api/pkg/config"
)

// s3API is the subset of the S3 client used by the image store.
type s3API interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, in *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	DeleteObject(ctx context.Context, in *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// ImageStore keeps dish images in an S3-compatible bucket under
// dishes/{id}/original.* and dishes/{id}/thumbnail.*.
type ImageStore struct {
	client       s3API
	bucket       string
	endpoint     string
	cacheControl string
	logger       *zap.Logger
}

// NewS3Client builds an S3 client from static credentials. A custom endpoint
// makes it MinIO-compatible for local setups.
func NewS3Client(ctx context.Context, cfg config.S3Config) (*s3.Client, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKey,
			cfg.SecretKey,
			"",
		)))
	if err != nil {
		return nil, err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return client, nil
}

// NewImageStore wraps an S3 client for dish image operations.
func NewImageStore(client s3API, cfg config.S3Config, logger *zap.Logger) *ImageStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ImageStore{
		client:       client,
		bucket:       cfg.Bucket,
		endpoint:     strings.TrimRight(cfg.Endpoint, "/"),
		cacheControl: cfg.CacheControl,
		logger:       logger,
	}
}

// UploadOriginal stores the full-size dish image and returns its public URL.
func (s *ImageStore) UploadOriginal(ctx context.Context, dishID, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("dishes/%s/original.%s", dishID, fileExtension(filename))
	return s.upload(ctx, key, contentType, body)
}

// UploadThumbnail stores the thumbnail variant and returns its public URL.
func (s *ImageStore) UploadThumbnail(ctx context.Context, dishID, filename, contentType string, body io.Reader) (string, error) {
	key := fmt.Sprintf("dishes/%s/thumbnail.%s", dishID, fileExtension(filename))
	return s.upload(ctx, key, contentType, body)
}

func (s *ImageStore) upload(ctx context.Context, key, contentType string, body io.Reader) (string, error) {
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:       aws.String(s.bucket),
		Key:          aws.String(key),
		Body:         body,
		ContentType:  aws.String(contentType),
		CacheControl: aws.String(s.cacheControl),
		ACL:          types.ObjectCannedACLPublicRead,
	})
	if err != nil {
		return "", fmt.Errorf("put object %s: %w", key, err)
	}

	url := s.PublicURL(key)
	s.logger.Debug("image uploaded", zap.String("key", key))
	return url, nil
}

// DeleteDishImages removes every object stored for a dish.
func (s *ImageStore) DeleteDishImages(ctx context.Context, dishID string) error {
	prefix := fmt.Sprintf("dishes/%s/", dishID)
	out, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucket),
		Prefix: aws.String(prefix),
	})
	if err != nil {
		return fmt.Errorf("list objects %s: %w", prefix, err)
	}

	for _, obj := range out.Contents {
		if _, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
			Bucket: aws.String(s.bucket),
			Key:    obj.Key,
		}); err != nil {
			return fmt.Errorf("delete object %s: %w", aws.ToString(obj.Key), err)
		}
	}

	s.logger.Info("dish images deleted", zap.String("dish_id", dishID), zap.Int("count", len(out.Contents)))
	return nil
}

// PublicURL returns the address a browser can fetch the object from.
func (s *ImageStore) PublicURL(key string) string {
	if s.endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", s.endpoint, s.bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.amazonaws.com/%s", s.bucket, key)
}

func fileExtension(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx == -1 || idx == len(filename)-1 {
		return "jpg"
	}
	return strings.ToLower(filename[idx+1:])
}
