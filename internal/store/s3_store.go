package store

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"hq-entitlements/internal/model"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// S3API is the subset of the S3 client used by the store.
type S3API interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// s3Store keeps the order document as a single S3 object. PutObject
// replaces an object atomically, so readers see the old or the new
// document and never a torn one.
type s3Store struct {
	client S3API
	bucket string
	key    string
	logger zerolog.Logger
}

// NewS3Client loads the default AWS configuration for region.
func NewS3Client(ctx context.Context, region string) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS configuration: %w", err)
	}
	return s3.NewFromConfig(cfg), nil
}

// NewS3Store creates a store holding the document at bucket/key.
func NewS3Store(client S3API, bucket, key string, logger zerolog.Logger) Store {
	return &s3Store{
		client: client,
		bucket: bucket,
		key:    key,
		logger: logger.With().
			Str("store", BackendS3).
			Str("bucket", bucket).
			Str("key", key).
			Logger(),
	}
}

func (s *s3Store) Backend() string {
	return BackendS3
}

// LoadAll fetches and parses the document. A missing object means no orders yet.
func (s *s3Store) LoadAll(ctx context.Context) ([]model.Order, error) {
	result, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(s.key),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			s.logger.Debug().Msg("order document does not exist yet")
			return []model.Order{}, nil
		}
		return nil, fail(OpLoad, BackendS3, err, "get order document")
	}
	defer result.Body.Close()

	data, err := io.ReadAll(result.Body)
	if err != nil {
		return nil, fail(OpLoad, BackendS3, err, "read order document")
	}

	orders, err := decodeDocument(data)
	if err != nil {
		return nil, fail(OpLoad, BackendS3, err, "parse order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document loaded from S3")
	return orders, nil
}

// SaveAll uploads the full document, replacing the previous object.
func (s *s3Store) SaveAll(ctx context.Context, orders []model.Order) error {
	data, err := encodeDocument(orders)
	if err != nil {
		return fail(OpSave, BackendS3, err, "marshal order document")
	}

	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(s.key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fail(OpSave, BackendS3, err, "put order document")
	}

	s.logger.Debug().Int("order_count", len(orders)).Msg("order document saved to S3")
	return nil
}

func (s *s3Store) Close() error {
	return nil
}
