// Package storage provides payload archive implementations backed by
// object storage.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxsuite/backend/internal/domain/sat"
	infraconfig "github.com/mxsuite/backend/internal/infrastructure/config"
)

// Ensure S3PayloadArchive implements the archive port
var _ sat.PayloadArchive = (*S3PayloadArchive)(nil)

// S3PayloadArchive keeps the raw XML of every downloaded document in an
// S3-compatible bucket. Payloads are written once and never modified;
// the archive is the audit trail behind the staging area, which only
// retains rows until they are imported or the request is deleted.
// Works against AWS S3, MinIO and other S3-compatible backends.
type S3PayloadArchive struct {
	client *s3.Client
	bucket string
	logger *zap.Logger
}

// NewS3PayloadArchive creates an archive from storage configuration
func NewS3PayloadArchive(cfg *infraconfig.StorageConfig, logger *zap.Logger) (*S3PayloadArchive, error) {
	if cfg == nil {
		return nil, errors.New("storage configuration is required")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("storage bucket is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	region := cfg.Region
	if region == "" {
		region = "us-east-1"
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			endpoint := cfg.Endpoint
			if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
				endpoint = "https://" + endpoint
			}
			o.BaseEndpoint = aws.String(endpoint)
			// Custom endpoints are usually MinIO-style deployments
			o.UsePathStyle = true
		}
	})

	return &S3PayloadArchive{
		client: client,
		bucket: cfg.Bucket,
		logger: logger.Named("payload_archive"),
	}, nil
}

// EnsureBucket creates the bucket if it does not exist. Call during
// application startup.
func (a *S3PayloadArchive) EnsureBucket(ctx context.Context) error {
	_, err := a.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if !errors.As(err, &notFound) && !errors.As(err, &noSuchBucket) {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}

	a.logger.Info("creating archive bucket", zap.String("bucket", a.bucket))
	_, err = a.client.CreateBucket(ctx, &s3.CreateBucketInput{
		Bucket: aws.String(a.bucket),
	})
	if err != nil {
		var alreadyOwned *types.BucketAlreadyOwnedByYou
		if errors.As(err, &alreadyOwned) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

// Store implements sat.PayloadArchive
func (a *S3PayloadArchive) Store(ctx context.Context, requestID uuid.UUID, fiscalUUID string, xml []byte) error {
	if fiscalUUID == "" {
		return errors.New("fiscal UUID is required")
	}

	key := archiveKey(requestID, fiscalUUID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(xml),
		ContentType: aws.String("application/xml"),
	})
	if err != nil {
		return fmt.Errorf("failed to archive payload %s: %w", key, err)
	}
	return nil
}

// archiveKey lays payloads out per request so a whole download can be
// inspected with a single prefix listing
func archiveKey(requestID uuid.UUID, fiscalUUID string) string {
	return fmt.Sprintf("downloads/%s/%s.xml", requestID, strings.ToLower(fiscalUUID))
}
