package mirror

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"time"

	"videoarchive/internal/model"
	"videoarchive/pkg/logger"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"go.uber.org/zap"
)

// Mirror copies freshly downloaded files to a remote object store. Mirror
// failures are recorded in the outcome and never fail the download.
type Mirror interface {
	Upload(ctx context.Context, ownerID, filename, localPath string) model.MirrorOutcome
}

// s3API is the slice of the S3 client the mirror needs
type s3API interface {
	HeadBucket(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Mirror mirrors files to an S3-compatible bucket (AWS, R2, MinIO).
type S3Mirror struct {
	client s3API
	cfg    model.MirrorConfig
}

// NewS3Mirror builds the mirror client. A custom endpoint switches the
// client into S3-compatible mode with immutable hostnames; credentials
// are always static from configuration.
func NewS3Mirror(ctx context.Context, cfg model.MirrorConfig) (*S3Mirror, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")),
	}

	if cfg.Endpoint != "" {
		resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string) (aws.Endpoint, error) {
			if service == s3.ServiceID {
				return aws.Endpoint{
					URL:               cfg.Endpoint,
					HostnameImmutable: true,
				}, nil
			}
			return aws.Endpoint{}, &aws.EndpointNotFoundError{}
		})
		opts = append(opts, awsconfig.WithEndpointResolverWithOptions(resolver))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load mirror config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.UsePathStyle
	})

	return &S3Mirror{client: client, cfg: cfg}, nil
}

// Verify checks that the bucket is reachable with the configured
// credentials. Called once before a run; on failure the caller disables
// the mirror for the remainder of the run. Never retried.
func (m *S3Mirror) Verify(ctx context.Context) error {
	_, err := m.client.HeadBucket(ctx, &s3.HeadBucketInput{
		Bucket: aws.String(m.cfg.Bucket),
	})
	if err != nil {
		return fmt.Errorf("mirror bucket %q unreachable: %w", m.cfg.Bucket, err)
	}
	return nil
}

// Upload mirrors one local file. The remote is checked first and an
// already-present object is never re-uploaded.
func (m *S3Mirror) Upload(ctx context.Context, ownerID, filename, localPath string) model.MirrorOutcome {
	key := m.remoteKey(ownerID, filename)

	_, err := m.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(m.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		logger.Logger.Debug("Mirror object already present", zap.String("key", key))
		return model.MirrorOutcome{
			Attempted:  true,
			Success:    true,
			RemotePath: key,
			Reason:     model.MirrorAlreadyPresent,
		}
	}

	var notFound *types.NotFound
	if !errors.As(err, &notFound) {
		logger.Logger.Warn("Mirror existence check failed", zap.String("key", key), zap.Error(err))
		return model.MirrorOutcome{
			Attempted: true,
			Reason:    model.MirrorError,
			Detail:    fmt.Sprintf("check remote: %v", err),
		}
	}

	f, err := os.Open(localPath)
	if err != nil {
		return model.MirrorOutcome{
			Attempted: true,
			Reason:    model.MirrorError,
			Detail:    fmt.Sprintf("open local file: %v", err),
		}
	}
	defer f.Close()

	_, err = m.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(m.cfg.Bucket),
		Key:         aws.String(key),
		Body:        f,
		ContentType: aws.String("video/mp4"),
		Metadata: map[string]string{
			"owner":       ownerID,
			"uploaded-at": time.Now().UTC().Format(time.RFC3339),
			"source":      m.cfg.SourceTag,
		},
	})
	if err != nil {
		logger.Logger.Warn("Mirror upload failed", zap.String("key", key), zap.Error(err))
		return model.MirrorOutcome{
			Attempted: true,
			Reason:    model.MirrorError,
			Detail:    fmt.Sprintf("upload: %v", err),
		}
	}

	logger.Logger.Info("Mirror upload complete", zap.String("key", key), zap.String("owner", ownerID))
	return model.MirrorOutcome{
		Attempted:  true,
		Success:    true,
		RemotePath: key,
		Reason:     model.MirrorUploaded,
	}
}

func (m *S3Mirror) remoteKey(ownerID, filename string) string {
	return path.Join(m.cfg.PathPrefix, ownerID, filename)
}
