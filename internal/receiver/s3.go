package receiver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/jmgilman/go/errors"
	"go.uber.org/zap"

	"github.com/fruitsalade/projectfs/internal/logging"
	"github.com/fruitsalade/projectfs/pkg/protocol"
)

// S3Config holds S3 connection settings.
type S3Config struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	Region    string
}

// S3Store keeps one object per project under projects/<id>.json.
type S3Store struct {
	client *s3.Client
	bucket string
}

// NewS3Store connects to an S3-compatible endpoint (MinIO included).
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(cfg.Region),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		),
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "load aws config")
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = true // MinIO
	})

	store := &S3Store{client: client, bucket: cfg.Bucket}
	if err := store.ensureBucket(ctx); err != nil {
		logging.Error("bucket check failed", zap.String("bucket", cfg.Bucket), zap.Error(err))
	}
	return store, nil
}

func (s *S3Store) ensureBucket(ctx context.Context) error {
	_, err := s.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(s.bucket)})
	if err == nil {
		return nil
	}
	if _, createErr := s.client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String(s.bucket)}); createErr != nil {
		return errors.Wrapf(createErr, errors.CodeUnavailable, "bucket %s does not exist and cannot be created", s.bucket)
	}
	logging.Info("created S3 bucket", zap.String("bucket", s.bucket))
	return nil
}

// ObjectKey is the object name of a project's snapshot.
func ObjectKey(projectID string) string {
	return "projects/" + projectID + ".json"
}

func (s *S3Store) Put(ctx context.Context, snap *protocol.SnapshotResponse) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "encode snapshot")
	}
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(ObjectKey(snap.ProjectID)),
		Body:          bytes.NewReader(body),
		ContentLength: aws.Int64(int64(len(body))),
		ContentType:   aws.String("application/json"),
	})
	if err != nil {
		return errors.WithContext(errors.Wrap(err, errors.CodeUnavailable, "put snapshot"), "project_id", snap.ProjectID)
	}
	return nil
}

func (s *S3Store) Get(ctx context.Context, projectID string) (*protocol.SnapshotResponse, error) {
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ObjectKey(projectID)),
	})
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return nil, snapshotNotFound(projectID)
		}
		return nil, errors.Wrap(err, errors.CodeUnavailable, "get snapshot")
	}
	defer out.Body.Close()

	data, err := io.ReadAll(out.Body)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "read snapshot")
	}
	var snap protocol.SnapshotResponse
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, errors.Wrap(err, errors.CodeSchemaFailed, "decode snapshot")
	}
	return &snap, nil
}

func (s *S3Store) Close() error { return nil }
