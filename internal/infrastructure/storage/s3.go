package storage

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/google/uuid"
	"github.com/honeynil/KudosClassroom/internal/config"
	"github.com/honeynil/KudosClassroom/internal/models"
	pkgerrors "github.com/honeynil/KudosClassroom/pkg/errors"
)

// UploadSigner issues URLs that let a browser upload an image straight to
// object storage.
type UploadSigner interface {
	SignUpload(ctx context.Context, fileName, fileType string) (*models.SignedUpload, error)
}

type putPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

type S3Signer struct {
	presigner putPresigner
	bucket    string
	region    string
	ttl       time.Duration
	newKey    func(fileName string) string
}

func NewS3Signer(ctx context.Context, cfg config.S3Config) (*S3Signer, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load aws config: %w", err)
	}
	return newS3Signer(s3.NewPresignClient(s3.NewFromConfig(awsCfg)), cfg), nil
}

func newS3Signer(p putPresigner, cfg config.S3Config) *S3Signer {
	return &S3Signer{
		presigner: p,
		bucket:    cfg.Bucket,
		region:    cfg.Region,
		ttl:       cfg.URLTTL,
		newKey:    uniqueKey,
	}
}

func (s *S3Signer) SignUpload(ctx context.Context, fileName, fileType string) (*models.SignedUpload, error) {
	if strings.TrimSpace(fileName) == "" {
		return nil, pkgerrors.InvalidInput("fileName is required")
	}
	if !strings.HasPrefix(fileType, "image/") {
		return nil, pkgerrors.InvalidInput("only image uploads are allowed, got %q", fileType)
	}

	key := s.newKey(fileName)
	req, err := s.presigner.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		ContentType: aws.String(fileType),
		ACL:         types.ObjectCannedACLPublicRead,
	}, s3.WithPresignExpires(s.ttl))
	if err != nil {
		slog.Error("failed to presign upload", "bucket", s.bucket, "key", key, "error", err)
		return nil, fmt.Errorf("failed to presign upload: %w", err)
	}

	slog.Info("upload signed", "bucket", s.bucket, "key", key)
	return &models.SignedUpload{
		SignedRequest: req.URL,
		URL:           fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, key),
	}, nil
}

func uniqueKey(fileName string) string {
	return uuid.NewString() + "-" + path.Base(fileName)
}

// DisabledSigner is used when no bucket is configured.
type DisabledSigner struct{}

func (DisabledSigner) SignUpload(context.Context, string, string) (*models.SignedUpload, error) {
	return nil, pkgerrors.ErrUnavailable.WithMessage("uploads are not configured")
}
