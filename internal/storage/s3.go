package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"alcyxob/course-media/internal/domain"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsCfg "github.com/aws/aws-sdk-go-v2/config" // Alias config to avoid clash
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/rs/zerolog"
)

// ObjectStorage implements Provider on an S3-compatible backend.
type ObjectStorage struct {
	client        *s3.Client        // Regular client for Put/Get/Delete
	presignClient *s3.PresignClient // Special client for generating presigned URLs
	bucketName    string
	cdnDomain     string
	presignTTL    time.Duration
	log           zerolog.Logger
}

// NewObjectStorage creates a new S3 storage provider. It fails fast when the
// credentials are incomplete.
func NewObjectStorage(ctx context.Context, creds *domain.StorageCredentials, presignTTL time.Duration, log zerolog.Logger) (*ObjectStorage, error) {
	if creds == nil {
		return nil, ErrMissingCredentials
	}
	if missing := creds.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrMissingCredentials, strings.Join(missing, ", "))
	}

	sdkConfig, err := awsCfg.LoadDefaultConfig(ctx,
		awsCfg.WithRegion(creds.Region),
		awsCfg.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(creds.AccessKeyID, creds.SecretAccessKey, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	endpoint := strings.TrimSpace(creds.Endpoint)
	client := s3.NewFromConfig(sdkConfig, func(o *s3.Options) {
		// Custom endpoints cover S3-compatible stores like MinIO or Spaces.
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
		o.UsePathStyle = creds.UsePathStyle
	})

	if presignTTL <= 0 {
		presignTTL = DefaultPresignedURLExpiry
	}

	return &ObjectStorage{
		client:        client,
		presignClient: s3.NewPresignClient(client),
		bucketName:    creds.Bucket,
		cdnDomain:     strings.TrimSuffix(strings.TrimSpace(creds.CDNDomain), "/"),
		presignTTL:    presignTTL,
		log:           log.With().Str("component", "s3-storage").Str("bucket", creds.Bucket).Logger(),
	}, nil
}

func (s *ObjectStorage) Kind() domain.Provider { return domain.ProviderS3 }

// PutAtKey issues a single PutObject; S3 makes the object visible atomically.
func (s *ObjectStorage) PutAtKey(ctx context.Context, key string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   body,
	}
	if contentType != "" {
		input.ContentType = aws.String(contentType)
	}
	if size > 0 {
		input.ContentLength = aws.Int64(size)
	}

	if _, err := s.client.PutObject(ctx, input); err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to put object")
		return nil, err
	}

	url, err := s.URL(ctx, key)
	if err != nil {
		return nil, err
	}
	return &domain.MediaDescriptor{Name: path.Base(key), Key: key, URL: url}, nil
}

func (s *ObjectStorage) PutRandomKey(ctx context.Context, prefix, filename string, body io.Reader, size int64, contentType string) (*domain.MediaDescriptor, error) {
	desc, err := s.PutAtKey(ctx, randomKey(prefix, filename), body, size, contentType)
	if err != nil {
		return nil, err
	}
	desc.Name = filename
	return desc, nil
}

func (s *ObjectStorage) Get(ctx context.Context, key string) (*Object, error) {
	if err := ValidateKey(key); err != nil {
		return nil, err
	}
	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		var noSuchKey *types.NoSuchKey
		if errors.As(err, &noSuchKey) {
			return nil, ErrObjectNotFound
		}
		return nil, err
	}
	obj := &Object{Body: out.Body, Size: aws.ToInt64(out.ContentLength)}
	if out.ContentType != nil {
		obj.ContentType = *out.ContentType
	}
	return obj, nil
}

// URL prefers the configured CDN domain and falls back to a presigned GET.
func (s *ObjectStorage) URL(ctx context.Context, key string) (string, error) {
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	if s.cdnDomain != "" {
		domainURL := s.cdnDomain
		if !strings.HasPrefix(domainURL, "http://") && !strings.HasPrefix(domainURL, "https://") {
			domainURL = "https://" + domainURL
		}
		return domainURL + "/" + key, nil
	}

	req, err := s.presignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.presignTTL))
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to generate presigned GET URL")
		return "", err
	}
	return req.URL, nil
}

// Delete removes an object from the bucket.
func (s *ObjectStorage) Delete(ctx context.Context, key string) error {
	if err := ValidateKey(key); err != nil {
		return err
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if err != nil {
		s.log.Error().Err(err).Str("key", key).Msg("failed to delete object")
		return err
	}
	s.log.Info().Str("key", key).Msg("deleted object")
	return nil
}
