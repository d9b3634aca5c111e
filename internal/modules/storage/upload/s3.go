package upload

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/komuness/core/internal/models"
)

// S3Config holds S3-compatible storage settings (AWS, R2, MinIO).
type S3Config struct {
	Endpoint        string
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	CustomDomain    string
	Prefix          string
	PathStyle       bool
}

// S3Storage stores uploads in an S3-compatible bucket.
type S3Storage struct {
	client *s3.Client
	cfg    S3Config
	limits Limits
}

func NewS3Storage(cfg S3Config, limits Limits) (*S3Storage, error) {
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}
	client := s3.New(s3.Options{}, func(o *s3.Options) {
		o.Region = cfg.Region
		if cfg.AccessKeyID != "" {
			o.Credentials = credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")
		}
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.PathStyle
	})
	return &S3Storage{client: client, cfg: cfg, limits: limits}, nil
}

func (s *S3Storage) Put(ctx context.Context, f File) (models.Attachment, error) {
	if err := Validate(f, s.limits); err != nil {
		return models.Attachment{}, err
	}
	payload, err := readPayload(f, s.limits.MaxBytes)
	if err != nil {
		return models.Attachment{}, err
	}

	key := s.objectKey(buildFileName(f.Name))
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(payload),
		ContentLength: aws.Int64(int64(len(payload))),
		ContentType:   aws.String(detectContentType(f.Name, payload, f.ContentType)),
	})
	if err != nil {
		return models.Attachment{}, fmt.Errorf("s3 upload failed: %w", err)
	}
	return models.Attachment{URL: s.publicURL(key), Key: key}, nil
}

func (s *S3Storage) Delete(ctx context.Context, key string) error {
	if strings.TrimSpace(key) == "" || strings.Contains(key, "..") {
		return ErrInvalidKey
	}
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}

func (s *S3Storage) objectKey(name string) string {
	prefix := strings.Trim(s.cfg.Prefix, "/")
	if prefix == "" {
		return Folder + "/" + name
	}
	return prefix + "/" + Folder + "/" + name
}

func (s *S3Storage) publicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()
	if d := strings.TrimRight(s.cfg.CustomDomain, "/"); d != "" {
		if !strings.HasPrefix(d, "http://") && !strings.HasPrefix(d, "https://") {
			d = "https://" + d
		}
		return d + "/" + escaped
	}
	if e := strings.TrimRight(s.cfg.Endpoint, "/"); e != "" {
		return e + "/" + s.cfg.Bucket + "/" + escaped
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, escaped)
}
