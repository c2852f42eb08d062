// Package storage persists uploaded media in an S3-compatible object
// store (Cloudflare R2 in production). Objects are keyed as
// folder/uuid.ext and served from a public base URL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// MaxImageBytes is the upload ceiling for image objects.
const MaxImageBytes = 5 << 20

// ErrUnsupportedMediaType signals a MIME type outside the allow-list.
var ErrUnsupportedMediaType = errors.New("storage: unsupported media type")

// ErrObjectTooLarge signals an upload above the size ceiling.
var ErrObjectTooLarge = errors.New("storage: object exceeds size limit")

var imageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

var documentExtensions = map[string]string{
	"application/pdf":    ".pdf",
	"application/msword": ".doc",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": ".docx",
	"application/vnd.ms-excel": ".xls",
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": ".xlsx",
	"application/vnd.ms-powerpoint": ".ppt",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"text/csv": ".csv",
}

// Config carries the S3-compatible endpoint settings.
type Config struct {
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	// Endpoint is the account endpoint, e.g.
	// https://<account-id>.r2.cloudflarestorage.com.
	Endpoint string
	// PublicBaseURL is the public serving domain for stored objects.
	PublicBaseURL string
}

// ObjectAPI is the slice of the S3 client the store depends on.
type ObjectAPI interface {
	PutObject(ctx context.Context, input *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObject(ctx context.Context, input *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

// UploadFunc is the shared signature of UploadImage and UploadDocument.
type UploadFunc func(ctx context.Context, body io.Reader, size int64, contentType, folder string) (*Object, error)

// Object describes a stored blob.
type Object struct {
	Key   string `json:"key"`
	URL   string `json:"url"`
	Bytes int64  `json:"bytes"`
}

// Store uploads and deletes media objects.
type Store struct {
	client    ObjectAPI
	bucket    string
	publicURL string
}

// New builds a Store connected to the configured endpoint.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.Bucket == "" || cfg.AccessKeyID == "" || cfg.SecretAccessKey == "" || cfg.Endpoint == "" {
		return nil, errors.New("storage: bucket, access key, secret key, and endpoint are required")
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		),
		awsconfig.WithRegion("auto"),
	)
	if err != nil {
		return nil, fmt.Errorf("storage: load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(cfg.Endpoint)
		o.UsePathStyle = true // required for R2
	})

	return NewWithClient(client, cfg.Bucket, cfg.PublicBaseURL)
}

// NewWithClient builds a Store around an existing client, primarily
// for tests.
func NewWithClient(client ObjectAPI, bucket, publicBaseURL string) (*Store, error) {
	if client == nil {
		return nil, errors.New("storage: client is required")
	}
	if bucket == "" {
		return nil, errors.New("storage: bucket is required")
	}
	return &Store{
		client:    client,
		bucket:    bucket,
		publicURL: strings.TrimRight(publicBaseURL, "/"),
	}, nil
}

// UploadImage stores an image after checking the MIME allow-list and
// the size ceiling.
func (s *Store) UploadImage(ctx context.Context, body io.Reader, size int64, contentType, folder string) (*Object, error) {
	ext, ok := imageExtensions[normalizeContentType(contentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}
	if size > MaxImageBytes {
		return nil, fmt.Errorf("%w: %d bytes", ErrObjectTooLarge, size)
	}
	return s.put(ctx, body, size, contentType, folder, ext)
}

// UploadDocument stores a document after checking the MIME allow-list.
func (s *Store) UploadDocument(ctx context.Context, body io.Reader, size int64, contentType, folder string) (*Object, error) {
	ext, ok := documentExtensions[normalizeContentType(contentType)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMediaType, contentType)
	}
	return s.put(ctx, body, size, contentType, folder, ext)
}

// Delete removes an object by key. Deleting a missing key is not an
// error on S3-compatible stores.
func (s *Store) Delete(ctx context.Context, key string) error {
	key = strings.TrimSpace(key)
	if key == "" {
		return errors.New("storage: key is required")
	}

	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("storage: delete %s: %w", key, err)
	}
	return nil
}

// PublicURL builds the serving URL for a stored key.
func (s *Store) PublicURL(key string) string {
	if s.publicURL == "" {
		return key
	}
	return s.publicURL + "/" + key
}

func (s *Store) put(ctx context.Context, body io.Reader, size int64, contentType, folder, ext string) (*Object, error) {
	folder = strings.Trim(strings.TrimSpace(folder), "/")
	if folder == "" {
		folder = "uploads"
	}
	key := fmt.Sprintf("%s/%s%s", folder, uuid.NewString(), ext)

	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.bucket),
		Key:           aws.String(key),
		Body:          body,
		ContentLength: aws.Int64(size),
		ContentType:   aws.String(normalizeContentType(contentType)),
	})
	if err != nil {
		return nil, fmt.Errorf("storage: upload %s: %w", key, err)
	}

	return &Object{
		Key:   key,
		URL:   s.PublicURL(key),
		Bytes: size,
	}, nil
}

func normalizeContentType(contentType string) string {
	contentType = strings.TrimSpace(strings.ToLower(contentType))
	if idx := strings.Index(contentType, ";"); idx >= 0 {
		contentType = strings.TrimSpace(contentType[:idx])
	}
	return contentType
}
