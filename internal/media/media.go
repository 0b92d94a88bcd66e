// Package media stores uploaded images for projects and posts in S3.
package media

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// DefaultMaxSize caps a single upload.
const DefaultMaxSize = 10 << 20

var (
	ErrTooLarge        = errors.New("upload exceeds size limit")
	ErrUnsupportedType = errors.New("unsupported content type")
)

var allowedTypes = map[string]string{
	"image/png":       ".png",
	"image/jpeg":      ".jpg",
	"image/gif":       ".gif",
	"image/webp":      ".webp",
	"image/svg+xml":   ".svg",
	"application/pdf": ".pdf",
}

// Uploader stores a file and returns its public URL.
type Uploader interface {
	Put(ctx context.Context, filename, contentType string, body io.Reader) (string, error)
}

// ObjectPutter is the part of *s3.Client the uploader uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Uploader writes objects under a key prefix in one bucket.
type S3Uploader struct {
	client    ObjectPutter
	bucket    string
	prefix    string
	publicURL string
	maxSize   int64
	logger    *slog.Logger
	now       func() time.Time
}

// NewS3Uploader loads AWS credentials from the default chain and returns
// an uploader for bucket. publicURL is the base the returned links use; if
// empty, the virtual-hosted bucket URL is used.
func NewS3Uploader(ctx context.Context, bucket, region, publicURL string, logger *slog.Logger) (*S3Uploader, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	if publicURL == "" {
		publicURL = fmt.Sprintf("https://%s.s3.%s.amazonaws.com", bucket, region)
	}
	return NewUploaderWithClient(s3.NewFromConfig(cfg), bucket, publicURL, logger), nil
}

// NewUploaderWithClient builds an uploader around an existing client.
func NewUploaderWithClient(client ObjectPutter, bucket, publicURL string, logger *slog.Logger) *S3Uploader {
	return &S3Uploader{
		client:    client,
		bucket:    bucket,
		prefix:    "media/",
		publicURL: strings.TrimSuffix(publicURL, "/"),
		maxSize:   DefaultMaxSize,
		logger:    logger.With("component", "media"),
		now:       time.Now,
	}
}

// Put uploads body and returns the object's public URL. Keys are
// media/<yyyy>/<mm>/<random><ext>, so a filename never overwrites anything.
func (u *S3Uploader) Put(ctx context.Context, filename, contentType string, body io.Reader) (string, error) {
	ext, ok := allowedTypes[contentType]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedType, contentType)
	}

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(body, u.maxSize+1))
	if err != nil {
		return "", fmt.Errorf("read upload: %w", err)
	}
	if n > u.maxSize {
		return "", ErrTooLarge
	}

	key := u.key(ext)
	_, err = u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"original-filename": path.Base(filename),
		},
	})
	if err != nil {
		return "", fmt.Errorf("s3 put %s: %w", key, err)
	}
	u.logger.Info("uploaded", "key", key, "bytes", n, "content_type", contentType)
	return u.publicURL + "/" + key, nil
}

func (u *S3Uploader) key(ext string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return u.prefix + u.now().UTC().Format("2006/01/") + hex.EncodeToString(b) + ext
}
