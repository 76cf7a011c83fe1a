// Package archive stores copies of provider-hosted datasheets in S3 so they
// survive providers rotating or expiring their URLs.
package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/partscout/partscout/internal/logging"
	"github.com/partscout/partscout/internal/models"
)

// maxFileSize caps a single archived file at 50 MB
const maxFileSize = 50 << 20

// s3API is the slice of the S3 client the archiver uses
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// Config holds S3 archiver settings
type Config struct {
	Region string
	Bucket string
	// Prefix is prepended to every object key, e.g. "datasheets"
	Prefix string
}

// S3Archiver downloads provider files and uploads them to an S3 bucket.
// Uploads are content-addressed by source URL, so re-archiving the same
// datasheet is a cheap head request.
type S3Archiver struct {
	client s3API
	http   *http.Client
	bucket string
	prefix string
	logger *logging.Logger
}

// NewS3 creates an archiver using ambient AWS credentials/profile
func NewS3(ctx context.Context, cfg Config, logger *logging.Logger) (*S3Archiver, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("archive bucket is required")
	}

	loadOptions := []func(*awsconfig.LoadOptions) error{}
	if region := strings.TrimSpace(cfg.Region); region != "" {
		loadOptions = append(loadOptions, awsconfig.WithRegion(region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOptions...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &S3Archiver{
		client: s3.NewFromConfig(awsCfg),
		http:   &http.Client{Timeout: 60 * time.Second},
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Archive downloads one file and uploads it under a key derived from the
// provider and the source URL. Already-archived files are skipped.
func (a *S3Archiver) Archive(ctx context.Context, providerKey string, file models.File) error {
	if file.URL == "" {
		return nil
	}

	key := a.objectKey(providerKey, file)

	_, err := a.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return nil
	}
	var notFound *s3types.NotFound
	if !errors.As(err, &notFound) {
		return fmt.Errorf("head %s: %w", key, err)
	}

	body, contentType, err := a.download(ctx, file.URL)
	if err != nil {
		return err
	}

	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        strings.NewReader(string(body)),
		ContentType: aws.String(contentType),
		Metadata: map[string]string{
			"source-url":      file.URL,
			"source-provider": providerKey,
		},
	})
	if err != nil {
		return fmt.Errorf("upload %s: %w", key, err)
	}

	a.logger.Debug("archived provider file",
		logging.WithField("provider", providerKey),
		logging.WithField("key", key),
		logging.WithField("bytes", len(body)))
	return nil
}

func (a *S3Archiver) download(ctx context.Context, fileURL string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("invalid file url %q: %w", fileURL, err)
	}
	req.Header.Set("User-Agent", "partscout/1.0")

	resp, err := a.http.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", fileURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("fetch %s: status %d", fileURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFileSize+1))
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", fileURL, err)
	}
	if len(body) > maxFileSize {
		return nil, "", fmt.Errorf("file %s exceeds %d bytes", fileURL, maxFileSize)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	return body, contentType, nil
}

// objectKey builds "<prefix>/<provider>/<url-hash>/<filename>". The hash makes
// keys stable per source URL; the filename keeps downloads human-readable.
func (a *S3Archiver) objectKey(providerKey string, file models.File) string {
	sum := sha256.Sum256([]byte(file.URL))
	hash := hex.EncodeToString(sum[:])[:16]

	name := file.Name
	if name == "" {
		if u, err := url.Parse(file.URL); err == nil {
			name = path.Base(u.Path)
		}
	}
	if name == "" || name == "." || name == "/" {
		name = "file"
	}
	name = sanitizeName(name)

	parts := []string{providerKey, hash, name}
	if a.prefix != "" {
		parts = append([]string{a.prefix}, parts...)
	}
	return strings.Join(parts, "/")
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.' || r == '-' || r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
