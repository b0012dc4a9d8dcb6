package upload

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// KeyPrefix is the object prefix under which recordings are stored.
const KeyPrefix = "recordings"

// S3Config configures an S3Destination.
type S3Config struct {
	Bucket          string
	Region          string
	Endpoint        string // optional, for S3-compatible stores
	AccessKeyID     string
	SecretAccessKey string
	PublicBaseURL   string // optional, overrides the derived public URL
	PresignExpiry   time.Duration
}

// S3Destination hands out presigned PUT URLs for an S3 bucket and writes to
// them over plain HTTP.
type S3Destination struct {
	cfg     S3Config
	presign *s3.PresignClient
	http    *http.Client
	now     func() time.Time
}

// NewS3Destination builds the S3 client from cfg. Static credentials are used
// when both keys are set, otherwise the default AWS credential chain.
func NewS3Destination(ctx context.Context, cfg S3Config, httpClient *http.Client) (*S3Destination, error) {
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("s3 bucket is required")
	}

	if cfg.PresignExpiry <= 0 {
		cfg.PresignExpiry = 15 * time.Minute
	}

	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Minute}
	}

	opts := []func(*config.LoadOptions) error{
		config.WithRegion(cfg.Region),
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Destination{
		cfg:     cfg,
		presign: s3.NewPresignClient(client),
		http:    httpClient,
		now:     time.Now,
	}, nil
}

// RequestWriteLocation presigns a PUT for a new owner-scoped object key.
func (d *S3Destination) RequestWriteLocation(ctx context.Context, ownerID, fileName string) (*WriteLocation, error) {
	key := ObjectKey(ownerID, fileName, d.now())

	req, err := d.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(d.cfg.Bucket),
		Key:    aws.String(key),
	}, func(o *s3.PresignOptions) {
		o.Expires = d.cfg.PresignExpiry
	})
	if err != nil {
		return nil, fmt.Errorf("presign put object: %w", err)
	}

	return &WriteLocation{
		WriteURL:  req.URL,
		PublicURL: d.PublicURL(key),
		Key:       key,
		ExpiresAt: d.now().Add(d.cfg.PresignExpiry),
	}, nil
}

// WriteBytes PUTs data to a presigned URL.
func (d *S3Destination) WriteBytes(ctx context.Context, writeURL string, data []byte, contentType string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, writeURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build put request: %w", err)
	}

	req.ContentLength = int64(len(data))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := d.http.Do(req)
	if err != nil {
		return fmt.Errorf("put object: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("put object: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return nil
}

// PublicURL returns the stable URL of key.
func (d *S3Destination) PublicURL(key string) string {
	escaped := (&url.URL{Path: key}).EscapedPath()

	switch {
	case d.cfg.PublicBaseURL != "":
		return strings.TrimRight(d.cfg.PublicBaseURL, "/") + "/" + escaped
	case d.cfg.Endpoint != "":
		return strings.TrimRight(d.cfg.Endpoint, "/") + "/" + d.cfg.Bucket + "/" + escaped
	default:
		return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", d.cfg.Bucket, d.cfg.Region, escaped)
	}
}

// ObjectKey builds recordings/<owner>/<unixnano>-<file>. The owner prefix and
// nanosecond timestamp keep keys from colliding across owners.
func ObjectKey(ownerID, fileName string, at time.Time) string {
	return path.Join(KeyPrefix, sanitizeSegment(ownerID), fmt.Sprintf("%d-%s", at.UnixNano(), sanitizeSegment(fileName)))
}

func sanitizeSegment(s string) string {
	s = strings.TrimSpace(s)
	s = strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(s)

	if s == "" {
		return "audio"
	}

	return s
}
