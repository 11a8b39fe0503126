package archive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"path"
	"strconv"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"

	"github.com/acasal/costs-collector/internal/common"
	"github.com/acasal/costs-collector/internal/entity"
)

// S3Config holds configuration for the S3 archive backend.
type S3Config struct {
	Bucket   string
	Region   string
	Prefix   string
	Endpoint string // optional, for S3-compatible storage
	Kind     string // backend tag, defaults to "secondary"
}

// S3Archive stores invoice documents in an S3 bucket under
// <prefix>/<year>/<concept>/<file>. Archive IDs are object keys.
type S3Archive struct {
	client *s3.S3
	cfg    S3Config
	logger *slog.Logger
}

func NewS3Archive(cfg S3Config, logger *slog.Logger) (*S3Archive, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Bucket == "" {
		return nil, common.ValidationErrorf("s3 bucket is not configured")
	}
	if cfg.Kind == "" {
		cfg.Kind = "secondary"
	}

	awsCfg := &aws.Config{Region: aws.String(cfg.Region)}
	if cfg.Endpoint != "" {
		awsCfg.Endpoint = aws.String(cfg.Endpoint)
		awsCfg.S3ForcePathStyle = aws.Bool(true)
	}
	sess, err := session.NewSession(awsCfg)
	if err != nil {
		return nil, fmt.Errorf("%w: s3 session: %v", common.ErrStorage, err)
	}

	return &S3Archive{client: s3.New(sess), cfg: cfg, logger: logger}, nil
}

func (a *S3Archive) Kind() string { return a.cfg.Kind }

func (a *S3Archive) Archive(ctx context.Context, inv *entity.Invoice) ([]entity.ArchiveResult, error) {
	key := path.Join(a.cfg.Prefix, strconv.Itoa(inv.InvoiceDate.Year()), sanitize(inv.Concept), archiveFileName(inv))

	_, err := a.client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(a.cfg.Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(inv.Content),
		ContentType:   aws.String(inv.ContentType),
		ContentLength: aws.Int64(int64(len(inv.Content))),
		Metadata: map[string]*string{
			"sha256": aws.String(inv.SHA256Hex),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("%w: put s3://%s/%s: %v", common.ErrStorage, a.cfg.Bucket, key, err)
	}

	res, err := entity.NewArchiveSuccess(key, a.cfg.Kind, a.objectURL(key))
	if err != nil {
		return nil, err
	}

	a.logger.Debug("archive.s3.ok", "bucket", a.cfg.Bucket, "key", key, "bytes", len(inv.Content))
	return []entity.ArchiveResult{res}, nil
}

func (a *S3Archive) InvoiceURL(ctx context.Context, archiveID string) (string, error) {
	_, err := a.client.HeadObjectWithContext(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(a.cfg.Bucket),
		Key:    aws.String(archiveID),
	})
	if err != nil {
		return "", fmt.Errorf("%w: head s3://%s/%s: %v", common.ErrStorage, a.cfg.Bucket, archiveID, err)
	}
	return a.objectURL(archiveID), nil
}

func (a *S3Archive) objectURL(key string) string {
	if a.cfg.Endpoint != "" {
		return fmt.Sprintf("%s/%s/%s", a.cfg.Endpoint, a.cfg.Bucket, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", a.cfg.Bucket, a.cfg.Region, key)
}
