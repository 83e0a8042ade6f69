package uploads

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// S3Config locates the bucket uploads are kept in. When AccessKey is empty
// the default AWS credential chain is used.
type S3Config struct {
	Region    string
	Bucket    string
	Prefix    string
	AccessKey string
	SecretKey string
	TempDir   string // where downloads are staged; os.TempDir() when empty
}

// S3Store keeps uploads as objects in an S3 bucket. References are object keys.
type S3Store struct {
	client     *s3.Client
	uploader   *manager.Uploader
	downloader *manager.Downloader
	bucket     string
	prefix     string
	tempDir    string
	logger     *slog.Logger
}

var _ Store = (*S3Store)(nil)

// NewS3Store connects to S3 with cfg.
func NewS3Store(ctx context.Context, cfg S3Config) (*S3Store, error) {
	if cfg.Region == "" {
		return nil, fmt.Errorf("AWS_REGION not set")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("S3 bucket name not set")
	}

	loadOpts := []func(*config.LoadOptions) error{config.WithRegion(cfg.Region)}
	if cfg.AccessKey != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg)
	return &S3Store{
		client:     client,
		uploader:   manager.NewUploader(client),
		downloader: manager.NewDownloader(client),
		bucket:     cfg.Bucket,
		prefix:     cfg.Prefix,
		tempDir:    cfg.TempDir,
		logger:     slog.Default().With("component", "s3-uploads"),
	}, nil
}

// Save streams r to the bucket. The uploader reads the body in parts, so
// the whole upload is never held in memory.
func (s *S3Store) Save(ctx context.Context, jobID, filename string, r io.Reader) (string, error) {
	key := s.prefix + objectName(jobID, filename)

	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(key),
		Body:   r,
	})
	if err != nil {
		return "", fmt.Errorf("s3 upload failed: %w", err)
	}

	s.logger.Debug("saved upload", "jobID", jobID, "key", key)
	return key, nil
}

// Open downloads the object to a temporary file that release removes.
func (s *S3Store) Open(ctx context.Context, ref string) (string, func(), error) {
	f, err := os.CreateTemp(s.tempDir, "ragline-*"+filepath.Ext(ref))
	if err != nil {
		return "", nil, err
	}
	path := f.Name()
	release := func() { _ = os.Remove(path) }

	ctxGet, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	_, err = s.downloader.Download(ctxGet, f, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if closeErr := f.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		release()
		var missing *types.NoSuchKey
		if errors.As(err, &missing) {
			return "", nil, fmt.Errorf("%w: %s", ErrUploadNotFound, ref)
		}
		return "", nil, fmt.Errorf("s3 get failed: %w", err)
	}

	return path, release, nil
}

func (s *S3Store) Delete(ctx context.Context, ref string) error {
	ctxDel, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	_, err := s.client.DeleteObject(ctxDel, &s3.DeleteObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref),
	})
	if err != nil {
		return fmt.Errorf("s3 delete failed: %w", err)
	}
	return nil
}
