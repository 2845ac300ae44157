package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/iara-orders/orders-api/config"
	"github.com/iara-orders/orders-api/utils"
	"github.com/rs/zerolog/log"
)

// ErrExportNotFound is returned when a stored export does not exist
var ErrExportNotFound = errors.New("export file not found")

// ExportStorage keeps export and backup files somewhere durable
type ExportStorage interface {
	// Save stores content under name and returns where it ended up
	Save(ctx context.Context, name string, content []byte) (string, error)

	// Load reads a previously saved file
	Load(ctx context.Context, name string) ([]byte, error)
}

var exportStorageInstance ExportStorage

// InitExportStorage builds the storage backend selected by cfg
func InitExportStorage(ctx context.Context, cfg *config.Config) (ExportStorage, error) {
	switch cfg.ExportStorage {
	case config.ExportStorageS3:
		storage, err := NewS3ExportStorage(ctx, cfg)
		if err != nil {
			return nil, err
		}
		exportStorageInstance = storage
	default:
		exportStorageInstance = NewLocalExportStorage(cfg.ExportDir)
	}
	return exportStorageInstance, nil
}

// GetExportStorage returns the initialized export storage instance
func GetExportStorage() ExportStorage {
	return exportStorageInstance
}

// SetExportStorage sets the export storage instance (primarily for testing)
func SetExportStorage(storage ExportStorage) {
	exportStorageInstance = storage
}

// LocalExportStorage writes export files into a directory
type LocalExportStorage struct {
	dir string
}

// NewLocalExportStorage stores files under dir
func NewLocalExportStorage(dir string) *LocalExportStorage {
	return &LocalExportStorage{dir: dir}
}

func (s *LocalExportStorage) Save(_ context.Context, name string, content []byte) (string, error) {
	return utils.WriteExportFile(s.dir, name, content)
}

func (s *LocalExportStorage) Load(_ context.Context, name string) ([]byte, error) {
	content, err := utils.ReadExportFile(s.dir, name)
	var fileErr *utils.ExportFileError
	if errors.As(err, &fileErr) && fileErr.Code == "FILE_NOT_FOUND" {
		return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
	}
	return content, err
}

// s3API is the subset of the S3 client used for exports
type s3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
}

// S3ExportStorage keeps export files under exports/ in an S3 bucket
type S3ExportStorage struct {
	client s3API
	bucket string
}

// exportKeyPrefix is the folder export objects live under
const exportKeyPrefix = "exports/"

// NewS3ExportStorage loads AWS configuration and creates the S3 client
func NewS3ExportStorage(ctx context.Context, cfg *config.Config) (*S3ExportStorage, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.AWSRegion)}
	if cfg.AWSAccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AWSAccessKeyID,
			cfg.AWSSecretAccessKey,
			"",
		)))
	}

	awsConfig, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewS3ExportStorageWithClient(s3.NewFromConfig(awsConfig), cfg.AWSS3Bucket), nil
}

// NewS3ExportStorageWithClient wires an existing client
func NewS3ExportStorageWithClient(client s3API, bucket string) *S3ExportStorage {
	return &S3ExportStorage{client: client, bucket: bucket}
}

func (s *S3ExportStorage) Save(ctx context.Context, name string, content []byte) (string, error) {
	if err := utils.ValidateExportFilename(name); err != nil {
		return "", err
	}

	key := exportKeyPrefix + name
	_, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(content),
		ContentType: aws.String(contentTypeFor(name)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload export to S3: %w", err)
	}

	location := fmt.Sprintf("s3://%s/%s", s.bucket, key)
	log.Info().Str("location", location).Int("bytes", len(content)).Msg("export uploaded")
	return location, nil
}

func (s *S3ExportStorage) Load(ctx context.Context, name string) ([]byte, error) {
	if err := utils.ValidateExportFilename(name); err != nil {
		return nil, err
	}

	out, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(exportKeyPrefix + name),
	})
	if err != nil {
		var noKey *types.NoSuchKey
		if errors.As(err, &noKey) {
			return nil, fmt.Errorf("%w: %s", ErrExportNotFound, name)
		}
		return nil, fmt.Errorf("failed to download export from S3: %w", err)
	}
	defer func() {
		if closeErr := out.Body.Close(); closeErr != nil {
			log.Warn().Err(closeErr).Msg("failed to close S3 object body")
		}
	}()

	content, err := io.ReadAll(io.LimitReader(out.Body, utils.MaxExportFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read export from S3: %w", err)
	}
	if len(content) > utils.MaxExportFileSize {
		return nil, &utils.ExportFileError{Code: "FILE_TOO_LARGE", Message: "Export file exceeds maximum allowed size"}
	}
	return content, nil
}

func contentTypeFor(name string) string {
	switch {
	case hasExt(name, utils.ExportFormatJSON):
		return "application/json"
	case hasExt(name, utils.ExportFormatSQL):
		return "application/sql"
	default:
		return "application/octet-stream"
	}
}

func hasExt(name, ext string) bool {
	return len(name) > len(ext) && name[len(name)-len(ext)-1:] == "."+ext
}
