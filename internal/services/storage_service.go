// internal/services/storage_service.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/credentials"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Makeis02/landingmaj-sub003/internal/config"
)

var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrFileTypeInvalid = errors.New("file type not allowed")
)

const maxProductImageSize = 5 * 1024 * 1024

var productImageTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
	".gif":  "image/gif",
}

type UploadResult struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	Size     int64  `json:"size"`
	MimeType string `json:"mime_type"`
}

// StorageService stores product images in S3, or on local disk when no AWS
// credentials are configured.
type StorageService struct {
	s3Client  *s3.S3
	aws       config.AWSConfig
	localDir  string
	publicURL string
	log       *logrus.Entry
}

func NewStorageService(cfg *config.Config) (*StorageService, error) {
	svc := &StorageService{
		aws:       cfg.AWS,
		localDir:  "uploads",
		publicURL: fmt.Sprintf("http://%s:%s/uploads", cfg.Server.Host, cfg.Server.Port),
		log:       logrus.WithField("component", "storage"),
	}
	if cfg.AWS.AccessKeyID == "" {
		return svc, nil
	}

	sess, err := session.NewSession(&aws.Config{
		Region: aws.String(cfg.AWS.Region),
		Credentials: credentials.NewStaticCredentials(
			cfg.AWS.AccessKeyID,
			cfg.AWS.SecretAccessKey,
			"",
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create AWS session: %w", err)
	}

	svc.s3Client = s3.New(sess)
	return svc, nil
}

// NewLocalStorageService stores files under dir and serves them from publicURL.
func NewLocalStorageService(dir, publicURL string) *StorageService {
	return &StorageService{
		localDir:  dir,
		publicURL: strings.TrimRight(publicURL, "/"),
		log:       logrus.WithField("component", "storage"),
	}
}

// LocalDir is the directory served under /uploads, empty when files go to S3.
func (s *StorageService) LocalDir() string {
	if s.s3Client != nil {
		return ""
	}
	return s.localDir
}

// UploadProductImage checks size, extension and content of an image and
// stores it under products/{productID}/.
func (s *StorageService) UploadProductImage(ctx context.Context, productID string, file multipart.File, header *multipart.FileHeader) (*UploadResult, error) {
	if header.Size > maxProductImageSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, header.Size, maxProductImageSize)
	}

	ext := strings.ToLower(filepath.Ext(header.Filename))
	mimeType, ok := productImageTypes[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileTypeInvalid, ext)
	}

	body, err := io.ReadAll(io.LimitReader(file, maxProductImageSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	if len(body) > maxProductImageSize {
		return nil, fmt.Errorf("%w: exceeds %d bytes", ErrFileTooLarge, maxProductImageSize)
	}
	if sniffed := http.DetectContentType(body); !strings.HasPrefix(sniffed, "image/") {
		return nil, fmt.Errorf("%w: content is %s", ErrFileTypeInvalid, sniffed)
	}

	key := generateFileName(header.Filename, "products/"+productID)
	if s.s3Client != nil {
		return s.uploadToS3(ctx, body, key, mimeType)
	}
	return s.uploadToLocal(body, key, mimeType)
}

func (s *StorageService) uploadToS3(ctx context.Context, body []byte, key, contentType string) (*UploadResult, error) {
	_, err := s.s3Client.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(s.aws.S3Bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(body),
		ContentType:   aws.String(contentType),
		ContentLength: aws.Int64(int64(len(body))),
		ACL:           aws.String("public-read"),
		CacheControl:  aws.String("public, max-age=31536000"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upload to S3: %w", err)
	}

	return &UploadResult{URL: s.getS3URL(key), Key: key, Size: int64(len(body)), MimeType: contentType}, nil
}

func (s *StorageService) uploadToLocal(body []byte, key, contentType string) (*UploadResult, error) {
	path := filepath.Join(s.localDir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload directory: %w", err)
	}
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write file: %w", err)
	}

	s.log.WithField("path", path).Debug("Image stored locally")
	return &UploadResult{URL: s.publicURL + "/" + key, Key: key, Size: int64(len(body)), MimeType: contentType}, nil
}

func (s *StorageService) DeleteFile(ctx context.Context, key string) error {
	if s.s3Client == nil {
		err := os.Remove(filepath.Join(s.localDir, filepath.FromSlash(key)))
		if err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to delete file: %w", err)
		}
		return nil
	}

	_, err := s.s3Client.DeleteObjectWithContext(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.aws.S3Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("failed to delete file from S3: %w", err)
	}
	return nil
}

func generateFileName(originalName, folder string) string {
	ext := strings.ToLower(filepath.Ext(originalName))
	timestamp := time.Now().Format("20060102")
	filename := fmt.Sprintf("%s_%s%s", timestamp, uuid.New().String()[:8], ext)

	if folder != "" {
		return folder + "/" + filename
	}
	return filename
}

func (s *StorageService) getS3URL(key string) string {
	if s.aws.CloudFrontURL != "" {
		return fmt.Sprintf("%s/%s", s.aws.CloudFrontURL, key)
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.aws.S3Bucket, s.aws.Region, key)
}
