package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"contaportal/internal/config"
	"contaportal/internal/domain"
	"contaportal/internal/port"
)

const referenceScheme = "s3://"

// FileUpload is an uploaded file handle as received from the presentation layer.
type FileUpload struct {
	OwnerUserID uuid.UUID
	DocumentID  uuid.UUID
	FileName    string
	Size        int64
	Body        io.Reader
}

// FileService turns uploaded files into stable references the core stores
// as opaque strings.
type FileService interface {
	Store(ctx context.Context, upload FileUpload) (string, error)
	DownloadURL(ctx context.Context, reference string) (string, error)
	Remove(ctx context.Context, reference string) error
}

type fileService struct {
	storage port.ObjectStorage
	cfg     *config.S3Config
}

// NewFileService creates a new FileService implementation.
func NewFileService(storage port.ObjectStorage, cfg *config.S3Config) FileService {
	return &fileService{
		storage: storage,
		cfg:     cfg,
	}
}

func (s *fileService) Store(ctx context.Context, upload FileUpload) (string, error) {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(upload.FileName), "."))
	fileType, ok := domain.AllowedExtensions[ext]
	if !ok {
		return "", domain.ErrUnsupportedFileType
	}

	maxBytes := s.cfg.MaxFileSizeMB * 1024 * 1024
	if upload.Size > maxBytes {
		return "", domain.ErrFileTooLarge
	}

	// Sniff the first 512 bytes, then stitch them back in front of the body.
	head := make([]byte, 512)
	n, err := io.ReadFull(upload.Body, head)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("reading file header: %w", err)
	}
	head = head[:n]
	detected := http.DetectContentType(head)
	if !contentTypeMatches(fileType, detected) {
		return "", domain.ErrUnsupportedFileType
	}

	key := fmt.Sprintf("users/%s/documents/%s/%s", upload.OwnerUserID, upload.DocumentID, filepath.Base(upload.FileName))
	contentType := domain.AllowedFileTypes[fileType]

	log.Info().
		Str("file", upload.FileName).
		Str("content_type", contentType).
		Int64("size", upload.Size).
		Str("owner", upload.OwnerUserID.String()).
		Msg("fileService.Store: uploading file")

	_, err = s.storage.Upload(ctx, port.UploadInput{
		Bucket:      s.cfg.Bucket,
		Key:         key,
		Body:        io.MultiReader(bytes.NewReader(head), upload.Body),
		ContentType: contentType,
		Size:        upload.Size,
		FileName:    filepath.Base(upload.FileName),
		Metadata: map[string]string{
			"owner-user-id": upload.OwnerUserID.String(),
			"document-id":   upload.DocumentID.String(),
		},
	})
	if err != nil {
		log.Error().Err(err).Str("key", key).Msg("fileService.Store: upload failed")
		return "", domain.ErrUploadFailed
	}
	return referenceScheme + s.cfg.Bucket + "/" + key, nil
}

func (s *fileService) DownloadURL(ctx context.Context, reference string) (string, error) {
	bucket, key, err := ParseFileReference(reference)
	if err != nil {
		return "", err
	}
	return s.storage.GetPresignedURL(ctx, bucket, key, s.cfg.PresignExpiry)
}

func (s *fileService) Remove(ctx context.Context, reference string) error {
	bucket, key, err := ParseFileReference(reference)
	if err != nil {
		return err
	}
	if err := s.storage.Delete(ctx, bucket, key); err != nil {
		return fmt.Errorf("deleting from storage: %w", err)
	}
	return nil
}

// ParseFileReference splits an s3://bucket/key reference.
func ParseFileReference(reference string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(reference, referenceScheme)
	if !ok {
		return "", "", fmt.Errorf("%w: file reference %q", domain.ErrValidation, reference)
	}
	bucket, key, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: file reference %q", domain.ErrValidation, reference)
	}
	return bucket, key, nil
}

// contentTypeMatches compares the sniffed type with the one implied by the
// extension. XML sniffs as text/xml with a charset suffix.
func contentTypeMatches(fileType domain.FileType, detected string) bool {
	expected := domain.AllowedFileTypes[fileType]
	if fileType == domain.FileTypeXML {
		return strings.HasPrefix(detected, "text/xml")
	}
	return detected == expected
}
