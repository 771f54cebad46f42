package services

import (
	"context"
	"fmt"
	"io"

	"murmur/app/models"
	"murmur/app/repositories"

	"github.com/charmbracelet/log"
)

// AttachmentStorage stores and removes attachment files.
type AttachmentStorage interface {
	AttachmentFiles
	SaveAttachment(r io.Reader) (name string, contentType string, err error)
}

// AttachmentService accepts uploads. New attachments start unlinked and are
// reaped unless a post claims them within the retention window.
type AttachmentService struct {
	attachments repositories.AttachmentRepository
	files       AttachmentStorage
	logger      *log.Logger
}

func NewAttachmentService(attachments repositories.AttachmentRepository, files AttachmentStorage, logger *log.Logger) *AttachmentService {
	if logger == nil {
		logger = log.Default()
	}
	return &AttachmentService{attachments: attachments, files: files, logger: logger}
}

// Upload saves the content of r and records it as an unlinked attachment.
func (s *AttachmentService) Upload(ctx context.Context, r io.Reader) (*models.Attachment, error) {
	name, contentType, err := s.files.SaveAttachment(r)
	if err != nil {
		return nil, err
	}
	attachment := &models.Attachment{Name: name, ContentType: contentType}
	if err := s.attachments.Create(ctx, attachment); err != nil {
		if rmErr := s.files.DeleteAttachment(name); rmErr != nil {
			s.logger.Warn("orphaned attachment file", "name", name, "err", rmErr)
		}
		return nil, fmt.Errorf("create attachment: %w", err)
	}
	return attachment, nil
}
