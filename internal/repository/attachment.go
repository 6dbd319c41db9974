package repository

import (
	"context"

	"huddle/internal/models"

	"gorm.io/gorm"
)

// AttachmentRepository stores uploaded file metadata.
type AttachmentRepository interface {
	Create(ctx context.Context, attachment *models.Attachment) error
	GetByID(ctx context.Context, id uint) (*models.Attachment, error)
	SetOwner(ctx context.Context, id uint, ownerType models.AttachmentOwnerType) error
}

type attachmentRepository struct {
	db *gorm.DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *gorm.DB) AttachmentRepository {
	return &attachmentRepository{db: db}
}

func (r *attachmentRepository) Create(ctx context.Context, attachment *models.Attachment) error {
	if err := r.db.WithContext(ctx).Create(attachment).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *attachmentRepository) GetByID(ctx context.Context, id uint) (*models.Attachment, error) {
	var attachment models.Attachment
	if err := r.db.WithContext(ctx).First(&attachment, id).Error; err != nil {
		return nil, findErr(err, "Attachment", id)
	}
	return &attachment, nil
}

// SetOwner records what the upload ended up attached to.
func (r *attachmentRepository) SetOwner(ctx context.Context, id uint, ownerType models.AttachmentOwnerType) error {
	if err := r.db.WithContext(ctx).
		Model(&models.Attachment{}).
		Where("id = ?", id).
		Update("owner_type", ownerType).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}
