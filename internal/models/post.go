package models

import (
	"time"

	"gorm.io/gorm"
)

// AttachmentOwnerType names the record an upload belongs to.
type AttachmentOwnerType string

const (
	AttachmentOwnerFriendship AttachmentOwnerType = "friendship"
	AttachmentOwnerPost       AttachmentOwnerType = "post"
)

// Attachment is an uploaded file. Images also get a WebP thumbnail.
type Attachment struct {
	ID           uint                `gorm:"primaryKey" json:"id"`
	OwnerID      uint                `gorm:"not null;index" json:"owner_id"`
	OwnerType    AttachmentOwnerType `gorm:"type:varchar(20)" json:"owner_type"`
	OriginalName string              `gorm:"size:255" json:"original_name"`
	ContentType  string              `gorm:"size:100;not null" json:"content_type"`
	Size         int64               `gorm:"not null" json:"size"`
	Hash         string              `gorm:"size:64;not null;index" json:"hash"`
	Path         string              `gorm:"size:512;not null" json:"path"`
	ThumbPath    string              `gorm:"size:512" json:"thumb_path,omitempty"`
	Width        int                 `json:"width,omitempty"`
	Height       int                 `json:"height,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
}

// IsImage reports whether the stored file was recognised as an image.
func (a *Attachment) IsImage() bool {
	return a.ThumbPath != ""
}

// Post is a short status update, optionally with an attachment.
type Post struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	UserID       uint           `gorm:"not null;index" json:"user_id"`
	User         *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content      string         `gorm:"type:text;not null" json:"content"`
	AttachmentID *uint          `json:"attachment_id,omitempty"`
	Attachment   *Attachment    `gorm:"foreignKey:AttachmentID" json:"attachment,omitempty"`
	CreatedAt    time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"-"`
}
