package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF decoder
	_ "image/jpeg" // Register JPEG decoder
	_ "image/png"  // Register PNG decoder
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"huddle/internal/config"
	"huddle/internal/middleware"
	"huddle/internal/models"
	"huddle/internal/repository"

	"github.com/chai2010/webp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAttachmentDir         = "/tmp/huddle/attachments"
	DefaultAttachmentMaxUploadMB = 10
	ThumbnailMaxSize             = 320
	ThumbnailQuality             = 70
)

// UploadInput is one uploaded file.
type UploadInput struct {
	UserID      uint
	Filename    string
	ContentType string
	Content     []byte
}

// AttachmentService stores uploads on disk and thumbnails images.
type AttachmentService struct {
	repo               repository.AttachmentRepository
	dir                string
	maxUploadSizeBytes int64
}

// NewAttachmentService returns a new AttachmentService.
func NewAttachmentService(repo repository.AttachmentRepository, cfg *config.Config) *AttachmentService {
	dir := DefaultAttachmentDir
	maxUploadSizeMB := DefaultAttachmentMaxUploadMB

	if cfg != nil {
		if cfg.AttachmentDir != "" {
			dir = cfg.AttachmentDir
		}
		if cfg.AttachmentMaxUploadMB > 0 {
			maxUploadSizeMB = cfg.AttachmentMaxUploadMB
		}
	}

	return &AttachmentService{
		repo:               repo,
		dir:                dir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
	}
}

// Upload stores the file unattached. Images get a WebP thumbnail no larger than
// ThumbnailMaxSize on either side.
func (s *AttachmentService) Upload(ctx context.Context, in UploadInput) (*models.Attachment, error) {
	if in.UserID == 0 {
		return nil, models.NewValidationError("Invalid user")
	}
	if len(in.Content) == 0 {
		return nil, models.NewValidationError("No file uploaded")
	}
	if int64(len(in.Content)) > s.maxUploadSizeBytes {
		return nil, models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detected := normalizeContentType(http.DetectContentType(in.Content))
	hash := contentHash(in.UserID, in.Content)

	record := &models.Attachment{
		OwnerID:      in.UserID,
		OriginalName: filepath.Base(in.Filename),
		ContentType:  detected,
		Size:         int64(len(in.Content)),
		Hash:         hash,
		Path:         filepath.ToSlash(filepath.Join(hash, "original"+extensionFor(detected, in.Filename))),
	}

	written := []string{filepath.Join(s.dir, record.Path)}
	if err := writeBytesToFile(written[0], in.Content); err != nil {
		return nil, models.NewInternalError(err)
	}

	if isAllowedImageMIME(detected) {
		thumb, w, h, err := thumbnail(in.Content)
		if err != nil {
			middleware.Logger.WarnContext(ctx, "image thumbnail failed", "hash", hash, "error", err)
		} else {
			record.ThumbPath = filepath.ToSlash(filepath.Join(hash, "thumb.webp"))
			record.Width, record.Height = w, h
			thumbAbs := filepath.Join(s.dir, record.ThumbPath)
			if err := writeBytesToFile(thumbAbs, thumb); err != nil {
				cleanupFiles(written)
				return nil, models.NewInternalError(err)
			}
			written = append(written, thumbAbs)
		}
	}

	if err := s.repo.Create(ctx, record); err != nil {
		cleanupFiles(written)
		return nil, err
	}
	return record, nil
}

// Get returns an attachment the viewer may see: their own uploads and anything
// already attached to a post or friend request.
func (s *AttachmentService) Get(ctx context.Context, viewerID, id uint) (*models.Attachment, error) {
	attachment, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if attachment.OwnerID != viewerID && attachment.OwnerType == "" {
		return nil, models.NewNotFoundError("Attachment", id)
	}
	return attachment, nil
}

// FilePath resolves the file to serve, preferring the thumbnail when asked and present.
func (s *AttachmentService) FilePath(attachment *models.Attachment, thumb bool) (string, string) {
	if thumb && attachment.ThumbPath != "" {
		return filepath.Join(s.dir, filepath.FromSlash(attachment.ThumbPath)), "image/webp"
	}
	return filepath.Join(s.dir, filepath.FromSlash(attachment.Path)), attachment.ContentType
}

func thumbnail(content []byte) ([]byte, int, int, error) {
	decoded, _, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, 0, 0, err
	}
	b := decoded.Bounds()
	resized := resizeToFit(decoded, ThumbnailMaxSize, ThumbnailMaxSize)

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, resized, &webp.Options{Quality: ThumbnailQuality}); err != nil {
		return nil, 0, 0, err
	}
	return buf.Bytes(), b.Dx(), b.Dy(), nil
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scale := float64(maxWidth) / float64(w)
	if scaleH := float64(maxHeight) / float64(h); scaleH < scale {
		scale = scaleH
	}
	newW := max(int(float64(w)*scale), 1)
	newH := max(int(float64(h)*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

func extensionFor(contentType, filename string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	case "application/pdf":
		return ".pdf"
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) > 1 && len(ext) <= 8 {
		return ext
	}
	return ".bin"
}

func contentHash(userID uint, content []byte) string {
	h := sha256.New()
	_, _ = fmt.Fprintf(h, "%d:", userID)
	h.Write(content)
	return hex.EncodeToString(h.Sum(nil))
}

func writeBytesToFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

func cleanupFiles(paths []string) {
	for _, p := range paths {
		_ = os.Remove(p)
	}
}
