package server

import (
	"io"
	"mime/multipart"

	"huddle/internal/models"
	"huddle/internal/service"

	"github.com/gofiber/fiber/v2"
)

// UploadAttachment handles POST /api/attachments (multipart field "file")
// @Summary Upload an attachment
// @Description Stores the file unattached. Images also get a WebP thumbnail.
// @Tags attachments
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param file formData file true "File"
// @Success 201 {object} models.Envelope{data=models.Attachment}
// @Failure 400 {object} models.ErrorResponse
// @Router /attachments [post]
func (s *Server) UploadAttachment(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return fail(c, models.NewValidationError("No file uploaded"))
	}

	attachment, err := s.storeUpload(c, file)
	if err != nil {
		return fail(c, err)
	}
	return respondCreated(c, "Attachment uploaded", attachment)
}

// storeUpload saves a multipart file as an unattached upload owned by the caller.
func (s *Server) storeUpload(c *fiber.Ctx, file *multipart.FileHeader) (*models.Attachment, error) {
	src, err := file.Open()
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}
	defer func() { _ = src.Close() }()

	content, err := io.ReadAll(src)
	if err != nil {
		return nil, models.NewValidationError("Unable to read uploaded file")
	}

	return s.attachmentService.Upload(c.UserContext(), service.UploadInput{
		UserID:      currentUserID(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
}

// GetAttachment handles GET /api/attachments/:id?thumb=true
func (s *Server) GetAttachment(c *fiber.Ctx) error {
	id, err := s.parseID(c, "id")
	if err != nil {
		return nil
	}

	attachment, err := s.attachmentService.Get(c.UserContext(), currentUserID(c), id)
	if err != nil {
		return fail(c, err)
	}

	path, contentType := s.attachmentService.FilePath(attachment, c.QueryBool("thumb", false))
	if err := c.SendFile(path); err != nil {
		return fail(c, models.NewNotFoundError("Attachment", id))
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderCacheControl, "private, max-age=86400")
	return nil
}
