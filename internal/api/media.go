package api

import (
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/yourorg/pairchat/internal/media"
)

// readUploadFile drains the whole part; a bare Read may legally return short
// and would hash and store truncated bytes.
func readUploadFile(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

func (s *Server) checkDuplicate(c *fiber.Ctx) error {
	user := currentUser(c)
	var body struct {
		ContentHash string `json:"contentHash"`
	}
	if err := c.BodyParser(&body); err != nil || body.ContentHash == "" {
		return badRequest(c, "content hash is required")
	}
	existing, err := s.gate.CheckDuplicate(c.Context(), user.ID, c.Params("conversationId"), body.ContentHash)
	if err != nil {
		return s.mediaError(c, err)
	}
	if existing == nil {
		return c.JSON(fiber.Map{"isDuplicate": false})
	}
	return c.JSON(fiber.Map{"isDuplicate": true, "existingMedia": existing})
}

func (s *Server) reserveUploadSlot(c *fiber.Ctx) error {
	user := currentUser(c)
	var body struct {
		FileName    string `json:"fileName"`
		FileType    string `json:"fileType"`
		ContentHash string `json:"contentHash"`
	}
	if err := c.BodyParser(&body); err != nil || body.FileName == "" || body.FileType == "" || body.ContentHash == "" {
		return badRequest(c, "fileName, fileType and contentHash are required")
	}
	slot, err := s.gate.ReserveUploadSlot(c.Context(), user.ID, c.Params("conversationId"), body.FileName, body.FileType, body.ContentHash)
	if err != nil {
		var dup *media.DuplicateError
		if errors.As(err, &dup) {
			// conflict: point the caller at the winner instead of failing flat
			return c.Status(fiber.StatusConflict).JSON(fiber.Map{
				"isDuplicate":   true,
				"existingMedia": dup.Existing,
			})
		}
		return s.mediaError(c, err)
	}
	return c.JSON(slot)
}

func (s *Server) attachDuplicate(c *fiber.Ctx) error {
	user := currentUser(c)
	var body struct {
		ExistingMediaID string `json:"existingMediaId"`
		FileName        string `json:"fileName"`
	}
	if err := c.BodyParser(&body); err != nil || body.ExistingMediaID == "" {
		return badRequest(c, "existing media ID is required")
	}
	m, err := s.gate.AttachDuplicate(c.Context(), user.ID, c.Params("conversationId"), body.ExistingMediaID, body.FileName)
	if err != nil {
		return s.mediaError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) confirmUpload(c *fiber.Ctx) error {
	user := currentUser(c)
	var body struct {
		MediaID      string  `json:"mediaId"`
		FileSize     int64   `json:"fileSize"`
		Width        int     `json:"width"`
		Height       int     `json:"height"`
		Duration     float64 `json:"duration"`
		ThumbnailURL string  `json:"thumbnailUrl"`
	}
	if err := c.BodyParser(&body); err != nil || body.MediaID == "" {
		return badRequest(c, "media ID is required")
	}
	m, err := s.gate.ConfirmUpload(c.Context(), user.ID, body.MediaID, body.FileSize, body.Width, body.Height, body.Duration, body.ThumbnailURL)
	if err != nil {
		return s.mediaError(c, err)
	}
	return c.JSON(m)
}

func (s *Server) cancelUpload(c *fiber.Ctx) error {
	user := currentUser(c)
	if err := s.gate.CancelUpload(c.Context(), user.ID, c.Params("mediaId")); err != nil {
		return s.mediaError(c, err)
	}
	return c.JSON(fiber.Map{"message": "upload cancelled"})
}

func (s *Server) downloadURL(c *fiber.Ctx) error {
	key, err := url.PathUnescape(c.Params("key"))
	if err != nil || key == "" {
		return badRequest(c, "invalid key")
	}
	signed, err := s.blobs.PresignGet(c.Context(), key, s.cfg.DownloadTTL)
	if err != nil {
		return internalError(c, "presign failed")
	}
	return c.JSON(fiber.Map{"downloadUrl": signed})
}

func (s *Server) directUpload(c *fiber.Ctx) error {
	user := currentUser(c)
	conversationID := c.FormValue("conversationId")
	if conversationID == "" {
		return badRequest(c, "conversationId is required")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return badRequest(c, "no file uploaded")
	}
	data, err := readUploadFile(fh)
	if err != nil {
		return internalError(c, "cannot read file")
	}
	contentType := fh.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	m, err := s.gate.DirectUpload(c.Context(), s.blobs, user.ID, conversationID, fh.Filename, contentType, data)
	if err != nil {
		return s.mediaError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(m)
}

func (s *Server) mediaError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, media.ErrNotParticipant):
		// same shape as a missing conversation; membership is not leaked
		return notFound(c, "conversation not found")
	case errors.Is(err, media.ErrNotFound):
		return notFound(c, "media not found")
	case errors.Is(err, media.ErrNotOwner):
		return notFound(c, "media not found")
	case errors.Is(err, media.ErrAttached):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": "media already attached to a message"})
	case errors.Is(err, media.ErrInvalidHash):
		return badRequest(c, err.Error())
	default:
		s.log.Warnw("media operation failed", "err", err)
		return internalError(c, "operation failed")
	}
}
