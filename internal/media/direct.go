package media

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"

	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

// Uploader is the server-side write path used when the client sends bytes
// directly instead of going through a presigned slot.
type Uploader interface {
	Upload(ctx context.Context, key, contentType string, data []byte) error
	ObjectURL(key string) string
}

// DirectUpload stores bytes on behalf of the client. The same dedup rule
// applies: if the conversation already holds this content, no second object
// is written and the caller gets a row sharing the existing storage key.
func (g *Gate) DirectUpload(ctx context.Context, uploader Uploader, userID, conversationID, fileName, fileType string, data []byte) (*models.Media, error) {
	if err := g.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	sum := md5.Sum(data)
	contentHash := hex.EncodeToString(sum[:])

	if existing, err := g.media.FindByHash(ctx, conversationID, contentHash); err == nil {
		return g.AttachDuplicate(ctx, userID, conversationID, existing.ID, fileName)
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	key := StorageKey(conversationID, fileType, contentHash, fileName)
	if err := uploader.Upload(ctx, key, fileType, data); err != nil {
		return nil, err
	}

	m := &models.Media{
		ID:             uuid.New().String(),
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       fileName,
		FileType:       fileType,
		FileSize:       int64(len(data)),
		ContentHash:    contentHash,
		StorageKey:     key,
		StorageURL:     uploader.ObjectURL(key),
		CreatedAt:      g.now().UTC(),
	}

	if strings.HasPrefix(fileType, "image/") {
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
			m.Width = cfg.Width
			m.Height = cfg.Height
		}
		thumbKey := key + "_thumb.jpg"
		if thumb, err := makeThumbnail(data); err == nil {
			if err := uploader.Upload(ctx, thumbKey, "image/jpeg", thumb); err == nil {
				m.ThumbnailURL = uploader.ObjectURL(thumbKey)
			}
		}
	}

	if err := g.media.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func makeThumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	thumb := imaging.Resize(img, 320, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumb, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
