package media

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/metrics"
	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

var (
	ErrNotFound       = errors.New("media not found")
	ErrNotParticipant = errors.New("not a conversation participant")
	ErrNotOwner       = errors.New("media owned by another user")
	ErrAttached       = errors.New("media already attached to a message")
	ErrInvalidHash    = errors.New("content hash must be 32 hex characters")
)

// DuplicateError is the structured conflict surfaced when a reservation
// loses the race: it points the caller at the winning media row.
type DuplicateError struct {
	Existing *models.Media
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate content in conversation %s: media %s", e.Existing.ConversationID, e.Existing.ID)
}

type Store interface {
	Insert(ctx context.Context, m *models.Media) error
	Get(ctx context.Context, id string) (*models.Media, error)
	FindByHash(ctx context.Context, conversationID, contentHash string) (*models.Media, error)
	ConfirmUpload(ctx context.Context, id string, fileSize int64, width, height int, duration float64, thumbnailURL string) error
	Delete(ctx context.Context, id string) error
}

type ConversationStore interface {
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// BlobStore is the external object-store collaborator. Object existence is
// assumed, never verified, once an upload is confirmed.
type BlobStore interface {
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	ObjectURL(key string) string
}

// Gate decides, per (conversation, content hash), between issuing a new
// upload slot and reusing an already-stored object, so identical bytes are
// never written to the blob store twice for one conversation.
type Gate struct {
	media     Store
	convs     ConversationStore
	blobs     BlobStore
	uploadTTL time.Duration
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewGate(media Store, convs ConversationStore, blobs BlobStore, uploadTTL time.Duration, log *zap.SugaredLogger) *Gate {
	return &Gate{
		media:     media,
		convs:     convs,
		blobs:     blobs,
		uploadTTL: uploadTTL,
		log:       log,
		now:       time.Now,
	}
}

var hashPattern = regexp.MustCompile(`^[0-9a-f]{32}$`)

// CheckDuplicate returns the existing media row matching the hash in this
// conversation, or nil when the content is new.
func (g *Gate) CheckDuplicate(ctx context.Context, userID, conversationID, contentHash string) (*models.Media, error) {
	if err := g.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if !hashPattern.MatchString(contentHash) {
		return nil, ErrInvalidHash
	}
	m, err := g.media.FindByHash(ctx, conversationID, contentHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return m, nil
}

// UploadSlot is a reserved destination for new content: a placeholder media
// row plus a short-lived write credential for its storage key.
type UploadSlot struct {
	Media     *models.Media `json:"media"`
	UploadURL string        `json:"uploadUrl"`
	ExpiresIn int           `json:"expiresIn"`
}

// ReserveUploadSlot derives the deterministic storage key, re-checks for a
// duplicate (the client-side check may be stale by now), issues the write
// credential, and creates the fileSize=0 placeholder row. A duplicate found
// during the re-check is returned as *DuplicateError.
func (g *Gate) ReserveUploadSlot(ctx context.Context, userID, conversationID, fileName, fileType, contentHash string) (*UploadSlot, error) {
	if err := g.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if !hashPattern.MatchString(contentHash) {
		return nil, ErrInvalidHash
	}
	if existing, err := g.media.FindByHash(ctx, conversationID, contentHash); err == nil {
		metrics.MediaDedupHits.Inc()
		return nil, &DuplicateError{Existing: existing}
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, err
	}

	key := StorageKey(conversationID, fileType, contentHash, fileName)
	uploadURL, err := g.blobs.PresignPut(ctx, key, fileType, g.uploadTTL)
	if err != nil {
		return nil, err
	}
	m := &models.Media{
		ID:             uuid.New().String(),
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       fileName,
		FileType:       fileType,
		FileSize:       0,
		ContentHash:    contentHash,
		StorageKey:     key,
		StorageURL:     g.blobs.ObjectURL(key),
		CreatedAt:      g.now().UTC(),
	}
	if err := g.media.Insert(ctx, m); err != nil {
		return nil, err
	}
	return &UploadSlot{
		Media:     m,
		UploadURL: uploadURL,
		ExpiresIn: int(g.uploadTTL.Seconds()),
	}, nil
}

// AttachDuplicate creates a second media row for the caller that shares the
// existing row's stored object, so byte-identical content from two senders
// costs one blob-store write.
func (g *Gate) AttachDuplicate(ctx context.Context, userID, conversationID, existingMediaID, fileName string) (*models.Media, error) {
	if err := g.authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	existing, err := g.get(ctx, existingMediaID)
	if err != nil {
		return nil, err
	}
	if existing.ConversationID != conversationID {
		return nil, ErrNotFound
	}
	if fileName == "" {
		fileName = existing.FileName
	}
	metrics.MediaDedupHits.Inc()
	m := &models.Media{
		ID:             uuid.New().String(),
		UserID:         userID,
		ConversationID: conversationID,
		FileName:       fileName,
		FileType:       existing.FileType,
		FileSize:       existing.FileSize,
		ContentHash:    existing.ContentHash,
		StorageKey:     existing.StorageKey,
		StorageURL:     existing.StorageURL,
		Width:          existing.Width,
		Height:         existing.Height,
		Duration:       existing.Duration,
		ThumbnailURL:   existing.ThumbnailURL,
		CreatedAt:      g.now().UTC(),
	}
	if err := g.media.Insert(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

// ConfirmUpload fills in the placeholder once the client reports the bytes
// landed. The bytes themselves are not verified; that is the blob-store
// trust boundary.
func (g *Gate) ConfirmUpload(ctx context.Context, userID, mediaID string, fileSize int64, width, height int, duration float64, thumbnailURL string) (*models.Media, error) {
	m, err := g.get(ctx, mediaID)
	if err != nil {
		return nil, err
	}
	if m.UserID != userID {
		return nil, ErrNotOwner
	}
	if err := g.media.ConfirmUpload(ctx, mediaID, fileSize, width, height, duration, thumbnailURL); err != nil {
		return nil, err
	}
	return g.get(ctx, mediaID)
}

// CancelUpload deletes a placeholder that never made it onto a message.
func (g *Gate) CancelUpload(ctx context.Context, userID, mediaID string) error {
	m, err := g.get(ctx, mediaID)
	if err != nil {
		return err
	}
	if m.UserID != userID {
		return ErrNotOwner
	}
	if m.MessageID != "" {
		return ErrAttached
	}
	return g.media.Delete(ctx, mediaID)
}

func (g *Gate) authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := g.convs.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotParticipant
	}
	return nil
}

func (g *Gate) get(ctx context.Context, id string) (*models.Media, error) {
	m, err := g.media.Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

// StorageKey derives the deterministic object key for a conversation's
// content: media/<conversation>/<type folder>/<hash>-<sanitized name>. Two
// uploads of the same bytes in the same conversation always resolve here.
func StorageKey(conversationID, fileType, contentHash, fileName string) string {
	return fmt.Sprintf("media/%s/%s/%s-%s", conversationID, typeFolder(fileType), contentHash, SanitizeFileName(fileName))
}

func typeFolder(fileType string) string {
	switch {
	case strings.HasPrefix(fileType, "image/"):
		return "images"
	case strings.HasPrefix(fileType, "video/"):
		return "videos"
	default:
		return "files"
	}
}

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

func SanitizeFileName(name string) string {
	name = unsafeChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")
	if name == "" {
		return "file"
	}
	return name
}
