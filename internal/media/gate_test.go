package media

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/models"
	"github.com/yourorg/pairchat/internal/repository"
)

const testHash = "d41d8cd98f00b204e9800998ecf8427e"

type memStore struct {
	rows map[string]*models.Media
}

func newMemStore() *memStore {
	return &memStore{rows: make(map[string]*models.Media)}
}

func (s *memStore) Insert(_ context.Context, m *models.Media) error {
	cp := *m
	s.rows[m.ID] = &cp
	return nil
}

func (s *memStore) Get(_ context.Context, id string) (*models.Media, error) {
	m, ok := s.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *memStore) FindByHash(_ context.Context, conversationID, contentHash string) (*models.Media, error) {
	for _, m := range s.rows {
		if m.ConversationID == conversationID && m.ContentHash == contentHash {
			cp := *m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *memStore) ConfirmUpload(_ context.Context, id string, fileSize int64, width, height int, duration float64, thumbnailURL string) error {
	m, ok := s.rows[id]
	if !ok {
		return repository.ErrNotFound
	}
	m.FileSize = fileSize
	m.Width = width
	m.Height = height
	m.Duration = duration
	m.ThumbnailURL = thumbnailURL
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	if _, ok := s.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

type memConvs struct {
	members map[string]map[string]bool
}

func (f *memConvs) IsParticipant(_ context.Context, conversationID, userID string) (bool, error) {
	return f.members[conversationID][userID], nil
}

type memBlobs struct {
	presigned []string
}

func (b *memBlobs) PresignPut(_ context.Context, key, _ string, _ time.Duration) (string, error) {
	b.presigned = append(b.presigned, key)
	return "https://blob.test/put/" + key, nil
}

func (b *memBlobs) ObjectURL(key string) string {
	return "https://blob.test/" + key
}

func newTestGate(t *testing.T) (*Gate, *memStore, *memBlobs) {
	t.Helper()
	store := newMemStore()
	blobs := &memBlobs{}
	convs := &memConvs{members: map[string]map[string]bool{
		"c1": {"alice": true, "bob": true},
	}}
	g := NewGate(store, convs, blobs, 5*time.Minute, zap.NewNop().Sugar())
	g.now = func() time.Time { return time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC) }
	return g, store, blobs
}

func TestCheckDuplicate(t *testing.T) {
	g, store, _ := newTestGate(t)
	ctx := context.Background()

	m, err := g.CheckDuplicate(ctx, "alice", "c1", testHash)
	require.NoError(t, err)
	assert.Nil(t, m, "unknown hash means no duplicate")

	store.rows["m1"] = &models.Media{ID: "m1", ConversationID: "c1", ContentHash: testHash}
	m, err = g.CheckDuplicate(ctx, "alice", "c1", testHash)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, "m1", m.ID)

	_, err = g.CheckDuplicate(ctx, "mallory", "c1", testHash)
	assert.ErrorIs(t, err, ErrNotParticipant)

	_, err = g.CheckDuplicate(ctx, "alice", "c1", "not-a-hash")
	assert.ErrorIs(t, err, ErrInvalidHash)
}

func TestReserveUploadSlotCreatesPlaceholder(t *testing.T) {
	g, store, blobs := newTestGate(t)

	slot, err := g.ReserveUploadSlot(context.Background(), "alice", "c1", "photo.jpg", "image/jpeg", testHash)
	require.NoError(t, err)

	wantKey := fmt.Sprintf("media/c1/images/%s-photo.jpg", testHash)
	assert.Equal(t, wantKey, slot.Media.StorageKey)
	assert.Equal(t, "https://blob.test/put/"+wantKey, slot.UploadURL)
	assert.Equal(t, 300, slot.ExpiresIn)
	assert.Equal(t, []string{wantKey}, blobs.presigned)

	stored := store.rows[slot.Media.ID]
	require.NotNil(t, stored)
	assert.Zero(t, stored.FileSize, "placeholder until confirmed")
	assert.Empty(t, stored.MessageID)
}

func TestReserveUploadSlotRecheckReturnsConflict(t *testing.T) {
	g, store, blobs := newTestGate(t)
	ctx := context.Background()

	first, err := g.ReserveUploadSlot(ctx, "alice", "c1", "photo.jpg", "image/jpeg", testHash)
	require.NoError(t, err)

	// same bytes race in before the client re-checks
	_, err = g.ReserveUploadSlot(ctx, "bob", "c1", "copy.jpg", "image/jpeg", testHash)
	var dup *DuplicateError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, first.Media.ID, dup.Existing.ID)
	assert.Len(t, blobs.presigned, 1, "losing reservation must not presign")
	assert.Len(t, store.rows, 1)
}

func TestAttachDuplicateSharesStoredObject(t *testing.T) {
	g, store, blobs := newTestGate(t)
	ctx := context.Background()

	slot, err := g.ReserveUploadSlot(ctx, "alice", "c1", "photo.jpg", "image/jpeg", testHash)
	require.NoError(t, err)
	_, err = g.ConfirmUpload(ctx, "alice", slot.Media.ID, 2048, 800, 600, 0, "https://blob.test/thumb.jpg")
	require.NoError(t, err)

	dup, err := g.AttachDuplicate(ctx, "bob", "c1", slot.Media.ID, "same-photo.jpg")
	require.NoError(t, err)

	assert.NotEqual(t, slot.Media.ID, dup.ID)
	assert.Equal(t, slot.Media.StorageKey, dup.StorageKey, "rows share one stored object")
	assert.Equal(t, int64(2048), dup.FileSize)
	assert.Equal(t, 800, dup.Width)
	assert.Equal(t, "bob", dup.UserID)
	assert.Equal(t, "same-photo.jpg", dup.FileName)
	assert.Len(t, blobs.presigned, 1, "duplicate attachment costs zero blob writes")
	assert.Len(t, store.rows, 2)

	// default file name falls back to the original's
	dup2, err := g.AttachDuplicate(ctx, "bob", "c1", slot.Media.ID, "")
	require.NoError(t, err)
	assert.Equal(t, "photo.jpg", dup2.FileName)

	_, err = g.AttachDuplicate(ctx, "bob", "c1", "m-missing", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAttachDuplicateRejectsCrossConversation(t *testing.T) {
	g, store, _ := newTestGate(t)
	store.rows["m-other"] = &models.Media{ID: "m-other", ConversationID: "c9", ContentHash: testHash}

	_, err := g.AttachDuplicate(context.Background(), "alice", "c1", "m-other", "x")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmUploadOwnerOnly(t *testing.T) {
	g, store, _ := newTestGate(t)
	ctx := context.Background()

	slot, err := g.ReserveUploadSlot(ctx, "alice", "c1", "clip.mp4", "video/mp4", testHash)
	require.NoError(t, err)

	_, err = g.ConfirmUpload(ctx, "bob", slot.Media.ID, 1, 0, 0, 0, "")
	assert.ErrorIs(t, err, ErrNotOwner)

	m, err := g.ConfirmUpload(ctx, "alice", slot.Media.ID, 4096, 0, 0, 12.5, "")
	require.NoError(t, err)
	assert.Equal(t, int64(4096), m.FileSize)
	assert.Equal(t, 12.5, m.Duration)
	assert.Equal(t, int64(4096), store.rows[slot.Media.ID].FileSize)
}

func TestCancelUploadRules(t *testing.T) {
	g, store, _ := newTestGate(t)
	ctx := context.Background()

	slot, err := g.ReserveUploadSlot(ctx, "alice", "c1", "doc.pdf", "application/pdf", testHash)
	require.NoError(t, err)

	assert.ErrorIs(t, g.CancelUpload(ctx, "bob", slot.Media.ID), ErrNotOwner)

	store.rows[slot.Media.ID].MessageID = "msg-1"
	assert.ErrorIs(t, g.CancelUpload(ctx, "alice", slot.Media.ID), ErrAttached)

	store.rows[slot.Media.ID].MessageID = ""
	require.NoError(t, g.CancelUpload(ctx, "alice", slot.Media.ID))
	assert.NotContains(t, store.rows, slot.Media.ID)

	assert.ErrorIs(t, g.CancelUpload(ctx, "alice", slot.Media.ID), ErrNotFound)
}

func TestStorageKey(t *testing.T) {
	assert.Equal(t,
		"media/c1/images/"+testHash+"-pic.png",
		StorageKey("c1", "image/png", testHash, "pic.png"))
	assert.Equal(t,
		"media/c1/videos/"+testHash+"-clip.mp4",
		StorageKey("c1", "video/mp4", testHash, "clip.mp4"))
	assert.Equal(t,
		"media/c1/files/"+testHash+"-notes.pdf",
		StorageKey("c1", "application/pdf", testHash, "notes.pdf"))
}

func TestSanitizeFileName(t *testing.T) {
	cases := map[string]string{
		"photo.jpg":           "photo.jpg",
		"my photo (1).jpg":    "my-photo-1-.jpg",
		"../../etc/passwd":    "etc-passwd",
		"":                    "file",
		"***":                 "file",
		"résumé.pdf":          "r-sum-.pdf",
		"UPPER_case-ok.tar.gz": "UPPER_case-ok.tar.gz",
	}
	for in, want := range cases {
		assert.Equal(t, want, SanitizeFileName(in), "input %q", in)
	}
}
