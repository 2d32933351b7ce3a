package presence

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/pairchat/internal/events"
	"github.com/yourorg/pairchat/internal/models"
)

type ConversationLister interface {
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)
}

type Emitter interface {
	ToUser(userID, event string, payload any)
}

// Mirror publishes presence to a shared cache so sibling services can read it
// without hitting the durable store. Optional.
type Mirror interface {
	SetPresence(ctx context.Context, userID, status string, lastSeen time.Time) error
}

// Broadcaster tells a user's conversation peers about presence changes.
// Peers are deduplicated, so one eviction produces exactly one notification
// per peer even if storage holds stray duplicate conversations.
type Broadcaster struct {
	convs   ConversationLister
	emitter Emitter
	mirror  Mirror
	log     *zap.SugaredLogger
}

func NewBroadcaster(convs ConversationLister, emitter Emitter, mirror Mirror, log *zap.SugaredLogger) *Broadcaster {
	return &Broadcaster{convs: convs, emitter: emitter, mirror: mirror, log: log}
}

func (b *Broadcaster) NotifyStatus(ctx context.Context, userID, status string, lastSeen time.Time) {
	payload := map[string]any{
		"userId":   userID,
		"status":   status,
		"lastSeen": lastSeen.UTC(),
	}
	for _, peer := range b.peersOf(ctx, userID) {
		b.emitter.ToUser(peer, events.UserStatusUpdated, payload)
	}
	if b.mirror != nil {
		if err := b.mirror.SetPresence(ctx, userID, status, lastSeen); err != nil {
			b.log.Warnw("presence mirror update failed", "user", userID, "err", err)
		}
	}
}

func (b *Broadcaster) peersOf(ctx context.Context, userID string) []string {
	convs, err := b.convs.ListForUser(ctx, userID)
	if err != nil {
		b.log.Warnw("list conversations for presence fan-out failed", "user", userID, "err", err)
		return nil
	}
	seen := make(map[string]struct{}, len(convs))
	peers := make([]string, 0, len(convs))
	for _, c := range convs {
		peer := c.PeerOf(userID)
		if peer == "" {
			continue
		}
		if _, dup := seen[peer]; dup {
			continue
		}
		seen[peer] = struct{}{}
		peers = append(peers, peer)
	}
	return peers
}
