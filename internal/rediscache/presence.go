package rediscache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceMirror keeps a read-only copy of user presence in Redis under
// <prefix>:presence:<userID>, so sibling services can serve presence without
// touching the durable store. The in-process registry stays authoritative.
type PresenceMirror struct {
	client *redis.Client
	prefix string
}

func NewPresenceMirror(client *redis.Client, prefix string) *PresenceMirror {
	return &PresenceMirror{client: client, prefix: prefix}
}

type presenceEntry struct {
	Status   string `json:"status"`
	LastSeen int64  `json:"last_seen"`
}

func (p *PresenceMirror) key(userID string) string {
	return fmt.Sprintf("%s:presence:%s", p.prefix, userID)
}

func (p *PresenceMirror) SetPresence(ctx context.Context, userID, status string, lastSeen time.Time) error {
	b, err := json.Marshal(presenceEntry{Status: status, LastSeen: lastSeen.Unix()})
	if err != nil {
		return err
	}
	return p.client.Set(ctx, p.key(userID), b, 0).Err()
}

func (p *PresenceMirror) GetPresence(ctx context.Context, userID string) (status string, lastSeen time.Time, err error) {
	b, err := p.client.Get(ctx, p.key(userID)).Bytes()
	if err != nil {
		return "", time.Time{}, err
	}
	var e presenceEntry
	if err := json.Unmarshal(b, &e); err != nil {
		return "", time.Time{}, err
	}
	return e.Status, time.Unix(e.LastSeen, 0).UTC(), nil
}
