package redisad

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"

	"rental_moderation/internal/domain"
)

const inboxSize = 50

// Notifier pushes notifications to connected clients over pub/sub and keeps
// the latest ones in a per-user inbox list for clients that were offline.
type Notifier struct {
	c *redis.Client
}

func NewNotifier(c *redis.Client) *Notifier { return &Notifier{c: c} }

func ChannelFor(userID string) string { return "notifications:" + userID }
func InboxFor(userID string) string { return "inbox:" + userID }

func (n *Notifier) Notify(ctx context.Context, msg domain.Notification) error {
	b, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	_, err = n.c.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, InboxFor(msg.UserID), b)
		p.LTrim(ctx, InboxFor(msg.UserID), 0, inboxSize-1)
		p.Publish(ctx, ChannelFor(msg.UserID), b)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis notify %s: %w", msg.UserID, err)
	}
	return nil
}
