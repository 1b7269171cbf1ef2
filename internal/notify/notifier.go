package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/pawmatch/engine/internal/cache"
)

const channelPrefix = "on-match:"

// ChannelFor returns the pub/sub channel name for a pet's match events.
func ChannelFor(petID uint64) string {
	return fmt.Sprintf("%s%d", channelPrefix, petID)
}

// PetProfile is the payload delivered to a subscriber when a match is
// created: the full profile of the pet matched with.
type PetProfile struct {
	PetID           uint64   `json:"pet_id"`
	OwnerID         uint64   `json:"owner_id"`
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	Characteristics []string `json:"characteristics"`
}

// MatchEvent is the JSON message published on a match channel.
type MatchEvent struct {
	MatchID string     `json:"match_id"`
	Pet     PetProfile `json:"pet"`
}

// Notifier publishes match events over Redis Pub/Sub, keyed by the
// recipient pet's channel. Delivery is best-effort: the match record
// is durable before Publish is called, so failures are logged and
// swallowed, never returned.
type Notifier struct {
	cache *cache.RedisCache
	log   *slog.Logger
}

// NewNotifier creates a notifier on top of the shared Redis client.
func NewNotifier(c *cache.RedisCache, log *slog.Logger) *Notifier {
	return &Notifier{cache: c, log: log}
}

// Publish sends a match event to the recipient pet's channel.
// Fire-and-forget: errors never reach the caller.
func (n *Notifier) Publish(ctx context.Context, recipientPetID uint64, event MatchEvent) {
	payload, err := json.Marshal(event)
	if err != nil {
		n.log.Error("failed to marshal match event", "recipient", recipientPetID, "err", err)
		return
	}
	if err := n.cache.Publish(ctx, ChannelFor(recipientPetID), payload); err != nil {
		n.log.Error("failed to publish match event", "recipient", recipientPetID, "err", err)
	}
}

// Subscribe opens a long-lived stream of match events for a pet.
// Multiple subscribers on the same pet each receive every event
// (broadcast semantics of Redis Pub/Sub). The stream closes when ctx
// is cancelled or the returned stop function is called.
func (n *Notifier) Subscribe(ctx context.Context, petID uint64) (<-chan MatchEvent, func()) {
	pubsub := n.cache.Subscribe(ctx, ChannelFor(petID))
	events := make(chan MatchEvent)

	go func() {
		defer close(events)
		// releases the Redis subscription when ctx cancellation,
		// not stop, ends the loop
		defer func() { _ = pubsub.Close() }()
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var event MatchEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					n.log.Error("failed to unmarshal match event", "pet", petID, "err", err)
					continue
				}
				select {
				case events <- event:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	stop := func() { _ = pubsub.Close() }
	return events, stop
}
