package lump

import (
	"context"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

const availableTopic = "hearth.lump.available"

// availableEvent is the gossip payload published after a successful
// local put. It is purely additive: a peer that never sees it still
// discovers the lump the moment it tries to `get` it and falls through
// to an explicit LumpRequest (see internal/peerlink). Grounded on
// internal/adapter/pubsub/dispatcher.go's marshal-and-publish shape.
type availableEvent struct {
	Digest string `json:"digest"`
	Size   int    `json:"size"`
}

// Broadcaster announces freshly-put lumps to peers that may want to
// pre-fetch them. Optional: a Store with a nil broadcaster just skips
// the announcement.
type Broadcaster struct {
	pub message.Publisher
}

func NewBroadcaster(pub message.Publisher) *Broadcaster {
	return &Broadcaster{pub: pub}
}

func (b *Broadcaster) announce(digest Digest, size int) error {
	if b == nil || b.pub == nil {
		return nil
	}
	payload, err := json.Marshal(availableEvent{Digest: digest.String(), Size: size})
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	return b.pub.Publish(availableTopic, msg)
}

// Subscribe wires an inbound availableEvent stream to a pre-fetch hook,
// used by a runtime that wants to warm its cache ahead of demand. Not
// required for correctness — internal/peerlink's on-demand LumpRequest
// path works with or without this ever being called.
func Subscribe(ctx context.Context, sub message.Subscriber, onAvailable func(Digest, int)) error {
	msgs, err := sub.Subscribe(ctx, availableTopic)
	if err != nil {
		return err
	}
	go func() {
		for msg := range msgs {
			var ev availableEvent
			if err := json.Unmarshal(msg.Payload, &ev); err != nil {
				msg.Nack()
				continue
			}
			digest, err := ParseDigest(ev.Digest)
			if err != nil {
				msg.Nack()
				continue
			}
			onAvailable(digest, ev.Size)
			msg.Ack()
		}
	}()
	return nil
}
