package worker

import (
	"context"
	"errors"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"golang.org/x/sync/errgroup"
)

// PubSubSource receives from every analytics subscription concurrently.
type PubSubSource struct {
	subscribers []*gcppubsub.Subscriber
}

func NewPubSubSource(subscribers []*gcppubsub.Subscriber) (*PubSubSource, error) {
	if len(subscribers) == 0 {
		return nil, errors.New("at least one pubsub subscriber is required")
	}
	for _, sub := range subscribers {
		if sub == nil {
			return nil, errors.New("nil pubsub subscriber")
		}
	}
	return &PubSubSource{subscribers: subscribers}, nil
}

func (p *PubSubSource) Receive(ctx context.Context, fn func(ctx context.Context, msg Message) error) error {
	group, groupCtx := errgroup.WithContext(ctx)
	for _, sub := range p.subscribers {
		group.Go(func() error {
			return sub.Receive(groupCtx, func(innerCtx context.Context, m *gcppubsub.Message) {
				if err := fn(innerCtx, Message{ID: m.ID, Data: m.Data, Attributes: m.Attributes}); err != nil {
					m.Nack()
					return
				}
				m.Ack()
			})
		})
	}
	return group.Wait()
}
