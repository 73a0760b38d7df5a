package ingest

import (
	"context"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"bookclub-notify/internal/model"
	"bookclub-notify/pkg/log"
)

// channelPattern matches club_event:<type_code> channels published by the
// business services.
const channelPattern = "club_event:*"

// Notifier is the producer boundary the subscriber feeds.
type Notifier interface {
	Notify(ctx context.Context, recipientID string, code model.TypeCode, title, body, linkPath string)
	NotifyMany(ctx context.Context, recipientIDs []string, code model.TypeCode, title, body, linkPath string)
}

// Subscriber bridges Redis pub/sub to the notification producer. Business
// services publish events; this service persists and delivers them.
type Subscriber struct {
	client   *goredis.Client
	notifier Notifier
	l        log.Logger

	pubsub *goredis.PubSub
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a Subscriber.
func NewSubscriber(client *goredis.Client, notifier Notifier, l log.Logger) *Subscriber {
	ctx, cancel := context.WithCancel(context.Background())
	return &Subscriber{
		client:   client,
		notifier: notifier,
		l:        l,
		ctx:      ctx,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
}

// Start subscribes to the event pattern and begins routing in a goroutine.
func (s *Subscriber) Start() error {
	s.pubsub = s.client.PSubscribe(s.ctx, channelPattern)
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		return err
	}

	s.l.Infof(s.ctx, "internal.ingest.Start: subscribed to pattern %s", channelPattern)
	go s.listen()
	return nil
}

func (s *Subscriber) listen() {
	defer close(s.done)

	ch := s.pubsub.Channel()
	for {
		select {
		case <-s.ctx.Done():
			s.l.Info(context.Background(), "internal.ingest.listen: subscriber stopping")
			return
		case msg, ok := <-ch:
			if !ok {
				s.l.Error(context.Background(), "internal.ingest.listen: pub/sub channel closed")
				return
			}
			s.handleMessage(msg.Channel, msg.Payload)
		}
	}
}

func (s *Subscriber) handleMessage(channel, payload string) {
	suffix, ok := strings.CutPrefix(channel, "club_event:")
	if !ok {
		s.l.Warnf(s.ctx, "internal.ingest.handleMessage: unexpected channel %s", channel)
		return
	}
	code, ok := TypeCodeFor(suffix)
	if !ok {
		s.l.Warnf(s.ctx, "internal.ingest.handleMessage: unknown event type %s", suffix)
		return
	}

	ev, err := ParseClubEvent([]byte(payload))
	if err != nil {
		s.l.Errorf(s.ctx, "internal.ingest.handleMessage: parse %s event: %v", suffix, err)
		return
	}

	if len(ev.Recipients) == 1 {
		s.notifier.Notify(s.ctx, ev.Recipients[0], code, ev.Title, ev.Body, ev.LinkPath)
		return
	}
	s.notifier.NotifyMany(s.ctx, ev.Recipients, code, ev.Title, ev.Body, ev.LinkPath)
}

// Shutdown stops the subscriber and waits for the listen loop to exit.
func (s *Subscriber) Shutdown(ctx context.Context) error {
	s.cancel()
	if s.pubsub != nil {
		if err := s.pubsub.Close(); err != nil {
			s.l.Warnf(ctx, "internal.ingest.Shutdown: close pubsub: %v", err)
		}
	}

	select {
	case <-s.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
