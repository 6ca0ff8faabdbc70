package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/RobertxMiller/SafeBid/auction"
)

const (
	eventStreamName = "AUCTION_EVENTS"

	// Subjects are auction.events.<id> so consumers can filter per auction.
	eventSubjectPrefix = "auction.events"

	publishTimeout = 5 * time.Second
)

// NATSPublisher fans auction events out to a persistent JetStream stream.
// It implements auction.EventSink: publishing is asynchronous and best
// effort, so a slow or unreachable broker never blocks the write path.
type NATSPublisher struct {
	nc  *nats.Conn
	js  jetstream.JetStream
	log *slog.Logger
}

// NewNATSPublisher connects to the broker and ensures the event stream
// exists.
func NewNATSPublisher(url string, log *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("creating JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        eventStreamName,
		Description: "Auction lifecycle events for archival and broadcast",
		Subjects:    []string{eventSubjectPrefix + ".*"},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
	})
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("ensuring stream %s: %w", eventStreamName, err)
	}

	return &NATSPublisher{nc: nc, js: js, log: log}, nil
}

// PublishEvent implements auction.EventSink.
func (p *NATSPublisher) PublishEvent(ev auction.Event) {
	go func() {
		data, err := json.Marshal(ev)
		if err != nil {
			p.log.Error("Marshaling event for NATS failed", "event", ev.ID, "err", err)
			return
		}

		subject := fmt.Sprintf("%s.%d", eventSubjectPrefix, ev.AuctionID)

		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		defer cancel()

		ack, err := p.js.Publish(ctx, subject, data)
		if err != nil {
			p.log.Warn("Publishing event to JetStream failed", "subject", subject, "event", ev.ID, "err", err)
			return
		}
		p.log.Debug("Event published", "subject", subject, "seq", ack.Sequence)
	}()
}

// Close drains and closes the broker connection.
func (p *NATSPublisher) Close() {
	p.nc.Close()
}
