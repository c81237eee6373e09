package session

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/c360studio/semstreams/natsclient"
	"github.com/nats-io/nats.go/jetstream"
)

// StreamChannel carries a run over JetStream: events are published to
// docflow.run.<session>.events, decisions are consumed from
// docflow.run.<session>.decision through a durable consumer so a
// restart does not lose a decision in flight.
type StreamChannel struct {
	sessionID  string
	natsClient *natsclient.Client
	logger     *slog.Logger

	mu       sync.Mutex
	consumer jetstream.Consumer
	closed   chan struct{}
	once     sync.Once
}

// NewStreamChannel binds a session to the DOCFLOW stream.
func NewStreamChannel(sessionID string, nc *natsclient.Client, logger *slog.Logger) *StreamChannel {
	return &StreamChannel{
		sessionID:  sessionID,
		natsClient: nc,
		logger:     logger.With("session_id", sessionID),
		closed:     make(chan struct{}),
	}
}

// SessionID returns the session this channel is bound to.
func (c *StreamChannel) SessionID() string {
	return c.sessionID
}

// Send publishes one event to the session's event subject.
func (c *StreamChannel) Send(ctx context.Context, e Event) error {
	select {
	case <-c.closed:
		return ErrClosed
	default:
	}

	data, err := EncodeEvent(e)
	if err != nil {
		return err
	}

	subject := EventsSubject(c.sessionID)
	if err := c.natsClient.PublishToStream(ctx, subject, data); err != nil {
		return fmt.Errorf("publish %s to %s: %w", e.EventType(), subject, err)
	}
	return nil
}

// Receive fetches the next decision from the session's decision
// subject. Decision timeouts are expressed through the context
// deadline; transient fetch timeouts just re-poll.
func (c *StreamChannel) Receive(ctx context.Context) (Decision, error) {
	consumer, err := c.decisionConsumer(ctx)
	if err != nil {
		return Decision{}, err
	}

	for {
		select {
		case <-c.closed:
			return Decision{}, ErrClosed
		case <-ctx.Done():
			return Decision{}, ctx.Err()
		default:
		}

		msgs, err := consumer.Fetch(1, jetstream.FetchMaxWait(5*time.Second))
		if err != nil {
			if ctx.Err() != nil {
				return Decision{}, ctx.Err()
			}
			// Fetch timeouts are normal while waiting on the user.
			continue
		}

		for msg := range msgs.Messages() {
			d, err := decodeDecisionMessage(msg.Data())
			if ackErr := msg.Ack(); ackErr != nil {
				c.logger.Warn("Failed to ACK decision", "error", ackErr)
			}
			if err != nil {
				c.logger.Warn("Discarding malformed decision", "error", err)
				continue
			}
			return d, nil
		}
	}
}

// Close marks the channel closed. The durable consumer is left to the
// stream's retention policy.
func (c *StreamChannel) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// decisionConsumer lazily creates the durable consumer for this
// session's decision subject.
func (c *StreamChannel) decisionConsumer(ctx context.Context) (jetstream.Consumer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.consumer != nil {
		return c.consumer, nil
	}

	js, err := c.natsClient.JetStream()
	if err != nil {
		return nil, fmt.Errorf("get jetstream: %w", err)
	}

	stream, err := js.Stream(ctx, StreamName)
	if err != nil {
		return nil, fmt.Errorf("get stream %s: %w", StreamName, err)
	}

	consumer, err := stream.CreateOrUpdateConsumer(ctx, jetstream.ConsumerConfig{
		Name:          "docflow-decision-" + c.sessionID,
		FilterSubject: DecisionSubject(c.sessionID),
		AckPolicy:     jetstream.AckExplicitPolicy,
		DeliverPolicy: jetstream.DeliverAllPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("create decision consumer: %w", err)
	}

	c.consumer = consumer
	return consumer, nil
}

// decodeDecisionMessage accepts either a bare decision or one wrapped
// in a message envelope with a payload field.
func decodeDecisionMessage(data []byte) (Decision, error) {
	if d, err := ParseDecision(data); err == nil {
		return d, nil
	}

	var wrapped struct {
		Payload json.RawMessage `json:"payload"`
	}
	if err := json.Unmarshal(data, &wrapped); err == nil && len(wrapped.Payload) > 0 {
		return ParseDecision(wrapped.Payload)
	}
	return Decision{}, fmt.Errorf("%w: %s", ErrInvalidDecision, strings.TrimSpace(string(data)))
}
