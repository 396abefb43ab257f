// Copyright 2025 Certen Protocol
//
// Package bus implements the Calendar block engine's Message Bus Adapter
// (C6): a durable, multiplexed queue over NATS JetStream. Messages carry a
// Type tag used for multiplexing (aggregator, btctx, btcmon, reward,
// audit, prune — spec §4.6). Publish blocks for the JetStream ack
// (confirm-channel semantics); callers that publish in response to an
// inbound message are expected to Nack that inbound message on publish
// failure rather than retry the publish internally.
//
// Grounded on paulwilltell-OFFGRIDFLOW/internal/events/nats.go: the same
// durable-stream-plus-durable-consumer shape (JetStream context, AddStream
// on first use, ManualAck + AckWait + MaxAckPending per subscription,
// ReconnectWait-driven reconnection), adapted from that package's generic
// Event envelope to this engine's typed Message.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// Message types used to multiplex work across the bus (spec §4.6). The
// first six correspond to the `work.in.cal` inbound queue's `type` tag.
// TypeState and TypeBTCMonRequest are this engine's own outbound queues
// (`work.out.state`, `work.out.btcmon` — spec §6) and are never subscribed to by the
// component that publishes them, so an inbound confirmation can never be
// mistaken for a self-published request on the same subject.
const (
	TypeAggregator Type = "aggregator"
	TypeBTCTx      Type = "btctx"
	TypeBTCMon     Type = "btcmon"
	TypeReward     Type = "reward"
	TypeAudit      Type = "audit"
	TypePrune      Type = "prune"

	// TypeState is the work.out.state queue: proof segments emitted by
	// the Calendar Writer and Anchor Engine (spec §4.7 step 5, §4.8
	// steps 3/7).
	TypeState Type = "state"
	// TypeBTCMonRequest is the work.out.btcmon queue: outbound requests
	// asking the monitor to watch a broadcast transaction. Kept distinct
	// from TypeBTCMon, which is reserved for the monitor's inbound
	// confirmation replies.
	TypeBTCMonRequest Type = "btcmon-req"
)

// Type is a message multiplexing tag.
type Type string

// Config configures the Bus connection and stream.
type Config struct {
	URL           string
	StreamName    string
	DurableName   string
	MaxInFlight   int // MaxAckPending per consumer (prefetch)
	AckWait       time.Duration
	ReconnectWait time.Duration
}

// DefaultConfig returns sensible defaults matching spec §4.6 (5s reconnect).
func DefaultConfig() Config {
	return Config{
		URL:           nats.DefaultURL,
		StreamName:    "CALENDAR",
		DurableName:   "calendar-core",
		MaxInFlight:   256,
		AckWait:       30 * time.Second,
		ReconnectWait: 5 * time.Second,
	}
}

// Message is an envelope delivered to a Subscribe handler.
type Message struct {
	Type    Type
	Payload json.RawMessage
	raw     *nats.Msg
}

// Decode unmarshals the payload into v.
func (m *Message) Decode(v any) error {
	return json.Unmarshal(m.Payload, v)
}

// Ack acknowledges successful processing.
func (m *Message) Ack() error {
	return m.raw.Ack()
}

// Nack requests redelivery.
func (m *Message) Nack() error {
	return m.raw.Nak()
}

// Handler processes a delivered Message. It does not ack/nack itself;
// the caller decides based on the handler's return. Returning ErrDeferred
// tells Subscribe to do neither: the handler has taken ownership of msg
// and will call its Ack/Nack directly once the work it was buffered for
// (e.g. a Calendar Writer tick) completes.
type Handler func(ctx context.Context, msg *Message) error

// ErrDeferred signals that the handler has taken ownership of a message's
// ack/nack rather than resolving it synchronously (spec §4.7, aggregation
// roots held by the Calendar Writer until their enclosing block is durable).
var ErrDeferred = errors.New("bus: message ownership deferred to handler")

// Bus is a JetStream-backed durable message bus.
type Bus struct {
	cfg Config
	nc  *nats.Conn
	js  nats.JetStreamContext
}

// Connect dials NATS, opens a JetStream context, and ensures the stream
// exists.
func Connect(cfg Config) (*Bus, error) {
	if cfg.URL == "" {
		cfg.URL = nats.DefaultURL
	}
	if cfg.ReconnectWait == 0 {
		cfg.ReconnectWait = 5 * time.Second
	}

	nc, err := nats.Connect(cfg.URL,
		nats.Name("calendar-core"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(cfg.ReconnectWait),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: connect: %w", err)
	}

	js, err := nc.JetStream()
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("bus: jetstream context: %w", err)
	}

	b := &Bus{cfg: cfg, nc: nc, js: js}
	if err := b.ensureStream(); err != nil {
		nc.Close()
		return nil, err
	}
	return b, nil
}

func (b *Bus) ensureStream() error {
	cfg := &nats.StreamConfig{
		Name:      b.cfg.StreamName,
		Subjects:  []string{b.cfg.StreamName + ".*"},
		Retention: nats.WorkQueuePolicy,
		Storage:   nats.FileStorage,
		Replicas:  1,
	}

	if _, err := b.js.StreamInfo(b.cfg.StreamName); err != nil {
		if err == nats.ErrStreamNotFound {
			_, err = b.js.AddStream(cfg)
			return err
		}
		return fmt.Errorf("bus: stream info: %w", err)
	}

	_, err := b.js.UpdateStream(cfg)
	return err
}

func (b *Bus) subject(t Type) string {
	return b.cfg.StreamName + "." + string(t)
}

// Publish marshals v and publishes it under msgType, blocking until
// JetStream confirms the write (confirm-channel semantics).
func (b *Bus) Publish(ctx context.Context, msgType Type, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("bus: marshal %s message: %w", msgType, err)
	}
	_, err = b.js.Publish(b.subject(msgType), data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("bus: publish %s: %w", msgType, err)
	}
	return nil
}

// Subscription wraps a durable JetStream consumer subscription.
type Subscription struct {
	sub *nats.Subscription
}

// Unsubscribe stops delivery to this subscription's handler.
func (s *Subscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Subscribe registers a durable, manually-acked consumer for msgType with
// prefetch bounded by MaxInFlight. Handler errors nack the message for
// redelivery; a nil error acks it; ErrDeferred does neither.
func (b *Bus) Subscribe(msgType Type, handler Handler) (*Subscription, error) {
	wrapped := func(msg *nats.Msg) {
		m := &Message{Type: msgType, Payload: msg.Data, raw: msg}
		err := handler(context.Background(), m)
		if errors.Is(err, ErrDeferred) {
			return
		}
		if err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	}

	sub, err := b.js.Subscribe(b.subject(msgType), wrapped,
		nats.Durable(b.cfg.DurableName+"-"+string(msgType)),
		nats.ManualAck(),
		nats.AckWait(b.cfg.AckWait),
		nats.MaxAckPending(b.cfg.MaxInFlight),
	)
	if err != nil {
		return nil, fmt.Errorf("bus: subscribe %s: %w", msgType, err)
	}
	return &Subscription{sub: sub}, nil
}

// IsConnected reports whether the underlying NATS connection is active.
func (b *Bus) IsConnected() bool {
	return b.nc.IsConnected()
}

// Close drains subscriptions and closes the connection. On a dirty
// shutdown, any unacked in-flight messages are left for redelivery per
// spec §4.6 rather than force-acked here.
func (b *Bus) Close() error {
	return b.nc.Drain()
}
