// Package signalcore wires the protocol/ratchetstate/session/builder/
// cipher packages into a small usable client: one entry point per
// remote address, with per-address FIFO serialization and optional
// metrics, the way the rest of this module's collaborators are
// optional (WithStore-style functional options).
package signalcore

import (
	"context"
	"fmt"

	"github.com/ratchetproto/signalcore/cipher"
	"github.com/ratchetproto/signalcore/config"
	"github.com/ratchetproto/signalcore/metrics"
	"github.com/ratchetproto/signalcore/protocol"
	"github.com/ratchetproto/signalcore/queue"
	"github.com/ratchetproto/signalcore/store"
)

// Client is the top-level entry point: one store backs every remote
// address, with a dedicated job queue lane per address and a fresh
// SessionCipher built for each call inside that lane.
type Client struct {
	store   store.Store
	metrics *metrics.Collector
	queue   *queue.Queue
}

// clientOptions collects Option settings before the queue (which
// itself needs the resolved metrics collector) is constructed.
type clientOptions struct {
	metrics     *metrics.Collector
	queueBuffer int
}

// Option configures a Client at construction time.
type Option func(*clientOptions)

// WithMetrics attaches a metrics.Collector. Omitting this option
// leaves metrics as a no-op, matching metrics.Noop().
func WithMetrics(c *metrics.Collector) Option {
	return func(o *clientOptions) { o.metrics = c }
}

// WithQueueBuffer overrides the per-address job queue channel depth.
// Omitting this option uses config.Load's SIGNALCORE_QUEUE_BUFFER
// value (64 by default).
func WithQueueBuffer(n int) Option {
	return func(o *clientOptions) { o.queueBuffer = n }
}

// New returns a Client backed by st. cfg's queue buffer sizes the
// per-address job queue unless overridden by WithQueueBuffer.
func New(st store.Store, cfg config.Config, opts ...Option) *Client {
	o := &clientOptions{metrics: metrics.Noop(), queueBuffer: cfg.QueueBuffer}
	for _, opt := range opts {
		opt(o)
	}
	return &Client{
		store:   st,
		metrics: o.metrics,
		queue:   queue.New(o.queueBuffer, o.metrics),
	}
}

// Encrypt serializes plaintext against addr's open session (building
// one from a prekey bundle is the caller's responsibility, via
// builder.Builder, before the first Encrypt call succeeds).
func (c *Client) Encrypt(ctx context.Context, addr protocol.Address, plaintext []byte) (*cipher.CiphertextMessage, error) {
	v, err := c.queue.Submit(ctx, addr.String(), func(ctx context.Context) (any, error) {
		sc := cipher.New(c.store, addr, c.metrics)
		msg, err := sc.Encrypt(ctx, plaintext)
		c.metrics.EncryptCalled(addr.String())
		return msg, err
	})
	if err != nil {
		return nil, err
	}
	return v.(*cipher.CiphertextMessage), nil
}

// Decrypt dispatches body to the decode path matching typ, serialized
// against addr's job queue lane.
func (c *Client) Decrypt(ctx context.Context, addr protocol.Address, typ protocol.MessageType, body []byte) ([]byte, error) {
	v, err := c.queue.Submit(ctx, addr.String(), func(ctx context.Context) (any, error) {
		sc := cipher.New(c.store, addr, c.metrics)
		var pt []byte
		var err error
		switch typ {
		case protocol.WhisperType:
			pt, err = sc.DecryptWhisperMessage(ctx, body)
		case protocol.PreKeyType:
			pt, err = sc.DecryptPreKeyWhisperMessage(ctx, body)
		default:
			return nil, fmt.Errorf("signalcore: unsupported message type %d", typ)
		}
		c.metrics.DecryptResult(addr.String(), err == nil)
		return pt, err
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// Close releases the Client's job queue workers. The underlying store
// is the caller's to close.
func (c *Client) Close() {
	c.queue.Close()
}
