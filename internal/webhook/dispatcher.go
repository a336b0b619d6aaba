// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package webhook

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Endpoint is one configured webhook receiver.
type Endpoint struct {
	URL    string
	Secret string
	// Events limits the endpoint to these event types. Empty means all.
	Events  []string
	Headers map[string]string
}

// HasEvent checks if the endpoint is subscribed to a specific event.
// Pings reach every endpoint.
func (e Endpoint) HasEvent(event string) bool {
	if event == EventPing || len(e.Events) == 0 {
		return true
	}
	return slices.Contains(e.Events, event)
}

// Dispatcher handles webhook event dispatching and queuing.
type Dispatcher struct {
	endpoints []Endpoint
	cfg       Config
	client    *http.Client
	logger    *slog.Logger
	queue     chan *QueuedDelivery
	wg        sync.WaitGroup
	done      chan struct{}
	mu        sync.RWMutex
	running   bool
}

// QueuedDelivery represents a delivery queued for processing.
type QueuedDelivery struct {
	DeliveryID string
	Endpoint   Endpoint
	Event      string
	Payload    []byte
	// Attempts counts the attempts already made.
	Attempts int
}

// Config holds dispatcher configuration.
type Config struct {
	Workers        int           // Number of concurrent delivery workers
	QueueSize      int           // Capacity of the delivery queue
	MaxAttempts    int           // Attempts before a delivery is dropped
	InitialBackoff time.Duration // Delay before the first retry
	// Client sends the requests. Nil uses a client with RequestTimeout.
	Client *http.Client
}

// DefaultConfig returns default dispatcher configuration.
func DefaultConfig() Config {
	return Config{
		Workers:        3,
		QueueSize:      100,
		MaxAttempts:    MaxAttempts,
		InitialBackoff: InitialBackoff,
	}
}

// NewDispatcher creates a new webhook dispatcher for endpoints.
func NewDispatcher(endpoints []Endpoint, logger *slog.Logger, cfg Config) *Dispatcher {
	def := DefaultConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	client := cfg.Client
	if client == nil {
		client = httpClient
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Dispatcher{
		endpoints: endpoints,
		cfg:       cfg,
		client:    client,
		logger:    logger,
		queue:     make(chan *QueuedDelivery, cfg.QueueSize),
		done:      make(chan struct{}),
	}
}

// Endpoints returns the number of configured endpoints.
func (d *Dispatcher) Endpoints() int {
	return len(d.endpoints)
}

// Start starts the dispatcher workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return
	}
	d.running = true
	d.mu.Unlock()

	d.logger.Info("starting webhook dispatcher", "workers", d.cfg.Workers, "endpoints", len(d.endpoints))

	for i := 0; i < d.cfg.Workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop stops the dispatcher and waits for workers to finish. Pending
// retries are dropped.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.running = false
	d.mu.Unlock()

	d.logger.Info("stopping webhook dispatcher")
	close(d.done)
	d.wg.Wait()
	d.logger.Info("webhook dispatcher stopped")
}

// worker processes queued deliveries.
func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	d.logger.Debug("webhook worker started", "worker_id", id)

	for {
		select {
		case <-d.done:
			d.logger.Debug("webhook worker stopping", "worker_id", id)
			return
		case <-ctx.Done():
			d.logger.Debug("webhook worker context cancelled", "worker_id", id)
			return
		case delivery := <-d.queue:
			d.processDelivery(ctx, delivery)
		}
	}
}

// Dispatch dispatches an event to all subscribed endpoints.
func (d *Dispatcher) Dispatch(_ context.Context, event *Event) error {
	d.mu.RLock()
	running := d.running
	d.mu.RUnlock()

	if !running {
		d.logger.Warn("dispatcher not running, cannot dispatch event", "event_type", event.Type)
		return nil
	}

	payload, err := json.Marshal(event)
	if err != nil {
		d.logger.Error("failed to marshal event payload", "error", err, "event_type", event.Type)
		return err
	}

	for _, ep := range d.endpoints {
		if !ep.HasEvent(event.Type) {
			continue
		}
		d.enqueue(&QueuedDelivery{
			DeliveryID: uuid.NewString(),
			Endpoint:   ep,
			Event:      event.Type,
			Payload:    payload,
		})
	}

	return nil
}

// DispatchEvent is a convenience method to dispatch an event with the given type and data.
func (d *Dispatcher) DispatchEvent(ctx context.Context, eventType string, data any) error {
	return d.Dispatch(ctx, NewEvent(eventType, data))
}

// Ping sends a ping event to every endpoint.
func (d *Dispatcher) Ping(ctx context.Context) error {
	now := time.Now().UTC()
	return d.DispatchEvent(ctx, EventPing, PingEventData{Message: "folio webhook ping", Timestamp: now})
}

func (d *Dispatcher) enqueue(qd *QueuedDelivery) {
	select {
	case <-d.done:
		d.logger.Warn("dispatcher stopped, delivery dropped", "delivery_id", qd.DeliveryID, "event", qd.Event)
		return
	default:
	}

	select {
	case d.queue <- qd:
		d.logger.Debug("delivery queued", "delivery_id", qd.DeliveryID, "event", qd.Event)
	default:
		d.logger.Warn("delivery queue full, delivery dropped", "delivery_id", qd.DeliveryID, "event", qd.Event)
	}
}

// GenerateSignature generates an HMAC-SHA256 signature for the payload.
func GenerateSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature verifies an HMAC-SHA256 signature.
func VerifySignature(payload []byte, signature, secret string) bool {
	expectedSig := GenerateSignature(payload, secret)
	return hmac.Equal([]byte(signature), []byte(expectedSig))
}
