// Package stream distributes alert events from the engine to delivery
// consumers.
package stream

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	apperrors "stock-tracker/internal/errors"
	"stock-tracker/internal/logging"
	"stock-tracker/internal/models"
)

// HubConfig holds configuration for the Hub.
type HubConfig struct {
	// BufferSize is the number of events that may wait for dispatch.
	BufferSize int
	// SubscriberBufferSize is the size of each subscriber's channel buffer.
	SubscriberBufferSize int
	// ConsumerTimeout bounds a single consumer call.
	ConsumerTimeout time.Duration
}

// DefaultHubConfig returns the default hub configuration.
func DefaultHubConfig() HubConfig {
	return HubConfig{
		BufferSize:           64,
		SubscriberBufferSize: 16,
		ConsumerTimeout:      30 * time.Second,
	}
}

// Consumer processes dispatched events. Consumers are called in
// registration order on the hub's dispatch goroutine.
type Consumer interface {
	Name() string
	OnEvent(ctx context.Context, ev models.AlertEvent) error
}

// ConsumerFunc adapts a function to Consumer.
type ConsumerFunc struct {
	ConsumerName string
	Fn           func(ctx context.Context, ev models.AlertEvent) error
}

// Name implements Consumer.
func (f ConsumerFunc) Name() string { return f.ConsumerName }

// OnEvent implements Consumer.
func (f ConsumerFunc) OnEvent(ctx context.Context, ev models.AlertEvent) error {
	return f.Fn(ctx, ev)
}

// Hub queues alert events and fans them out to consumers and subscribers.
// Publish never blocks: an event is either accepted into the buffer or
// refused with errors.ErrQueueFull.
type Hub struct {
	config HubConfig
	logger zerolog.Logger

	events chan models.AlertEvent
	done   chan struct{}
	wg     sync.WaitGroup

	mu          sync.RWMutex
	started     bool
	consumers   []Consumer
	subscribers []chan models.AlertEvent

	metricsMu sync.Mutex
	metrics   HubMetrics
}

// HubMetrics contains hub counters.
type HubMetrics struct {
	Published  uint64
	Rejected   uint64
	Dispatched uint64
	Failures   uint64
	Dropped    uint64
}

// NewHub creates a new hub with default configuration.
func NewHub(logger zerolog.Logger) *Hub {
	return NewHubWithConfig(DefaultHubConfig(), logger)
}

// NewHubWithConfig creates a new hub with custom configuration.
func NewHubWithConfig(config HubConfig, logger zerolog.Logger) *Hub {
	if config.BufferSize <= 0 {
		config.BufferSize = DefaultHubConfig().BufferSize
	}
	if config.SubscriberBufferSize <= 0 {
		config.SubscriberBufferSize = DefaultHubConfig().SubscriberBufferSize
	}
	return &Hub{
		config: config,
		logger: logging.WithComponent(logger, "stream"),
		events: make(chan models.AlertEvent, config.BufferSize),
		done:   make(chan struct{}),
	}
}

// RegisterConsumer adds a consumer. Consumers should be registered before
// Start.
func (h *Hub) RegisterConsumer(c Consumer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.consumers = append(h.consumers, c)
}

// Subscribe returns a channel receiving every dispatched event. Events are
// dropped for a subscriber whose buffer is full. The channel is closed by
// Stop.
func (h *Hub) Subscribe() <-chan models.AlertEvent {
	ch := make(chan models.AlertEvent, h.config.SubscriberBufferSize)
	h.mu.Lock()
	h.subscribers = append(h.subscribers, ch)
	h.mu.Unlock()
	return ch
}

// Publish queues ev for dispatch.
func (h *Hub) Publish(ev models.AlertEvent) error {
	select {
	case h.events <- ev:
		h.count(func(m *HubMetrics) { m.Published++ })
		return nil
	default:
		h.count(func(m *HubMetrics) { m.Rejected++ })
		return apperrors.ErrQueueFull
	}
}

// Start begins dispatching. ctx is passed to consumers; cancelling it does
// not stop the hub, Stop does.
func (h *Hub) Start(ctx context.Context) {
	h.mu.Lock()
	if h.started {
		h.mu.Unlock()
		return
	}
	h.started = true
	h.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	h.wg.Add(1)
	go h.dispatchLoop(ctx)
}

// Stop delivers events still in the buffer, then stops the dispatch loop and
// closes subscriber channels.
func (h *Hub) Stop() {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return
	}
	h.started = false
	close(h.done)
	h.mu.Unlock()

	h.wg.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subscribers {
		close(ch)
	}
	h.subscribers = nil
}

func (h *Hub) dispatchLoop(ctx context.Context) {
	defer h.wg.Done()
	for {
		select {
		case ev := <-h.events:
			h.dispatch(ctx, ev)
		case <-h.done:
			for {
				select {
				case ev := <-h.events:
					h.dispatch(ctx, ev)
				default:
					return
				}
			}
		}
	}
}

func (h *Hub) dispatch(ctx context.Context, ev models.AlertEvent) {
	h.mu.RLock()
	consumers := h.consumers
	subscribers := h.subscribers
	h.mu.RUnlock()

	logger := h.logger.With().
		Str("event_id", ev.Meta().ID).
		Str("kind", string(ev.Kind())).
		Logger()

	for _, c := range consumers {
		cctx, cancel := ctx, context.CancelFunc(func() {})
		if h.config.ConsumerTimeout > 0 {
			cctx, cancel = context.WithTimeout(ctx, h.config.ConsumerTimeout)
		}
		err := c.OnEvent(cctx, ev)
		cancel()
		if err != nil {
			h.count(func(m *HubMetrics) { m.Failures++ })
			logger.Error().Err(err).Str("consumer", c.Name()).Msg("Event delivery failed")
		}
	}

	for _, ch := range subscribers {
		select {
		case ch <- ev:
		default:
			h.count(func(m *HubMetrics) { m.Dropped++ })
		}
	}

	h.count(func(m *HubMetrics) { m.Dispatched++ })
}

func (h *Hub) count(fn func(*HubMetrics)) {
	h.metricsMu.Lock()
	fn(&h.metrics)
	h.metricsMu.Unlock()
}

// GetMetrics returns hub metrics.
func (h *Hub) GetMetrics() HubMetrics {
	h.metricsMu.Lock()
	defer h.metricsMu.Unlock()
	return h.metrics
}

// Pending returns the number of queued, undispatched events.
func (h *Hub) Pending() int {
	return len(h.events)
}
