// Package delivery runs background sends on a worker pool so the dialog
// response is never held up by the SMS channel. Delivery is best-effort:
// a full queue drops the request rather than block the gateway.
package delivery

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/sediba/edubot/internal/domain"
	"github.com/sediba/edubot/internal/logging"
	"github.com/sediba/edubot/internal/metrics"
	"github.com/sediba/edubot/internal/ports"
)

const (
	defaultWorkers   = 4
	defaultQueueSize = 64
	// defaultTimeout bounds one delivery including all its chunks.
	defaultTimeout = 45 * time.Second
)

// Dispatcher fans delivery requests out to a pool of workers.
type Dispatcher struct {
	deliverer ports.Deliverer
	queue     chan domain.DeliveryRequest
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics

	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.Mutex
	closed bool
}

// Option configures the Dispatcher.
type Option func(*options)

type options struct {
	workers   int
	queueSize int
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

// WithWorkers sets the worker count.
func WithWorkers(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.workers = n
		}
	}
}

// WithQueueSize sets the intake buffer size.
func WithQueueSize(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.queueSize = n
		}
	}
}

// WithTimeout bounds each delivery attempt.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithLogger configures a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics wires delivery outcome counters.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// New starts a dispatcher delivering through d.
func New(d ports.Deliverer, opts ...Option) *Dispatcher {
	o := &options{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		timeout:   defaultTimeout,
		logger:    logging.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	dp := &Dispatcher{
		deliverer: d,
		queue:     make(chan domain.DeliveryRequest, o.queueSize),
		timeout:   o.timeout,
		logger:    o.logger,
		metrics:   o.metrics,
	}
	dp.wg.Add(o.workers)
	for i := 0; i < o.workers; i++ {
		go dp.worker()
	}
	return dp
}

// Enqueue hands a request to the pool without blocking. It reports whether
// the request was accepted; a full or closed queue drops it.
func (d *Dispatcher) Enqueue(req domain.DeliveryRequest) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		d.drop(req, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- req:
		return true
	default:
		d.drop(req, "queue full")
		return false
	}
}

// Close stops intake and blocks until every queued delivery has finished.
func (d *Dispatcher) Close() {
	d.closeOnce.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.queue)
		d.mu.Unlock()
	})
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for req := range d.queue {
		d.deliver(req)
	}
}

func (d *Dispatcher) deliver(req domain.DeliveryRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	if err := d.deliverer.Deliver(ctx, req); err != nil {
		d.count(req.Kind, metrics.DeliveryError)
		d.logger.Error("delivery failed", "kind", req.Kind, "to", req.To, "err", err)
		return
	}
	d.count(req.Kind, metrics.DeliveryOK)
	d.logger.Debug("delivery completed", "kind", req.Kind, "to", req.To)
}

func (d *Dispatcher) drop(req domain.DeliveryRequest, reason string) {
	d.count(req.Kind, metrics.DeliveryDropped)
	d.logger.Warn("delivery dropped", "kind", req.Kind, "to", req.To, "reason", reason)
}

func (d *Dispatcher) count(kind domain.DeliveryKind, outcome string) {
	if d.metrics == nil {
		return
	}
	d.metrics.Deliveries.WithLabelValues(string(kind), outcome).Inc()
}
