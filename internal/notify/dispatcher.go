// Package notify delivers notification dispatch requests to the external
// messaging collaborator through a bounded in-memory queue.
package notify

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"shootflow-backend/internal/models"
)

// Sender performs the actual delivery of a single dispatch request.
type Sender interface {
	Send(ctx context.Context, req models.DispatchRequest) error
}

// Config controls the queue size and worker pool.
type Config struct {
	BufferSize int
	Workers    int
}

func (c Config) withDefaults() Config {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	return c
}

// Dispatcher queues dispatch requests in a bounded channel and delivers
// them from a worker pool. When the buffer is full, requests are dropped
// and logged; notifications are best effort and never block a caller.
type Dispatcher struct {
	queue  chan models.DispatchRequest
	sender Sender
	logger *slog.Logger

	queued    atomic.Int64
	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

func NewDispatcher(cfg Config, sender Sender) *Dispatcher {
	cfg = cfg.withDefaults()

	d := &Dispatcher{
		queue:    make(chan models.DispatchRequest, cfg.BufferSize),
		sender:   sender,
		logger:   slog.With("component", "notify"),
		shutdown: make(chan struct{}),
	}

	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.worker()
	}

	d.logger.Info("notify dispatcher started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return d
}

// Enqueue queues a request for async delivery. Never blocks.
func (d *Dispatcher) Enqueue(req models.DispatchRequest) {
	if d.closed.Load() {
		d.dropped.Add(1)
		return
	}

	select {
	case d.queue <- req:
		d.queued.Add(1)
	default:
		d.dropped.Add(1)
		d.logger.Warn("dispatch dropped, buffer full",
			"channel", req.Channel, "template_id", req.TemplateID)
	}
}

// Stats reports delivery counters.
type Stats struct {
	QueueDepth int
	Queued     int64
	Delivered  int64
	Failed     int64
	Dropped    int64
}

func (d *Dispatcher) Stats() Stats {
	return Stats{
		QueueDepth: len(d.queue),
		Queued:     d.queued.Load(),
		Delivered:  d.delivered.Load(),
		Failed:     d.failed.Load(),
		Dropped:    d.dropped.Load(),
	}
}

// Close drains the queue and stops the workers, bounded by ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	if d.closed.Swap(true) {
		return nil
	}

	d.logger.Info("notify dispatcher shutting down", "queued", len(d.queue))
	close(d.shutdown)

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.logger.Info("notify dispatcher shutdown complete",
			"delivered", d.delivered.Load(), "failed", d.failed.Load(), "dropped", d.dropped.Load())
		return nil
	case <-ctx.Done():
		d.logger.Warn("notify dispatcher shutdown timed out", "remaining", len(d.queue))
		return ctx.Err()
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()

	for {
		select {
		case <-d.shutdown:
			d.drain()
			return
		case req := <-d.queue:
			d.deliver(req)
		}
	}
}

func (d *Dispatcher) drain() {
	for {
		select {
		case req := <-d.queue:
			d.deliver(req)
		default:
			return
		}
	}
}

func (d *Dispatcher) deliver(req models.DispatchRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := d.sender.Send(ctx, req); err != nil {
		d.failed.Add(1)
		d.logger.Warn("dispatch delivery failed",
			"channel", req.Channel, "template_id", req.TemplateID, "error", err)
		return
	}
	d.delivered.Add(1)
}
