// Package notify delivers terminal job events to caller-supplied webhook
// URLs. Deliveries are queued in a bounded channel and sent by a worker
// pool with retry and a per-host circuit breaker; when the buffer is full
// the delivery is dropped, never blocking a pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"romdock/pkg/backoff"
	"romdock/pkg/circuitbreaker"
)

const (
	maxRetries       = 3
	breakerThreshold = 5
	breakerCooldown  = 30 * time.Second
	maxRequeues      = 10
)

// Message is the webhook body: the terminal event of a job.
type Message struct {
	JobID   string    `json:"jobId"`
	Kind    string    `json:"kind"`
	Event   string    `json:"event"`
	Payload any       `json:"payload"`
	Time    time.Time `json:"time"`
}

type delivery struct {
	msg      *Message
	dest     string
	requeues int
}

// Notifier is the in-memory webhook delivery queue.
type Notifier struct {
	queue      chan *delivery
	sender     *sender
	breakers   *circuitbreaker.Registry
	signingKey string
	logger     *slog.Logger
	metrics    MetricsRecorder

	delivered atomic.Int64
	failed    atomic.Int64
	dropped   atomic.Int64
	requeued  atomic.Int64

	wg       sync.WaitGroup
	shutdown chan struct{}
	closed   atomic.Bool
}

// MetricsRecorder is an optional interface for notifier delivery metrics.
type MetricsRecorder interface {
	RecordNotifyDelivered(ctx context.Context, durationSeconds float64)
	RecordNotifyFailed(ctx context.Context)
	RecordNotifyDropped(ctx context.Context)
}

// New starts a notifier with cfg.Workers delivery goroutines. signingKey
// enables HMAC signing of webhook bodies when non-empty.
func New(cfg Config, signingKey string, metrics MetricsRecorder) *Notifier {
	cfg = cfg.withDefaults()

	n := &Notifier{
		queue:      make(chan *delivery, cfg.BufferSize),
		sender:     newSender(cfg.HTTPTimeout),
		breakers:   circuitbreaker.NewRegistry(breakerThreshold, breakerCooldown),
		signingKey: signingKey,
		logger:     slog.With("component", "notify"),
		metrics:    metrics,
		shutdown:   make(chan struct{}),
	}

	n.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go n.worker()
	}

	n.logger.Info("Notifier started", "workers", cfg.Workers, "buffer", cfg.BufferSize)
	return n
}

// Enqueue queues a webhook delivery. Non-blocking; a full buffer drops the
// message.
func (n *Notifier) Enqueue(dest string, msg *Message) error {
	if n.closed.Load() {
		return fmt.Errorf("notifier is closed")
	}

	select {
	case n.queue <- &delivery{msg: msg, dest: dest}:
		return nil
	default:
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyDropped(context.Background())
		}
		n.logger.Warn("Webhook dropped, buffer full", "destination", hostOf(dest), "jobId", msg.JobID)
		return ErrBufferFull
	}
}

// Stats returns delivery counters for the stats endpoint and shutdown log.
func (n *Notifier) Stats() Stats {
	return Stats{
		QueueDepth:   len(n.queue),
		Delivered:    n.delivered.Load(),
		Failed:       n.failed.Load(),
		Dropped:      n.dropped.Load(),
		Requeued:     n.requeued.Load(),
		BreakersOpen: n.breakers.OpenCount(),
	}
}

// Close drains queued deliveries until ctx expires.
func (n *Notifier) Close(ctx context.Context) error {
	if n.closed.Swap(true) {
		return nil
	}

	n.logger.Info("Notifier shutting down", "queued", len(n.queue))
	close(n.shutdown)

	done := make(chan struct{})
	go func() {
		n.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		n.logger.Info("Notifier shutdown complete",
			"delivered", n.delivered.Load(),
			"failed", n.failed.Load(),
			"dropped", n.dropped.Load(),
		)
		return nil
	case <-ctx.Done():
		n.logger.Warn("Notifier shutdown timed out", "remaining", len(n.queue))
		return ctx.Err()
	}
}

func (n *Notifier) worker() {
	defer n.wg.Done()

	for {
		select {
		case <-n.shutdown:
			n.drain()
			return
		case d := <-n.queue:
			n.deliver(d)
		}
	}
}

func (n *Notifier) drain() {
	for {
		select {
		case d := <-n.queue:
			n.deliver(d)
		default:
			return
		}
	}
}

func (n *Notifier) deliver(d *delivery) {
	host := hostOf(d.dest)
	breaker := n.breakers.For(host)

	if !breaker.Allow() {
		n.requeue(d, host)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	start := time.Now()
	if err := n.sendWithRetry(ctx, d); err != nil {
		breaker.Failure()
		n.failed.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyFailed(ctx)
		}
		n.logger.Warn("Webhook delivery failed", "destination", host, "jobId", d.msg.JobID, "error", err)
		return
	}

	breaker.Success()
	n.delivered.Add(1)
	if n.metrics != nil {
		n.metrics.RecordNotifyDelivered(ctx, time.Since(start).Seconds())
	}
}

// requeue defers a delivery while the destination's circuit is open.
func (n *Notifier) requeue(d *delivery, host string) {
	if d.requeues >= maxRequeues {
		n.dropped.Add(1)
		if n.metrics != nil {
			n.metrics.RecordNotifyDropped(context.Background())
		}
		n.logger.Warn("Webhook dropped, max requeues reached",
			"destination", host, "jobId", d.msg.JobID, "requeues", d.requeues)
		return
	}

	d.requeues++
	n.requeued.Add(1)

	go func() {
		select {
		case <-n.shutdown:
			return
		case <-time.After(breakerCooldown):
		}

		select {
		case n.queue <- d:
		case <-n.shutdown:
		default:
			n.dropped.Add(1)
			if n.metrics != nil {
				n.metrics.RecordNotifyDropped(context.Background())
			}
			n.logger.Warn("Webhook dropped on requeue, buffer full", "destination", host, "jobId", d.msg.JobID)
		}
	}()
}

func (n *Notifier) sendWithRetry(ctx context.Context, d *delivery) error {
	var lastErr error
	for attempt := range maxRetries + 1 {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff.Default.Delay(attempt)):
			}
		}

		lastErr = n.sender.send(ctx, d.dest, d.msg, n.signingKey)
		if lastErr == nil {
			return nil
		}
		if isClientError(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func hostOf(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Host == "" {
		return rawURL
	}
	return parsed.Host
}

// Stats holds notifier delivery counters.
type Stats struct {
	QueueDepth   int
	Delivered    int64
	Failed       int64
	Dropped      int64
	Requeued     int64
	BreakersOpen int
}
