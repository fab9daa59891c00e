// Package pipeline implements the long-running library jobs: extract,
// compress, verify and organize. Each runner executes in its own goroutine,
// reports through the job registry's event stream, and cleans up its
// scratch space on every exit path.
package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"time"

	"romdock/internal/catalog"
	"romdock/internal/config"
	"romdock/internal/job"
	"romdock/internal/notify"
	"romdock/pkg/workpool"
)

// Pipeline wires the runners to their dependencies.
type Pipeline struct {
	cfg      *config.ServiceConfig
	reg      *job.Registry
	pool     *workpool.Pool
	catalog  *catalog.Client
	notifier *notify.Notifier
	logger   *slog.Logger
}

func New(cfg *config.ServiceConfig, reg *job.Registry, pool *workpool.Pool, cat *catalog.Client, notifier *notify.Notifier) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		reg:      reg,
		pool:     pool,
		catalog:  cat,
		notifier: notifier,
		logger:   slog.With("component", "pipeline"),
	}
}

// log publishes a log event to the job's stream.
func (p *Pipeline) log(jobID, format string, args ...any) {
	p.reg.Publish(jobID, job.EventLog, job.LogPayload{Message: fmt.Sprintf(format, args...)})
}

// progress publishes a byte- or item-progress event.
func (p *Pipeline) progress(jobID, step string, current, total int64, message string) {
	p.reg.Publish(jobID, job.EventProgress, job.ProgressPayload{
		Step:    step,
		Current: current,
		Total:   total,
		Percent: percent(current, total),
		Message: message,
	})
}

// stats publishes a stats-only progress refresh.
func (p *Pipeline) stats(jobID string, s job.Stats) {
	p.reg.Publish(jobID, job.EventProgress, job.ProgressPayload{Stats: s})
}

// finish publishes the job's terminal event and, when the caller registered
// a webhook, queues the delivery.
func (p *Pipeline) finish(jobID string, kind job.Kind, typ job.EventType, payload any, callbackURL string) {
	p.reg.Publish(jobID, typ, payload)
	if callbackURL == "" || p.notifier == nil {
		return
	}
	err := p.notifier.Enqueue(callbackURL, &notify.Message{
		JobID:   jobID,
		Kind:    string(kind),
		Event:   string(typ),
		Payload: payload,
		Time:    time.Now().UTC(),
	})
	if err != nil {
		p.logger.Warn("Webhook enqueue failed", "jobId", jobID, "error", err)
	}
}

func percent(current, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return math.Round(float64(current)/float64(total)*100*100) / 100
}
