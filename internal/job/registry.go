package job

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"romdock/internal/apperrors"
)

const (
	// queueSize bounds the pull-stream buffer per job. When a client reads
	// slower than a runner emits, the oldest undelivered event is dropped
	// so the runner never blocks on a stalled transport.
	queueSize = 256

	// connBuffer bounds each push connection's outgoing buffer. A
	// connection that cannot keep up is dropped, never the job.
	connBuffer = 64
)

// MetricsRecorder is an optional interface for recording bus metrics.
type MetricsRecorder interface {
	RecordEventPublished(ctx context.Context, jobKind string)
	RecordEventDropped(ctx context.Context)
	RecordConfirmation(ctx context.Context, accepted bool)
	RecordJobFinished(ctx context.Context, jobKind, state string, durationSeconds float64)
}

// Registry owns all live jobs: their state, event queues, confirmation
// slots, and attached push connections. It is the only structure runners
// and transports share; every method is safe for concurrent use, which
// makes Publish the thread-safe handoff point for progress callbacks
// running on worker goroutines.
type Registry struct {
	mu             sync.Mutex
	jobs           map[string]*jobState
	confirmTimeout time.Duration
	logger         *slog.Logger
	metrics        MetricsRecorder
}

type jobState struct {
	id        string
	kind      Kind
	state     string
	createdAt time.Time

	queue        chan Event
	pullAttached bool
	conns        map[*PushConn]struct{}

	confirm  *confirmSlot
	terminal bool
}

type confirmSlot struct {
	resolved bool
	result   chan bool
}

// PushConn is one attached push-stream connection. Events arrive on
// Events() in emission order; the channel closes when the connection is
// detached or dropped.
type PushConn struct {
	jobID  string
	events chan Event
}

// JobID returns the job this connection is attached to.
func (c *PushConn) JobID() string { return c.jobID }

// Events returns the connection's ordered event feed.
func (c *PushConn) Events() <-chan Event { return c.events }

// NewRegistry creates an empty registry.
func NewRegistry(confirmTimeout time.Duration, metrics MetricsRecorder) *Registry {
	if confirmTimeout <= 0 {
		confirmTimeout = 10 * time.Minute
	}
	return &Registry{
		jobs:           make(map[string]*jobState),
		confirmTimeout: confirmTimeout,
		logger:         slog.With("component", "registry"),
		metrics:        metrics,
	}
}

// NewJobID returns a fresh opaque job identifier.
func NewJobID() string { return uuid.NewString() }

// Create allocates state and an event queue for a new job.
// Returns a conflict error if the ID is already live.
func (r *Registry) Create(id string, kind Kind) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[id]; exists {
		return apperrors.Conflict("job", id, "job "+id+" already exists")
	}
	r.jobs[id] = &jobState{
		id:        id,
		kind:      kind,
		state:     StateCreated,
		createdAt: time.Now(),
		queue:     make(chan Event, queueSize),
		conns:     make(map[*PushConn]struct{}),
	}
	return nil
}

// SetRunning marks a job as running. No-op for unknown or finished jobs.
func (r *Registry) SetRunning(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.jobs[id]; s != nil && !s.terminal {
		s.state = StateRunning
	}
}

// Info returns a snapshot of one job.
func (r *Registry) Info(id string) (Info, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.jobs[id]
	if s == nil {
		return Info{}, false
	}
	return Info{ID: s.id, Kind: s.kind, State: s.state, CreatedAt: s.createdAt}, true
}

// Active returns the number of live jobs.
func (r *Registry) Active() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.jobs)
}

// Publish enqueues an event for the pull stream and best-effort delivers it
// to every attached push connection. Publishing to an unknown or already
// finished job is a silent no-op: progress callbacks must never crash a
// runner over a disconnect race.
func (r *Registry) Publish(id string, t EventType, payload any) {
	r.mu.Lock()
	s := r.jobs[id]
	if s == nil || s.terminal {
		r.mu.Unlock()
		return
	}

	if t.Terminal() {
		s.terminal = true
		switch t {
		case EventComplete:
			s.state = StateCompleted
		case EventError:
			s.state = StateFailed
		case EventCancelled:
			s.state = StateCancelled
		}
		if r.metrics != nil {
			r.metrics.RecordJobFinished(context.Background(), string(s.kind), s.state, time.Since(s.createdAt).Seconds())
		}
	}

	ev := Event{JobID: id, Type: t, Payload: payload}
	dropped := s.enqueue(ev)

	for c := range s.conns {
		select {
		case c.events <- ev:
		default:
			// Connection can't keep up; drop it, never the job.
			delete(s.conns, c)
			close(c.events)
			r.logger.Debug("Dropped slow push connection", "jobId", id)
		}
	}
	kind := s.kind
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordEventPublished(context.Background(), string(kind))
		if dropped {
			r.metrics.RecordEventDropped(context.Background())
		}
	}
}

// enqueue adds an event to the pull buffer, evicting the oldest pending
// event when full. Terminal events therefore always land. Caller holds r.mu.
func (s *jobState) enqueue(ev Event) (dropped bool) {
	select {
	case s.queue <- ev:
		return false
	default:
	}
	select {
	case <-s.queue:
		dropped = true
	default:
	}
	select {
	case s.queue <- ev:
	default:
	}
	return dropped
}

// RequestConfirmation publishes a confirm_request event, then suspends the
// caller until a client replies, the bounded wait expires, or the last
// transport detaches. If no transport is attached at all, it resolves
// immediately to declined so a runner can never deadlock waiting on a
// client that cannot exist.
func (r *Registry) RequestConfirmation(ctx context.Context, id string, payload any) bool {
	r.mu.Lock()
	s := r.jobs[id]
	if s == nil || s.terminal {
		r.mu.Unlock()
		return false
	}
	if s.confirm != nil && !s.confirm.resolved {
		// At most one live confirmation per job.
		r.mu.Unlock()
		return false
	}

	noTransport := !s.pullAttached && len(s.conns) == 0
	slot := &confirmSlot{result: make(chan bool, 1)}
	s.confirm = slot
	s.state = StateAwaitingConfirmation
	r.mu.Unlock()

	r.Publish(id, EventConfirmRequest, payload)

	if noTransport {
		r.logger.Warn("Confirmation auto-declined, no transport attached", "jobId", id)
		return r.settleConfirmation(id, slot, false)
	}

	select {
	case res := <-slot.result:
		return r.settleConfirmation(id, slot, res)
	case <-time.After(r.confirmTimeout):
		r.logger.Warn("Confirmation timed out, declining", "jobId", id)
		return r.settleConfirmation(id, slot, false)
	case <-ctx.Done():
		return r.settleConfirmation(id, slot, false)
	}
}

// settleConfirmation finalizes a slot with the given result, preferring an
// already-delivered client reply over a racing timeout.
func (r *Registry) settleConfirmation(id string, slot *confirmSlot, result bool) bool {
	r.mu.Lock()
	if !slot.resolved {
		slot.resolved = true
	} else {
		// A reply raced our timeout; honor whichever reached the
		// channel first.
		select {
		case res := <-slot.result:
			result = res
		default:
		}
	}
	if s := r.jobs[id]; s != nil {
		if s.confirm == slot {
			s.confirm = nil
		}
		if !s.terminal {
			s.state = StateRunning
		}
	}
	r.mu.Unlock()

	if r.metrics != nil {
		r.metrics.RecordConfirmation(context.Background(), result)
	}
	return result
}

// Resolve completes a pending confirmation. The first reply wins; replies
// for unknown jobs, absent slots, or already resolved slots are no-ops,
// which absorbs duplicate and racing replies from the two transports.
func (r *Registry) Resolve(id string, result bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.jobs[id]
	if s == nil || s.confirm == nil || s.confirm.resolved {
		return
	}
	s.confirm.resolved = true
	s.confirm.result <- result
}

// Stream is a single-pass ordered view of one job's events for pull-based
// delivery.
type Stream struct {
	r     *Registry
	jobID string
}

// Consume attaches the pull transport to a job. Only one pull consumer may
// be active at a time.
func (r *Registry) Consume(id string) (*Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.jobs[id]
	if s == nil {
		return nil, apperrors.NotFound("job", id)
	}
	if s.pullAttached {
		return nil, apperrors.Conflict("job", id, "job "+id+" already has a stream consumer")
	}
	s.pullAttached = true
	return &Stream{r: r, jobID: id}, nil
}

// Events returns the ordered event feed. The reader should stop after the
// first terminal event and then call Close.
func (st *Stream) Events() <-chan Event {
	st.r.mu.Lock()
	defer st.r.mu.Unlock()
	s := st.r.jobs[st.jobID]
	if s == nil {
		closed := make(chan Event)
		close(closed)
		return closed
	}
	return s.queue
}

// Close detaches the pull transport. If it was the last transport, any
// pending confirmation resolves to declined; the job entry is deleted
// unless a push connection remains attached (avoiding a cleanup race
// between the two readers).
func (st *Stream) Close() {
	r := st.r
	r.mu.Lock()
	s := r.jobs[st.jobID]
	if s == nil {
		r.mu.Unlock()
		return
	}
	s.pullAttached = false
	r.declineIfAbandonedLocked(s)
	if len(s.conns) == 0 {
		delete(r.jobs, st.jobID)
	}
	r.mu.Unlock()
}

// Attach registers a push connection for a job.
func (r *Registry) Attach(id string) (*PushConn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.jobs[id]
	if s == nil {
		return nil, apperrors.NotFound("job", id)
	}
	c := &PushConn{jobID: id, events: make(chan Event, connBuffer)}
	s.conns[c] = struct{}{}
	return c, nil
}

// Detach removes a push connection. Detaching the last live transport for
// a job forces any pending confirmation to resolve to declined. The job
// entry is deleted once its terminal event has been delivered and no pull
// stream is attached, so push-only jobs retire too.
func (r *Registry) Detach(c *PushConn) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.jobs[c.jobID]
	if s == nil {
		return
	}
	if _, attached := s.conns[c]; !attached {
		return
	}
	delete(s.conns, c)
	close(c.events)
	r.declineIfAbandonedLocked(s)
	if len(s.conns) == 0 && s.terminal && !s.pullAttached {
		delete(r.jobs, c.jobID)
	}
}

// declineIfAbandonedLocked resolves a pending confirmation to declined when
// no transport remains to answer it. Caller holds r.mu.
func (r *Registry) declineIfAbandonedLocked(s *jobState) {
	if s.pullAttached || len(s.conns) > 0 {
		return
	}
	if s.confirm != nil && !s.confirm.resolved {
		s.confirm.resolved = true
		s.confirm.result <- false
		r.logger.Info("Last transport detached, declining pending confirmation", "jobId", s.id)
	}
}
