package audit

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nerrad567/power-analytics/internal/auth"
	"github.com/nerrad567/power-analytics/internal/infrastructure/logging"
	"github.com/nerrad567/power-analytics/internal/notify"
)

// Sources recorded on each entry.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Actions recorded on entries, one per reading change kind.
const (
	ActionCreated = string(notify.KindCreated)
	ActionUpdated = string(notify.KindUpdated)
	ActionDeleted = string(notify.KindDeleted)
)

// ValidAction reports whether action is one of the recorded actions.
func ValidAction(action string) bool {
	switch action {
	case ActionCreated, ActionUpdated, ActionDeleted:
		return true
	}
	return false
}

// queueSize is the buffer between request goroutines and the writer.
// Entries beyond it are dropped rather than slowing requests down.
const queueSize = 256

var (
	// ErrQueueFull is returned by Deliver when the write queue is saturated.
	ErrQueueFull = errors.New("audit: queue full")

	// ErrRecorderClosed is returned by Deliver after Close.
	ErrRecorderClosed = errors.New("audit: recorder closed")
)

type sourceKey struct{}

// WithSource marks ctx as originating from source. Changes made under a
// context without a source are recorded as SourceAPI.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return SourceAPI
}

// Recorder turns reading change events into audit entries. Deliver only
// enqueues; a single goroutine started by Start writes entries serially,
// which suits SQLite's single writer.
type Recorder struct {
	repo    Repository
	logger  *logging.Logger
	now     func() time.Time
	entries chan *Entry
	done    chan struct{}

	mu      sync.RWMutex
	started bool
	closed  bool
}

var _ notify.Sink = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to repo.
func NewRecorder(repo Repository, logger *logging.Logger) *Recorder {
	if logger == nil {
		logger = logging.Default()
	}
	return &Recorder{
		repo:    repo,
		logger:  logger.With("component", "audit"),
		now:     func() time.Time { return time.Now().UTC() },
		entries: make(chan *Entry, queueSize),
		done:    make(chan struct{}),
	}
}

// Name implements notify.Sink.
func (r *Recorder) Name() string { return "audit" }

// Deliver implements notify.Sink. The acting subject comes from the
// verified identity on ctx, if any.
func (r *Recorder) Deliver(ctx context.Context, e notify.Event) error {
	entry := &Entry{
		Action:    string(e.Kind),
		ReadingID: e.ID,
		Source:    sourceFrom(ctx),
		CreatedAt: r.now(),
	}
	if id := auth.IdentityFromContext(ctx); id != nil {
		entry.Subject = id.Subject
	}
	if e.Reading != nil {
		entry.Details = map[string]any{
			"value":    e.Reading.Value,
			"loggedAt": e.Reading.LoggedAt.UTC().Format(time.RFC3339Nano),
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return ErrRecorderClosed
	}
	select {
	case r.entries <- entry:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the writer goroutine. It is a no-op after the first call.
func (r *Recorder) Start() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started || r.closed {
		return
	}
	r.started = true
	go r.drain()
}

// Close stops accepting entries, writes whatever is queued and waits for
// the writer to finish.
func (r *Recorder) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.entries)
	started := r.started
	r.mu.Unlock()

	if !started {
		r.drainOnce()
		return nil
	}
	<-r.done
	return nil
}

func (r *Recorder) drain() {
	defer close(r.done)
	r.drainOnce()
}

// drainOnce writes entries until the queue is closed and empty.
func (r *Recorder) drainOnce() {
	for entry := range r.entries {
		if err := r.repo.Create(context.Background(), entry); err != nil {
			r.logger.Error("audit write failed",
				"action", entry.Action,
				"reading_id", entry.ReadingID,
				"error", err,
			)
		}
	}
}
