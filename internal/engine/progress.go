package engine

import (
	"sync"
	"time"

	"github.com/leadscope/prospect-cli/internal/model"
)

// EventKind tags a progress event.
type EventKind string

const (
	EventItemStarted   EventKind = "item_started"
	EventItemCompleted EventKind = "item_completed"
	EventStepChanged   EventKind = "step_changed"
	EventPaused        EventKind = "paused"
	EventResumed       EventKind = "resumed"
	EventCancelled     EventKind = "cancelled"
	EventDegraded      EventKind = "degraded"
)

// Event is one progress notification from a running batch.
type Event struct {
	Kind     EventKind
	RowIndex int
	Company  string
	Step     StepName
	Status   StepStatus
	Detail   string
	At       time.Time
}

// Listener receives progress events. Must not block; slow listeners lose
// events rather than stalling workers.
type Listener func(Event)

// movingAverageWindow bounds how many recent item durations feed the ETA.
const movingAverageWindow = 10

// Snapshot is a point-in-time view of batch progress.
type Snapshot struct {
	Total      int           `json:"total"`
	Completed  int           `json:"completed"`
	Approved   int           `json:"approved"`
	Rejected   int           `json:"rejected"`
	Errored    int           `json:"errored"`
	InFlight   int           `json:"in_flight"`
	Paused     bool          `json:"paused"`
	AvgPerItem time.Duration `json:"avg_per_item"`
	ETA        time.Duration `json:"eta"`
}

// tracker accumulates progress counts and the moving-average ETA.
type tracker struct {
	mu          sync.Mutex
	total       int
	completed   int
	approved    int
	rejected    int
	errored     int
	inFlight    int
	concurrency int
	durations   []time.Duration
}

func newTracker(total, concurrency int) *tracker {
	if concurrency < 1 {
		concurrency = 1
	}
	return &tracker{total: total, concurrency: concurrency}
}

func (t *tracker) itemStarted() {
	t.mu.Lock()
	t.inFlight++
	t.mu.Unlock()
}

func (t *tracker) itemCompleted(outcome model.Outcome, elapsed time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	// Cancelled items complete without ever starting.
	if t.inFlight > 0 {
		t.inFlight--
	}
	t.completed++
	switch outcome {
	case model.OutcomeApproved:
		t.approved++
	case model.OutcomeRejected:
		t.rejected++
	default:
		t.errored++
	}
	t.durations = append(t.durations, elapsed)
	if len(t.durations) > movingAverageWindow {
		t.durations = t.durations[1:]
	}
}

func (t *tracker) snapshot(paused bool) Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()

	snap := Snapshot{
		Total:     t.total,
		Completed: t.completed,
		Approved:  t.approved,
		Rejected:  t.rejected,
		Errored:   t.errored,
		InFlight:  t.inFlight,
		Paused:    paused,
	}
	if len(t.durations) > 0 {
		var sum time.Duration
		for _, d := range t.durations {
			sum += d
		}
		snap.AvgPerItem = sum / time.Duration(len(t.durations))
		remaining := t.total - t.completed
		if remaining > 0 {
			waves := (remaining + t.concurrency - 1) / t.concurrency
			snap.ETA = snap.AvgPerItem * time.Duration(waves)
		}
	}
	return snap
}

// notifier fans events out to the listener on a dedicated goroutine so a
// slow consumer never blocks a worker. Events are dropped when the buffer
// is full. Publishing after close is a no-op; Cancel and the control
// methods stay callable after the batch finishes.
type notifier struct {
	ch   chan Event
	done chan struct{}

	mu     sync.Mutex
	closed bool
}

func newNotifier(listener Listener) *notifier {
	n := &notifier{
		ch:   make(chan Event, 256),
		done: make(chan struct{}),
	}
	go func() {
		defer close(n.done)
		for ev := range n.ch {
			if listener != nil {
				listener(ev)
			}
		}
	}()
	return n
}

func (n *notifier) publish(ev Event) {
	ev.At = time.Now()
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return
	}
	select {
	case n.ch <- ev:
	default:
	}
}

func (n *notifier) close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.ch)
	n.mu.Unlock()
	<-n.done
}
