// Package router orchestrates message sends end-to-end: write-ahead
// persistence, duplicate suppression, per-recipient serialized delivery,
// bounded retry, and ledger bookkeeping.
package router

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zulandar/switchboard/internal/driver"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
)

// Default routing policy. MaxRetries is a total attempt budget: the first
// attempt counts against it, and retrying forever is exactly the failure mode
// that caused repeated duplicate deliveries in production.
const (
	DefaultMaxRetries  = 3
	DefaultBaseBackoff = 500 * time.Millisecond
	DefaultMaxBackoff  = 30 * time.Second
	DefaultDedupWindow = 5 * time.Minute
	DefaultLaneBuffer  = 32
)

// Options holds routing policy knobs.
type Options struct {
	MaxRetries  int
	BaseBackoff time.Duration
	MaxBackoff  time.Duration
	DedupWindow time.Duration
	LaneBuffer  int

	// Escalate is invoked when a send exhausts its retry budget. Optional;
	// wired to the watchdog/relay in production.
	Escalate func(env *models.Envelope, detail string)
}

// SendResult is the definitive outcome returned for every send call.
type SendResult struct {
	EnvelopeID string               `json:"envelope_id"`
	Status     models.DeliveryState `json:"status"`
	Attempts   int                  `json:"attempts"`
	Detail     string               `json:"detail,omitempty"`
}

// Router routes envelopes to agents. Safe for concurrent use: any number of
// senders may call Send simultaneously; deliveries to one recipient are
// serialized on that recipient's lane while other recipients proceed in
// parallel.
type Router struct {
	reg   *registry.Registry
	store *mailbox.Store
	drv   driver.Driver
	led   *ledger.Ledger
	opts  Options

	dedupMu sync.Mutex // serializes fingerprint check-then-record

	mu         sync.Mutex
	lanes      map[string]chan *job
	pending    map[string]*job
	closed     bool
	dispatchWG sync.WaitGroup // in-progress lane enqueues
	laneWG     sync.WaitGroup // running lane goroutines
}

// job is one envelope queued on a recipient lane.
type job struct {
	env       *models.Envelope
	done      chan SendResult
	cancelled bool // guarded by Router.mu until the lane picks the job up
}

// New creates a Router over its collaborators.
func New(reg *registry.Registry, store *mailbox.Store, drv driver.Driver, led *ledger.Ledger, opts Options) *Router {
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.BaseBackoff <= 0 {
		opts.BaseBackoff = DefaultBaseBackoff
	}
	if opts.MaxBackoff <= 0 {
		opts.MaxBackoff = DefaultMaxBackoff
	}
	if opts.DedupWindow <= 0 {
		opts.DedupWindow = DefaultDedupWindow
	}
	if opts.LaneBuffer <= 0 {
		opts.LaneBuffer = DefaultLaneBuffer
	}
	return &Router{
		reg:     reg,
		store:   store,
		drv:     drv,
		led:     led,
		opts:    opts,
		lanes:   make(map[string]chan *job),
		pending: make(map[string]*job),
	}
}

// Send routes one message and blocks until it reaches a terminal state. The
// returned result is always definitive: delivered, failed, or duplicate.
func (r *Router) Send(ctx context.Context, senderID, recipientID, body string, priority models.Priority, tags []string) (SendResult, error) {
	if senderID == "" {
		return SendResult{}, fmt.Errorf("router: senderID is required")
	}
	if body == "" {
		return SendResult{}, fmt.Errorf("router: body is required")
	}
	if priority != "" && !models.ValidPriority(priority) {
		return SendResult{}, fmt.Errorf("router: invalid priority %q", priority)
	}

	// Unknown recipients are rejected synchronously, before any mailbox write.
	if _, err := r.reg.Resolve(recipientID); err != nil {
		return SendResult{}, err
	}

	env := models.NewEnvelope(senderID, recipientID, body, priority, tags)
	env.Fingerprint = env.ComputeFingerprint(r.opts.DedupWindow)

	// Check-then-record under one lock so two racing identical sends can't
	// both pass the dedup gate.
	r.dedupMu.Lock()
	seen, err := r.led.SeenFingerprint(env.Fingerprint, r.opts.DedupWindow)
	if err != nil {
		r.dedupMu.Unlock()
		return SendResult{}, err
	}
	if seen {
		r.dedupMu.Unlock()
		if terr := env.Transition(models.StateDuplicate); terr != nil {
			return SendResult{}, terr
		}
		if rerr := r.led.Record(env, models.StateDuplicate, 0, "suppressed within dedup window"); rerr != nil {
			return SendResult{}, rerr
		}
		return SendResult{
			EnvelopeID: env.ID,
			Status:     models.StateDuplicate,
			Detail:     "suppressed within dedup window",
		}, nil
	}
	if err := r.led.Record(env, models.StatePending, 0, "accepted"); err != nil {
		r.dedupMu.Unlock()
		return SendResult{}, err
	}
	r.dedupMu.Unlock()

	// Write-ahead: the envelope survives a crash between here and delivery.
	if err := r.store.Enqueue(env); err != nil {
		return SendResult{EnvelopeID: env.ID, Status: models.StatePending}, err
	}

	j, err := r.dispatch(env)
	if err != nil {
		return SendResult{EnvelopeID: env.ID, Status: models.StatePending}, err
	}

	select {
	case res := <-j.done:
		return res, nil
	case <-ctx.Done():
		// Delivery keeps running on the lane; the ledger records its outcome.
		return SendResult{EnvelopeID: env.ID, Status: models.StateInFlight}, ctx.Err()
	}
}

// dispatch queues an envelope on its recipient's lane.
func (r *Router) dispatch(env *models.Envelope) (*job, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, fmt.Errorf("router: closed")
	}

	lane, ok := r.lanes[env.Recipient]
	if !ok {
		lane = make(chan *job, r.opts.LaneBuffer)
		r.lanes[env.Recipient] = lane
		r.laneWG.Add(1)
		go r.runLane(lane)
	}

	j := &job{env: env, done: make(chan SendResult, 1)}
	r.pending[env.ID] = j
	r.dispatchWG.Add(1)
	r.mu.Unlock()

	// Queue outside the lock: a full lane must not block unrelated sends.
	lane <- j
	r.dispatchWG.Done()
	return j, nil
}

// Cancel marks a queued envelope so the lane discards it instead of
// delivering. Best-effort: envelopes already picked up by their lane cannot
// be recalled.
func (r *Router) Cancel(envelopeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	j, ok := r.pending[envelopeID]
	if !ok {
		return fmt.Errorf("router: envelope %s is not cancellable", envelopeID)
	}
	j.cancelled = true
	return nil
}

// runLane delivers jobs for one recipient, strictly in queue order. One
// goroutine per recipient is the mutual-exclusion guarantee: a coordinate is
// a single shared UI surface, and two senders typing into it at once
// interleave keystrokes.
func (r *Router) runLane(lane chan *job) {
	defer r.laneWG.Done()
	for j := range lane {
		r.mu.Lock()
		cancelled := j.cancelled
		delete(r.pending, j.env.ID)
		r.mu.Unlock()

		if cancelled {
			j.done <- r.finish(j.env, models.StateFailed, 0, "cancelled before delivery")
			continue
		}
		j.done <- r.deliver(j.env)
	}
}

// deliver runs the bounded-retry delivery loop for one envelope. Called only
// from the envelope's recipient lane; never holds router or mailbox locks
// across the slow driver call.
func (r *Router) deliver(env *models.Envelope) SendResult {
	claimed, err := r.led.Claim(env, "delivery started")
	if err != nil {
		return r.finish(env, models.StateFailed, 0, err.Error())
	}
	if !claimed {
		return r.yield(env)
	}
	if err := env.Transition(models.StateInFlight); err != nil {
		return r.finish(env, models.StateFailed, 0, err.Error())
	}

	coords, err := r.reg.Resolve(env.Recipient)
	if err != nil {
		return r.finish(env, models.StateFailed, 0, err.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= r.opts.MaxRetries; attempt++ {
		lastErr = r.drv.Deliver(context.Background(), coords, env.Body)
		if lastErr == nil {
			if err := r.store.MarkProcessed(env.Recipient, env.ID); err != nil {
				log.Printf("router: mark processed %s: %v", env.ID, err)
			}
			return r.finish(env, models.StateDelivered, attempt, "")
		}

		detail := fmt.Sprintf("attempt %d/%d failed: %v", attempt, r.opts.MaxRetries, lastErr)
		if err := r.led.Record(env, models.StateInFlight, attempt, detail); err != nil {
			log.Printf("router: ledger record attempt %s: %v", env.ID, err)
		}
		log.Printf("router: %s → %s %s", env.Sender, env.Recipient, detail)

		if attempt < r.opts.MaxRetries {
			time.Sleep(r.backoff(attempt))
		}
	}

	detail := fmt.Sprintf("retries exhausted after %d attempts: %v", r.opts.MaxRetries, lastErr)
	res := r.finish(env, models.StateFailed, r.opts.MaxRetries, detail)
	if r.opts.Escalate != nil {
		r.opts.Escalate(env, detail)
	}
	return res
}

// finish records a terminal state and builds the result. The failed envelope
// file stays in the inbox so the watchdog can re-drive it; delivered files
// were already moved to processed.
func (r *Router) finish(env *models.Envelope, state models.DeliveryState, attempts int, detail string) SendResult {
	if env.State != state {
		if err := env.Transition(state); err != nil {
			log.Printf("router: %v", err)
			env.State = state
		}
	}
	if err := r.led.Record(env, state, attempts, detail); err != nil {
		log.Printf("router: ledger record %s %s: %v", env.ID, state, err)
	}
	return SendResult{
		EnvelopeID: env.ID,
		Status:     state,
		Attempts:   attempts,
		Detail:     detail,
	}
}

// yield reports the outcome of an envelope another router claimed first.
// Writes no ledger rows of its own; the claiming router owns the record. If
// the other router already delivered, the leftover inbox file is moved to
// processed here so the mailbox does not drift.
func (r *Router) yield(env *models.Envelope) SendResult {
	state, err := r.led.CurrentState(env.ID)
	if err != nil {
		log.Printf("router: yield %s: %v", env.ID, err)
	}
	if state == models.StateDelivered {
		if err := r.store.MarkProcessed(env.Recipient, env.ID); err != nil {
			log.Printf("router: yield mark processed %s: %v", env.ID, err)
		}
	}
	return SendResult{
		EnvelopeID: env.ID,
		Status:     state,
		Detail:     "claimed by another router",
	}
}

// backoff returns the exponential delay after a failed attempt, capped at
// MaxBackoff.
func (r *Router) backoff(attempt int) time.Duration {
	d := r.opts.BaseBackoff << (attempt - 1)
	if d > r.opts.MaxBackoff || d <= 0 {
		d = r.opts.MaxBackoff
	}
	return d
}

// Close stops accepting sends and waits for in-flight lane work to finish.
func (r *Router) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()

	// Let racing dispatches finish queuing before the lanes close.
	r.dispatchWG.Wait()

	r.mu.Lock()
	for _, lane := range r.lanes {
		close(lane)
	}
	r.mu.Unlock()
	r.laneWG.Wait()
}
