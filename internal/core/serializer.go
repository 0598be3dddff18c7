package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"incidentcore/pkg/domain"
)

// Mutator edits a private copy of the latest committed document. Returning an
// error discards the copy; returning ErrUnchanged reports success without
// persisting.
type Mutator func(doc *domain.Document) error

// ErrUnchanged is returned by a mutator that decided no change is needed.
var ErrUnchanged = errors.New("document unchanged")

// ErrSerializerClosed is returned for submissions after Close.
var ErrSerializerClosed = &domain.Error{
	Kind: domain.KindStorageUnavailable,
	Op:   "schedule",
	Err:  errors.New("serializer closed"),
}

const (
	pendingQueued int32 = iota
	pendingClaimed
	pendingCanceled
)

// Pending is a submitted mutation. Its outcome is delivered exactly once.
type Pending struct {
	ctx        context.Context
	op         string
	mutate     Mutator
	state      atomic.Int32
	stop       func() bool
	done       chan struct{}
	doc        domain.Document
	err        error
	enqueuedAt time.Time
}

func newPending(ctx context.Context, op string, m Mutator) *Pending {
	return &Pending{ctx: ctx, op: op, mutate: m, done: make(chan struct{}), enqueuedAt: time.Now()}
}

func (p *Pending) finish(doc domain.Document, err error) {
	p.doc, p.err = doc, err
	close(p.done)
}

// cancel withdraws the mutation if the worker has not claimed it yet.
func (p *Pending) cancel(cause error) bool {
	if !p.state.CompareAndSwap(pendingQueued, pendingCanceled) {
		return false
	}
	p.finish(domain.Document{}, domain.StorageError(p.op, fmt.Errorf("canceled before apply: %w", cause)))
	return true
}

// Done is closed once the outcome is available.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Wait blocks until the mutation has been applied and persisted, has failed,
// or ctx ends. When ctx ends before the worker claims the mutation it is
// withdrawn and never applied; once claimed, Wait returns its real outcome.
func (p *Pending) Wait(ctx context.Context) (domain.Document, error) {
	select {
	case <-p.done:
		return p.doc, p.err
	case <-ctx.Done():
		p.cancel(ctx.Err())
		<-p.done
		return p.doc, p.err
	}
}

// Serializer applies mutations to the document one at a time in arrival
// order. A single worker goroutine owns the committed document; each mutation
// runs against a clone which replaces it only after a successful Persist.
type Serializer struct {
	store   domain.DocumentStore
	logger  *slog.Logger
	metrics MetricsRecorder

	mu     sync.Mutex
	queue  []*Pending
	closed bool
	signal chan struct{} // buffered, size 1

	current domain.Document
	done    chan struct{}
}

// NewSerializer loads the current document from store and starts the worker.
func NewSerializer(ctx context.Context, store domain.DocumentStore, opts ...Option) (*Serializer, error) {
	o := applyOptions(opts)
	doc, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	s := &Serializer{
		store:   store,
		logger:  o.logger,
		metrics: o.metrics,
		queue:   make([]*Pending, 0, 16),
		signal:  make(chan struct{}, 1),
		current: doc,
		done:    make(chan struct{}),
	}
	go s.run()
	return s, nil
}

// Submit enqueues m and returns immediately. A context that ends before the
// worker reaches the mutation withdraws it.
func (s *Serializer) Submit(ctx context.Context, op string, m Mutator) *Pending {
	p := newPending(ctx, op, m)
	if err := ctx.Err(); err != nil {
		p.state.Store(pendingCanceled)
		p.finish(domain.Document{}, domain.StorageError(op, fmt.Errorf("canceled before apply: %w", err)))
		return p
	}
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		p.state.Store(pendingCanceled)
		p.finish(domain.Document{}, ErrSerializerClosed)
		return p
	}
	p.stop = context.AfterFunc(ctx, func() { p.cancel(context.Cause(ctx)) })
	s.queue = append(s.queue, p)
	// gauge updates stay under mu so samples land in queue order
	s.metrics.QueueDepth(len(s.queue))
	select {
	case s.signal <- struct{}{}:
	default:
	}
	s.mu.Unlock()
	return p
}

// Schedule submits m and waits for its outcome. The returned document is a
// copy of the committed state right after m was applied.
func (s *Serializer) Schedule(ctx context.Context, op string, m Mutator) (domain.Document, error) {
	return s.Submit(ctx, op, m).Wait(ctx)
}

// Len returns the number of queued mutations not yet taken by the worker.
func (s *Serializer) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

// Close stops accepting submissions, lets the worker drain what is queued,
// and waits for it to exit. It does not close the store.
func (s *Serializer) Close() error {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.signal)
	}
	s.mu.Unlock()
	<-s.done
	return nil
}

func (s *Serializer) run() {
	defer close(s.done)
	for {
		p, ok := s.next()
		if !ok {
			return
		}
		s.apply(p)
	}
}

// next blocks until a mutation is queued or the queue is closed and empty.
func (s *Serializer) next() (*Pending, bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			p := s.queue[0]
			s.queue[0] = nil
			s.queue = s.queue[1:]
			s.metrics.QueueDepth(len(s.queue))
			s.mu.Unlock()
			return p, true
		}
		if s.closed {
			s.mu.Unlock()
			return nil, false
		}
		s.mu.Unlock()
		<-s.signal
	}
}

func (s *Serializer) apply(p *Pending) {
	if !p.state.CompareAndSwap(pendingQueued, pendingClaimed) {
		s.logger.Debug("mutation withdrawn before apply", "op", p.op)
		return
	}
	if p.stop != nil {
		p.stop()
	}
	start := time.Now()
	next := s.current.Clone()
	err := runMutator(p.op, p.mutate, &next)
	switch {
	case errors.Is(err, ErrUnchanged):
		s.metrics.Observe(p.ctx, "mutation", true, time.Since(start))
		p.finish(s.current.Clone(), nil)
		return
	case err != nil:
		s.logger.Debug("mutation rejected", "op", p.op, "error", err)
		s.metrics.Observe(p.ctx, "mutation", false, time.Since(start))
		p.finish(domain.Document{}, err)
		return
	}
	// the caller may stop waiting now; the claimed mutation still has to land
	persistStart := time.Now()
	if err := s.store.Persist(context.WithoutCancel(p.ctx), next); err != nil {
		s.logger.Error("persist failed", "op", p.op, "error", err)
		s.metrics.Observe(p.ctx, "persist", false, time.Since(persistStart))
		s.metrics.Observe(p.ctx, "mutation", false, time.Since(start))
		p.finish(domain.Document{}, domain.StorageError(p.op, err))
		return
	}
	s.metrics.Observe(p.ctx, "persist", true, time.Since(persistStart))
	s.metrics.Observe(p.ctx, "mutation", true, time.Since(start))
	s.current = next
	s.logger.Debug("mutation committed", "op", p.op, "queued_for", time.Since(p.enqueuedAt))
	p.finish(next.Clone(), nil)
}

func runMutator(op string, m Mutator, doc *domain.Document) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: mutation panicked: %v", op, r)
		}
	}()
	return m(doc)
}
