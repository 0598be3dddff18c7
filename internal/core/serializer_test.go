package core

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"incidentcore/internal/infra/persistence/memory"
	"incidentcore/pkg/domain"
)

func appendType(id string) Mutator {
	return func(doc *domain.Document) error {
		doc.IncidentTypes = append(doc.IncidentTypes, domain.TypeRow{ID: id, Type: "fire"})
		return nil
	}
}

func typeIDs(doc domain.Document) []string {
	ids := make([]string, 0, len(doc.IncidentTypes))
	for _, row := range doc.IncidentTypes {
		ids = append(ids, row.ID)
	}
	return ids
}

// blockWorker occupies the worker until the returned release func is called.
func blockWorker(t *testing.T, s *Serializer) (release func(), p *Pending) {
	t.Helper()
	started := make(chan struct{})
	gate := make(chan struct{})
	p = s.Submit(context.Background(), "block", func(*domain.Document) error {
		close(started)
		<-gate
		return ErrUnchanged
	})
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatalf("worker never picked up the blocking mutation")
	}
	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }, p
}

func TestSerializerAppliesInArrivalOrder(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)

	release, _ := blockWorker(t, s)
	var pending []*Pending
	for i := 0; i < 10; i++ {
		pending = append(pending, s.Submit(context.Background(), "append", appendType(fmt.Sprintf("i%d", i))))
	}
	if got := s.Len(); got != 10 {
		t.Fatalf("expected 10 queued mutations, got %d", got)
	}
	release()
	for i, p := range pending {
		doc, err := p.Wait(context.Background())
		if err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
		if got := len(doc.IncidentTypes); got != i+1 {
			t.Fatalf("mutation %d observed %d rows, want %d", i, got, i+1)
		}
	}
	doc, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i, id := range typeIDs(doc) {
		if want := fmt.Sprintf("i%d", i); id != want {
			t.Fatalf("row %d = %s, want %s", i, id, want)
		}
	}
}

func TestSerializerMutatorErrorDoesNotStopQueue(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)
	before := store.Persists()

	boom := errors.New("boom")
	if _, err := s.Schedule(context.Background(), "fail", func(doc *domain.Document) error {
		doc.IncidentTypes = append(doc.IncidentTypes, domain.TypeRow{ID: "ghost"})
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected mutator error, got %v", err)
	}
	if store.Persists() != before {
		t.Fatalf("failed mutation must not persist")
	}
	doc, err := s.Schedule(context.Background(), "ok", appendType("i1"))
	if err != nil {
		t.Fatalf("schedule after failure: %v", err)
	}
	if got := typeIDs(doc); len(got) != 1 || got[0] != "i1" {
		t.Fatalf("rejected mutation leaked into the document: %v", got)
	}
}

func TestSerializerRecoversFromPanics(t *testing.T) {
	s := newTestSerializer(t, memory.NewStore())
	_, err := s.Schedule(context.Background(), "panic", func(*domain.Document) error {
		panic("kaboom")
	})
	if err == nil {
		t.Fatalf("expected panic to surface as an error")
	}
	if _, err := s.Schedule(context.Background(), "ok", appendType("i1")); err != nil {
		t.Fatalf("worker did not survive the panic: %v", err)
	}
}

func TestSerializerUnchangedSkipsPersist(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)
	if _, err := s.Schedule(context.Background(), "seed", appendType("i1")); err != nil {
		t.Fatalf("seed: %v", err)
	}
	before := store.Persists()
	doc, err := s.Schedule(context.Background(), "noop", func(*domain.Document) error { return ErrUnchanged })
	if err != nil {
		t.Fatalf("unchanged mutation must succeed, got %v", err)
	}
	if store.Persists() != before {
		t.Fatalf("unchanged mutation persisted")
	}
	if got := typeIDs(doc); len(got) != 1 {
		t.Fatalf("unchanged mutation should return the current document, got %v", got)
	}
}

func TestSerializerPersistFailureKeepsCommittedDocument(t *testing.T) {
	store := newFlakyStore()
	s := newTestSerializer(t, store)
	if _, err := s.Schedule(context.Background(), "seed", appendType("i1")); err != nil {
		t.Fatalf("seed: %v", err)
	}

	store.failPersist.Store(true)
	_, err := s.Schedule(context.Background(), "lost", appendType("i2"))
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	if !errors.Is(err, errInjected) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}

	store.failPersist.Store(false)
	doc, err := s.Schedule(context.Background(), "next", appendType("i3"))
	if err != nil {
		t.Fatalf("schedule after persist failure: %v", err)
	}
	if got := typeIDs(doc); len(got) != 2 || got[0] != "i1" || got[1] != "i3" {
		t.Fatalf("failed write leaked into the next commit: %v", got)
	}
}

func TestSerializerCanceledBeforeDequeueIsNeverApplied(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)
	release, _ := blockWorker(t, s)
	defer release()

	ctx, cancel := context.WithCancel(context.Background())
	applied := make(chan struct{}, 1)
	p := s.Submit(ctx, "withdrawn", func(doc *domain.Document) error {
		applied <- struct{}{}
		return appendType("ghost")(doc)
	})
	cancel()

	_, err := p.Wait(context.Background())
	if !errors.Is(err, domain.ErrStorageUnavailable) || !errors.Is(err, context.Canceled) {
		t.Fatalf("expected canceled storage error, got %v", err)
	}
	release()
	if _, err := s.Schedule(context.Background(), "after", appendType("i1")); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	select {
	case <-applied:
		t.Fatalf("withdrawn mutation was applied")
	default:
	}
	doc, _ := store.Load(context.Background())
	if got := typeIDs(doc); len(got) != 1 || got[0] != "i1" {
		t.Fatalf("unexpected rows %v", got)
	}
}

func TestSerializerClaimedMutationCompletesDespiteCancel(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)

	ctx, cancel := context.WithCancel(context.Background())
	started := make(chan struct{})
	gate := make(chan struct{})
	p := s.Submit(ctx, "claimed", func(doc *domain.Document) error {
		close(started)
		<-gate
		return appendType("i1")(doc)
	})
	<-started
	cancel()

	result := make(chan error, 1)
	go func() {
		_, err := p.Wait(ctx)
		result <- err
	}()
	close(gate)
	if err := <-result; err != nil {
		t.Fatalf("claimed mutation should report its real outcome, got %v", err)
	}
	doc, _ := store.Load(context.Background())
	if got := typeIDs(doc); len(got) != 1 {
		t.Fatalf("claimed mutation was not persisted: %v", got)
	}
}

func TestSerializerSubmitWithDoneContext(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := s.Schedule(ctx, "late", appendType("i1"))
	if !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
	doc, _ := store.Load(context.Background())
	if len(doc.IncidentTypes) != 0 {
		t.Fatalf("mutation with a done context was applied")
	}
}

func TestSerializerCloseDrainsQueue(t *testing.T) {
	store := memory.NewStore()
	s, err := NewSerializer(context.Background(), store, WithLogger(discardLogger()))
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}
	release, _ := blockWorker(t, s)
	var pending []*Pending
	for i := 0; i < 5; i++ {
		pending = append(pending, s.Submit(context.Background(), "append", appendType(fmt.Sprintf("i%d", i))))
	}
	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	release()
	if err := <-closed; err != nil {
		t.Fatalf("close: %v", err)
	}
	for i, p := range pending {
		select {
		case <-p.Done():
		default:
			t.Fatalf("mutation %d still pending after close", i)
		}
		if _, err := p.Wait(context.Background()); err != nil {
			t.Fatalf("mutation %d: %v", i, err)
		}
	}
	_, err = s.Schedule(context.Background(), "after close", appendType("late"))
	if !errors.Is(err, ErrSerializerClosed) || !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected closed serializer error, got %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}
	doc, _ := store.Load(context.Background())
	if got := len(doc.IncidentTypes); got != 5 {
		t.Fatalf("expected 5 drained rows, got %d", got)
	}
}

func TestSerializerConcurrentSchedulesAllLand(t *testing.T) {
	store := memory.NewStore()
	s := newTestSerializer(t, store)
	const n = 50
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := s.Schedule(context.Background(), "append", appendType(fmt.Sprintf("i%d", i)))
			errs <- err
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	doc, _ := store.Load(context.Background())
	seen := map[string]bool{}
	for _, id := range typeIDs(doc) {
		if seen[id] {
			t.Fatalf("duplicate row %s", id)
		}
		seen[id] = true
	}
	if len(seen) != n {
		t.Fatalf("expected %d rows, got %d", n, len(seen))
	}
}

func TestSerializerReportsQueueDepth(t *testing.T) {
	metrics := newRecordingMetrics()
	s := newTestSerializer(t, memory.NewStore(), WithMetrics(metrics))
	if _, err := s.Schedule(context.Background(), "append", appendType("i1")); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	metrics.mu.Lock()
	depths := append([]int(nil), metrics.depths...)
	metrics.mu.Unlock()
	var sawQueued, sawDrained bool
	for _, d := range depths {
		sawQueued = sawQueued || d == 1
		sawDrained = sawDrained || d == 0
	}
	if !sawQueued || !sawDrained {
		t.Fatalf("unexpected queue depth samples %v", depths)
	}
	if got := metrics.outcomes("persist"); len(got) != 1 || !got[0] {
		t.Fatalf("expected one successful persist, got %v", got)
	}
}

func TestNewSerializerLoadFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewSerializer(ctx, memory.NewStore()); !errors.Is(err, domain.ErrStorageUnavailable) {
		t.Fatalf("expected storage unavailable, got %v", err)
	}
}
