package core

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"incidentcore/internal/credential"
	"incidentcore/internal/infra/persistence/memory"
	"incidentcore/pkg/domain"

	"golang.org/x/crypto/bcrypt"
)

var errInjected = errors.New("injected persist failure")

// flakyStore wraps the memory store and fails Persist on demand.
type flakyStore struct {
	*memory.Store
	failPersist atomic.Bool
	gate        chan struct{} // when non-nil, Persist blocks until closed
}

func newFlakyStore() *flakyStore {
	return &flakyStore{Store: memory.NewStore()}
}

func (f *flakyStore) Persist(ctx context.Context, doc domain.Document) error {
	if f.gate != nil {
		<-f.gate
	}
	if f.failPersist.Load() {
		return domain.StorageError("flaky persist", errInjected)
	}
	return f.Store.Persist(ctx, doc)
}

// recordingMetrics captures everything reported to a MetricsRecorder.
type recordingMetrics struct {
	mu       sync.Mutex
	observed map[string][]bool
	depths   []int
	corrupt  map[string]int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{observed: map[string][]bool{}, corrupt: map[string]int{}}
}

func (m *recordingMetrics) Observe(_ context.Context, op string, success bool, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observed[op] = append(m.observed[op], success)
}

func (m *recordingMetrics) QueueDepth(depth int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.depths = append(m.depths, depth)
}

func (m *recordingMetrics) CorruptFragment(entity domain.EntityType, collection string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corrupt[string(entity)+"/"+collection]++
}

func (m *recordingMetrics) corruptCount(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.corrupt[key]
}

func (m *recordingMetrics) outcomes(op string) []bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]bool(nil), m.observed[op]...)
}

// syncBuffer is a goroutine safe log sink.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func sequentialIDs(prefix string) func() string {
	var n atomic.Int64
	return func() string { return fmt.Sprintf("%s-%d", prefix, n.Add(1)) }
}

func fixedClock() func() time.Time {
	at := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time { return at.Add(time.Duration(n.Add(1)) * time.Second) }
}

func newTestSerializer(t *testing.T, store domain.DocumentStore, opts ...Option) *Serializer {
	t.Helper()
	s, err := NewSerializer(context.Background(), store, append([]Option{WithLogger(discardLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("new serializer: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newTestRepository(t *testing.T, store domain.DocumentStore, opts ...Option) *Repository {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger())}, opts...)
	return NewRepository(store, newTestSerializer(t, store, opts...), opts...)
}

func newTestService(t *testing.T, store domain.DocumentStore, opts ...Option) *Service {
	t.Helper()
	opts = append([]Option{WithLogger(discardLogger()), WithHasher(credential.NewHasher(bcrypt.MinCost))}, opts...)
	svc, err := NewService(context.Background(), store, opts...)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func strPtr(s string) *string { return &s }

func newBufferLogger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug}))
}
