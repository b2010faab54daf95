package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/truefeedback/feedback-system/internal/core/ports"
)

type recordingSender struct {
	mu       sync.Mutex
	calls    []ports.DeliveryJob
	failures int
	done     chan struct{}
}

func (s *recordingSender) SendVerificationEmail(ctx context.Context, email, username, code string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, ports.DeliveryJob{Email: email, Username: username, Code: code})
	if s.failures > 0 {
		s.failures--
		return errors.New("smtp unavailable")
	}
	if s.done != nil {
		close(s.done)
		s.done = nil
	}
	return nil
}

func (s *recordingSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type recordingMarker struct {
	mu      sync.Mutex
	marked  []string
	cleared []string
}

func (m *recordingMarker) Mark(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.marked = append(m.marked, username)
	return nil
}

func (m *recordingMarker) Clear(ctx context.Context, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cleared = append(m.cleared, username)
	return nil
}

func newTestDispatcher(sender ports.EmailSender, marker DeliveryMarker) *Dispatcher {
	d := NewDispatcher(2, sender, marker, zerolog.Nop())
	d.retryDelay = 5 * time.Millisecond
	return d
}

func waitFor(t *testing.T, done <-chan struct{}) {
	t.Helper()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for delivery")
	}
}

func TestDispatcher_DeliversAndClearsMarker(t *testing.T) {
	done := make(chan struct{})
	sender := &recordingSender{done: done}
	marker := &recordingMarker{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newTestDispatcher(sender, marker)
	d.Start(ctx)

	job := ports.NewDeliveryJob("alice@example.com", "alice", "123456")
	if err := d.Schedule(ctx, job); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	waitFor(t, done)

	marker.mu.Lock()
	defer marker.mu.Unlock()
	if len(marker.marked) != 1 || marker.marked[0] != "alice" {
		t.Fatalf("expected mark for alice, got %v", marker.marked)
	}
	if len(marker.cleared) != 1 || marker.cleared[0] != "alice" {
		t.Fatalf("expected marker cleared after delivery, got %v", marker.cleared)
	}
}

func TestDispatcher_RetriesUntilSuccess(t *testing.T) {
	done := make(chan struct{})
	sender := &recordingSender{failures: 2, done: done}
	marker := &recordingMarker{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newTestDispatcher(sender, marker)
	d.Start(ctx)

	if err := d.Schedule(ctx, ports.NewDeliveryJob("bob@example.com", "bob", "654321")); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	waitFor(t, done)

	if got := sender.callCount(); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := &recordingSender{failures: 100}
	marker := &recordingMarker{}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	d := newTestDispatcher(sender, marker)
	d.maxAttempts = 2
	d.Start(ctx)

	job := ports.NewDeliveryJob("carol@example.com", "carol", "111111")
	if err := d.Schedule(ctx, job); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	// First attempt plus one retry, then the job is dropped.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if sender.callCount() >= 2 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(50 * time.Millisecond)

	if got := sender.callCount(); got != 2 {
		t.Fatalf("expected exactly 2 attempts, got %d", got)
	}

	marker.mu.Lock()
	defer marker.mu.Unlock()
	if len(marker.cleared) != 0 {
		t.Fatalf("marker must not be cleared on failure, got %v", marker.cleared)
	}
}

func TestDispatcher_ShardIsStablePerUsername(t *testing.T) {
	d := NewDispatcher(4, &recordingSender{}, nil, zerolog.Nop())

	for _, name := range []string{"alice", "bob", "carol"} {
		first := d.shardIndex(name)
		for i := 0; i < 10; i++ {
			if got := d.shardIndex(name); got != first {
				t.Fatalf("shard for %s changed: %d vs %d", name, first, got)
			}
		}
	}
}
