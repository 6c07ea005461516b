package delivery

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// stubSender records sends and returns a scripted outcome.
type stubSender struct {
	mu    sync.Mutex
	fail  error
	calls []string
}

func (s *stubSender) Send(ctx context.Context, recipientID, text string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, recipientID)
	if s.fail != nil {
		return "", s.fail
	}
	return "msg-1", nil
}

func (s *stubSender) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestRunOnceMarksSent(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	s := newTestStore(t, now, time.UTC)
	// Store and worker share the clock so due-selection follows the fake time.
	s.clock = clock

	rec, err := s.Insert("r1", "Sam", "hi", "2025-03-14T00:00:01Z")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	sender := &stubSender{}
	w := NewWorker(s, sender, WithWorkerClock(clock))

	// Not yet due.
	sent, failed := w.RunOnce(context.Background())
	if sent != 0 || failed != 0 {
		t.Fatalf("early tick sent=%d failed=%d, want 0,0", sent, failed)
	}

	clock.Advance(2 * time.Second)
	sent, failed = w.RunOnce(context.Background())
	if sent != 1 || failed != 0 {
		t.Fatalf("due tick sent=%d failed=%d, want 1,0", sent, failed)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status = %s, want %s", got.Status, StatusSent)
	}

	// A further tick must not touch the terminal record.
	sent, failed = w.RunOnce(context.Background())
	if sent != 0 || failed != 0 {
		t.Errorf("repeat tick sent=%d failed=%d, want 0,0", sent, failed)
	}
	if sender.callCount() != 1 {
		t.Errorf("send attempts = %d, want 1", sender.callCount())
	}
}

func TestRunOnceMarksFailedWithReason(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	s := newTestStore(t, now, time.UTC)
	s.clock = clock

	rec, err := s.Insert("r1", "Sam", "hi", "2025-03-14T00:00:01Z")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	sender := &stubSender{fail: errors.New("bridge unreachable: connection refused")}
	w := NewWorker(s, sender, WithWorkerClock(clock))

	clock.Advance(2 * time.Second)
	sent, failed := w.RunOnce(context.Background())
	if sent != 0 || failed != 1 {
		t.Fatalf("tick sent=%d failed=%d, want 0,1", sent, failed)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusFailed {
		t.Errorf("status = %s, want %s", got.Status, StatusFailed)
	}
	if got.Error != "bridge unreachable: connection refused" {
		t.Errorf("failure reason = %q, not captured verbatim", got.Error)
	}

	// Failed records get no retry.
	sent, failed = w.RunOnce(context.Background())
	if sent != 0 || failed != 0 {
		t.Errorf("repeat tick sent=%d failed=%d, want 0,0", sent, failed)
	}
	if sender.callCount() != 1 {
		t.Errorf("send attempts = %d, want 1", sender.callCount())
	}
}

func TestRunOnceSkipsCancelledRecord(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	clock := clockwork.NewFakeClockAt(now)
	s := newTestStore(t, now, time.UTC)
	s.clock = clock

	rec, err := s.Insert("r1", "Sam", "hi", "2025-03-14T00:00:01Z")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.Cancel(rec.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	sender := &stubSender{}
	w := NewWorker(s, sender, WithWorkerClock(clock))
	clock.Advance(2 * time.Second)
	sent, failed := w.RunOnce(context.Background())
	if sent != 0 || failed != 0 {
		t.Errorf("tick sent=%d failed=%d, want 0,0", sent, failed)
	}
	if sender.callCount() != 0 {
		t.Errorf("cancelled record was sent")
	}
}

func TestWorkerStartStop(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)
	w := NewWorker(s, &stubSender{}, WithWorkerClock(clockwork.NewFakeClockAt(now)))

	if w.IsRunning() {
		t.Fatal("new worker reports running")
	}
	w.Start()
	if !w.IsRunning() {
		t.Fatal("worker not running after Start")
	}
	w.Start() // no-op
	w.Stop()
	if w.IsRunning() {
		t.Fatal("worker still running after Stop")
	}
	w.Stop() // no-op
}
