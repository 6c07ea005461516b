package delivery

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/msgpilot/msgpilot/bridge"
	"github.com/msgpilot/msgpilot/internal/metrics"
	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/logger"
)

// Worker is the background loop that drains due deliveries from the store.
// Each due record gets exactly one send attempt: success marks it sent,
// any failure marks it failed with the reason. There is no retry; a failed
// record requires a fresh schedule.
type Worker struct {
	store    *Store
	sender   bridge.Sender
	interval time.Duration
	clock    clockwork.Clock

	mu      sync.Mutex
	running bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithInterval overrides the poll period.
func WithInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

// WithWorkerClock injects the clock driving the poll ticker.
func WithWorkerClock(clock clockwork.Clock) WorkerOption {
	return func(w *Worker) { w.clock = clock }
}

// NewWorker creates a delivery worker over the given store and sender.
func NewWorker(store *Store, sender bridge.Sender, opts ...WorkerOption) *Worker {
	w := &Worker{
		store:    store,
		sender:   sender,
		interval: runtimecfg.DeliveryDefaultPollInterval,
		clock:    clockwork.NewRealClock(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start launches the poll loop. Starting a running worker is a no-op.
func (w *Worker) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return
	}
	w.running = true
	w.stop = make(chan struct{})
	w.wg.Add(1)
	go w.loop(w.stop)
	logger.Info("delivery worker started", "interval", w.interval)
}

// Stop halts the poll loop and waits for an in-flight tick to finish.
// Stopping a stopped worker is a no-op.
func (w *Worker) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	close(w.stop)
	w.mu.Unlock()

	w.wg.Wait()
	logger.Info("delivery worker stopped")
}

// IsRunning reports whether the poll loop is active.
func (w *Worker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

func (w *Worker) loop(stop <-chan struct{}) {
	defer w.wg.Done()

	ticker := w.clock.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.Chan():
			w.RunOnce(context.Background())
		}
	}
}

// RunOnce executes a single poll cycle: read due pending records and attempt
// each one. Exported so a tick can be driven directly in tests and tooling.
func (w *Worker) RunOnce(ctx context.Context) (sent, failed int) {
	metrics.WorkerTicks.Inc()

	due, err := w.store.duePending(w.clock.Now())
	if err != nil {
		logger.Error("delivery worker read failed", "err", err)
		return 0, 0
	}

	for _, d := range due {
		messageID, sendErr := w.send(ctx, d)
		if sendErr != nil {
			if err := w.store.markResult(d.ID, StatusFailed, sendErr.Error()); err != nil {
				// Lost to a concurrent cancel; the record is already terminal.
				logger.Warn("delivery result not recorded", "id", d.ID, "err", err)
				continue
			}
			metrics.DeliveriesFailed.Inc()
			failed++
			logger.Error("scheduled delivery failed", "id", d.ID, "recipient", d.RecipientName, "err", sendErr)
			continue
		}

		if err := w.store.markResult(d.ID, StatusSent, ""); err != nil {
			logger.Warn("delivery result not recorded", "id", d.ID, "err", err)
			continue
		}
		metrics.DeliveriesSent.Inc()
		sent++
		logger.Info("scheduled delivery sent", "id", d.ID, "recipient", d.RecipientName, "messageID", messageID)
	}
	return sent, failed
}

func (w *Worker) send(ctx context.Context, d Delivery) (string, error) {
	sendCtx, cancel := context.WithTimeout(ctx, runtimecfg.DeliverySendTimeout)
	defer cancel()
	return w.sender.Send(sendCtx, d.RecipientID, d.Text)
}
