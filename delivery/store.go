// Package delivery implements the scheduled-delivery subsystem: a durable
// queue of deferred sends, a background worker that executes them, and a
// broadcast planner that staggers multi-recipient sends.
package delivery

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/msgpilot/msgpilot/logger"
)

// Status is the lifecycle state of a scheduled delivery. pending is the only
// non-terminal status; terminal statuses never change again.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSent      Status = "sent"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusCancelled || s == StatusFailed
}

// Delivery is one scheduled outbound message. SendAt is persisted as a UTC
// instant; reads convert to the store's display location.
type Delivery struct {
	ID            string    `json:"id"`
	RecipientID   string    `json:"recipient_id"`
	RecipientName string    `json:"recipient_name"`
	Text          string    `json:"message"`
	SendAt        time.Time `json:"send_at"`
	Status        Status    `json:"status"`
	Error         string    `json:"error,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// ValidationError reports rejected input; no side effect occurred.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ConflictError reports a state transition refused because the record is
// already in a terminal status.
type ConflictError struct {
	ID     string
	Status Status
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("delivery %s is already %s", e.ID, e.Status)
}

// ErrNotFound is returned when no delivery exists for an id.
var ErrNotFound = fmt.Errorf("scheduled delivery not found")

const keyPrefix = "delivery:"

// Store is the durable record of deferred sends. All reads and writes are
// serialized through one coarse mutex shared with the worker, so a manual
// cancel and a worker tick can never both win on the same record.
type Store struct {
	mu    sync.Mutex
	db    *pebble.DB
	clock clockwork.Clock
	loc   *time.Location
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithClock injects the clock used for now-checks.
func WithClock(clock clockwork.Clock) StoreOption {
	return func(s *Store) { s.clock = clock }
}

// WithLocation sets the location used to interpret naive send times and to
// render times on reads. Defaults to the process-local timezone.
func WithLocation(loc *time.Location) StoreOption {
	return func(s *Store) { s.loc = loc }
}

// Open opens (or creates) the delivery store at the given path.
func Open(path string, opts ...StoreOption) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("open delivery store: %w", err)
	}

	s := &Store{
		db:    db,
		clock: clockwork.NewRealClock(),
		loc:   time.Local,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// ParseSendAt parses an ISO 8601 send time. A value without a UTC offset is
// interpreted in loc (the caller's local time) and normalized to UTC.
func ParseSendAt(value string, loc *time.Location) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.ParseInLocation("2006-01-02T15:04:05", value, loc); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, &ValidationError{Reason: fmt.Sprintf("invalid datetime format: %s", value)}
}

// Insert schedules a single delivery. sendAt must be strictly in the future;
// past times are rejected, never clamped. The returned record's SendAt is in
// the store's display location.
func (s *Store) Insert(recipientID, recipientName, text, sendAt string) (*Delivery, error) {
	at, err := ParseSendAt(sendAt, s.loc)
	if err != nil {
		return nil, err
	}
	return s.InsertAt(recipientID, recipientName, text, at)
}

// InsertAt schedules a single delivery at an absolute instant.
func (s *Store) InsertAt(recipientID, recipientName, text string, sendAt time.Time) (*Delivery, error) {
	if strings.TrimSpace(recipientID) == "" {
		return nil, &ValidationError{Reason: "recipient id is required"}
	}
	if strings.TrimSpace(text) == "" {
		return nil, &ValidationError{Reason: "message text is required"}
	}

	at := sendAt.UTC()
	now := s.clock.Now().UTC()
	if !at.After(now) {
		return nil, &ValidationError{Reason: "scheduled time must be in the future"}
	}

	rec := Delivery{
		ID:            uuid.NewString(),
		RecipientID:   recipientID,
		RecipientName: recipientName,
		Text:          text,
		SendAt:        at,
		Status:        StatusPending,
		CreatedAt:     now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.putLocked(&rec); err != nil {
		return nil, err
	}

	logger.Info("delivery scheduled", "id", rec.ID, "recipient", recipientName, "sendAt", at)
	out := rec
	out.SendAt = out.SendAt.In(s.loc)
	return &out, nil
}

// ListPending returns pending deliveries ordered by send time ascending,
// with send times converted to the display location.
func (s *Store) ListPending() ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.listLocked()
	if err != nil {
		return nil, err
	}

	pending := make([]Delivery, 0, len(all))
	for _, d := range all {
		if d.Status != StatusPending {
			continue
		}
		d.SendAt = d.SendAt.In(s.loc)
		pending = append(pending, d)
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].SendAt.Before(pending[j].SendAt) })
	return pending, nil
}

// Get returns one delivery by id with its send time in the display location.
func (s *Store) Get(id string) (*Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.getLocked(id)
	if err != nil {
		return nil, err
	}
	d.SendAt = d.SendAt.In(s.loc)
	return d, nil
}

// Cancel cancels a pending delivery. A record already in a terminal status
// is left untouched and reported as a conflict.
func (s *Store) Cancel(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.getLocked(id)
	if err != nil {
		return err
	}
	if d.Status != StatusPending {
		return &ConflictError{ID: id, Status: d.Status}
	}

	d.Status = StatusCancelled
	if err := s.putLocked(d); err != nil {
		return err
	}
	logger.Info("delivery cancelled", "id", id)
	return nil
}

// duePending returns pending deliveries whose send time has arrived, in UTC.
func (s *Store) duePending(now time.Time) ([]Delivery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.listLocked()
	if err != nil {
		return nil, err
	}

	due := make([]Delivery, 0)
	for _, d := range all {
		if d.Status == StatusPending && !d.SendAt.After(now.UTC()) {
			due = append(due, d)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].SendAt.Before(due[j].SendAt) })
	return due, nil
}

// markResult transitions a pending delivery to sent or failed. A record that
// is no longer pending (for example cancelled between the worker's read and
// its send) is skipped with a conflict.
func (s *Store) markResult(id string, status Status, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	d, err := s.getLocked(id)
	if err != nil {
		return err
	}
	if d.Status != StatusPending {
		return &ConflictError{ID: id, Status: d.Status}
	}

	d.Status = status
	d.Error = reason
	return s.putLocked(d)
}

func (s *Store) putLocked(d *Delivery) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return s.db.Set([]byte(keyPrefix+d.ID), data, pebble.Sync)
}

func (s *Store) getLocked(id string) (*Delivery, error) {
	data, closer, err := s.db.Get([]byte(keyPrefix + id))
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, err
	}
	defer closer.Close()

	var d Delivery
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func (s *Store) listLocked() ([]Delivery, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	prefix := []byte(keyPrefix)
	var out []Delivery
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !strings.HasPrefix(string(iter.Key()), keyPrefix) {
			break
		}
		var d Delivery
		if err := json.Unmarshal(iter.Value(), &d); err != nil {
			logger.Warn("skipping undecodable delivery record", "key", string(iter.Key()), "err", err)
			continue
		}
		out = append(out, d)
	}
	return out, nil
}
