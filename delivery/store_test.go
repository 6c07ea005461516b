package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

func newTestStore(t *testing.T, now time.Time, loc *time.Location) *Store {
	t.Helper()
	s, err := Open(t.TempDir(),
		WithClock(clockwork.NewFakeClockAt(now)),
		WithLocation(loc))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertLocalTimeRoundTrip(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, ist)

	rec, err := s.Insert("r1", "Sam", "hi", "2025-03-15T09:00:00")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	wantUTC := time.Date(2025, 3, 15, 3, 30, 0, 0, time.UTC)
	if !rec.SendAt.UTC().Equal(wantUTC) {
		t.Errorf("stored instant = %v, want %v", rec.SendAt.UTC(), wantUTC)
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 1 {
		t.Fatalf("ListPending() returned %d records, want 1", len(pending))
	}
	if got := pending[0].SendAt.Format("2006-01-02T15:04:05"); got != "2025-03-15T09:00:00" {
		t.Errorf("display time = %s, want 2025-03-15T09:00:00", got)
	}
}

func TestInsertValidation(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	tests := []struct {
		name      string
		recipient string
		text      string
		sendAt    string
	}{
		{name: "past time", recipient: "r1", text: "hi", sendAt: "2025-03-14T11:00:00Z"},
		{name: "exactly now", recipient: "r1", text: "hi", sendAt: "2025-03-14T12:00:00Z"},
		{name: "empty recipient", recipient: "", text: "hi", sendAt: "2025-03-15T12:00:00Z"},
		{name: "empty text", recipient: "r1", text: "", sendAt: "2025-03-15T12:00:00Z"},
		{name: "garbage time", recipient: "r1", text: "hi", sendAt: "next tuesday"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.Insert(tt.recipient, "", tt.text, tt.sendAt)
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Errorf("Insert() error = %v, want ValidationError", err)
			}
		})
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("rejected inserts left %d records behind", len(pending))
	}
}

func TestListPendingOrdering(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	for _, at := range []string{"2025-03-16T10:00:00Z", "2025-03-15T10:00:00Z", "2025-03-17T10:00:00Z"} {
		if _, err := s.Insert("r1", "", "hi", at); err != nil {
			t.Fatalf("Insert(%s) error = %v", at, err)
		}
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("ListPending() returned %d records, want 3", len(pending))
	}
	for i := 1; i < len(pending); i++ {
		if pending[i].SendAt.Before(pending[i-1].SendAt) {
			t.Errorf("records out of order at %d: %v after %v", i, pending[i].SendAt, pending[i-1].SendAt)
		}
	}
}

func TestCancel(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	rec, err := s.Insert("r1", "", "hi", "2025-03-15T10:00:00Z")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}

	if err := s.Cancel(rec.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusCancelled {
		t.Errorf("status = %s, want %s", got.Status, StatusCancelled)
	}

	// Second cancel hits a terminal record.
	err = s.Cancel(rec.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Cancel() twice error = %v, want ConflictError", err)
	}
	if conflict.Status != StatusCancelled {
		t.Errorf("conflict status = %s, want %s", conflict.Status, StatusCancelled)
	}
}

func TestCancelSentRecordConflicts(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	rec, err := s.Insert("r1", "", "hi", "2025-03-15T10:00:00Z")
	if err != nil {
		t.Fatalf("Insert() error = %v", err)
	}
	if err := s.markResult(rec.ID, StatusSent, ""); err != nil {
		t.Fatalf("markResult() error = %v", err)
	}

	err = s.Cancel(rec.ID)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("Cancel() error = %v, want ConflictError", err)
	}
	if conflict.Status != StatusSent {
		t.Errorf("conflict status = %s, want %s", conflict.Status, StatusSent)
	}

	got, err := s.Get(rec.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Status != StatusSent {
		t.Errorf("status changed to %s after rejected cancel", got.Status)
	}
}

func TestCancelUnknownID(t *testing.T) {
	s := newTestStore(t, time.Now(), time.UTC)
	if err := s.Cancel("no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Cancel() error = %v, want ErrNotFound", err)
	}
}

func TestParseSendAt(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+30*60)
	tests := []struct {
		name    string
		value   string
		loc     *time.Location
		want    time.Time
		wantErr bool
	}{
		{
			name:  "rfc3339 with offset",
			value: "2025-03-15T09:00:00+05:30",
			loc:   time.UTC,
			want:  time.Date(2025, 3, 15, 3, 30, 0, 0, time.UTC),
		},
		{
			name:  "rfc3339 utc",
			value: "2025-03-15T09:00:00Z",
			loc:   ist,
			want:  time.Date(2025, 3, 15, 9, 0, 0, 0, time.UTC),
		},
		{
			name:  "naive local",
			value: "2025-03-15T09:00:00",
			loc:   ist,
			want:  time.Date(2025, 3, 15, 3, 30, 0, 0, time.UTC),
		},
		{
			name:    "not a datetime",
			value:   "tomorrow",
			loc:     time.UTC,
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSendAt(tt.value, tt.loc)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseSendAt(%q) succeeded, want error", tt.value)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSendAt(%q) error = %v", tt.value, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseSendAt(%q) = %v, want %v", tt.value, got, tt.want)
			}
		})
	}
}
