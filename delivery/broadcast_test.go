package delivery

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestPlanBroadcastStagger(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	recipients := []Recipient{
		{RecipientID: "r1", Message: "hi"},
		{RecipientID: "r2", Message: "hi"},
		{RecipientID: "r3", Message: "hi"},
	}
	created, stagger, err := s.PlanBroadcast(recipients, "2025-03-15T10:00:00Z", 45)
	if err != nil {
		t.Fatalf("PlanBroadcast() error = %v", err)
	}
	if stagger != 45 {
		t.Errorf("stagger = %d, want 45", stagger)
	}
	if len(created) != 3 {
		t.Fatalf("created %d records, want 3", len(created))
	}

	base := time.Date(2025, 3, 15, 10, 0, 0, 0, time.UTC)
	for i, rec := range created {
		want := base.Add(time.Duration(i*45) * time.Second)
		if !rec.SendAt.UTC().Equal(want) {
			t.Errorf("recipient %d send time = %v, want %v", i, rec.SendAt.UTC(), want)
		}
		if rec.RecipientID != recipients[i].RecipientID {
			t.Errorf("recipient %d id = %s, input order not preserved", i, rec.RecipientID)
		}
	}
}

func TestPlanBroadcastStaggerClamping(t *testing.T) {
	tests := []struct {
		name    string
		stagger int
		want    int
	}{
		{name: "below minimum", stagger: 5, want: 15},
		{name: "omitted takes the default", stagger: 0, want: 45},
		{name: "in range", stagger: 120, want: 120},
		{name: "above maximum", stagger: 900, want: 300},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
			s := newTestStore(t, now, time.UTC)

			_, got, err := s.PlanBroadcast(
				[]Recipient{{RecipientID: "r1", Message: "hi"}},
				"2025-03-15T10:00:00Z", tt.stagger)
			if err != nil {
				t.Fatalf("PlanBroadcast() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("effective stagger = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPlanBroadcastSkipsMalformedEntries(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	recipients := []Recipient{
		{RecipientID: "r1", Message: "hi"},
		{RecipientID: "", Message: "hi"},
		{RecipientID: "r3", Message: ""},
		{RecipientID: "r4", Message: "hi"},
	}
	created, _, err := s.PlanBroadcast(recipients, "2025-03-15T10:00:00Z", 15)
	if err != nil {
		t.Fatalf("PlanBroadcast() error = %v", err)
	}
	if len(created) != 2 {
		t.Fatalf("created %d records, want 2", len(created))
	}
	if created[0].RecipientID != "r1" || created[1].RecipientID != "r4" {
		t.Errorf("created recipients = %s, %s; want r1, r4", created[0].RecipientID, created[1].RecipientID)
	}
}

func TestPlanBroadcastRecipientLimits(t *testing.T) {
	now := time.Date(2025, 3, 14, 0, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	_, _, err := s.PlanBroadcast(nil, "2025-03-15T10:00:00Z", 15)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("empty list error = %v, want ValidationError", err)
	}

	over := make([]Recipient, 51)
	for i := range over {
		over[i] = Recipient{RecipientID: fmt.Sprintf("r%d", i), Message: "hi"}
	}
	_, _, err = s.PlanBroadcast(over, "2025-03-15T10:00:00Z", 15)
	if !errors.As(err, &verr) {
		t.Errorf("over-limit list error = %v, want ValidationError", err)
	}

	pending, err := s.ListPending()
	if err != nil {
		t.Fatalf("ListPending() error = %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("rejected plans left %d records behind", len(pending))
	}
}

func TestPlanBroadcastPastBaseTime(t *testing.T) {
	now := time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)
	s := newTestStore(t, now, time.UTC)

	_, _, err := s.PlanBroadcast(
		[]Recipient{{RecipientID: "r1", Message: "hi"}},
		"2025-03-14T11:00:00Z", 15)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Errorf("past base error = %v, want ValidationError", err)
	}
}
