package delivery

import (
	"strings"
	"time"

	"github.com/msgpilot/msgpilot/internal/runtimecfg"
	"github.com/msgpilot/msgpilot/logger"
)

// Recipient is one entry in a broadcast plan.
type Recipient struct {
	RecipientID   string `json:"recipient_id"`
	RecipientName string `json:"recipient_name"`
	Message       string `json:"message"`
}

// PlanBroadcast schedules one delivery per recipient, staggered so the sends
// do not all fire at once. Recipient i is assigned base + i*stagger, in input
// order. stagger is clamped into [15,300] seconds rather than rejected.
// Entries missing a recipient id or message text are skipped without failing
// the batch. Each created record goes through the store's normal insert
// validation. Returns the created records and the effective stagger.
func (s *Store) PlanBroadcast(recipients []Recipient, sendAt string, staggerSeconds int) ([]Delivery, int, error) {
	if len(recipients) == 0 {
		return nil, 0, &ValidationError{Reason: "no recipients provided"}
	}
	if len(recipients) > runtimecfg.BroadcastMaxRecipients {
		return nil, 0, &ValidationError{Reason: "too many recipients (max 50)"}
	}

	if staggerSeconds == 0 {
		staggerSeconds = runtimecfg.BroadcastDefaultStagger
	}
	if staggerSeconds < runtimecfg.BroadcastMinStaggerSeconds {
		staggerSeconds = runtimecfg.BroadcastMinStaggerSeconds
	}
	if staggerSeconds > runtimecfg.BroadcastMaxStaggerSeconds {
		staggerSeconds = runtimecfg.BroadcastMaxStaggerSeconds
	}

	base, err := ParseSendAt(sendAt, s.loc)
	if err != nil {
		return nil, 0, err
	}

	created := make([]Delivery, 0, len(recipients))
	for i, r := range recipients {
		if strings.TrimSpace(r.RecipientID) == "" || strings.TrimSpace(r.Message) == "" {
			logger.Warn("broadcast entry skipped", "position", i, "recipient", r.RecipientName)
			continue
		}

		at := base.Add(time.Duration(i*staggerSeconds) * time.Second)
		rec, err := s.InsertAt(r.RecipientID, r.RecipientName, r.Message, at)
		if err != nil {
			return nil, 0, err
		}
		created = append(created, *rec)
	}

	logger.Info("broadcast planned", "count", len(created), "staggerSeconds", staggerSeconds)
	return created, staggerSeconds, nil
}
