package leads

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

// Lead is a confirmed booking as stored by the clinic.
type Lead struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	From      string    `json:"from"`
	Name      string    `json:"name"`
	Period    string    `json:"period"`
	Slot      string    `json:"slot"`
	Channel   string    `json:"channel"`
	CreatedAt time.Time `json:"created_at"`
}

// FromRecord assigns an id to a lead record produced by the dialogue engine.
func FromRecord(rec dialogue.LeadRecord) *Lead {
	created := rec.Timestamp.UTC()
	if created.IsZero() {
		created = time.Now().UTC()
	}
	return &Lead{
		ID:        uuid.New().String(),
		UserID:    rec.UserID,
		From:      rec.RawSender,
		Name:      rec.PatientName,
		Period:    string(rec.Period),
		Slot:      rec.SlotChoice,
		Channel:   rec.Channel,
		CreatedAt: created,
	}
}

// ValidateRecord checks the fields every sink relies on.
func ValidateRecord(rec dialogue.LeadRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return ErrMissingUserID
	}
	if strings.TrimSpace(rec.PatientName) == "" {
		return ErrInvalidName
	}
	if rec.Period == "" || rec.SlotChoice == "" {
		return ErrMissingSlot
	}
	return nil
}

// ListFilter pages through stored leads, newest first.
type ListFilter struct {
	Limit  int
	Offset int
}

func (f ListFilter) normalized() ListFilter {
	if f.Limit <= 0 || f.Limit > 100 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}
