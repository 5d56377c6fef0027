package leads

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

var csvHeader = []string{"timestamp", "from", "name", "period", "slot", "channel"}

// CSVSink appends leads to a local CSV file, writing the header once.
type CSVSink struct {
	mu   sync.Mutex
	path string
}

// NewCSVSink returns a sink for path. The file is created on first append.
func NewCSVSink(path string) *CSVSink {
	if path == "" {
		panic("leads: csv path required")
	}
	return &CSVSink{path: path}
}

// Append writes one row.
func (s *CSVSink) Append(_ context.Context, rec dialogue.LeadRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("leads: open csv: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("leads: stat csv: %w", err)
	}

	w := csv.NewWriter(f)
	if info.Size() == 0 {
		if err := w.Write(csvHeader); err != nil {
			return fmt.Errorf("leads: write csv header: %w", err)
		}
	}
	row := []string{
		rec.Timestamp.UTC().Format(time.RFC3339),
		rec.RawSender,
		rec.PatientName,
		string(rec.Period),
		rec.SlotChoice,
		rec.Channel,
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("leads: write csv row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("leads: flush csv: %w", err)
	}
	return nil
}
