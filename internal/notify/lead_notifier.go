package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

// LeadNotifier emails the front desk whenever a booking is confirmed.
// It satisfies leads.Sink so it can join the sink fan-out.
type LeadNotifier struct {
	sender     EmailSender
	to         string
	clinicName string
	logger     *logging.Logger
}

// NewLeadNotifier returns nil when sender or recipient is missing.
func NewLeadNotifier(sender EmailSender, to, clinicName string, logger *logging.Logger) *LeadNotifier {
	if sender == nil || strings.TrimSpace(to) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &LeadNotifier{sender: sender, to: to, clinicName: clinicName, logger: logger}
}

// Append sends the notification email.
func (n *LeadNotifier) Append(ctx context.Context, rec dialogue.LeadRecord) error {
	msg := BuildLeadEmail(rec, n.clinicName)
	msg.To = n.to
	if err := n.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("notify: lead email: %w", err)
	}
	n.logger.Debug("lead notification sent", "user_id", rec.UserID)
	return nil
}

// BuildLeadEmail renders the front-desk email for a confirmed lead.
func BuildLeadEmail(rec dialogue.LeadRecord, clinicName string) EmailMessage {
	if clinicName == "" {
		clinicName = defaultFromName
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Novo agendamento confirmado pelo WhatsApp.\n\n")
	fmt.Fprintf(&b, "Paciente: %s\n", rec.PatientName)
	fmt.Fprintf(&b, "Contato: %s\n", rec.RawSender)
	fmt.Fprintf(&b, "Período: %s\n", rec.Period)
	fmt.Fprintf(&b, "Horário: %s\n", rec.SlotChoice)
	fmt.Fprintf(&b, "Canal: %s\n", rec.Channel)
	fmt.Fprintf(&b, "Registrado em: %s\n", rec.Timestamp.UTC().Format("2006-01-02 15:04:05 UTC"))

	return EmailMessage{
		Subject: fmt.Sprintf("[%s] Novo agendamento: %s", clinicName, rec.PatientName),
		Body:    b.String(),
	}
}
