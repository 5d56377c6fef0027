package bootstrap

import (
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	appconfig "github.com/wolfman30/odonto-agent/internal/config"
	"github.com/wolfman30/odonto-agent/internal/leads"
	"github.com/wolfman30/odonto-agent/internal/notify"
	"github.com/wolfman30/odonto-agent/pkg/logging"
)

// LeadDeps are the optional backends the lead pipeline can write to.
type LeadDeps struct {
	Pool  *pgxpool.Pool
	S3    leads.S3API
	SQS   leads.SQSAPI
	Email notify.EmailSender
}

// LeadPipeline is where confirmed bookings go and where the admin API reads them.
type LeadPipeline struct {
	Sink       *leads.MultiSink
	Repository leads.Repository
}

// BuildLeadPipeline wires the sinks named in LEAD_SINKS. The admin
// repository is Postgres when configured, otherwise an in-memory copy that
// also receives every lead.
func BuildLeadPipeline(cfg *appconfig.Config, deps LeadDeps, logger *logging.Logger) (*LeadPipeline, error) {
	if cfg == nil {
		return nil, fmt.Errorf("bootstrap: config is required")
	}
	if logger == nil {
		logger = logging.Default()
	}

	var sinks []leads.NamedSink
	var repo leads.Repository

	for _, name := range cfg.LeadSinks {
		switch name {
		case "csv":
			sinks = append(sinks, leads.NamedSink{Name: "csv", Sink: leads.NewCSVSink(cfg.LeadsCSVPath)})
		case "postgres":
			if deps.Pool == nil {
				logger.Warn("postgres lead sink requested without DATABASE_URL; skipping")
				continue
			}
			pg := leads.NewPostgresRepository(deps.Pool)
			repo = pg
			sinks = append(sinks, leads.NamedSink{Name: "postgres", Sink: pg})
		case "s3":
			if s := leads.NewS3Sink(deps.S3, cfg.LeadsArchiveBucket); s != nil {
				sinks = append(sinks, leads.NamedSink{Name: "s3", Sink: s})
			} else {
				logger.Warn("s3 lead sink requested without LEADS_ARCHIVE_BUCKET; skipping")
			}
		case "sqs":
			if s := leads.NewSQSSink(deps.SQS, cfg.LeadsQueueURL); s != nil {
				sinks = append(sinks, leads.NamedSink{Name: "sqs", Sink: s})
			} else {
				logger.Warn("sqs lead sink requested without LEADS_QUEUE_URL; skipping")
			}
		default:
			return nil, fmt.Errorf("bootstrap: unknown lead sink %q", name)
		}
	}

	if repo == nil {
		mem := leads.NewInMemoryRepository()
		repo = mem
		sinks = append(sinks, leads.NamedSink{Name: "memory", Sink: mem})
	}
	if n := notify.NewLeadNotifier(deps.Email, cfg.ClinicNotifyEmail, cfg.ClinicName, logger); n != nil {
		sinks = append(sinks, leads.NamedSink{Name: "email", Sink: n})
	}

	multi := leads.NewMultiSink(sinks...)
	logger.Info("lead sinks configured", "sinks", multi.Names())
	return &LeadPipeline{Sink: multi, Repository: repo}, nil
}

// BuildEmailSender prefers SendGrid, then SES. Without either it returns a
// logging stub when CLINIC_NOTIFY_EMAIL is set, and nil otherwise.
func BuildEmailSender(cfg *appconfig.Config, ses notify.SESAPI, logger *logging.Logger) notify.EmailSender {
	if cfg == nil {
		return nil
	}
	if sg := notify.NewSendGridSender(notify.SendGridConfig{
		APIKey:    cfg.SendGridAPIKey,
		FromEmail: cfg.SendGridFromEmail,
		FromName:  cfg.SendGridFromName,
	}, logger); sg != nil {
		return sg
	}
	if s := notify.NewSESSender(ses, notify.SESConfig{FromEmail: cfg.SESFromEmail, FromName: cfg.ClinicName}, logger); s != nil {
		return s
	}
	if cfg.ClinicNotifyEmail != "" {
		if logger == nil {
			logger = logging.Default()
		}
		logger.Warn("CLINIC_NOTIFY_EMAIL set without SendGrid or SES; lead emails will only be logged")
		return notify.NewStubEmailSender(logger)
	}
	return nil
}
