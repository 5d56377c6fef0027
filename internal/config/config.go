package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wolfman30/odonto-agent/internal/dialogue"
)

// Config holds application configuration
type Config struct {
	Port          string
	Env           string
	PublicBaseURL string
	LogLevel      string

	// Clinic
	ClinicName     string
	Convenios      []string
	HandoffLink    string
	SlotsMorning   []string
	SlotsAfternoon []string
	LeadChannel    string

	SessionTTL           time.Duration
	SessionSweepInterval time.Duration

	// Twilio WhatsApp sandbox
	TwilioAuthToken string

	// Meta WhatsApp Cloud API
	MetaVerifyToken   string
	MetaAppSecret     string
	MetaWhatsToken    string
	MetaPhoneNumberID string
	MetaGraphBaseURL  string
	MetaChannel       string

	// Lead persistence
	LeadSinks          []string
	LeadsCSVPath       string
	DatabaseURL        string
	LeadsArchiveBucket string
	LeadsQueueURL      string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool
	DedupTTL      time.Duration

	AdminJWTSecret   string
	WebhookRateLimit float64
	WebhookRateBurst int

	// Staff notifications
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string
	ClinicNotifyEmail string
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:          getEnv("PORT", "8080"),
		Env:           getEnv("ENV", "development"),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", ""),
		LogLevel:      getEnv("LOG_LEVEL", "info"),

		ClinicName:     getEnv("CLINIC_NAME", "Clínica Sorriso Nova Era"),
		Convenios:      getEnvAsList("CONVENIOS", ",", []string{"OdontoPrev", "Amil Dental", "Unimed Odonto"}),
		HandoffLink:    getEnv("WHATS_HUMANO", "https://wa.me/5532991413852"),
		SlotsMorning:   getEnvAsList("SLOTS_MORNING", "|", nil),
		SlotsAfternoon: getEnvAsList("SLOTS_AFTERNOON", "|", nil),
		LeadChannel:    getEnv("LEAD_CHANNEL", "twilio-sandbox"),

		SessionTTL:           getEnvAsDuration("SESSION_TTL", 0),
		SessionSweepInterval: getEnvAsDuration("SESSION_SWEEP_INTERVAL", 5*time.Minute),

		TwilioAuthToken: getEnv("TWILIO_AUTH_TOKEN", ""),

		MetaVerifyToken:   getEnv("META_VERIFY_TOKEN", "odonto_verify_123"),
		MetaAppSecret:     getEnv("META_APP_SECRET", ""),
		MetaWhatsToken:    getEnv("META_WHATS_TOKEN", ""),
		MetaPhoneNumberID: getEnv("META_PHONE_NUMBER_ID", ""),
		MetaGraphBaseURL:  getEnv("META_GRAPH_BASE_URL", ""),
		MetaChannel:       getEnv("META_LEAD_CHANNEL", "meta-cloud"),

		LeadSinks:          normalizeList(getEnvAsList("LEAD_SINKS", ",", []string{"csv"})),
		LeadsCSVPath:       getEnv("LEADS_CSV_PATH", "./leads.csv"),
		DatabaseURL:        getEnv("DATABASE_URL", ""),
		LeadsArchiveBucket: getEnv("LEADS_ARCHIVE_BUCKET", ""),
		LeadsQueueURL:      getEnv("LEADS_QUEUE_URL", ""),

		AWSRegion:           getEnv("AWS_REGION", "sa-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),
		DedupTTL:      getEnvAsDuration("DEDUP_TTL", 10*time.Minute),

		AdminJWTSecret:   getEnv("ADMIN_JWT_SECRET", ""),
		WebhookRateLimit: getEnvAsFloat("WEBHOOK_RATE_LIMIT", 5),
		WebhookRateBurst: getEnvAsInt("WEBHOOK_RATE_BURST", 10),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", ""),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),
		ClinicNotifyEmail: getEnv("CLINIC_NOTIFY_EMAIL", ""),
	}
}

// HasSink reports whether name is listed in LEAD_SINKS.
func (c *Config) HasSink(name string) bool {
	for _, s := range c.LeadSinks {
		if s == name {
			return true
		}
	}
	return false
}

// SlotCatalog returns the default slots with any valid SLOTS_* override applied.
// An override needs exactly two labels.
func (c *Config) SlotCatalog() dialogue.SlotCatalog {
	catalog := dialogue.DefaultSlotCatalog()
	if len(c.SlotsMorning) == 2 {
		catalog[dialogue.PeriodMorning] = [2]string{c.SlotsMorning[0], c.SlotsMorning[1]}
	}
	if len(c.SlotsAfternoon) == 2 {
		catalog[dialogue.PeriodAfternoon] = [2]string{c.SlotsAfternoon[0], c.SlotsAfternoon[1]}
	}
	return catalog
}

// DialogueConfig builds the engine configuration.
func (c *Config) DialogueConfig() dialogue.Config {
	return dialogue.Config{
		ClinicName:  c.ClinicName,
		Convenios:   c.Convenios,
		HandoffLink: c.HandoffLink,
		Slots:       c.SlotCatalog(),
		Channel:     c.LeadChannel,
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsList splits on sep, trimming blanks. An empty result yields the default.
func getEnvAsList(key, sep string, defaultValue []string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(valueStr, sep) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func normalizeList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		out = append(out, strings.ToLower(v))
	}
	return out
}
