package config

import (
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config enthält alle Konfigurationsparameter aus Umgebungsvariablen.
type Config struct {
	HTTPPort     string `envconfig:"HTTP_PORT" default:"4242"`
	APISecretKey string `envconfig:"API_SECRET_KEY"`

	// Excel-Arbeitsmappe als persistenter Paper-Speicher
	ExcelPath   string `envconfig:"EXCEL_PATH" default:"data/master_papers.xlsx"`
	BackupDir   string `envconfig:"BACKUP_DIR" default:"backups"`
	KeepBackups int    `envconfig:"KEEP_BACKUPS" default:"10"`

	PubMedBaseURL   string `envconfig:"PUBMED_BASE_URL" default:"https://eutils.ncbi.nlm.nih.gov/entrez/eutils"`
	PubMedAPIKey    string `envconfig:"PUBMED_API_KEY"`
	PubMedEmail     string `envconfig:"PUBMED_EMAIL"`
	PubMedTool      string `envconfig:"PUBMED_TOOL" default:"paper-scout"`
	PubMedBatchSize int    `envconfig:"PUBMED_BATCH_SIZE" default:"15"`

	EuropePMCBaseURL string `envconfig:"EUROPEPMC_BASE_URL" default:"https://www.ebi.ac.uk/europepmc/webservices/rest"`

	SemanticScholarBaseURL string `envconfig:"SEMANTIC_SCHOLAR_BASE_URL" default:"https://api.semanticscholar.org/graph/v1"`
	SemanticScholarAPIKey  string `envconfig:"SEMANTIC_SCHOLAR_API_KEY"`

	// Unpaywall-Fallback für freie Volltext-Links (nur mit E-Mail aktiv)
	UnpaywallBaseURL string `envconfig:"UNPAYWALL_BASE_URL" default:"https://api.unpaywall.org/v2"`
	UnpaywallEmail   string `envconfig:"UNPAYWALL_EMAIL"`

	// Provider-Konfiguration
	EnabledProviders string `envconfig:"ENABLED_PROVIDERS" default:"pubmed,europepmc,semanticscholar"`
	MaxResults       int    `envconfig:"MAX_RESULTS" default:"50"`

	// Claude-Anreicherung (Bewertung + Zusammenfassung), optional
	ClaudeAPIKey string `envconfig:"CLAUDE_API_KEY"`
	ClaudeModel  string `envconfig:"CLAUDE_MODEL" default:"claude-3-haiku-20240307"`

	// E-Mail-Benachrichtigungen
	SMTPHost          string `envconfig:"SMTP_HOST" default:"smtp.gmail.com"`
	SMTPPort          int    `envconfig:"SMTP_PORT" default:"587"`
	SenderEmail       string `envconfig:"SENDER_EMAIL"`
	SenderPassword    string `envconfig:"SENDER_PASSWORD"`
	RecipientEmails   string `envconfig:"RECIPIENT_EMAILS"`
	AutoNotifications bool   `envconfig:"AUTO_NOTIFICATIONS" default:"true"`
	MinPapersForEmail int    `envconfig:"MIN_PAPERS_FOR_EMAIL" default:"1"`

	CronSchedule string `envconfig:"CRON_SCHEDULE" default:"0 6 * * *"`

	// S3-Backup der Arbeitsmappe, optional (leer = deaktiviert)
	S3Key    string `envconfig:"BACKUP_S3_KEY"`
	S3Secret string `envconfig:"BACKUP_S3_SECRET"`
	S3URL    string `envconfig:"BACKUP_S3_URL"`
	S3Region string `envconfig:"BACKUP_S3_REGION" default:"eu-central-1"`
	S3Bucket string `envconfig:"BACKUP_S3_BUCKET"`
}

var emailPattern = regexp.MustCompile(`^[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}$`)

// Recipients zerlegt RECIPIENT_EMAILS an Kommas und Semikolons und
// verwirft Einträge, die keine gültige Adresse sind.
func (c *Config) Recipients() []string {
	raw := strings.NewReplacer(";", ",").Replace(c.RecipientEmails)
	var out []string
	for _, part := range strings.Split(raw, ",") {
		addr := strings.TrimSpace(part)
		if addr == "" {
			continue
		}
		if emailPattern.MatchString(addr) {
			out = append(out, addr)
		}
	}
	return out
}

// MailConfigured meldet, ob Absender-Zugangsdaten und mindestens ein
// Empfänger vorhanden sind.
func (c *Config) MailConfigured() bool {
	return c.SenderEmail != "" && c.SenderPassword != "" && len(c.Recipients()) > 0
}

// S3Configured meldet, ob das optionale S3-Backup vollständig konfiguriert ist.
func (c *Config) S3Configured() bool {
	return c.S3Key != "" && c.S3Secret != "" && c.S3URL != "" && c.S3Bucket != ""
}

// Providers gibt die aktivierten Provider-Namen in konfigurierter Reihenfolge zurück.
func (c *Config) Providers() []string {
	var out []string
	for _, part := range strings.Split(c.EnabledProviders, ",") {
		name := strings.ToLower(strings.TrimSpace(part))
		if name != "" {
			out = append(out, name)
		}
	}
	return out
}

// Load lädt die Konfiguration aus den Umgebungsvariablen.
func Load() (*Config, error) {
	_ = godotenv.Load()
	var c Config
	err := envconfig.Process("", &c)
	return &c, err
}
