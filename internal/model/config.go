package model

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// PathsConfig locates the spreadsheets, templates and history files.
type PathsConfig struct {
	OperationsXLSX     string `mapstructure:"operations_xlsx" yaml:"operations_xlsx"`
	OperationsSheet    string `mapstructure:"operations_sheet" yaml:"operations_sheet"`
	ProfessionalsXLSX  string `mapstructure:"professionals_xlsx" yaml:"professionals_xlsx"`
	ProfessionalsSheet string `mapstructure:"professionals_sheet" yaml:"professionals_sheet"`

	// HistoryXLSX is the audit workbook (xlsx backend).
	HistoryXLSX string `mapstructure:"history_xlsx" yaml:"history_xlsx"`

	// HistorySheet names the sheet (or sqlite table) records are appended to.
	HistorySheet string `mapstructure:"history_sheet" yaml:"history_sheet"`

	// HistoryDB is the sqlite database file (sqlite backend).
	HistoryDB string `mapstructure:"history_db" yaml:"history_db"`

	// EmailBodyHTML is the body template; empty selects the built-in one.
	EmailBodyHTML string `mapstructure:"email_body_html" yaml:"email_body_html"`
}

// HistoryConfig selects the history store backend.
type HistoryConfig struct {
	// Backend is "xlsx" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend"`
}

// OutlookConfig holds the correlation budget. The section keeps its
// historical name so existing config files keep working.
type OutlookConfig struct {
	SendDelaySeconds   int `mapstructure:"send_delay_seconds" yaml:"send_delay_seconds"`
	SearchSentMaxItems int `mapstructure:"search_sent_max_items" yaml:"search_sent_max_items"`
}

// DispatchConfig controls the text written to each email and record.
type DispatchConfig struct {
	StatusSentLabel string `mapstructure:"status_sent_label" yaml:"status_sent_label"`

	// EmailSubjectTemplate is a text/template. The {nome_cliente} and
	// {cod_cliente} placeholders of older config files are also accepted.
	EmailSubjectTemplate string `mapstructure:"email_subject_template" yaml:"email_subject_template"`
}

// RunModeConfig holds run-wide defaults.
type RunModeConfig struct {
	DisplayOnlyDefault bool `mapstructure:"display_only_default" yaml:"display_only_default"`
}

// SMTPConfig holds the outgoing mail server settings.
type SMTPConfig struct {
	Host               string `mapstructure:"host" yaml:"host"`
	Port               int    `mapstructure:"port" yaml:"port"`
	Username           string `mapstructure:"username" yaml:"username"`
	Password           string `mapstructure:"password" yaml:"password"`
	FromAddress        string `mapstructure:"from_address" yaml:"from_address"`
	FromName           string `mapstructure:"from_name" yaml:"from_name"`
	TLS                bool   `mapstructure:"tls" yaml:"tls"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify" yaml:"insecure_skip_verify"`

	// AppendToSent stores a copy of every transmitted message in the
	// IMAP sent mailbox, for servers that do not keep SMTP submissions.
	AppendToSent bool `mapstructure:"append_to_sent" yaml:"append_to_sent"`
}

// IMAPConfig holds the mailbox server settings used for correlation and
// drafts.
type IMAPConfig struct {
	Host          string `mapstructure:"host" yaml:"host"`
	Port          string `mapstructure:"port" yaml:"port"`
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`
	TLS           bool   `mapstructure:"tls" yaml:"tls"`
	SentMailbox   string `mapstructure:"sent_mailbox" yaml:"sent_mailbox"`
	DraftsMailbox string `mapstructure:"drafts_mailbox" yaml:"drafts_mailbox"`
}

// LogConfig controls logger construction.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

// MetricsConfig controls the end-of-run metrics dump.
type MetricsConfig struct {
	TextfilePath string `mapstructure:"textfile_path" yaml:"textfile_path"`
}

// AppConfig is the top-level application configuration.
type AppConfig struct {
	Paths    PathsConfig    `mapstructure:"paths" yaml:"paths"`
	History  HistoryConfig  `mapstructure:"history" yaml:"history"`
	Outlook  OutlookConfig  `mapstructure:"outlook" yaml:"outlook"`
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	RunMode  RunModeConfig  `mapstructure:"run_mode" yaml:"run_mode"`
	SMTP     SMTPConfig     `mapstructure:"smtp" yaml:"smtp"`
	IMAP     IMAPConfig     `mapstructure:"imap" yaml:"imap"`
	Log      LogConfig      `mapstructure:"log" yaml:"log"`
	Metrics  MetricsConfig  `mapstructure:"metrics" yaml:"metrics"`
}

// History backends.
const (
	BackendXLSX   = "xlsx"
	BackendSQLite = "sqlite"
)

// DefaultSubjectTemplate is used when dispatch.email_subject_template is unset.
const DefaultSubjectTemplate = "Análise de Alocação em Operações Estruturadas – Cliente {{.ClientName}} – {{.ClientID}}"

// EnvPrefix prefixes environment overrides, e.g. AUDITMAILER_SMTP_PASSWORD.
const EnvPrefix = "AUDITMAILER"

// DefaultConfigPath returns the default path for the configuration file,
// located at ~/.config/auditmailer/config.yaml.
func DefaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "auditmailer", "config.yaml")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.history_sheet", "Auditoria De Estruturadas")
	v.SetDefault("history.backend", BackendXLSX)
	v.SetDefault("outlook.send_delay_seconds", 3)
	v.SetDefault("outlook.search_sent_max_items", 300)
	v.SetDefault("dispatch.status_sent_label", "Enviado")
	v.SetDefault("dispatch.email_subject_template", DefaultSubjectTemplate)
	v.SetDefault("run_mode.display_only_default", false)
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.append_to_sent", true)
	v.SetDefault("imap.port", "993")
	v.SetDefault("imap.tls", true)
	v.SetDefault("imap.sent_mailbox", "Sent")
	v.SetDefault("imap.drafts_mailbox", "Drafts")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// LoadConfig reads configuration from the given YAML file path using Viper.
// Environment variables prefixed with AUDITMAILER_ override file values. A
// missing file yields the defaults, which Validate will then reject.
func LoadConfig(path string) (*AppConfig, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var pathErr *os.PathError
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &pathErr) && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Validate returns the required keys that are missing for a dispatch run.
func (c *AppConfig) Validate() []string {
	var missing []string
	check := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}

	check("paths.operations_xlsx", c.Paths.OperationsXLSX)
	check("paths.professionals_xlsx", c.Paths.ProfessionalsXLSX)

	switch c.History.Backend {
	case BackendSQLite:
		check("paths.history_db", c.Paths.HistoryDB)
	default:
		check("paths.history_xlsx", c.Paths.HistoryXLSX)
	}

	if c.Outlook.SearchSentMaxItems < 1 {
		missing = append(missing, "outlook.search_sent_max_items")
	}

	return missing
}

// DisplayOnly combines the command-line flag with the configured default.
func (c *AppConfig) DisplayOnly(flag bool) bool {
	return flag || c.RunMode.DisplayOnlyDefault
}

// HistoryPath returns the file backing the configured history store.
func (c *AppConfig) HistoryPath() string {
	if c.History.Backend == BackendSQLite {
		return c.Paths.HistoryDB
	}
	return c.Paths.HistoryXLSX
}

// GuardedPaths lists every file the run reads or writes, in the order the
// pre-flight guard probes them.
func (c *AppConfig) GuardedPaths() []string {
	return []string{
		c.Paths.OperationsXLSX,
		c.Paths.ProfessionalsXLSX,
		c.HistoryPath(),
	}
}
