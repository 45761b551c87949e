// Package app wires configuration, logging and the dispatch pipeline into
// the auditmailer command line.
package app

import (
	"context"
	"errors"
	"io"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/audit-mailer/internal/logging"
	"github.com/nhle/audit-mailer/internal/model"
)

// Config holds what the root command needs from its environment.
type Config struct {
	ConfigPath   string
	OutputWriter io.Writer

	// Confirm asks a yes/no question before a live run.
	Confirm func(title, description string) (bool, error)

	// PromptPassword reads a secret without echoing it.
	PromptPassword func(title string) (string, error)

	// Logger replaces the configured logger, for tests.
	Logger *zap.SugaredLogger
}

// DefaultConfig returns the production configuration with interactive
// prompts.
func DefaultConfig() Config {
	return Config{
		ConfigPath:     model.DefaultConfigPath(),
		OutputWriter:   os.Stdout,
		Confirm:        confirmPrompt,
		PromptPassword: passwordPrompt,
	}
}

type runtimeState struct {
	configPath string
	logLevel   string
	cfg        *model.AppConfig
	logger     *zap.SugaredLogger
	writer     io.Writer

	confirm        func(title, description string) (bool, error)
	promptPassword func(title string) (string, error)
}

type runtimeKey struct{}

// NewRootCommand builds the auditmailer command tree.
func NewRootCommand(cfg Config) *cobra.Command {
	rt := &runtimeState{
		configPath:     cfg.ConfigPath,
		writer:         cfg.OutputWriter,
		logger:         cfg.Logger,
		confirm:        cfg.Confirm,
		promptPassword: cfg.PromptPassword,
	}

	root := &cobra.Command{
		Use:           "auditmailer",
		Short:         "Send compliance audit emails for structured operations and keep the audit trail",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if rt.writer == nil {
				rt.writer = os.Stdout
			}
			if rt.configPath == "" {
				rt.configPath = model.DefaultConfigPath()
			}
			if cmd.Name() == "version" {
				return nil
			}

			appCfg, err := model.LoadConfig(rt.configPath)
			if err != nil {
				return err
			}
			if rt.logLevel != "" {
				appCfg.Log.Level = rt.logLevel
			}
			rt.cfg = appCfg

			if rt.logger == nil {
				logger, err := logging.New(logging.FromConfig(appCfg.Log))
				if err != nil {
					return err
				}
				rt.logger = logger
			}
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			if rt.logger != nil {
				_ = rt.logger.Sync()
			}
		},
	}

	root.PersistentFlags().StringVar(&rt.configPath, "config", rt.configPath, "Path to config file")
	root.PersistentFlags().StringVar(&rt.logLevel, "log-level", "", "Log level override: debug, info, warn, error")

	root.SetContext(context.WithValue(context.Background(), runtimeKey{}, rt))

	root.AddCommand(
		NewDispatchCommand(),
		NewCheckFilesCommand(),
		NewHistoryCommand(),
		NewCredentialsCommand(),
		NewVersionCommand(),
	)

	return root
}

func getRuntime(cmd *cobra.Command) (*runtimeState, error) {
	rt, ok := cmd.Context().Value(runtimeKey{}).(*runtimeState)
	if !ok || rt == nil {
		return nil, errors.New("runtime not initialized")
	}
	return rt, nil
}

func confirmPrompt(title, description string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Description(description).
		Affirmative("Send").
		Negative("Cancel").
		Value(&ok).
		Run()
	return ok, err
}

func passwordPrompt(title string) (string, error) {
	var value string
	err := huh.NewInput().
		Title(title).
		EchoMode(huh.EchoModePassword).
		Value(&value).
		Validate(func(s string) error {
			if s == "" {
				return errors.New("password is required")
			}
			return nil
		}).
		Run()
	return value, err
}
