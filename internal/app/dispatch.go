package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/audit-mailer/internal/correlate"
	"github.com/nhle/audit-mailer/internal/credential"
	"github.com/nhle/audit-mailer/internal/dispatch"
	"github.com/nhle/audit-mailer/internal/fileguard"
	"github.com/nhle/audit-mailer/internal/history"
	"github.com/nhle/audit-mailer/internal/ingest"
	"github.com/nhle/audit-mailer/internal/mail"
	"github.com/nhle/audit-mailer/internal/metrics"
	"github.com/nhle/audit-mailer/internal/model"
	"github.com/nhle/audit-mailer/internal/render"
	"github.com/nhle/audit-mailer/internal/token"
)

// ErrCancelled is returned when the operator declines the confirmation.
var ErrCancelled = errors.New("dispatch cancelled by operator")

type dispatchFlags struct {
	dryRun      bool
	displayOnly bool
	yes         bool
	inlineBody  bool
}

// NewDispatchCommand returns the command that runs a dispatch.
func NewDispatchCommand() *cobra.Command {
	var flags dispatchFlags

	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Send one audit email per operation row and record it in the history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := getRuntime(cmd)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			res, err := runDispatch(ctx, rt, flags)
			if res != nil {
				printSummary(rt.writer, *res)
			}
			return err
		},
	}

	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "Validate and render every item without sending or recording")
	cmd.Flags().BoolVar(&flags.displayOnly, "display-only", false, "Save messages as drafts for review instead of sending")
	cmd.Flags().BoolVarP(&flags.yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().BoolVar(&flags.inlineBody, "inline-body", false, "Use the built-in plain body instead of the HTML template")

	return cmd
}

// runDispatch loads the inputs, builds the pipeline and runs it. Every
// failure before the first item is a StructuralError.
func runDispatch(ctx context.Context, rt *runtimeState, flags dispatchFlags) (*dispatch.RunResult, error) {
	cfg := rt.cfg
	log := rt.logger

	if missing := cfg.Validate(); len(missing) > 0 {
		return nil, dispatch.Structural(dispatch.StageConfig,
			fmt.Errorf("missing required settings: %s", strings.Join(missing, ", ")))
	}

	guard := fileguard.New(cfg.HistoryPath())
	if err := guard.Check(cfg.GuardedPaths()); err != nil {
		return nil, dispatch.Structural(dispatch.StageGuard, err)
	}

	renderer, err := buildRenderer(cfg, flags.inlineBody)
	if err != nil {
		return nil, dispatch.Structural(dispatch.StageTemplate, err)
	}

	directory, err := ingest.LoadProfessionals(cfg.Paths.ProfessionalsXLSX, cfg.Paths.ProfessionalsSheet)
	if err != nil {
		return nil, dispatch.Structural(dispatch.StageIngest, err)
	}
	items, err := ingest.LoadOperations(cfg.Paths.OperationsXLSX, cfg.Paths.OperationsSheet)
	if err != nil {
		return nil, dispatch.Structural(dispatch.StageIngest, err)
	}
	log.Infow("Loaded inputs", "items", len(items), "professionals", directory.Len())

	recorder := metrics.NewRecorder()
	deps := dispatch.Deps{
		Guard:    guard,
		Resolver: directory,
		Tokens:   token.NewGenerator(),
		Renderer: renderer,
		Logger:   log,
		Metrics:  recorder,
	}
	displayOnly := cfg.DisplayOnly(flags.displayOnly)

	if !flags.dryRun {
		if !flags.yes && rt.confirm != nil {
			ok, err := rt.confirm(
				fmt.Sprintf("Send %d audit emails?", len(items)),
				fmt.Sprintf("display only: %t, history: %s", displayOnly, cfg.HistoryPath()),
			)
			if err != nil {
				return nil, err
			}
			if !ok {
				return nil, ErrCancelled
			}
		}

		// The prompt leaves time for a workbook to be opened; opening the
		// store may rewrite the history file.
		if err := guard.Check(cfg.GuardedPaths()); err != nil {
			return nil, dispatch.Structural(dispatch.StageGuard, err)
		}

		store, err := history.Open(cfg)
		if err != nil {
			return nil, dispatch.Structural(dispatch.StageHistory, err)
		}
		defer closeLogged(log, "history store", store.Close)

		transport := buildTransport(cfg, log)
		defer closeLogged(log, "mail transport", transport.Close)

		deps.Store = store
		deps.Sender = transport
		deps.Correlator = correlate.New(
			transport,
			time.Duration(cfg.Outlook.SendDelaySeconds)*time.Second,
			cfg.Outlook.SearchSentMaxItems,
			log,
			recorder,
		)
	}

	o, err := dispatch.New(deps, dispatch.Options{
		DryRun:      flags.dryRun,
		DisplayOnly: displayOnly,
		StatusLabel: cfg.Dispatch.StatusSentLabel,
		GuardPaths:  cfg.GuardedPaths(),
	})
	if err != nil {
		return nil, err
	}

	res, err := o.Run(ctx, items)
	if mErr := recorder.WriteTextfile(cfg.Metrics.TextfilePath); mErr != nil {
		log.Warnw("Failed to write metrics", "error", mErr)
	}
	return &res, err
}

func buildRenderer(cfg *model.AppConfig, inline bool) (render.Renderer, error) {
	if inline {
		return render.NewInlineBody(cfg.Dispatch.EmailSubjectTemplate)
	}
	return render.LoadTemplates(cfg.Dispatch.EmailSubjectTemplate, cfg.Paths.EmailBodyHTML)
}

// buildTransport fills missing passwords from the keyring and connects
// nothing yet; both sessions dial on first use.
func buildTransport(cfg *model.AppConfig, log *zap.SugaredLogger) *mail.Transport {
	if store, err := credential.Open(); err != nil {
		log.Debugw("Keyring unavailable", "error", err)
	} else if err := store.FillPasswords(cfg); err != nil {
		log.Warnw("Failed to read passwords from keyring", "error", err)
	}

	var mailbox mail.Mailbox
	if cfg.IMAP.Host != "" {
		mailbox = mail.NewIMAPClient(cfg.IMAP.Host, cfg.IMAP.Port, cfg.IMAP.Username, cfg.IMAP.Password, cfg.IMAP.TLS)
	} else {
		log.Warnw("No IMAP server configured; messages cannot be correlated")
	}

	from := cfg.SMTP.FromAddress
	if from == "" {
		from = cfg.SMTP.Username
	}

	return mail.NewTransport(mail.NewSMTPSender(cfg.SMTP), mailbox, mail.TransportOptions{
		FromAddress:   from,
		FromName:      cfg.SMTP.FromName,
		SentMailbox:   cfg.IMAP.SentMailbox,
		DraftsMailbox: cfg.IMAP.DraftsMailbox,
		AppendToSent:  cfg.SMTP.AppendToSent,
	}, log)
}

func closeLogged(log *zap.SugaredLogger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		log.Warnw("Close failed", "component", what, "error", err)
	}
}
