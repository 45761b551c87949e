// Package dispatch runs the audit email workflow: for each item it
// validates, resolves recipients, renders, sends, correlates and appends
// one history record.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/nhle/audit-mailer/internal/history"
	"github.com/nhle/audit-mailer/internal/logging"
	"github.com/nhle/audit-mailer/internal/mail"
	"github.com/nhle/audit-mailer/internal/metrics"
	"github.com/nhle/audit-mailer/internal/model"
	"github.com/nhle/audit-mailer/internal/render"
)

// FileGuard fails when any of paths is held open elsewhere.
type FileGuard interface {
	Check(paths []string) error
}

// RecipientResolver looks up a professional by code.
type RecipientResolver interface {
	Resolve(code string) (model.Recipient, error)
}

// TokenSource issues correlation tokens.
type TokenSource interface {
	New(clientID string) string
}

// Sender delivers (or drafts) one message.
type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// Correlator recovers the identifiers of a sent message.
type Correlator interface {
	Correlate(ctx context.Context, subject, token string) (model.Identifiers, error)
}

// RecordStore appends audit records.
type RecordStore interface {
	AppendRecord(ctx context.Context, rec model.AuditRecord) error
}

// Deps are the collaborators of an Orchestrator. All are required except
// Guard, Logger and Metrics.
type Deps struct {
	Guard      FileGuard
	Resolver   RecipientResolver
	Tokens     TokenSource
	Renderer   render.Renderer
	Sender     Sender
	Correlator Correlator
	Store      RecordStore
	Logger     *zap.SugaredLogger
	Metrics    *metrics.Recorder
}

// Options are the run-wide switches.
type Options struct {
	// DryRun stops every item before sending.
	DryRun bool

	// DisplayOnly leaves messages as drafts for review.
	DisplayOnly bool

	// StatusLabel is written to the Status column of each record.
	StatusLabel string

	// GuardPaths are checked by the Guard before the first item.
	GuardPaths []string
}

// Orchestrator processes dispatch items strictly in order.
type Orchestrator struct {
	deps  Deps
	opts  Options
	runID string
	now   func() time.Time
}

// New returns an Orchestrator with a fresh run id.
func New(deps Deps, opts Options) (*Orchestrator, error) {
	var missing []string
	if deps.Resolver == nil {
		missing = append(missing, "resolver")
	}
	if deps.Tokens == nil {
		missing = append(missing, "tokens")
	}
	if deps.Renderer == nil {
		missing = append(missing, "renderer")
	}
	if !opts.DryRun {
		if deps.Sender == nil {
			missing = append(missing, "sender")
		}
		if deps.Correlator == nil {
			missing = append(missing, "correlator")
		}
		if deps.Store == nil {
			missing = append(missing, "store")
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("orchestrator missing dependencies: %v", missing)
	}

	if deps.Logger == nil {
		deps.Logger = zap.NewNop().Sugar()
	}

	return &Orchestrator{
		deps:  deps,
		opts:  opts,
		runID: uuid.NewString(),
		now:   time.Now,
	}, nil
}

// RunID identifies this run in every record it appends.
func (o *Orchestrator) RunID() string {
	return o.runID
}

// Run checks the guarded files and then processes items one at a time.
// Per-item failures are reported in the result and never stop the run;
// only a StructuralError, or cancellation of ctx between items, is
// returned as an error.
func (o *Orchestrator) Run(ctx context.Context, items []model.DispatchItem) (RunResult, error) {
	log := o.deps.Logger
	res := RunResult{RunID: o.runID, StartedAt: o.now(), DryRun: o.opts.DryRun}

	if o.deps.Guard != nil {
		if err := o.deps.Guard.Check(o.opts.GuardPaths); err != nil {
			log.Errorw("Pre-flight check failed", "error", err)
			res.FinishedAt = o.now()
			return res, Structural(StageGuard, err)
		}
	}

	log.Infow("Starting dispatch run",
		"run_id", o.runID,
		"items", len(items),
		"dry_run", o.opts.DryRun,
		"display_only", o.opts.DisplayOnly)

	var runErr error
	for _, item := range items {
		if err := ctx.Err(); err != nil {
			log.Warnw("Run interrupted", "remaining_from_row", item.Position, "error", err)
			runErr = err
			break
		}

		r := o.processItem(ctx, item)
		res.add(r)
		o.deps.Metrics.ItemProcessed(string(r.Outcome))
	}

	res.FinishedAt = o.now()
	o.deps.Metrics.ObserveRun(res.FinishedAt.Sub(res.StartedAt), res.FinishedAt)
	o.recordRun(res)

	log.Infow("Dispatch run finished",
		"run_id", o.runID,
		"processed", res.Processed,
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"previewed", res.Previewed)

	return res, runErr
}

func (o *Orchestrator) recordRun(res RunResult) {
	rr, ok := o.deps.Store.(history.RunRecorder)
	if !ok {
		return
	}
	if err := rr.RecordRun(context.Background(), res.Summary()); err != nil {
		o.deps.Logger.Warnw("Failed to record run summary", "run_id", o.runID, "error", err)
	}
}

// processItem runs the per-item steps. A panic is reported as this item's
// failure.
func (o *Orchestrator) processItem(ctx context.Context, item model.DispatchItem) (res ItemResult) {
	log := o.deps.Logger.With(logging.ItemFields(item)...)
	res.Item = item

	defer func() {
		if p := recover(); p != nil {
			res.Outcome = OutcomeInternalError
			res.Err = fmt.Errorf("panic: %v", p)
			log.Errorw("Item processing panicked", "panic", p)
		}
	}()

	if err := item.Validate(); err != nil {
		log.Errorw("Invalid item", "error", err)
		return o.fail(res, OutcomeValidationError, err)
	}

	advisor, leader, err := o.resolve(item)
	if err != nil {
		log.Errorw("Recipients not resolved", "error", err)
		return o.fail(res, OutcomeValidationError, err)
	}

	res.Token = o.deps.Tokens.New(item.ClientID)
	email, err := o.deps.Renderer.Render(render.NewFields(item, advisor, res.Token))
	if err != nil {
		log.Errorw("Rendering failed", "error", err)
		return o.fail(res, OutcomeValidationError, &model.ItemValidationError{
			Position: item.Position,
			ClientID: item.ClientID,
			Reason:   err.Error(),
		})
	}
	res.Subject = email.Subject

	if o.opts.DryRun {
		log.Infow("[DRY-RUN] would send",
			"to", advisor.Email,
			"cc", leader.Email,
			"subject", email.Subject,
			"token", res.Token)
		res.Outcome = OutcomeDryRun
		return res
	}

	msg := mail.Message{
		To:          advisor.Email,
		Cc:          leader.Email,
		Subject:     email.Subject,
		Body:        email.Body,
		HTML:        true,
		DisplayOnly: o.opts.DisplayOnly,
	}
	if err := o.deps.Sender.Send(ctx, msg); err != nil {
		log.Errorw("Send failed", "token", res.Token, "error", err)
		return o.fail(res, OutcomeTransportError, err)
	}
	sentAt := o.now()

	ids, err := o.deps.Correlator.Correlate(ctx, email.Subject, res.Token)
	if err != nil {
		log.Warnw("Correlation failed; recording without identifiers", "token", res.Token, "error", err)
		ids = model.Identifiers{}
		res.Err = err
	}
	res.Identifiers = ids

	rec := model.NewAuditRecord(item, advisor, leader).WithIdentifiers(ids)
	rec.RecordID = uuid.NewString()
	rec.RunID = o.runID
	rec.Subject = email.Subject
	rec.Token = res.Token
	rec.Status = o.opts.StatusLabel
	rec.DisplayOnly = o.opts.DisplayOnly
	rec.SentAt = sentAt

	// The message is already out; the record must be written even if the
	// run is being cancelled.
	if err := o.deps.Store.AppendRecord(context.WithoutCancel(ctx), rec); err != nil {
		log.Errorw("Message SENT BUT NOT AUDITED; reconcile manually",
			"token", res.Token,
			"subject", email.Subject,
			"to", advisor.Email,
			"error", err)
		return o.fail(res, OutcomeStoreError, err)
	}

	log.Infow("dispatched",
		"status", "ok",
		"token", res.Token,
		"conversation_id", ids.ConversationID,
		"display_only", o.opts.DisplayOnly)
	res.Outcome = OutcomeSent
	return res
}

func (o *Orchestrator) fail(res ItemResult, outcome Outcome, err error) ItemResult {
	res.Outcome = outcome
	res.Err = err
	return res
}

// resolve looks up advisor and leader and requires both to have an email.
func (o *Orchestrator) resolve(item model.DispatchItem) (model.Recipient, model.Recipient, error) {
	invalid := func(reason string) error {
		return &model.ItemValidationError{Position: item.Position, ClientID: item.ClientID, Reason: reason}
	}

	advisor, err := o.deps.Resolver.Resolve(item.AdvisorCode)
	if err != nil {
		return advisor, model.Recipient{}, invalid(fmt.Sprintf("advisor %s: %v", item.AdvisorCode, err))
	}
	leader, err := o.deps.Resolver.Resolve(item.LeaderCode)
	if err != nil {
		return advisor, leader, invalid(fmt.Sprintf("leader %s: %v", item.LeaderCode, err))
	}

	switch {
	case advisor.Email == "" && leader.Email == "":
		return advisor, leader, invalid("advisor and leader email missing")
	case advisor.Email == "":
		return advisor, leader, invalid("advisor email missing")
	case leader.Email == "":
		return advisor, leader, invalid("leader email missing")
	}
	return advisor, leader, nil
}

// IsItemValidation reports whether err is an item validation failure.
func IsItemValidation(err error) bool {
	var vErr *model.ItemValidationError
	return errors.As(err, &vErr)
}
