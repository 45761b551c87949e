// Package correlate recovers the provider-assigned identifiers of a message
// that was just sent by finding it again in the sent mailbox.
package correlate

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/nhle/audit-mailer/internal/mail"
	"github.com/nhle/audit-mailer/internal/metrics"
	"github.com/nhle/audit-mailer/internal/model"
)

// Searcher finds a sent message by subject and token.
type Searcher interface {
	SearchSent(ctx context.Context, q mail.SearchQuery) (model.Identifiers, error)
}

// Correlator waits a fixed settle delay after a send, then runs a single
// bounded search of the sent mailbox.
type Correlator struct {
	searcher    Searcher
	settleDelay time.Duration
	maxItems    int
	logger      *zap.SugaredLogger
	metrics     *metrics.Recorder
	sleep       func(ctx context.Context, d time.Duration) error
}

// New returns a Correlator. recorder may be nil.
func New(
	searcher Searcher,
	settleDelay time.Duration,
	maxItems int,
	logger *zap.SugaredLogger,
	recorder *metrics.Recorder,
) *Correlator {
	return &Correlator{
		searcher:    searcher,
		settleDelay: settleDelay,
		maxItems:    maxItems,
		logger:      logger,
		metrics:     recorder,
		sleep:       sleepContext,
	}
}

// Correlate returns the identifiers of the sent message with the given
// subject whose body contains token. A message that cannot be found yields
// empty identifiers and a nil error; only transport failures are returned.
func (c *Correlator) Correlate(ctx context.Context, subject, token string) (model.Identifiers, error) {
	start := time.Now()

	if err := c.sleep(ctx, c.settleDelay); err != nil {
		return model.Identifiers{}, err
	}

	ids, err := c.searcher.SearchSent(ctx, mail.SearchQuery{
		Subject:  subject,
		Token:    token,
		MaxItems: c.maxItems,
	})

	result := metrics.CorrelationFound
	switch {
	case err != nil:
		result = metrics.CorrelationError
	case ids.Empty():
		result = metrics.CorrelationMissed
		c.logger.Warnw("Sent message not found within scan window",
			"token", token, "max_items", c.maxItems)
	}
	c.metrics.ObserveCorrelation(result, time.Since(start))

	if err != nil {
		return model.Identifiers{}, err
	}
	return ids, nil
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
