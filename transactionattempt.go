package transactions

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// attemptFunc performs a single attempt.  Returning an error for which
// isConflict is true discards the attempt and schedules another one.
type attemptFunc func(ctx context.Context, attempt *Attempt) error

type transactionAttempt struct {
	// immutable state
	kind          string
	transactionID string
	maxConflicts  int
	hooks         TransactionHooks
	logger        *zap.Logger
	tracer        trace.Tracer
	metrics       *metrics
	backoff       backoff.BackOff

	// mutable state
	conflicts int
	attempts  []Attempt
}

func (t *transactionAttempt) run(ctx context.Context, fn attemptFunc, onConflict func()) (*Result, error) {
	ctx, span := t.tracer.Start(ctx, "redistxn."+t.kind, trace.WithAttributes(
		attribute.String("txn.id", t.transactionID),
		attribute.Int("txn.max_conflicts", t.maxConflicts),
	))
	defer span.End()

	err := t.loop(ctx, span, fn, onConflict)
	t.metrics.finished(t.kind, err)

	span.SetAttributes(attribute.Int("txn.attempts", len(t.attempts)))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, errorClassToString(classifyError(err)))
		return nil, err
	}

	return &Result{
		TransactionID: t.transactionID,
		Attempts:      append([]Attempt(nil), t.attempts...),
	}, nil
}

func (t *transactionAttempt) loop(ctx context.Context, span trace.Span, fn attemptFunc, onConflict func()) error {
	t.backoff.Reset()

	for {
		attempt := Attempt{
			ID:    uuid.New().String(),
			State: AttemptStateRunning,
		}
		logger := t.logger.With(
			zap.String("txn_id", t.transactionID),
			zap.String("attempt_id", attempt.ID),
			zap.String("kind", t.kind),
		)

		err := t.hooks.BeforeAttempt(attempt.ID)
		if err == nil {
			err = fn(ctx, &attempt)
		}

		if err == nil {
			attempt.State = AttemptStateCommitted
			t.attempts = append(t.attempts, attempt)
			logger.Debug("attempt committed",
				zap.Int("rounds", attempt.Rounds),
				zap.Int("conflicts", t.conflicts))
			return nil
		}

		if !isConflict(err) {
			attempt.State = AttemptStateFailed
			t.attempts = append(t.attempts, attempt)
			logger.Debug("attempt failed",
				zap.String("class", errorClassToString(classifyError(err))),
				zap.Error(err))
			return err
		}

		attempt.State = AttemptStateConflicted
		t.attempts = append(t.attempts, attempt)
		t.conflicts++
		t.metrics.conflict(t.kind)
		span.AddEvent("conflict", trace.WithAttributes(
			attribute.String("attempt.id", attempt.ID),
			attribute.Int("txn.conflicts", t.conflicts),
		))

		if onConflict != nil {
			onConflict()
		}

		if err := t.hooks.AfterConflict(attempt.ID); err != nil {
			return err
		}

		if t.conflicts > t.maxConflicts {
			logger.Warn("giving up after too many conflicts",
				zap.Int("conflicts", t.conflicts),
				zap.Int("max_conflicts", t.maxConflicts))
			return t.conflictsExhausted(errors.Wrapf(ErrConflictExhausted,
				"%d conflicts exceed the ceiling of %d", t.conflicts, t.maxConflicts))
		}

		delay := t.backoff.NextBackOff()
		if delay == backoff.Stop {
			logger.Warn("retry policy stopped after conflict", zap.Int("conflicts", t.conflicts))
			return t.conflictsExhausted(errors.Wrap(ErrConflictExhausted, "retry policy stopped"))
		}

		logger.Debug("retrying after conflict",
			zap.Int("conflicts", t.conflicts),
			zap.Duration("delay", delay))

		if err := waitBackoff(ctx, delay); err != nil {
			return err
		}
	}
}
