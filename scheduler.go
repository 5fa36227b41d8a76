package transactions

import (
	"context"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// ReadFunc is a reading callback.  tx is the watched connection and executes
// commands immediately.
type ReadFunc func(ctx context.Context, tx redis.Cmdable) error

// WriteFunc is a writing callback.  Commands issued on pipe are queued into
// the atomic block.
type WriteFunc func(ctx context.Context, pipe redis.Pipeliner) error

// EndFunc is an ending callback, run once after the atomic block committed.
type EndFunc func(ctx context.Context) error

// Scheduler runs phase tagged callbacks under optimistic concurrency control.
// Reading callbacks may register more reading callbacks, writing callbacks
// or watches.  Writing callbacks may register more writing or ending
// callbacks.  Registrations made during a discarded attempt are rolled back.
//
// A registration made in the wrong phase fails Execute even when the caller
// ignores the error returned by the registration method.  With no writing
// callback nothing is submitted, so a modified watched key goes unnoticed.
// A redis.ClusterClient refuses WATCH without keys, so on a cluster at least
// one key must be watched before Execute.
type Scheduler struct {
	parent    *Manager
	perConfig *PerTransactionConfig
	attempt   *transactionAttempt

	phase    Phase
	executed bool
	tx       *redis.Tx
	misuse   error

	watches []string
	reads   []ReadFunc
	writes  []WriteFunc
	ends    []EndFunc
}

type schedulerSnapshot struct {
	watches []string
	reads   []ReadFunc
	writes  []WriteFunc
	ends    []EndFunc
}

// ID returns the transaction ID of this scheduler.
func (s *Scheduler) ID() string {
	return s.attempt.transactionID
}

// Phase returns the phase the scheduler is currently in.
func (s *Scheduler) Phase() Phase {
	return s.phase
}

// Watches returns the keys currently being watched.
func (s *Scheduler) Watches() []string {
	return append([]string(nil), s.watches...)
}

// Fresh returns an equivalent Scheduler, bound to the same client and per
// transaction config, with nothing registered.
func (s *Scheduler) Fresh() *Scheduler {
	return s.parent.BeginScheduler(s.perConfig)
}

// Reading registers a reading callback.  It is legal until the writing
// phase starts.
func (s *Scheduler) Reading(fn ReadFunc) error {
	if s.phase != PhaseIdle && s.phase != PhaseReading {
		return s.misused(errors.Wrapf(ErrProtocolMisuse, "cannot register a reading callback while %s", s.phase))
	}

	s.reads = append(s.reads, fn)
	return nil
}

// Writing registers a writing callback.  It is legal until the writing
// phase ends.
func (s *Scheduler) Writing(fn WriteFunc) error {
	if s.phase > PhaseWriting {
		return s.misused(errors.Wrapf(ErrProtocolMisuse, "cannot register a writing callback while %s", s.phase))
	}

	s.writes = append(s.writes, fn)
	return nil
}

// Ending registers an ending callback.  It is legal until the done phase starts.
func (s *Scheduler) Ending(fn EndFunc) error {
	if s.phase >= PhaseDone {
		return s.misused(errors.Wrapf(ErrProtocolMisuse, "cannot register an ending callback while %s", s.phase))
	}

	s.ends = append(s.ends, fn)
	return nil
}

// Watch adds keys to the watch set.  During the reading phase the new keys
// are watched on the live connection straight away, they only protect
// against modifications made from that point on.
func (s *Scheduler) Watch(ctx context.Context, keys ...string) error {
	if s.phase != PhaseIdle && s.phase != PhaseReading {
		return s.misused(errors.Wrapf(ErrProtocolMisuse, "cannot watch keys while %s", s.phase))
	}

	var added []string
	s.watches, added = appendKeys(s.watches, keys...)

	if s.phase == PhaseReading && s.tx != nil && len(added) > 0 {
		return s.tx.Watch(ctx, added...).Err()
	}
	return nil
}

// Execute drives the phases to completion, retrying the reading and writing
// phases on conflict up to the configured ceiling.  Ending callbacks run
// once, after the commit, and are never retried.  A Scheduler can only be
// executed once.
func (s *Scheduler) Execute(ctx context.Context) (*Result, error) {
	if s.executed || s.phase != PhaseIdle {
		return nil, errors.Wrap(ErrProtocolMisuse, "scheduler already executed")
	}
	s.executed = true

	initial := s.snapshot()
	res, err := s.attempt.run(ctx, s.runAttempt, func() {
		s.restore(initial)
	})
	if err != nil {
		return nil, err
	}

	s.phase = PhaseDone
	for len(s.ends) > 0 {
		fn := s.ends[0]
		s.ends = s.ends[1:]

		if err := fn(ctx); err != nil {
			return res, err
		}
		if s.misuse != nil {
			return res, s.misuse
		}
	}

	return res, nil
}

// misused records the first registration made in the wrong phase.
func (s *Scheduler) misused(err error) error {
	if s.misuse == nil {
		s.misuse = err
	}
	return err
}

func (s *Scheduler) runAttempt(ctx context.Context, attempt *Attempt) error {
	s.phase = PhaseIdle

	return s.parent.client.Watch(ctx, func(tx *redis.Tx) error {
		s.tx = tx
		defer func() {
			s.tx = nil
		}()

		s.phase = PhaseReading
		for len(s.reads) > 0 {
			fn := s.reads[0]
			s.reads = s.reads[1:]

			if err := fn(ctx, tx); err != nil {
				return err
			}
			if s.misuse != nil {
				return s.misuse
			}
		}

		s.phase = PhaseWriting
		pipe := tx.TxPipeline()
		for len(s.writes) > 0 {
			fn := s.writes[0]
			s.writes = s.writes[1:]

			if err := fn(ctx, pipe); err != nil {
				pipe.Discard()
				return err
			}
			if s.misuse != nil {
				pipe.Discard()
				return s.misuse
			}
		}

		if err := s.attempt.hooks.BeforeCommit(attempt.ID); err != nil {
			pipe.Discard()
			return err
		}

		cmds, err := pipe.Exec(ctx)
		return storeError(cmds, err)
	}, s.watches...)
}

func (s *Scheduler) snapshot() schedulerSnapshot {
	return schedulerSnapshot{
		watches: append([]string(nil), s.watches...),
		reads:   append([]ReadFunc(nil), s.reads...),
		writes:  append([]WriteFunc(nil), s.writes...),
		ends:    append([]EndFunc(nil), s.ends...),
	}
}

func (s *Scheduler) restore(snap schedulerSnapshot) {
	s.watches = append([]string(nil), snap.watches...)
	s.reads = append([]ReadFunc(nil), snap.reads...)
	s.writes = append([]WriteFunc(nil), snap.writes...)
	s.ends = append([]EndFunc(nil), snap.ends...)
	s.phase = PhaseIdle
}
