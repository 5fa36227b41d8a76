package transactions

import (
	"context"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"

	"github.com/redistools/redis-transactions/extension"
	"github.com/redistools/redis-transactions/namespace"
)

// Manager is the top level wrapper object for all batching and transaction
// handling against a single Redis client.
type Manager struct {
	client     redis.UniversalClient
	config     Config
	metrics    *metrics
	namespaces *namespace.Registry
}

// Init will initialize the transactions library and return a Manager
// object which can be used to build batches and transactions.
func Init(client redis.UniversalClient, config *Config) (*Manager, error) {
	if client == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no client was specified")
	}
	if config == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "no config was specified")
	}

	cfg := *config
	if cfg.MaxConflicts < 1 {
		return nil, errors.Wrapf(ErrInvalidConfig, "max conflicts must be at least 1, got %d", cfg.MaxConflicts)
	}
	if cfg.RetryBackoff == nil {
		cfg.RetryBackoff = func() backoff.BackOff {
			return &backoff.ZeroBackOff{}
		}
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Tracer == nil {
		cfg.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if cfg.Internal.Hooks == nil {
		cfg.Internal.Hooks = &DefaultHooks{}
	}

	m, err := newMetrics(cfg.Registerer)
	if err != nil {
		return nil, errors.Wrap(err, "failed to register metrics")
	}

	return &Manager{
		client:     client,
		config:     cfg,
		metrics:    m,
		namespaces: namespace.NewRegistry(),
	}, nil
}

// Config returns the config that was used during the initialization
// of this Manager object.
func (m *Manager) Config() Config {
	return m.config
}

// Client returns the Redis client that every batch and transaction created
// by this Manager is bound to.
func (m *Manager) Client() redis.UniversalClient {
	return m.client
}

// Namespaces returns the registry of key prefixes owned by this Manager.
// It is emptied when the Manager is closed.
func (m *Manager) Namespaces() *namespace.Registry {
	return m.namespaces
}

// InstallExtension loads the extension scripts on the store so that they
// can subsequently be invoked by hash.
func (m *Manager) InstallExtension(ctx context.Context) error {
	return extension.Install(ctx, m.client)
}

// NewBatch creates an empty Batch bound to this Manager's client.
func (m *Manager) NewBatch() *Batch {
	return &Batch{
		client:  m.client,
		metrics: m.metrics,
		tracer:  m.config.Tracer,
	}
}

// BeginTransaction creates a new Transaction.  The returned object is used
// to register watches and actions before executing it exactly once.
func (m *Manager) BeginTransaction(perConfig *PerTransactionConfig) *Transaction {
	return &Transaction{
		parent:    m,
		perConfig: perConfig,
		attempt:   m.newTransactionAttempt(kindTransaction, perConfig),
	}
}

// BeginScheduler creates a new Scheduler.  The returned object is used to
// register phase callbacks before executing it exactly once.
func (m *Manager) BeginScheduler(perConfig *PerTransactionConfig) *Scheduler {
	return &Scheduler{
		parent:    m,
		perConfig: perConfig,
		attempt:   m.newTransactionAttempt(kindScheduler, perConfig),
		phase:     PhaseIdle,
	}
}

func (m *Manager) newTransactionAttempt(kind string, perConfig *PerTransactionConfig) *transactionAttempt {
	maxConflicts := m.config.MaxConflicts
	hooks := m.config.Internal.Hooks

	if perConfig != nil {
		if perConfig.MaxConflicts > 0 {
			maxConflicts = perConfig.MaxConflicts
		}
		if perConfig.Hooks != nil {
			hooks = perConfig.Hooks
		}
	}

	return &transactionAttempt{
		kind:          kind,
		transactionID: uuid.New().String(),
		maxConflicts:  maxConflicts,
		hooks:         hooks,
		logger:        m.config.Logger,
		tracer:        m.config.Tracer,
		metrics:       m.metrics,
		backoff:       m.config.RetryBackoff(),
	}
}

// Close will shut down this Manager object, unregistering its metrics and
// releasing every namespace prefix it handed out.  The Redis client is
// owned by the caller and is left open.
func (m *Manager) Close() error {
	m.metrics.unregister()
	m.namespaces.Reset()

	return nil
}
