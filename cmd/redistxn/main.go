package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	transactions "github.com/redistools/redis-transactions"
	"github.com/redistools/redis-transactions/internal/logger"
)

type options struct {
	addr         string
	db           int
	maxConflicts int
	timeout      time.Duration
	logLevel     string
	logFormat    string
	metricsAddr  string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "redistxn",
		Short:         "Run optimistic Redis transactions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.addr, "addr", "localhost:6379", "Redis address")
	flags.IntVar(&opts.db, "db", 0, "Redis database")
	flags.IntVar(&opts.maxConflicts, "max-conflicts", 20, "conflicts tolerated before giving up")
	flags.DurationVar(&opts.timeout, "timeout", 10*time.Second, "overall timeout")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log format, json or console")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address while running")

	cmd.AddCommand(newCountersCommand(opts))
	cmd.AddCommand(newInstallCommand(opts))

	return cmd
}

func newCountersCommand(opts *options) *cobra.Command {
	var mode string
	var prefix string

	cmd := &cobra.Command{
		Use:   "counters KEY=DELTA...",
		Short: "Atomically add deltas to integer keys",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			deltas, err := parseDeltas(args)
			if err != nil {
				return err
			}

			return withManager(opts, func(ctx context.Context, mgr *transactions.Manager, log *zap.Logger) error {
				if prefix != "" {
					ns, err := mgr.Namespaces().Register(prefix)
					if err != nil {
						return err
					}
					for idx := range deltas {
						if deltas[idx].storeKey, err = ns.Key(deltas[idx].key); err != nil {
							return err
						}
					}
				}

				var res *transactions.Result
				var err error
				switch mode {
				case "transaction":
					txn := mgr.BeginTransaction(nil)
					for _, d := range deltas {
						if err := txn.Watch(d.storeKey); err != nil {
							return err
						}
						txn.Do(transactions.IncrBy(d.storeKey, d.delta))
					}
					res, err = txn.Execute(ctx)
				case "scheduler":
					sched := mgr.BeginScheduler(nil)
					for _, d := range deltas {
						if err := transactions.ScheduleIncrBy(ctx, sched, d.storeKey, d.delta); err != nil {
							return err
						}
					}
					res, err = sched.Execute(ctx)
				default:
					return errors.Errorf("unknown mode %q", mode)
				}
				if err != nil {
					return err
				}

				log.Info("counters updated",
					zap.String("txn_id", res.TransactionID),
					zap.Int("attempts", len(res.Attempts)),
					zap.Int("conflicts", res.Conflicts()))

				for _, d := range deltas {
					value, err := mgr.Client().Get(ctx, d.storeKey).Result()
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", d.key, value)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "transaction", "engine to use, transaction or scheduler")
	cmd.Flags().StringVar(&prefix, "namespace", "", "store the counters under this key prefix")

	return cmd
}

func newInstallCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "install-extension",
		Short: "Load the conditional hash scripts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withManager(opts, func(ctx context.Context, mgr *transactions.Manager, log *zap.Logger) error {
				if err := mgr.InstallExtension(ctx); err != nil {
					return err
				}
				log.Info("extension installed", zap.String("addr", opts.addr))
				return nil
			})
		},
	}
}

func withManager(opts *options, fn func(context.Context, *transactions.Manager, *zap.Logger) error) error {
	log, err := logger.New(logger.Config{Level: opts.logLevel, Format: opts.logFormat})
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	registry := prometheus.NewRegistry()
	if opts.metricsAddr != "" {
		srv := &http.Server{
			Addr:    opts.metricsAddr,
			Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Warn("metrics server stopped", zap.Error(err))
			}
		}()
		defer func() {
			_ = srv.Close()
		}()
	}

	client := redis.NewClient(&redis.Options{
		Addr: opts.addr,
		DB:   opts.db,
	})
	defer func() {
		_ = client.Close()
	}()

	mgr, err := transactions.Init(client, &transactions.Config{
		MaxConflicts: opts.maxConflicts,
		Logger:       log,
		Registerer:   registry,
	})
	if err != nil {
		return err
	}
	defer func() {
		_ = mgr.Close()
	}()

	ctx, cancel := context.WithTimeout(context.Background(), opts.timeout)
	defer cancel()

	return fn(ctx, mgr, log)
}

type delta struct {
	key      string
	storeKey string
	delta    int64
}

func parseDeltas(args []string) ([]delta, error) {
	deltas := make([]delta, 0, len(args))
	for _, arg := range args {
		idx := strings.LastIndexByte(arg, '=')
		if idx <= 0 {
			return nil, errors.Errorf("expected KEY=DELTA, got %q", arg)
		}

		value, err := strconv.ParseInt(arg[idx+1:], 10, 64)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid delta in %q", arg)
		}

		deltas = append(deltas, delta{key: arg[:idx], storeKey: arg[:idx], delta: value})
	}
	return deltas, nil
}
