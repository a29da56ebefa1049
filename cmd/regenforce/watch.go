package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/joshuapare/regenforce/internal/logger"
	"github.com/joshuapare/regenforce/internal/metrics"
	"github.com/joshuapare/regenforce/pkg/drift"
	"github.com/joshuapare/regenforce/pkg/policy"
	"github.com/joshuapare/regenforce/pkg/watch"
)

var (
	watchAutoFix     bool
	watchInterval    time.Duration
	watchNoPoll      bool
	watchNoNotify    bool
	watchNoReload    bool
	watchMetricsAddr string
)

func init() {
	cmd := newWatchCmd()
	cmd.Flags().BoolVar(&watchAutoFix, "auto-fix", false, "Write drifted values back as soon as they are seen")
	cmd.Flags().DurationVar(&watchInterval, "interval", 0, "Poll interval (default from config, 2s)")
	cmd.Flags().BoolVar(&watchNoPoll, "no-poll", false, "Disable the poll loop")
	cmd.Flags().BoolVar(&watchNoNotify, "no-notify", false, "Disable native change notifications")
	cmd.Flags().BoolVar(&watchNoReload, "no-reload", false, "Do not reload the policy folder when it changes")
	cmd.Flags().StringVar(&watchMetricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")
	rootCmd.AddCommand(cmd)
}

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Keep watching the registry for drift",
		Long: `The watch command evaluates the policy folder, then keeps the registry under
observation: a poll loop re-checks every entry on an interval, and a native
change notification on each policy key reports edits as they happen. Each
finding is printed; values that changed since they were last seen raise an
alert.

The policy folder is reloaded when its documents change. Stop with Ctrl+C.

Example:
  regenforce watch
  regenforce watch --auto-fix --interval 10s
  regenforce watch --metrics-addr :9464 --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx)
		},
	}
	return cmd
}

func watchOptions(m *metrics.Metrics) []watch.Option {
	interval := cfg.PollInterval
	if watchInterval > 0 {
		interval = watchInterval
	}
	if watchNoPoll || !cfg.Watch.Poll {
		interval = 0
	}
	return []watch.Option{
		watch.WithPollInterval(interval),
		watch.WithNotify(cfg.Watch.Notify && !watchNoNotify),
		watch.WithBuffer(cfg.Watch.Buffer),
		watch.WithMetrics(m),
	}
}

func runWatch(ctx context.Context) error {
	log := logger.Component("cli")

	set, err := loadPolicy(nil)
	if err != nil {
		return err
	}
	acc, err := openStore()
	if err != nil {
		return err
	}

	if watchMetricsAddr != "" {
		cfg.Metrics.Enabled = true
		cfg.Metrics.Addr = watchMetricsAddr
	}
	m := metrics.New(metrics.Config{Enabled: cfg.Metrics.Enabled, Addr: cfg.Metrics.Addr})

	holder := policy.NewHolder(set)
	w := watch.New(acc, holder, watchOptions(m)...)
	if err := w.Start(ctx); err != nil {
		return err
	}
	defer w.Stop()

	for _, l := range w.Listeners() {
		if l.Err != nil {
			printVerbose("  %s %s: %v\n", l.State, l.Path, l.Err)
			continue
		}
		printVerbose("  %s %s\n", l.State, l.Path)
	}
	printInfo("Watching %d entries from %s (Ctrl+C to stop)\n", set.Len(), displayPath(cfg.PolicyDir))

	var wg sync.WaitGroup
	defer wg.Wait()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if cfg.Metrics.Enabled {
		wg.Add(1)
		go func() {
			defer wg.Done()
			log.Info().Str("addr", cfg.Metrics.Addr).Msg("Serving metrics")
			if err := m.Serve(ctx); err != nil {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
	}

	if cfg.Watch.Reload && !watchNoReload {
		reloader := policy.NewReloader(cfg.PolicyDir, policy.LoadOptions{Encoding: cfg.Encoding}, 0)
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := reloader.Run(ctx, func(s *policy.Set) {
				if err := w.Reload(s); err != nil {
					m.RecordReload(false)
					log.Warn().Err(err).Msg("Policy reload rejected")
					return
				}
				m.RecordReload(true)
			})
			if err != nil {
				log.Warn().Err(err).Msg("Policy hot reload disabled")
			}
		}()
	}

	enforcer := drift.NewEnforcer(acc, m)
	enc := json.NewEncoder(os.Stdout)
	for {
		select {
		case <-ctx.Done():
			printInfo("Stopping\n")
			return nil
		case b, ok := <-w.Batches():
			if !ok {
				return nil
			}
			if jsonOut {
				if err := enc.Encode(newBatchReport(b)); err != nil {
					return err
				}
			} else {
				printBatch(b)
			}
			if watchAutoFix || cfg.Watch.AutoFix {
				autoFix(enforcer, b)
			}
		}
	}
}

func autoFix(enforcer *drift.Enforcer, b watch.Batch) {
	if b.Clean() || b.Set == nil {
		return
	}
	for _, o := range enforcer.ApplyAll(b.Set, b.Drifted) {
		if o.Err != nil {
			if !jsonOut {
				printInfo("  %s %s: %v\n", missingStyle.Render("fix failed"), o.Entry, o.Err)
			}
			continue
		}
		if !jsonOut {
			printInfo("  %s %s\n", matchedStyle.Render("fixed"), o.Entry)
		}
	}
}
