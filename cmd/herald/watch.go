package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/zoobzio/herald"
	"github.com/zoobzio/herald/feed"
)

const startPrice = 10000

type watchFlags struct {
	config      string
	codes       []string
	interval    string
	seed        int64
	only        []string
	rising      bool
	once        bool
	duration    time.Duration
	metricsAddr string
}

func newWatchCmd(g *globalFlags) *cobra.Command {
	var wf watchFlags

	cmd := &cobra.Command{
		Use:     "watch",
		Short:   "Poll the feed and print price changes",
		Example: "  herald watch --codes 005930,000660 --interval 1s --rising",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := wf.feedConfig()
			if err != nil {
				return err
			}
			logger := g.logger(cmd.ErrOrStderr())
			return runWatch(cmd.Context(), cmd.OutOrStdout(), logger, cfg, wf)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&wf.config, "config", "", "Feed config file (.yaml, .json or .toml)")
	fl.StringSliceVar(&wf.codes, "codes", nil, "Instrument codes to poll (overrides config)")
	fl.StringVar(&wf.interval, "interval", "", "Polling interval, e.g. 500ms (overrides config)")
	fl.Int64Var(&wf.seed, "seed", 0, "Random walk seed (overrides config)")
	fl.StringSliceVar(&wf.only, "only", nil, "Print only these codes")
	fl.BoolVar(&wf.rising, "rising", false, "Print only price increases")
	fl.BoolVar(&wf.once, "once", false, "Print the first matching quote and exit")
	fl.DurationVar(&wf.duration, "duration", 0, "Stop after this long (0 runs until interrupted)")
	fl.StringVar(&wf.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address, e.g. :9090")
	return cmd
}

func (wf watchFlags) feedConfig() (feed.Config, error) {
	var cfg feed.Config
	if wf.config != "" {
		loaded, err := feed.Load(wf.config)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if len(wf.codes) > 0 {
		cfg.Codes = wf.codes
	}
	if wf.interval != "" {
		cfg.Interval = wf.interval
	}
	if wf.seed != 0 {
		cfg.Seed = wf.seed
	}
	cfg = cfg.Normalize()
	return cfg, cfg.Validate()
}

func runWatch(ctx context.Context, out io.Writer, logger zerolog.Logger, cfg feed.Config, wf watchFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if wf.duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, wf.duration)
		defer cancel()
	}
	ctx, done := context.WithCancel(ctx)
	defer done()

	metrics := herald.NewMetrics("herald")
	reg := prometheus.NewRegistry()
	if err := metrics.Register(reg); err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}
	if wf.metricsAddr != "" {
		srv := metricsServer(wf.metricsAddr, reg)
		go func() {
			logger.Info().Str("addr", wf.metricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	start := make(map[string]int64, len(cfg.Codes))
	for _, code := range cfg.Codes {
		start[code] = startPrice
	}
	f, err := feed.New(
		feed.NewRandomWalk(cfg.Market, cfg.Seed, start),
		cfg,
		feed.WithLogger(logger),
		feed.WithMetrics(metrics),
	)
	if err != nil {
		return err
	}
	defer f.Close()

	subs := herald.NewGroup()
	defer subs.Close()

	only := make([]string, 0, len(wf.only))
	for _, code := range wf.only {
		only = append(only, strings.ToUpper(strings.TrimSpace(code)))
	}
	filters := []herald.Filter[*feed.Feed, feed.QuoteEvent]{feed.CodeFilter(only...)}
	if wf.rising {
		filters = append(filters, feed.RisingOnly())
	}
	subscribe := f.Quotes.On
	if wf.once {
		subscribe = f.Quotes.Once
	}
	printer := subscribe(func(_ *feed.Feed, e feed.QuoteEvent) error {
		_, err := fmt.Fprintf(out, "%s %s %d (%+d)\n", e.Quote.Market, e.Quote.Code, e.Quote.Price, e.Change)
		if wf.once {
			done()
		}
		return err
	}, herald.Where(herald.Chain(filters...)))
	printer.OnUnsubscribe(func(t *herald.Ticket[*feed.Feed, feed.QuoteEvent]) {
		logger.Debug().Str("ticket", t.ID()).Msg("printer released")
	})
	subs.Track(printer)

	subs.Track(f.Quotes.Once(func(_ *feed.Feed, e feed.QuoteEvent) error {
		logger.Info().Str("code", e.Quote.Code).Int64("price", e.Quote.Price).Msg("first quote received")
		return nil
	}))

	subs.Track(f.Errors.AddFunc(func(_ *feed.Feed, e feed.ErrorEvent) error {
		logger.Error().Err(e.Err).Str("code", e.Code).Msg("quote unavailable")
		return nil
	}))

	return f.Run(ctx)
}

func metricsServer(addr string, reg *prometheus.Registry) *http.Server {
	r := chi.NewRouter()
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}
}
