package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/cmd/common"
	"github.com/ducminhle1904/binary-edge-bot/internal/bot"
	"github.com/ducminhle1904/binary-edge-bot/internal/config"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/internal/monitoring"
	"github.com/ducminhle1904/binary-edge-bot/internal/notifications"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/state"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/reporting"
	"golang.org/x/sync/errgroup"
)

const appName = "edge-bot"

type options struct {
	common      *common.CommonFlags
	logDir      *string
	journalPath *string
	fresh       *bool
}

func main() {
	fs := flag.NewFlagSet(appName, flag.ExitOnError)
	opts := options{
		common:      common.RegisterCommonFlags(fs),
		logDir:      fs.String("log-dir", logger.DefaultLogDir, "Directory for trading logs"),
		journalPath: fs.String("journal", "", "Decision journal CSV (default results/<SYMBOL>_<date>/decisions.csv)"),
		fresh:       fs.Bool("fresh", false, "Ignore saved positions and start from the configured bankroll"),
	}

	formatter := common.NewUsageFormatter(appName, "Prices binary markets against the spot feed and paper-trades mispriced sides").
		AddExample(appName+" -config configs/btc_binary.yaml", "Run with a config file").
		AddExample("BOT_MARKET_DATA__EXCHANGE=binance "+appName+" -config configs/btc_binary.yaml", "Override a setting from the environment")

	if err := common.ParseAndValidate(fs, os.Args[1:], func(v *common.FlagValidator) {
		v.ValidateFile("config", *opts.common.ConfigFile, false)
	}); err != nil {
		common.Fatal("%v", err)
	}

	if common.CheckHelpAndVersion(appName, fs, opts.common, formatter) {
		return
	}

	if err := run(opts); err != nil {
		common.Fatal("%v", err)
	}
}

func run(opts options) error {
	if err := config.LoadEnvFile(*opts.common.EnvFile); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v, using system environment\n", err)
	}

	store, err := config.NewStore(*opts.common.ConfigFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	settings := store.Get()

	if len(settings.Markets) == 0 {
		return fmt.Errorf("no markets configured")
	}

	log, err := logger.NewLoggerInDir(*opts.logDir, settings.MarketData.Symbol, settings.MarketData.KlineInterval, *opts.common.Verbose)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer log.Close()

	if !settings.Trading.DryRun {
		log.LogWarning("Configuration", "dry_run is false but order placement is not supported; paper trading only")
	}

	feed, err := adapters.NewSpotFeed(settings.FeedConfig(), log.Named("feed"))
	if err != nil {
		return fmt.Errorf("failed to create spot feed: %w", err)
	}

	pricer := pricing.NewBinaryOptionPricer(settings.PricerConfig())
	sizer := risk.NewPositionSizer(settings.Limits())
	evaluator := strategy.NewEvaluator(pricer, settings.KellyCriterion(), sizer, settings.EvaluatorConfig())
	overseer := risk.NewOverseer(log.Named("risk"), sizer, settings.OverseerConfig(), settings.Risk.BankrollUSD)
	quotes := exchange.NewStaticQuoteSource(settings.Markets)

	journalPath := *opts.journalPath
	if journalPath == "" {
		journalPath = filepath.Join(reporting.DefaultOutputDir(settings.MarketData.Symbol, time.Now()), "decisions.csv")
	}
	journal, err := reporting.OpenDecisionJournal(journalPath)
	if err != nil {
		return fmt.Errorf("failed to open decision journal: %w", err)
	}
	defer journal.Close()

	metrics := monitoring.NewMetrics()
	health := monitoring.NewHealthChecker(staleAfter(settings.Trading.ScanInterval))

	var notifier notifications.Notifier
	if settings.Monitoring.TelegramEnabled() {
		notifier = notifications.NewTelegramNotifier(settings.Monitoring.TelegramToken, settings.Monitoring.TelegramChatID).
			WithTitle(fmt.Sprintf("%s %s", common.ProjectName, settings.MarketData.Symbol))
	}

	var persistence *state.StatePersistence
	if settings.Trading.StateDir != "" {
		persistence = state.NewStatePersistence(log.Named("state"), settings.Trading.StateDir, settings.MarketData.Symbol)
		if err := persistence.Initialize(); err != nil {
			return err
		}
	}

	liveBot, err := bot.NewLiveBot(bot.Dependencies{
		Feed:     feed,
		Quotes:   quotes,
		Strategy: evaluator,
		Overseer: overseer,
		Sizer:    sizer,
		Metrics:  metrics,
		Health:   health,
		Journal:  journal,
		Notifier: notifier,
		State:    persistence,
		Logger:   log,
	}, bot.Options{
		Symbol:                   settings.MarketData.Symbol,
		ScanInterval:             settings.Trading.ScanInterval,
		VolatilityLookback:       settings.PricerConfig().Lookback(),
		VolatilityUpdateInterval: settings.Pricing.VolatilityUpdateInterval,
		ReferenceVolatility:      settings.Trading.DefaultVolatility,
	})
	if err != nil {
		return err
	}

	if persistence != nil && !*opts.fresh {
		saved, err := persistence.LoadState()
		if err != nil {
			log.LogWarning("State", "%v; starting from the configured bankroll", err)
		}
		liveBot.Restore(saved)
	}

	fmt.Printf("%s %s: %d markets on %s %s, journal %s\n", common.ProjectName, common.GetFullVersion(),
		len(settings.Markets), feed.GetName(), settings.MarketData.Symbol, journalPath)
	fmt.Printf("Trading logs: %s\n", log.GetLogPath())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	healthMux := http.NewServeMux()
	healthMux.Handle("/health", health)
	healthMux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(liveBot.Status())
	})

	servers := []*http.Server{
		{Addr: fmt.Sprintf(":%d", settings.Monitoring.MetricsPort), Handler: metrics.Handler()},
		{Addr: fmt.Sprintf(":%d", settings.Monitoring.HealthPort), Handler: healthMux},
	}

	g, ctx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			log.Info("Starting HTTP server on %s", srv.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.LogError("HTTP server shutdown", err)
			}
		}
		return nil
	})

	g.Go(func() error {
		return watchReload(ctx, store, evaluator, quotes, log)
	})

	g.Go(func() error {
		return liveBot.Run(ctx)
	})

	err = g.Wait()

	status := liveBot.Status()
	fmt.Printf("Stopped. Balance $%.2f, %d open positions, daily PnL $%.2f\n",
		status.Risk.Balance, len(status.Positions), status.Risk.DailyPnL)
	return err
}

// watchReload re-reads the configuration on SIGHUP. Only the Kelly
// multiplier and the market list are applied to the running bot.
func watchReload(ctx context.Context, store *config.Store, evaluator *strategy.Evaluator, quotes *exchange.StaticQuoteSource, log *logger.Logger) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			settings, err := store.Reload()
			if err != nil {
				log.LogError("Config reload failed, keeping current settings", err)
				continue
			}
			evaluator.SetKelly(settings.KellyCriterion())
			quotes.Replace(settings.Markets)
			log.Status("Config reloaded: kelly %.2f, %d markets", settings.Risk.KellyFraction, len(settings.Markets))
		}
	}
}

// staleAfter is how long the health check tolerates no completed scan
func staleAfter(scanInterval time.Duration) time.Duration {
	if d := 3 * scanInterval; d > 30*time.Second {
		return d
	}
	return 30 * time.Second
}
