package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/cmd/common"
	"github.com/ducminhle1904/binary-edge-bot/internal/config"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange/adapters"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/pkg/data"
	"github.com/ducminhle1904/binary-edge-bot/pkg/reporting"
	"go.uber.org/zap"
)

const appName = "history"

// newFeed is replaced in tests
var newFeed = adapters.NewSpotFeed

type historyFlags struct {
	common *common.CommonFlags

	exchange *string
	symbol   *string
	category *string
	interval *string
	lookback *time.Duration
	output   *string
	timeout  *time.Duration
	jsonOut  *bool
}

func registerFlags(fs *flag.FlagSet) *historyFlags {
	return &historyFlags{
		common: common.RegisterCommonFlags(fs),

		exchange: fs.String("exchange", "", "Market data exchange: bybit or binance (default from config)"),
		symbol:   fs.String("symbol", "", "Symbol to download (default from config)"),
		category: fs.String("category", "", "Bybit market category (default from config)"),
		interval: fs.String("interval", "", "Kline interval in minutes, or D for daily (default from config)"),
		lookback: fs.Duration("lookback", 0, "History to download (default: volatility lookback from config)"),
		output:   fs.String("output", "", "CSV path (default results/<SYMBOL>_<date>/candles.csv)"),
		timeout:  fs.Duration("timeout", 30*time.Second, "Request deadline"),
		jsonOut:  fs.Bool("json", false, "Print the summary as JSON"),
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		common.Fatal("%v", err)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)
	fs.SetOutput(stderr)
	f := registerFlags(fs)

	formatter := common.NewUsageFormatter(appName, "Download spot candles to a CSV the pricer can read with -history").
		AddExample(appName+" -exchange bybit -symbol BTCUSDT -interval 60 -lookback 720h", "Thirty days of hourly Bybit candles").
		AddExample(appName+" -exchange binance -interval 15 -output btc_15m.csv", "Binance candles to an explicit path")

	err := common.ParseAndValidate(fs, args, func(v *common.FlagValidator) {
		if *f.common.Help || *f.common.Version {
			return
		}
		if *f.lookback < 0 {
			v.AddError("lookback cannot be negative")
		}
		if *f.timeout <= 0 {
			v.AddError("timeout must be positive")
		}
	})
	if err != nil {
		return err
	}

	if common.CheckHelpAndVersion(appName, fs, f.common, formatter) {
		return nil
	}

	if err := config.LoadEnvFile(*f.common.EnvFile); err != nil {
		fmt.Fprintf(stderr, "Warning: %v\n", err)
	}

	settings, err := loadSettings(*f.common.ConfigFile)
	if err != nil {
		return err
	}

	feedConfig := settings.FeedConfig()
	applyOverrides(&feedConfig, f)
	if err := feedConfig.Validate(); err != nil {
		return err
	}

	lookback := *f.lookback
	if lookback == 0 {
		lookback = time.Duration(settings.Pricing.VolatilityLookbackHours) * time.Hour
	}

	zl := common.NewConsoleLogger(*f.common.Verbose)
	defer zl.Sync()
	log := logger.NewWithCore(zl.Core(), feedConfig.Symbol, feedConfig.KlineInterval)

	feed, err := newFeed(feedConfig, log.Named("feed"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), *f.timeout)
	defer cancel()

	candles, err := feed.PriceHistory(ctx, lookback)
	if err != nil {
		return fmt.Errorf("failed to download %s history from %s: %w", feedConfig.Symbol, feed.GetName(), err)
	}
	candles = data.NewDefaultDataFilter().SortByTimestamp(candles)

	path := *f.output
	if path == "" {
		path = filepath.Join(reporting.DefaultOutputDir(feedConfig.Symbol, time.Now()), "candles.csv")
	}
	if err := data.SaveCSV(path, candles); err != nil {
		return err
	}
	zl.Info("history saved", zap.String("path", path), zap.Int("candles", len(candles)), zap.Duration("lookback", lookback))

	summary := reporting.SummarizeHistory(strings.ToUpper(feedConfig.Symbol), feed.GetName(), candles, feed.Interval())
	if *f.jsonOut {
		return reporting.PrintJSON(stdout, summary)
	}
	reporting.NewConsoleReporter(stdout).PrintHistory(summary)
	return nil
}

func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

func applyOverrides(c *exchange.FeedConfig, f *historyFlags) {
	if *f.exchange != "" {
		c.Name = strings.ToLower(*f.exchange)
	}
	if *f.symbol != "" {
		c.Symbol = strings.ToUpper(*f.symbol)
	}
	if *f.category != "" {
		c.Category = *f.category
	}
	if *f.interval != "" {
		c.KlineInterval = *f.interval
	}
}
