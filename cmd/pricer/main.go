package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/cmd/common"
	"github.com/ducminhle1904/binary-edge-bot/internal/config"
	"github.com/ducminhle1904/binary-edge-bot/internal/pricing"
	"github.com/ducminhle1904/binary-edge-bot/internal/risk"
	"github.com/ducminhle1904/binary-edge-bot/internal/strategy"
	"github.com/ducminhle1904/binary-edge-bot/pkg/data"
	"github.com/ducminhle1904/binary-edge-bot/pkg/reporting"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"go.uber.org/zap"
)

const appName = "pricer"

type pricerFlags struct {
	common *common.CommonFlags

	spot        *float64
	strike      *float64
	expiry      *time.Duration
	vol         *float64
	rate        *float64
	marketPrice *float64
	noPrice     *float64
	useIV       *bool

	history   *string
	csvFormat *string
	lookback  *time.Duration

	kelly    *float64
	bankroll *float64
	minEdge  *float64
	winProb  *float64
	odds     *float64

	xlsx        *string
	ladderWidth *float64
	ladderSteps *int
	symbol      *string
	jsonOut     *bool
}

func registerFlags(fs *flag.FlagSet) *pricerFlags {
	return &pricerFlags{
		common: common.RegisterCommonFlags(fs),

		spot:        fs.Float64("spot", 0, "Spot price of the underlying (required)"),
		strike:      fs.Float64("strike", 0, "Strike price (required)"),
		expiry:      fs.Duration("expiry", 24*time.Hour, "Time to expiry, e.g. 6h or 720h"),
		vol:         fs.Float64("vol", 0, "Annualized volatility; 0 uses -history or the configured default"),
		rate:        fs.Float64("rate", 0, "Annualized risk-free rate (default from config)"),
		marketPrice: fs.Float64("market-price", 0, "Market YES price in (0, 1); enables implied vol and a trade decision"),
		noPrice:     fs.Float64("no-price", 0, "Market NO price (default 1 - market-price)"),
		useIV:       fs.Bool("use-iv", false, "Report the implied volatility of -market-price on the decision"),

		history:   fs.String("history", "", "OHLCV CSV file for realized volatility"),
		csvFormat: fs.String("csv-format", "default", "CSV layout of -history: default or binance"),
		lookback:  fs.Duration("lookback", 0, "Realized volatility window (default from config)"),

		kelly:    fs.Float64("kelly", 0, "Fractional Kelly multiplier (default from config)"),
		bankroll: fs.Float64("bankroll", 0, "Bankroll in USD (default from config)"),
		minEdge:  fs.Float64("min-edge", 0, "Minimum edge to trade (default from config)"),
		winProb:  fs.Float64("win-prob", 0, "Win probability for a Kelly sizing from odds"),
		odds:     fs.Float64("odds", 0, "Decimal odds for a Kelly sizing from odds"),

		xlsx:        fs.String("xlsx", "", "Write a strike ladder workbook to this path"),
		ladderWidth: fs.Float64("ladder-width", 0.1, "Ladder spans spot*(1±width)"),
		ladderSteps: fs.Int("ladder-steps", 5, "Strikes on each side of spot"),
		symbol:      fs.String("symbol", "BTCUSDT", "Symbol shown in reports"),
		jsonOut:     fs.Bool("json", false, "Print JSON instead of tables"),
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

	formatter := common.NewUsageFormatter(appName, "Black-Scholes binary call pricer with Greeks, implied volatility and Kelly sizing").
		AddExample(appName+" -spot 100000 -strike 105000 -expiry 720h -vol 0.6", "Price a binary call").
		AddExample(appName+" -spot 100000 -strike 105000 -expiry 720h -market-price 0.35 -history btc_1h.csv", "Evaluate a market with realized volatility").
		AddExample(appName+" -win-prob 0.55 -odds 2.0", "Kelly sizing from odds only")

	err := common.ParseAndValidate(fs, args, func(v *common.FlagValidator) {
		if *f.common.Help || *f.common.Version {
			return
		}
		v.ValidateFile("history", *f.history, false)
		v.ValidateInt("ladder-steps", *f.ladderSteps, 1, 50)
		if *f.marketPrice != 0 {
			v.ValidateFloat("market-price", *f.marketPrice, 0.0001, 0.9999)
		}
		if *f.noPrice != 0 {
			v.ValidateFloat("no-price", *f.noPrice, 0.0001, 0.9999)
		}
		if *f.odds == 0 || *f.spot != 0 || *f.strike != 0 {
			v.ValidatePositive("spot", *f.spot).ValidatePositive("strike", *f.strike)
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

	explicit := map[string]bool{}
	fs.Visit(func(fl *flag.Flag) { explicit[fl.Name] = true })
	applyOverrides(settings, f, explicit)

	console := reporting.NewConsoleReporter(stdout)
	kelly := settings.KellyCriterion()

	if *f.spot == 0 && *f.strike == 0 {
		summary := kellySummary(kelly, *f.winProb, *f.odds, settings)
		if *f.jsonOut {
			return reporting.PrintJSON(stdout, summary)
		}
		console.PrintKelly(summary)
		return nil
	}

	log := common.NewConsoleLogger(*f.common.Verbose)
	defer log.Sync()

	history, interval, err := loadHistory(*f.history, *f.csvFormat, *f.lookback, settings, log)
	if err != nil {
		return err
	}

	realized := pricing.RealizedVolatilityFromCandles(history, interval)
	vol := *f.vol
	switch {
	case vol > 0:
		history = nil
	case realized > 0:
		vol = realized
	default:
		vol = settings.Trading.DefaultVolatility
	}
	log.Debug("volatility selected",
		zap.Float64("volatility", vol),
		zap.Float64("realized", realized),
		zap.Int("candles", len(history)),
		zap.Duration("interval", interval))

	now := time.Now().UTC()
	expiry := now.Add(*f.expiry)
	in := pricing.PricingInputs{
		Spot:         *f.spot,
		Strike:       *f.strike,
		TimeToExpiry: pricing.YearsUntil(expiry, now),
		Volatility:   vol,
		RiskFreeRate: settings.Trading.RiskFreeRate,
	}

	pricerConfig := settings.PricerConfig()
	pricerConfig.UseImpliedVolatility = *f.useIV
	pricer := pricing.NewBinaryOptionPricer(pricerConfig)

	result := pricer.Price(in)
	if *f.marketPrice > 0 {
		if iv, ok := pricer.CalculateImpliedVolatility(*f.marketPrice, in.Spot, in.Strike, in.TimeToExpiry, in.RiskFreeRate); ok {
			result = result.WithImpliedVolatility(iv)
		} else {
			log.Warn("implied volatility did not converge", zap.Float64("market_price", *f.marketPrice))
		}
	}

	var decision *strategy.Decision
	if *f.marketPrice > 0 {
		no := *f.noPrice
		if no == 0 {
			no = 1 - *f.marketPrice
		}

		evalConfig := settings.EvaluatorConfig()
		evalConfig.DefaultVolatility = vol

		evaluator := strategy.NewEvaluator(pricer, kelly, risk.NewPositionSizer(settings.Limits()), evalConfig)
		decision, err = evaluator.Evaluate(strategy.EvaluationInput{
			Quote: types.MarketQuote{
				ID:       fmt.Sprintf("%s-%.0f", strings.ToLower(*f.symbol), in.Strike),
				Strike:   in.Strike,
				Expiry:   expiry,
				YesPrice: *f.marketPrice,
				NoPrice:  no,
			},
			Spot:     in.Spot,
			Now:      now,
			History:  history,
			Interval: interval,
			Balance:  settings.Risk.BankrollUSD,
		})
		if err != nil {
			return err
		}
	}

	if *f.xlsx != "" {
		report := reporting.LadderReport{
			Symbol: *f.symbol,
			Inputs: in,
			Rows:   reporting.BuildStrikeLadder(pricer, in, reporting.StrikeGrid(in.Spot, *f.ladderWidth, *f.ladderSteps)),
		}
		if decision != nil {
			report.Decisions = []*strategy.Decision{decision}
		}
		if err := reporting.WriteLadderXLSX(report, *f.xlsx); err != nil {
			return fmt.Errorf("failed to write %s: %w", *f.xlsx, err)
		}
		log.Info("strike ladder written", zap.String("path", *f.xlsx), zap.Int("strikes", len(report.Rows)))
	}

	if *f.jsonOut {
		out := pricerOutput{
			Spot:               in.Spot,
			Strike:             in.Strike,
			TimeToExpiry:       in.TimeToExpiry,
			Volatility:         in.Volatility,
			RealizedVolatility: realized,
			RiskFreeRate:       in.RiskFreeRate,
			Pricing:            result,
		}
		if decision != nil {
			d := reporting.NewDecisionJSON(decision)
			out.Decision = &d
		}
		return reporting.PrintJSON(stdout, out)
	}

	console.PrintPricing("BINARY CALL", in, result)
	if decision != nil {
		console.PrintDecision(decision)
	}
	if *f.odds > 0 {
		console.PrintKelly(kellySummary(kelly, *f.winProb, *f.odds, settings))
	}
	return nil
}

type pricerOutput struct {
	Spot               float64                 `json:"spot"`
	Strike             float64                 `json:"strike"`
	TimeToExpiry       float64                 `json:"time_to_expiry"`
	Volatility         float64                 `json:"volatility"`
	RealizedVolatility float64                 `json:"realized_volatility"`
	RiskFreeRate       float64                 `json:"risk_free_rate"`
	Pricing            pricing.PricingResult   `json:"pricing"`
	Decision           *reporting.DecisionJSON `json:"decision,omitempty"`
}

func loadSettings(path string) (*config.Settings, error) {
	if path == "" {
		return config.Default()
	}
	return config.Load(path)
}

// applyOverrides copies explicitly set flags over the configured values
func applyOverrides(s *config.Settings, f *pricerFlags, explicit map[string]bool) {
	if explicit["rate"] {
		s.Trading.RiskFreeRate = *f.rate
	}
	if explicit["kelly"] {
		s.Risk.KellyFraction = *f.kelly
	}
	if explicit["bankroll"] {
		s.Risk.BankrollUSD = *f.bankroll
	}
	if explicit["min-edge"] {
		s.Trading.MinEdgeThreshold = *f.minEdge
	}
	if explicit["lookback"] {
		s.Pricing.VolatilityLookbackHours = int(f.lookback.Hours())
	}
}

func loadHistory(path, format string, lookback time.Duration, s *config.Settings, log *zap.Logger) ([]types.OHLCV, time.Duration, error) {
	if path == "" {
		return nil, 0, nil
	}

	csvFormat := data.DefaultCSVFormat
	if strings.EqualFold(format, "binance") {
		csvFormat = data.BinanceCSVFormat
	}

	provider := data.NewCSVProviderWithFormat(csvFormat).WithLogger(log)
	candles, err := provider.LoadData(path)
	if err != nil {
		return nil, 0, err
	}

	filter := data.NewDefaultDataFilter()
	candles = filter.SortByTimestamp(candles)

	if lookback <= 0 {
		lookback = s.PricerConfig().Lookback()
	}
	candles = filter.FilterByPeriod(candles, lookback)

	return candles, data.InferInterval(candles), nil
}

func kellySummary(k *risk.KellyCriterion, winProb, odds float64, s *config.Settings) reporting.KellySummary {
	fraction := k.CalculateFromOdds(winProb, odds)
	return reporting.KellySummary{
		Multiplier:          k.FractionalKelly(),
		WinProbability:      winProb,
		DecimalOdds:         odds,
		Fraction:            fraction,
		ExpectedGrowth:      k.ExpectedGrowthRate(winProb, odds, fraction),
		CertaintyEquivalent: k.CertaintyEquivalent(winProb, odds, fraction, s.Risk.RiskAversion),
		RiskAversion:        s.Risk.RiskAversion,
		DrawdownThreshold:   s.Risk.DrawdownThreshold,
		DrawdownProbability: k.DrawdownProbability(winProb, odds, fraction, s.Risk.DrawdownThreshold),
	}
}
