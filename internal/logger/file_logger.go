package logger

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// DefaultLogDir is where trading logs go unless configured otherwise
const DefaultLogDir = "logs"

// Logger writes human readable lines to the console and JSON lines to a
// per-day file for one market feed
type Logger struct {
	symbol   string
	interval string
	logDir   string
	logFile  *os.File
	zl       *zap.Logger
}

// LogLevel represents different types of log entries
type LogLevel string

const (
	LogLevelInfo    LogLevel = "INFO"
	LogLevelWarning LogLevel = "WARN"
	LogLevelError   LogLevel = "ERROR"
	LogLevelTrade   LogLevel = "TRADE"
	LogLevelStatus  LogLevel = "STATUS"
)

// NewLoggerInDir creates a logger for the symbol and interval writing JSON
// to <logDir>/<symbol>_<interval>_<date>.log. The console copy can be
// switched off for batch tools.
func NewLoggerInDir(logDir, symbol, interval string, console bool) (*Logger, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	logPath := filepath.Join(logDir, logFileName(symbol, interval, time.Now()))

	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(fileEncoderConfig()), zapcore.AddSync(file), zap.DebugLevel),
	}
	if console {
		cores = append(cores, zapcore.NewCore(
			zapcore.NewConsoleEncoder(consoleEncoderConfig()),
			zapcore.Lock(os.Stdout),
			zap.InfoLevel,
		))
	}

	l := &Logger{
		symbol:   symbol,
		interval: interval,
		logDir:   logDir,
		logFile:  file,
		zl:       newZap(zapcore.NewTee(cores...), symbol, interval),
	}

	l.zl.Info("session started", zap.String("log_file", logPath))

	return l, nil
}

// NewWithCore builds a logger on an existing zap core. Nothing is written to
// disk.
func NewWithCore(core zapcore.Core, symbol, interval string) *Logger {
	return &Logger{
		symbol:   symbol,
		interval: interval,
		zl:       newZap(core, symbol, interval),
	}
}

// NewNopLogger returns a logger that discards everything
func NewNopLogger() *Logger {
	return NewWithCore(zapcore.NewNopCore(), "", "")
}

func newZap(core zapcore.Core, symbol, interval string) *zap.Logger {
	zl := zap.New(core)
	if symbol != "" {
		zl = zl.With(zap.String("symbol", symbol), zap.String("interval", interval))
	}
	return zl
}

func fileEncoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return cfg
}

func consoleEncoderConfig() zapcore.EncoderConfig {
	return zapcore.EncoderConfig{
		MessageKey:     "msg",
		LevelKey:       "level",
		TimeKey:        "time",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.CapitalColorLevelEncoder,
		EncodeTime:     zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05"),
		EncodeDuration: zapcore.StringDurationEncoder,
	}
}

func logFileName(symbol, interval string, now time.Time) string {
	return fmt.Sprintf("%s_%s_%s.log", symbol, interval, now.Format("2006-01-02"))
}

// Zap exposes the underlying zap logger for components that take one
func (l *Logger) Zap() *zap.Logger {
	return l.zl
}

// Named returns a child logger tagged with a component name
func (l *Logger) Named(component string) *Logger {
	child := *l
	child.zl = l.zl.With(zap.String("component", component))
	child.logFile = nil
	return &child
}

// Log writes a formatted log entry with the specified level
func (l *Logger) Log(level LogLevel, format string, args ...interface{}) {
	message := fmt.Sprintf(format, args...)

	switch level {
	case LogLevelWarning:
		l.zl.Warn(message)
	case LogLevelError:
		l.zl.Error(message)
	case LogLevelTrade, LogLevelStatus:
		l.zl.Info(message, zap.String("kind", string(level)))
	default:
		l.zl.Info(message)
	}
}

// Info logs an info message
func (l *Logger) Info(format string, args ...interface{}) {
	l.Log(LogLevelInfo, format, args...)
}

// Warning logs a warning message
func (l *Logger) Warning(format string, args ...interface{}) {
	l.Log(LogLevelWarning, format, args...)
}

// Error logs an error message
func (l *Logger) Error(format string, args ...interface{}) {
	l.Log(LogLevelError, format, args...)
}

// Trade logs a trading action
func (l *Logger) Trade(format string, args ...interface{}) {
	l.Log(LogLevelTrade, format, args...)
}

// Status logs market status information
func (l *Logger) Status(format string, args ...interface{}) {
	l.Log(LogLevelStatus, format, args...)
}

// LogEvaluation records the pricing outcome for one market
func (l *Logger) LogEvaluation(marketID, side string, spot, fairValue, marketPrice, edge, fraction float64) {
	l.zl.Info("market evaluated",
		zap.String("kind", string(LogLevelStatus)),
		zap.String("market_id", marketID),
		zap.String("side", side),
		zap.Float64("spot", spot),
		zap.Float64("fair_value", fairValue),
		zap.Float64("market_price", marketPrice),
		zap.Float64("edge", edge),
		zap.Float64("kelly_fraction", fraction),
	)
}

// LogTradeExecution logs an order placed (or simulated) on a market
func (l *Logger) LogTradeExecution(marketID, side, amount string, price float64, dryRun bool) {
	l.zl.Info("order executed",
		zap.String("kind", string(LogLevelTrade)),
		zap.String("market_id", marketID),
		zap.String("side", side),
		zap.String("amount_usd", amount),
		zap.Float64("price", price),
		zap.Bool("dry_run", dryRun),
	)
}

// LogBalanceSync logs balance synchronization
func (l *Logger) LogBalanceSync(oldBalance, newBalance float64) {
	l.Info("Balance synced: $%.2f -> $%.2f", oldBalance, newBalance)
}

// LogError logs error with context
func (l *Logger) LogError(context string, err error) {
	l.zl.Error(context, zap.Error(err))
}

// LogWarning logs warning with context
func (l *Logger) LogWarning(context string, message string, args ...interface{}) {
	l.zl.Warn(context + ": " + fmt.Sprintf(message, args...))
}

// Close flushes buffered entries and closes the log file
func (l *Logger) Close() error {
	if l.logFile == nil {
		return nil
	}

	l.zl.Info("session ended")
	_ = l.zl.Sync()

	err := l.logFile.Close()
	l.logFile = nil
	return err
}

// GetLogPath returns the current log file path
func (l *Logger) GetLogPath() string {
	return filepath.Join(l.logDir, logFileName(l.symbol, l.interval, time.Now()))
}
