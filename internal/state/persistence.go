package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/shopspring/decimal"
)

const stateVersion = "1.0.0"

// StatePersistence saves and restores the paper portfolio of one symbol so
// that open positions survive a restart
type StatePersistence struct {
	logger   *logger.Logger
	stateDir string
	symbol   string

	mu       sync.Mutex
	lastSave time.Time
}

// SystemState is the recoverable state of the bot
type SystemState struct {
	Version     string          `json:"version"`
	Symbol      string          `json:"symbol"`
	LastUpdated time.Time       `json:"last_updated"`
	Portfolio   PortfolioState  `json:"portfolio"`
	Positions   []PositionState `json:"positions"`
}

// PortfolioState is the paper bankroll
type PortfolioState struct {
	Balance     float64 `json:"balance"`
	PeakBalance float64 `json:"peak_balance"`
	DailyPnL    float64 `json:"daily_pnl"`
}

// PositionState is one open paper position
type PositionState struct {
	MarketID string          `json:"market_id"`
	Side     types.Side      `json:"side"`
	Strike   float64         `json:"strike"`
	Expiry   time.Time       `json:"expiry"`
	Price    float64         `json:"price"`
	Stake    decimal.Decimal `json:"stake"`
	OpenedAt time.Time       `json:"opened_at"`
}

// NewStatePersistence creates a state persistence manager
func NewStatePersistence(log *logger.Logger, stateDir, symbol string) *StatePersistence {
	if log == nil {
		log = logger.NewNopLogger()
	}
	return &StatePersistence{
		logger:   log,
		stateDir: stateDir,
		symbol:   strings.ToUpper(symbol),
	}
}

// Initialize creates the state directory
func (sp *StatePersistence) Initialize() error {
	if err := os.MkdirAll(sp.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	sp.logger.Info("State persistence initialized: %s", sp.stateDir)
	return nil
}

// StateFile returns the path of the state file
func (sp *StatePersistence) StateFile() string {
	return filepath.Join(sp.stateDir, fmt.Sprintf("%s_state.json", sp.symbol))
}

func (sp *StatePersistence) backupFile() string {
	return filepath.Join(sp.stateDir, fmt.Sprintf("%s_state_backup.json", sp.symbol))
}

// LoadState reads the saved state. It returns nil without error when there
// is no state file. A file that fails validation is an error; the caller
// decides whether to start clean.
func (sp *StatePersistence) LoadState() (*SystemState, error) {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	stateFile := sp.StateFile()

	data, err := os.ReadFile(stateFile)
	if os.IsNotExist(err) {
		sp.logger.Info("No existing state file found, starting with clean state")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var state SystemState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to parse state file %s: %w", stateFile, err)
	}

	if err := sp.validateState(&state); err != nil {
		return nil, fmt.Errorf("invalid state file %s: %w", stateFile, err)
	}

	sp.logger.Info("State loaded from %s: %d open positions, balance %.2f",
		stateFile, len(state.Positions), state.Portfolio.Balance)
	return &state, nil
}

// SaveState writes state atomically, keeping the previous file as a backup
func (sp *StatePersistence) SaveState(state SystemState) error {
	sp.mu.Lock()
	defer sp.mu.Unlock()

	state.Version = stateVersion
	state.Symbol = sp.symbol
	if state.LastUpdated.IsZero() {
		state.LastUpdated = time.Now().UTC()
	}

	if err := os.MkdirAll(sp.stateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	stateFile := sp.StateFile()

	if _, err := os.Stat(stateFile); err == nil {
		if err := copyFile(stateFile, sp.backupFile()); err != nil {
			sp.logger.LogWarning("State Backup", "Failed to create backup: %v", err)
		}
	}

	data, err := json.MarshalIndent(&state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tempFile := stateFile + ".tmp"
	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp state file: %w", err)
	}

	if err := os.Rename(tempFile, stateFile); err != nil {
		return fmt.Errorf("failed to move state file: %w", err)
	}

	sp.lastSave = state.LastUpdated
	return nil
}

// LastSave returns when state was last written
func (sp *StatePersistence) LastSave() time.Time {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return sp.lastSave
}

func (sp *StatePersistence) validateState(state *SystemState) error {
	if state.Symbol != sp.symbol {
		return fmt.Errorf("state symbol mismatch: expected %s, got %s", sp.symbol, state.Symbol)
	}

	if state.Version == "" {
		return fmt.Errorf("state version is empty")
	}

	if state.Portfolio.Balance < 0 {
		return fmt.Errorf("negative balance %.2f", state.Portfolio.Balance)
	}

	seen := make(map[string]bool, len(state.Positions))
	for _, p := range state.Positions {
		if p.MarketID == "" {
			return fmt.Errorf("position without market id")
		}
		if seen[p.MarketID] {
			return fmt.Errorf("duplicate position for %s", p.MarketID)
		}
		seen[p.MarketID] = true

		if p.Price <= 0 || p.Price >= 1 {
			return fmt.Errorf("position %s: price %.4f outside (0, 1)", p.MarketID, p.Price)
		}
		if !p.Stake.IsPositive() {
			return fmt.Errorf("position %s: stake must be positive", p.MarketID)
		}
	}

	return nil
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}
