package monitoring

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"
)

const maxHealthErrors = 10

type HealthChecker struct {
	mu             sync.RWMutex
	startTime      time.Time
	maxStaleness   time.Duration
	lastEvaluation time.Time
	lastPrice      float64
	isConnected    bool
	tradingHalted  string
	errors         []string
	now            func() time.Time
}

type HealthStatus struct {
	Status         string    `json:"status"`
	Timestamp      time.Time `json:"timestamp"`
	LastEvaluation time.Time `json:"last_evaluation"`
	LastPrice      float64   `json:"last_price"`
	IsConnected    bool      `json:"is_connected"`
	TradingHalted  string    `json:"trading_halted,omitempty"`
	Uptime         string    `json:"uptime"`
	Errors         []string  `json:"errors,omitempty"`
}

// NewHealthChecker creates a checker that reports degraded once no
// evaluation has completed within maxStaleness
func NewHealthChecker(maxStaleness time.Duration) *HealthChecker {
	h := &HealthChecker{
		maxStaleness: maxStaleness,
		errors:       make([]string, 0),
		now:          time.Now,
	}
	h.startTime = h.now()
	return h
}

func (h *HealthChecker) SetConnected(connected bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.isConnected = connected
}

func (h *HealthChecker) UpdatePrice(price float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastPrice = price
	h.isConnected = true
}

func (h *HealthChecker) RecordEvaluation(at time.Time) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.lastEvaluation = at
}

// SetTradingHalted records why new entries are blocked; empty clears it
func (h *HealthChecker) SetTradingHalted(reason string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tradingHalted = reason
}

// RecordError keeps the most recent error messages
func (h *HealthChecker) RecordError(msg string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.errors = append(h.errors, msg)
	if len(h.errors) > maxHealthErrors {
		h.errors = h.errors[len(h.errors)-maxHealthErrors:]
	}
}

func (h *HealthChecker) ClearErrors() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errors = h.errors[:0]
}

// Status computes the current health and the matching HTTP status code
func (h *HealthChecker) Status() (HealthStatus, int) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	now := h.now()

	status, code := "healthy", http.StatusOK
	if !h.isConnected || h.lastEvaluation.IsZero() || now.Sub(h.lastEvaluation) > h.maxStaleness {
		status, code = "degraded", http.StatusServiceUnavailable
	}

	if len(h.errors) > 0 {
		status, code = "unhealthy", http.StatusInternalServerError
	}

	errs := make([]string, len(h.errors))
	copy(errs, h.errors)

	return HealthStatus{
		Status:         status,
		Timestamp:      now,
		LastEvaluation: h.lastEvaluation,
		LastPrice:      h.lastPrice,
		IsConnected:    h.isConnected,
		TradingHalted:  h.tradingHalted,
		Uptime:         now.Sub(h.startTime).String(),
		Errors:         errs,
	}, code
}

func (h *HealthChecker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	health, code := h.Status()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}
