package exchange

import (
	"context"
	"sync"

	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
)

// StaticQuoteSource serves market quotes held in memory, typically loaded
// from configuration
type StaticQuoteSource struct {
	mu     sync.RWMutex
	quotes []types.MarketQuote
}

// NewStaticQuoteSource creates a quote source over a copy of quotes
func NewStaticQuoteSource(quotes []types.MarketQuote) *StaticQuoteSource {
	s := &StaticQuoteSource{}
	s.Replace(quotes)
	return s
}

// Quotes returns a copy of the current quotes
func (s *StaticQuoteSource) Quotes(ctx context.Context) ([]types.MarketQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.MarketQuote, len(s.quotes))
	copy(out, s.quotes)
	return out, nil
}

// Replace swaps the served quotes, e.g. after a config reload
func (s *StaticQuoteSource) Replace(quotes []types.MarketQuote) {
	cp := make([]types.MarketQuote, len(quotes))
	copy(cp, quotes)

	s.mu.Lock()
	s.quotes = cp
	s.mu.Unlock()
}
