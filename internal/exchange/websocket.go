package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
	"github.com/ducminhle1904/binary-edge-bot/pkg/types"
	"github.com/gorilla/websocket"
)

const (
	binanceStreamURL        = "wss://stream.binance.com:9443/ws"
	binanceTestnetStreamURL = "wss://testnet.binance.vision/ws"

	pingInterval     = 30 * time.Second
	handshakeTimeout = 10 * time.Second
)

// BinanceTradeStreamURL returns the raw trade stream endpoint for symbol
func BinanceTradeStreamURL(symbol string, testnet bool) string {
	base := binanceStreamURL
	if testnet {
		base = binanceTestnetStreamURL
	}
	return fmt.Sprintf("%s/%s@trade", base, strings.ToLower(symbol))
}

// TradeStream keeps the latest traded price from a websocket trade stream,
// reconnecting until its context is cancelled
type TradeStream struct {
	url       string
	reconnect time.Duration
	logger    *logger.Logger
	dialer    *websocket.Dialer

	mu        sync.RWMutex
	last      types.Ticker
	connected bool
	handlers  []func(types.Ticker)
}

// NewTradeStream creates a stream; nothing is dialled until Run
func NewTradeStream(url string, reconnect time.Duration, log *logger.Logger) *TradeStream {
	if reconnect <= 0 {
		reconnect = 5 * time.Second
	}
	if log == nil {
		log = logger.NewNopLogger()
	}

	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = handshakeTimeout

	return &TradeStream{
		url:       url,
		reconnect: reconnect,
		logger:    log.Named("trade_stream"),
		dialer:    &dialer,
	}
}

// OnTrade registers a callback invoked for every parsed trade
func (s *TradeStream) OnTrade(fn func(types.Ticker)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, fn)
}

// Latest returns the last trade seen, if any
func (s *TradeStream) Latest() (types.Ticker, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last, !s.last.Timestamp.IsZero()
}

// Connected reports whether a connection is currently open
func (s *TradeStream) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected
}

// Run connects and reads trades until ctx is done. Dropped connections are
// retried after the reconnect interval.
func (s *TradeStream) Run(ctx context.Context) error {
	for {
		err := s.session(ctx)
		if ctx.Err() != nil {
			return nil
		}
		s.logger.LogWarning("trade stream", "connection lost: %v, reconnecting in %s", err, s.reconnect)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(s.reconnect):
		}
	}
}

func (s *TradeStream) session(ctx context.Context) error {
	conn, _, err := s.dialer.DialContext(ctx, s.url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to WebSocket: %w", err)
	}
	s.setConnected(true)
	s.logger.Info("connected to %s", s.url)

	done := make(chan struct{})
	defer func() {
		close(done)
		conn.Close()
		s.setConnected(false)
	}()

	go s.keepAlive(ctx, conn, done)

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("failed to read message: %w", err)
		}

		trade, err := parseTradeMessage(message)
		if err != nil {
			s.logger.LogWarning("trade stream", "skipping message: %v", err)
			continue
		}
		s.publish(trade)
	}
}

// keepAlive pings the server and closes conn when ctx ends so that the
// blocked read returns
func (s *TradeStream) keepAlive(ctx context.Context, conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ctx.Done():
			conn.Close()
			return
		case <-ticker.C:
			deadline := time.Now().Add(handshakeTimeout)
			if err := conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				s.logger.LogWarning("trade stream", "failed to send ping: %v", err)
				conn.Close()
				return
			}
		}
	}
}

func (s *TradeStream) setConnected(v bool) {
	s.mu.Lock()
	s.connected = v
	s.mu.Unlock()
}

func (s *TradeStream) publish(trade types.Ticker) {
	s.mu.Lock()
	s.last = trade
	handlers := make([]func(types.Ticker), len(s.handlers))
	copy(handlers, s.handlers)
	s.mu.Unlock()

	for _, fn := range handlers {
		fn(trade)
	}
}

// tradeMessage is the Binance raw trade payload. encoding/json matches keys
// case-insensitively when there is no exact match, so every key that differs
// only by case needs its own field.
type tradeMessage struct {
	Event      string `json:"e"`
	EventTime  int64  `json:"E"`
	Symbol     string `json:"s"`
	TradeID    int64  `json:"t"`
	Price      string `json:"p"`
	Quantity   string `json:"q"`
	TradeTime  int64  `json:"T"`
	BuyerMaker bool   `json:"m"`
	Ignore     bool   `json:"M"`
}

func parseTradeMessage(data []byte) (types.Ticker, error) {
	var msg tradeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return types.Ticker{}, fmt.Errorf("failed to decode trade: %w", err)
	}
	if msg.Event != "trade" {
		return types.Ticker{}, fmt.Errorf("unexpected event %q", msg.Event)
	}

	price, err := strconv.ParseFloat(msg.Price, 64)
	if err != nil || price <= 0 {
		return types.Ticker{}, fmt.Errorf("invalid trade price %q", msg.Price)
	}
	quantity, _ := strconv.ParseFloat(msg.Quantity, 64)

	return types.Ticker{
		Symbol:    msg.Symbol,
		Price:     price,
		Volume:    quantity,
		Timestamp: time.UnixMilli(msg.TradeTime),
	}, nil
}
