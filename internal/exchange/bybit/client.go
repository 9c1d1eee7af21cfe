package bybit

import (
	"context"

	bybit_api "github.com/bybit-exchange/bybit.go.api"
)

// marketService is the slice of the Bybit SDK the client uses. Results are
// *bybit_api.ServerResponse.
type marketService interface {
	GetMarketKline(ctx context.Context, params map[string]interface{}) (interface{}, error)
	GetMarketTickers(ctx context.Context, params map[string]interface{}) (interface{}, error)
}

type sdkMarketService struct {
	httpClient *bybit_api.Client
}

func (s *sdkMarketService) GetMarketKline(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.httpClient.NewUtaBybitServiceWithParams(params).GetMarketKline(ctx)
}

func (s *sdkMarketService) GetMarketTickers(ctx context.Context, params map[string]interface{}) (interface{}, error) {
	return s.httpClient.NewUtaBybitServiceWithParams(params).GetMarketTickers(ctx)
}

// Client wraps the Bybit API client for public market data
type Client struct {
	market  marketService
	testnet bool
	demo    bool
	retry   RetryConfig
}

// Config holds the configuration for the Bybit client
type Config struct {
	APIKey    string
	APISecret string
	Testnet   bool
	Demo      bool // Demo trading environment
}

// NewClient creates a new Bybit client
func NewClient(config Config) *Client {
	var baseURL string
	if config.Demo {
		// Demo trading environment (paper trading)
		baseURL = "https://api-demo.bybit.com"
	} else if config.Testnet {
		baseURL = bybit_api.TESTNET
	} else {
		baseURL = bybit_api.MAINNET
	}

	// Market endpoints are public; keys are only passed through
	httpClient := bybit_api.NewBybitHttpClient(
		config.APIKey,
		config.APISecret,
		bybit_api.WithBaseURL(baseURL),
	)

	return &Client{
		market:  &sdkMarketService{httpClient: httpClient},
		testnet: config.Testnet,
		demo:    config.Demo,
		retry:   DefaultRetryConfig(),
	}
}

// newClientWithService builds a client over any market service
func newClientWithService(market marketService, retry RetryConfig) *Client {
	return &Client{market: market, retry: retry}
}

// GetEnvironment returns a string describing the current environment
func (c *Client) GetEnvironment() string {
	if c.demo {
		return "demo"
	} else if c.testnet {
		return "testnet"
	} else {
		return "mainnet"
	}
}
