package adapters

import (
	"fmt"

	"github.com/ducminhle1904/binary-edge-bot/internal/errors"
	"github.com/ducminhle1904/binary-edge-bot/internal/exchange"
	"github.com/ducminhle1904/binary-edge-bot/internal/logger"
)

// NewSpotFeed creates the spot feed named in config. Feeds that also
// implement exchange.Runner must be run for streaming to work.
func NewSpotFeed(config exchange.FeedConfig, log *logger.Logger) (exchange.SpotFeed, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	switch config.NormalizedName() {
	case "bybit":
		feed, err := NewBybitAdapter(config)
		if err != nil {
			return nil, err
		}
		return feed, nil
	case "binance":
		feed, err := NewBinanceAdapter(config, log)
		if err != nil {
			return nil, err
		}
		return feed, nil
	default:
		return nil, errors.NewConfigurationError("exchange", "new_feed",
			fmt.Sprintf("exchange '%s' is not supported", config.Name))
	}
}

func convertConfigError(err error) error {
	return errors.NewConfigurationError("exchange", "new_feed", err.Error())
}
