package logger_test

import (
	"errors"

	"github.com/yielddelta/backtester/pkg/config"
	"github.com/yielddelta/backtester/pkg/logger"
)

// Example_withFields demonstrates structured logging around a backtest run
func Example_withFields() {
	cfg := &config.Config{
		Env:       "development",
		LogLevel:  "info",
		LogFormat: "json",
	}

	log := logger.New(cfg)

	runLog := log.WithFields(map[string]interface{}{
		"strategy": "concentrated-liquidity",
		"capital":  10000,
		"days":     90,
	})
	runLog.Info("Starting backtest")

	runLog.WithError(errors.New("subgraph timeout")).Warn("Using synthetic pool data")
}
