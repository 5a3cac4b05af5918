package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/infrastructure/broker"
	"github.com/markow/stock_trade_guard/internal/infrastructure/ledger"
	"github.com/markow/stock_trade_guard/internal/infrastructure/logger"
	"github.com/markow/stock_trade_guard/internal/usecase"
)

// Flattens every held position at market and wipes all stored exit
// levels. Deliberately ignores the config flag: invoking this binary IS
// the operator decision.
func main() {
	log, err := logger.NewLogger("info")
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	_ = godotenv.Load()
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_SECRET_KEY")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}

	ledgerPath := os.Getenv("LEDGER_PATH")
	if ledgerPath == "" {
		ledgerPath = "guard.db"
	}

	alpacaBroker := broker.NewAlpacaAdapter(apiKey, apiSecret, os.Getenv("ALPACA_BASE_URL"))
	ldg, err := ledger.NewSQLiteLedger(ledgerPath)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}

	clock := domain.SystemClock()
	store := usecase.NewPositionStore(ldg, clock, log, 0)
	executor := usecase.NewTradeExecutor(alpacaBroker, log, usecase.ExecutorConfig{
		MaxRetries:    3,
		RetryDelay:    2 * time.Second,
		FillPollDelay: 2 * time.Second,
	})
	monitor := usecase.NewExitMonitor(store, alpacaBroker, alpacaBroker, executor, log, usecase.MonitorConfig{
		EmergencyStopEnabled: true,
	})

	result, err := monitor.EmergencyStop(context.Background())
	if err != nil {
		log.Fatal("emergency stop failed", zap.Error(err))
	}

	fmt.Printf("Closed: %v\n", result.Closed)
	for symbol, reason := range result.Failed {
		fmt.Printf("FAILED %s: %s\n", symbol, reason)
	}
	fmt.Printf("Levels wiped: %d\n", result.LevelsWiped)
}
