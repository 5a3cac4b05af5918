package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/markow/stock_trade_guard/internal/infrastructure/broker"
)

// Prints the account snapshot, held positions and market clock. Useful
// for verifying credentials and connectivity before starting the bot.
func main() {
	_ = godotenv.Load()
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_SECRET_KEY")
	if apiKey == "" || apiSecret == "" {
		fmt.Println("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
		os.Exit(1)
	}

	ctx := context.Background()
	b := broker.NewAlpacaAdapter(apiKey, apiSecret, os.Getenv("ALPACA_BASE_URL"))

	account, err := b.GetAccount(ctx)
	if err != nil {
		fmt.Printf("Account error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Equity: %.2f  Cash: %.2f  Buying power: %.2f\n",
		account.Equity, account.Cash, account.BuyingPower)

	open, err := b.IsMarketOpen(ctx)
	if err != nil {
		fmt.Printf("Clock error: %v\n", err)
	} else {
		fmt.Printf("Market open: %v\n", open)
	}

	positions, err := b.GetPositions(ctx)
	if err != nil {
		fmt.Printf("Positions error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Positions: %d\n", len(positions))
	for _, pos := range positions {
		fmt.Printf("  %s %s x%d @ %.2f (now %.2f)\n",
			pos.Symbol, pos.Side, pos.AbsQuantity(), pos.EntryPrice, pos.CurrentPrice)
	}
}
