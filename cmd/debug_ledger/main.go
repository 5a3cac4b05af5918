package main

import (
	"context"
	"fmt"
	"os"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/infrastructure/ledger"
)

// Dumps every ledger table. Pass the db path as the first argument.
func main() {
	path := "guard.db"
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	ldg, err := ledger.NewSQLiteLedger(path)
	if err != nil {
		fmt.Printf("Failed to open ledger: %v\n", err)
		os.Exit(1)
	}
	defer ldg.Close()

	ctx := context.Background()
	tables := []string{domain.TablePositionLevels, domain.TableTradeState, domain.TableSignalStrength}
	for _, table := range tables {
		rows, err := ldg.ScanAll(ctx, table)
		if err != nil {
			fmt.Printf("%s: scan failed: %v\n", table, err)
			continue
		}
		fmt.Printf("=== %s (%d rows) ===\n", table, len(rows))
		for _, row := range rows {
			fmt.Printf("  %v\n", row)
		}
	}
}
