package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/markow/stock_trade_guard/internal/domain"
	"github.com/markow/stock_trade_guard/internal/infrastructure/broker"
	"github.com/markow/stock_trade_guard/internal/infrastructure/ledger"
	"github.com/markow/stock_trade_guard/internal/infrastructure/logger"
	"github.com/markow/stock_trade_guard/internal/infrastructure/marketdata"
	"github.com/markow/stock_trade_guard/internal/usecase"
	"github.com/markow/stock_trade_guard/internal/web"
)

type Config struct {
	Broker struct {
		BaseURL   string `yaml:"base_url"`
		StreamURL string `yaml:"stream_url"`
	} `yaml:"broker"`
	Ledger struct {
		Path string `yaml:"path"`
	} `yaml:"ledger"`
	Trading struct {
		Symbols                 []string `yaml:"symbols"`
		PositionSize            int64    `yaml:"position_size"`
		MinSecondsBetweenTrades int      `yaml:"min_seconds_between_trades"`
		SignalImprovementRatio  float64  `yaml:"signal_improvement_ratio"`
		MaxPositionNotional     float64  `yaml:"max_position_notional"`
		MaxEquityFraction       float64  `yaml:"max_equity_fraction"`
		StopLossPct             float64  `yaml:"stop_loss_pct"`
		TakeProfitPct           float64  `yaml:"take_profit_pct"`
	} `yaml:"trading"`
	Exits struct {
		TriggerBuffer        float64 `yaml:"trigger_buffer"`
		LevelsTTLHours       int     `yaml:"levels_ttl_hours"`
		MaxRetries           int     `yaml:"max_retries"`
		RetryDelayMs         int     `yaml:"retry_delay_ms"`
		FillPollDelayMs      int     `yaml:"fill_poll_delay_ms"`
		EmergencyStopEnabled bool    `yaml:"emergency_stop_enabled"`
	} `yaml:"exits"`
	Polling struct {
		IntervalSeconds int `yaml:"interval_seconds"`
	} `yaml:"polling"`
	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`
}

func loadConfig(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type app struct {
	store   *usecase.PositionStore
	monitor *usecase.ExitMonitor
	engine  *usecase.Engine
	stream  *marketdata.QuoteStream
	broker  domain.Broker
}

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	once := flag.Bool("once", false, "run a single invocation and exit")
	flag.Parse()

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.NewLogger(cfg.Logging.Level)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := godotenv.Load(); err != nil {
		log.Info(".env file not found, relying on environment")
	}
	apiKey := os.Getenv("ALPACA_API_KEY")
	apiSecret := os.Getenv("ALPACA_SECRET_KEY")
	if apiKey == "" || apiSecret == "" {
		log.Fatal("ALPACA_API_KEY and ALPACA_SECRET_KEY must be set")
	}

	a := wire(cfg, apiKey, apiSecret, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	if a.stream != nil {
		go a.stream.Run(ctx)
	}

	srv := web.NewServer(cfg.Server.Port, a.store, a.monitor, a.broker, log)
	go func() {
		if err := srv.Start(); err != nil {
			log.Error("web server failed", zap.Error(err))
		}
	}()

	if *once {
		report(log, a.engine.RunInvocation(ctx))
		shutdown(srv, log)
		return
	}

	interval := time.Duration(cfg.Polling.IntervalSeconds) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("trading loop started", zap.Duration("interval", interval))
	for {
		select {
		case <-ticker.C:
			report(log, a.engine.RunInvocation(ctx))
		case <-stop:
			log.Info("shutting down")
			cancel()
			shutdown(srv, log)
			return
		}
	}
}

func wire(cfg *Config, apiKey, apiSecret string, log *zap.Logger) *app {
	alpacaBroker := broker.NewAlpacaAdapter(apiKey, apiSecret, cfg.Broker.BaseURL)

	ldg, err := ledger.NewSQLiteLedger(cfg.Ledger.Path)
	if err != nil {
		log.Fatal("failed to open ledger", zap.Error(err))
	}

	clock := domain.SystemClock()
	ttl := time.Duration(cfg.Exits.LevelsTTLHours) * time.Hour

	store := usecase.NewPositionStore(ldg, clock, log, ttl)
	journal := usecase.NewTradeJournal(ldg, clock, log)

	gate := usecase.NewTradeGate(journal, alpacaBroker, clock, log, usecase.GateConfig{
		MinTimeBetweenTrades:   time.Duration(cfg.Trading.MinSecondsBetweenTrades) * time.Second,
		SignalImprovementRatio: cfg.Trading.SignalImprovementRatio,
		MaxPositionNotional:    cfg.Trading.MaxPositionNotional,
		MaxEquityFraction:      cfg.Trading.MaxEquityFraction,
	})

	executor := usecase.NewTradeExecutor(alpacaBroker, log, usecase.ExecutorConfig{
		MaxRetries:    cfg.Exits.MaxRetries,
		RetryDelay:    time.Duration(cfg.Exits.RetryDelayMs) * time.Millisecond,
		FillPollDelay: time.Duration(cfg.Exits.FillPollDelayMs) * time.Millisecond,
	})

	var stream *marketdata.QuoteStream
	var quotes domain.QuoteSource = alpacaBroker
	if cfg.Broker.StreamURL != "" {
		stream = marketdata.NewQuoteStream(cfg.Broker.StreamURL, apiKey, apiSecret, cfg.Trading.Symbols, log)
		quotes = marketdata.NewFallbackQuoteSource(stream, alpacaBroker)
	}

	monitor := usecase.NewExitMonitor(store, alpacaBroker, quotes, executor, log, usecase.MonitorConfig{
		TriggerBuffer:        cfg.Exits.TriggerBuffer,
		EmergencyStopEnabled: cfg.Exits.EmergencyStopEnabled,
	})

	signals := usecase.NewSignalService(alpacaBroker, log, usecase.SignalConfig{
		Symbols:       cfg.Trading.Symbols,
		PositionSize:  cfg.Trading.PositionSize,
		StopLossPct:   cfg.Trading.StopLossPct,
		TakeProfitPct: cfg.Trading.TakeProfitPct,
	})

	engine := usecase.NewEngine(store, journal, gate, monitor, executor, signals, alpacaBroker, clock, log)

	return &app{
		store:   store,
		monitor: monitor,
		engine:  engine,
		stream:  stream,
		broker:  alpacaBroker,
	}
}

func report(log *zap.Logger, result *domain.InvocationResult) {
	exits := 0
	if result.Monitor != nil {
		exits = len(result.Monitor.Exits)
	}
	log.Info("invocation complete",
		zap.Bool("market_open", result.MarketOpen),
		zap.Int("exits", exits),
		zap.Int("trades", len(result.Trades)),
		zap.Int("errors", len(result.Errors)))
	for _, e := range result.Errors {
		log.Error("invocation error", zap.String("error", e))
	}
}

func shutdown(srv *web.Server, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Error("web server shutdown failed", zap.Error(err))
	}
}
