package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/information1222pm-collab/MemecoinHunter-sub003/config"
	"github.com/information1222pm-collab/MemecoinHunter-sub003/internal/adapters/storage"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	seed := flag.Bool("seed", false, "insert demo tokens and a demo portfolio, then exit")
	sweepOnce := flag.Bool("sweep-once", false, "revalue every portfolio from stored prices and exit")
	backtest := flag.Bool("backtest", false, "replay stored patterns against price history and exit")
	days := flag.Int("days", 7, "backtest window: last N days")
	capital := flag.Float64("capital", 10000, "backtest starting capital")
	strategies := flag.String("strategies", "volume_spike,price_surge,breakout", "comma-separated pattern types to replay")
	stop := flag.Float64("stop", 0.10, "stop-loss fraction (0 disables)")
	take := flag.Float64("take", 0.25, "take-profit fraction (0 disables)")
	size := flag.Float64("size", 0.10, "position size as fraction of current cash")
	maxOpen := flag.Int("max-open", 5, "max simultaneous simulated positions")
	jsonOut := flag.Bool("json", false, "print backtest result as JSON instead of tables")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		slog.Error("failed to load config", "err", err, "path", *configPath)
		os.Exit(1)
	}

	if *verbose {
		cfg.Log.Level = "debug"
	}
	if *logFormat != "" {
		cfg.Log.Format = *logFormat
	}
	setupLogger(cfg.Log)

	slog.Info("hunter starting",
		"config", *configPath,
		"quote", cfg.Feed.QuoteAsset,
		"testnet", cfg.Feed.UseTestnet,
		"seed", *seed,
		"sweep_once", *sweepOnce,
		"backtest", *backtest,
	)

	store, err := storage.NewSQLiteStorage(cfg.Storage.DSN, cfg.Retention())
	if err != nil {
		slog.Error("failed to open storage", "err", err, "dsn", cfg.Storage.DSN)
		os.Exit(1)
	}
	defer store.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if *seed {
		if err := seedDemo(ctx, store); err != nil {
			slog.Error("seed failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if *backtest {
		params, err := backtestParams(*days, *capital, *strategies, *stop, *take, *size, *maxOpen)
		if err != nil {
			slog.Error("invalid backtest flags", "err", err)
			os.Exit(1)
		}
		if err := runBacktest(ctx, store, params, *jsonOut); err != nil {
			slog.Error("backtest failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if *sweepOnce {
		if err := runSweepOnce(ctx, cfg, store); err != nil {
			slog.Error("sweep failed", "err", err)
			os.Exit(1)
		}
		return
	}

	if err := runLive(ctx, cfg, store); err != nil {
		slog.Error("hunter exited with error", "err", err)
		os.Exit(1)
	}

	slog.Info("hunter stopped cleanly")
}

func setupLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
