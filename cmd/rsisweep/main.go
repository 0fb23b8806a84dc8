package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alejandrodnm/rsisweep/config"
	"github.com/alejandrodnm/rsisweep/internal/adapters/alphavantage"
	"github.com/alejandrodnm/rsisweep/internal/adapters/filecache"
	"github.com/alejandrodnm/rsisweep/internal/adapters/indicator"
	"github.com/alejandrodnm/rsisweep/internal/adapters/notify"
	"github.com/alejandrodnm/rsisweep/internal/adapters/storage"
	"github.com/alejandrodnm/rsisweep/internal/application/series"
	"github.com/alejandrodnm/rsisweep/internal/application/sweep"
	"github.com/alejandrodnm/rsisweep/internal/domain"
	"github.com/alejandrodnm/rsisweep/internal/ports"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	verbose := flag.Bool("verbose", false, "set log level to debug")
	logFormat := flag.String("format", "", "log format: text|json (overrides config)")
	offline := flag.Bool("offline", false, "use only cached series, never call the API")
	refresh := flag.Bool("refresh", false, "re-download every series even if cached")
	dryRun := flag.Bool("dry-run", false, "do not persist the sweep to SQLite")
	top := flag.Int("top", 0, "rows of the ranking to print (overrides config)")
	detail := flag.Bool("detail", false, "print per-instrument breakdown of the best pair")
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
	if *top > 0 {
		cfg.Sweep.Top = *top
	}
	setupLogger(cfg.Log)

	if !*offline && cfg.API.APIKey == "" {
		slog.Error("API key not found: set ALPHA_VANTAGE_API_KEY or run with -offline")
		os.Exit(1)
	}

	buys := cfg.Sweep.Buy.Values()
	sells := cfg.Sweep.Sell.Values()

	slog.Info("rsisweep starting",
		"config", *configPath,
		"symbols", len(cfg.Backtest.Symbols),
		"since", cfg.Backtest.StartDate,
		"buy_thresholds", len(buys),
		"sell_thresholds", len(sells),
		"indicator", cfg.Data.Indicator,
		"offline", *offline,
		"dry_run", *dryRun,
	)

	provider := buildProvider(cfg, *offline, *refresh)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runCfg := sweep.DefaultConfig()
	runCfg.Params = cfg.Params()
	runCfg.Workers = cfg.Sweep.Workers
	runCfg.FailFast = cfg.Sweep.FailFast

	run, err := sweep.New(runCfg, provider).Sweep(ctx, cfg.Backtest.Symbols, buys, sells)
	if err != nil {
		slog.Error("sweep failed", "err", err)
		os.Exit(1)
	}

	if !*dryRun {
		persist(ctx, cfg.Storage.DSN, run)
	}

	var notifier ports.Notifier = notify.NewConsole(cfg.Sweep.Top, *detail)
	if err := notifier.Notify(ctx, run); err != nil {
		slog.Warn("notifier error", "err", err)
	}

	slog.Info("rsisweep finished", "run_id", run.ID)
}

// persist guarda el run; un fallo de storage no invalida el ranking ya calculado.
func persist(ctx context.Context, dsn string, run domain.SweepRun) {
	db, err := storage.NewSQLiteStorage(dsn)
	if err != nil {
		slog.Warn("failed to open storage", "err", err, "dsn", dsn)
		return
	}
	var store ports.Storage = db
	defer store.Close()

	if err := store.SaveRun(ctx, run); err != nil {
		slog.Warn("failed to persist sweep", "err", err, "run_id", run.ID)
		return
	}
	slog.Info("sweep persisted", "run_id", run.ID, "dsn", dsn)
}

// buildProvider monta cache → (API | RSI local) → Loader.
// En offline la cache es la única fuente.
func buildProvider(cfg *config.Config, offline, refresh bool) ports.SeriesProvider {
	since, _ := cfg.Since() // ya validado en Load
	cache := filecache.New(cfg.Data.Dir)

	var upstreamRSI ports.IndicatorSource
	var upstreamPrices ports.PriceSource
	if !offline {
		client := alphavantage.NewClient(alphavantage.Options{
			BaseURL:           cfg.API.BaseURL,
			APIKey:            cfg.API.APIKey,
			RequestsPerMinute: cfg.API.RequestsPerMinute,
			RSIPeriod:         cfg.Data.RSIPeriod,
			SeriesType:        cfg.API.SeriesType,
		})
		upstreamRSI = client
		upstreamPrices = client
	}

	prices := cache.Prices(upstreamPrices, refresh && !offline)

	var rsi ports.IndicatorSource
	if cfg.Data.Indicator == config.IndicatorLocal {
		rsi = indicator.NewLocalRSI(prices, cfg.Data.RSIPeriod)
	} else {
		rsi = cache.Indicators(upstreamRSI, refresh && !offline)
	}

	return series.NewLoader(rsi, prices, since)
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
