package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/mixh8/Truth-Bench/config"
	"github.com/mixh8/Truth-Bench/internal/adapters/oracle"
	"github.com/mixh8/Truth-Bench/internal/adapters/source"
	"github.com/mixh8/Truth-Bench/internal/ports"
	"github.com/mixh8/Truth-Bench/internal/scoring"
	"github.com/mixh8/Truth-Bench/internal/sim"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to config file")
	marketsPath := flag.String("markets", "", "override resolved-markets file path")
	maxMarkets := flag.Int("max-markets", 0, "override market cap (0 = config value)")
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
	if *marketsPath != "" {
		cfg.Source.MarketsFile = *marketsPath
		cfg.Source.MarketsDB = ""
	}
	if *maxMarkets > 0 {
		cfg.Simulation.MaxMarkets = *maxMarkets
	}
	setupLogger(cfg.Log)

	slog.Info("truthbench starting",
		"config", *configPath,
		"agents", len(cfg.Simulation.Agents),
		"decision_points", cfg.Simulation.DecisionPoints,
	)

	var marketSource ports.MarketSource
	if cfg.Source.MarketsDB != "" {
		db, err := source.NewSQLiteSource(cfg.Source.MarketsDB)
		if err != nil {
			slog.Error("failed to open markets database", "err", err)
			os.Exit(1)
		}
		defer db.Close()
		marketSource = db
	} else {
		marketSource = source.NewFileSource(cfg.Source.MarketsFile)
	}

	oracleClient := oracle.NewClient(cfg.Oracle.BaseURL, cfg.Oracle.APIKey, nil)

	simulation := sim.New(sim.Config{
		AgentIDs:        cfg.Simulation.Agents,
		AgentNames:      cfg.Simulation.AgentNames,
		InitialBankroll: cfg.Simulation.InitialBankrollCents,
		MaxPositionFrac: cfg.Simulation.MaxPositionFrac,
		MinVolume:       cfg.Simulation.MinVolume,
		MaxMarkets:      cfg.Simulation.MaxMarkets,
		DecisionPoints:  cfg.Simulation.DecisionPoints,
		OracleInterval:  cfg.OracleInterval(),
		TraceDir:        cfg.Trace.Dir,
	}, marketSource, oracleClient)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Progress lines from the status stream while the run advances.
	go func() {
		for status := range simulation.Updates() {
			slog.Info("progress",
				"state", status.State,
				"markets", fmt.Sprintf("%d/%d", status.MarketsCompleted, status.TotalMarkets),
				"elapsed", status.Elapsed.Round(time.Second),
			)
		}
	}()

	result, err := simulation.Run(ctx)
	if err != nil {
		slog.Error("simulation failed", "err", err)
		os.Exit(1)
	}

	scoring.WriteReport(os.Stdout, result.Scores)
	slog.Info("truthbench finished",
		"id", result.SimulationID,
		"markets", result.MarketsEvaluated,
		"decisions", result.TotalDecisions,
	)
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
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	slog.SetDefault(slog.New(handler))
}
