package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"fundambush/internal/analyzer"
	"fundambush/internal/store"
	"fundambush/internal/strategyconfig"
	"fundambush/pkg/config"
	"fundambush/pkg/database"
	"fundambush/pkg/logger"
	"fundambush/pkg/redis"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "ambush",
	Short: "基金潜伏检测系统",
	Long: `Fund-ambush detection: scores stocks for signs of quiet
institutional accumulation across fund flow, main force typing, market
environment, share structure and technical patterns.

Usage:
  go run ./cmd/ambush [command]

Examples:
  go run ./cmd/ambush serve
  go run ./cmd/ambush analyze 000001
  go run ./cmd/ambush scan`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}

// setup loads configuration and builds the logger shared by all commands.
func setup() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	level := cfg.LogLevel
	if verbose {
		level = "debug"
	}
	log := logger.New(logger.Options{Level: level, Format: cfg.LogFormat, Env: cfg.Env})
	return cfg, log, nil
}

// newAnalyzer builds the analyzer with the strategy document applied. A
// missing strategy file falls back to the built-in defaults.
func newAnalyzer(cfg *config.Config, log *logger.Logger) *analyzer.Analyzer {
	a := analyzer.New(log)

	if cfg.StrategyPath == "" {
		return a
	}
	if _, err := os.Stat(cfg.StrategyPath); err != nil {
		log.WithField("path", cfg.StrategyPath).Warn("strategy file not found, using defaults")
		return a
	}

	doc, _, err := strategyconfig.Load(cfg.StrategyPath)
	if err != nil {
		log.WithError(err).WithField("path", cfg.StrategyPath).Warn("strategy file invalid, using defaults")
		return a
	}
	a.ApplyStrategy(doc)
	log.WithField("path", cfg.StrategyPath).Info("strategy document loaded")
	return a
}

// buildService wires the full data-backed service; the returned cleanup
// closes the connections.
func buildService(cfg *config.Config, log *logger.Logger) (*analyzer.Service, *analyzer.Analyzer, func(), error) {
	db, err := database.New(cfg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("connect to database: %w", err)
	}

	cache, err := redis.New(cfg)
	if err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	core := newAnalyzer(cfg, log)
	reports := store.NewCachedReportStore(store.NewReportRepository(db.Pool), cache, log)
	svc := analyzer.NewService(core,
		store.NewBarRepository(db.Pool),
		store.NewStockMetaRepository(db.Pool),
		store.NewMarketContextRepository(db.Pool),
		reports,
		log,
	)

	cleanup := func() {
		cache.Close()
		db.Close()
	}
	return svc, core, cleanup, nil
}
