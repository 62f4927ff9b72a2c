package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"quotelog/internal/app"
	"quotelog/internal/config"
	"quotelog/internal/logger"
)

func main() {
	var (
		configPath     string
		forexCSV       string
		tickersCSV     string
		forexProvider  string
		equityProvider string
		forexFile      string
		tickerFile     string
		outputPath     string
		mode           string
		historyPath    string
		logLevel       string
		timeout        int
		skipInvalid    bool
	)
	flag.StringVar(&configPath, "config", os.Getenv("CONFIG_FILE"), "path to config file (.json, .toml, .yaml)")
	flag.StringVar(&forexCSV, "forex", "", "comma-separated currency pairs, e.g. usd_twd,eur_usd (overrides the forex file)")
	flag.StringVar(&tickersCSV, "tickers", "", "comma-separated tickers, e.g. AAPL,BRK.B (overrides the ticker file)")
	flag.StringVar(&forexProvider, "forex-provider", "", "provider for currency pairs: yahoo, alphavantage, marketstack, exchangerate")
	flag.StringVar(&equityProvider, "equity-provider", "", "provider for tickers: yahoo, alphavantage, marketstack")
	flag.StringVar(&forexFile, "forex-file", "", "file with one currency pair per line")
	flag.StringVar(&tickerFile, "ticker-file", "", "file with one ticker per line")
	flag.StringVar(&outputPath, "output", "", "CSV output path")
	flag.StringVar(&mode, "mode", "", "output mode: overwrite, append, append-if-changed")
	flag.StringVar(&historyPath, "history", "", "SQLite history database path (optional)")
	flag.StringVar(&logLevel, "log-level", "", "debug, info, warn, error")
	flag.IntVar(&timeout, "timeout", 0, "request timeout seconds")
	flag.BoolVar(&skipInvalid, "skip-invalid", false, "drop malformed input lines with a warning instead of failing")
	flag.Parse()

	_ = logger.Setup("info", os.Stderr)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}
	if forexCSV != "" {
		cfg.Forex.Labels = config.SplitCSV(forexCSV)
	}
	if tickersCSV != "" {
		cfg.Equity.Labels = config.SplitCSV(tickersCSV)
	}
	if forexProvider != "" {
		cfg.Forex.Provider = forexProvider
	}
	if equityProvider != "" {
		cfg.Equity.Provider = equityProvider
	}
	if forexFile != "" {
		cfg.Forex.File = forexFile
	}
	if tickerFile != "" {
		cfg.Equity.File = tickerFile
	}
	if outputPath != "" {
		cfg.Output.Path = outputPath
	}
	if mode != "" {
		cfg.Output.Mode = mode
	}
	if historyPath != "" {
		cfg.History.Path = historyPath
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if timeout > 0 {
		cfg.RequestTimeoutSec = timeout
	}
	if skipInvalid {
		cfg.Forex.SkipInvalid = true
		cfg.Equity.SkipInvalid = true
	}

	if err := logger.Setup(cfg.Log.Level, os.Stderr); err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}

	a, err := app.New(cfg)
	if err != nil {
		log.Error().Err(err).Msg("config")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary, err := a.Run(ctx)
	if err != nil {
		log.Error().Err(err).Msg("run failed")
		stop()
		os.Exit(1)
	}
	log.Info().Str("run_id", summary.RunID).Int("symbols", len(summary.Labels)).Bool("written", summary.Written).Msg("done")
}
