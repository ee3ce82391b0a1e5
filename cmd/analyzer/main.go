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

	"churnlens/internal/config"
	"churnlens/internal/infrastructure"
	"churnlens/internal/retention"
	"churnlens/internal/services"
)

func main() {
	input := flag.String("input", "", "transactions CSV file (overrides configuration)")
	outDir := flag.String("out", "", "output directory for reports (overrides configuration)")
	configFile := flag.String("config", "", "optional YAML configuration file")
	flag.Parse()

	cfg, err := config.Load(*configFile)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.Input.TransactionsFile = *input
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		slog.Error("Failed to initialize logger", "error", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	service := services.NewAnalysisService(cfg, logger, retention.LogObserver{Logger: logger})
	report, err := service.Run(ctx)
	if err != nil {
		logger.Error("Analysis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	fmt.Printf("Analysis complete in %s\n", report.Duration.Round(10*time.Millisecond))
	fmt.Printf("  transactions: %d (dropped %d rows)\n",
		report.Diagnostics.Transactions, report.Diagnostics.Dropped())
	fmt.Printf("  workbook:     %s\n", report.WorkbookPath)
}
