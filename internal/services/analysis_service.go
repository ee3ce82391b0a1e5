// Package services wires the pipeline stages into operations the CLI and
// dashboard transport call: running a full analysis and serving precomputed
// report tables.
package services

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"churnlens/internal/config"
	"churnlens/internal/exporter"
	"churnlens/internal/infrastructure"
	"churnlens/internal/loader"
	"churnlens/internal/retention"
)

// RunReport describes one completed analysis run.
type RunReport struct {
	RunID        string              `json:"run_id"`
	StartedAt    time.Time           `json:"started_at"`
	Duration     time.Duration       `json:"duration"`
	WorkbookPath string              `json:"workbook_path"`
	Diagnostics  *loader.Diagnostics `json:"diagnostics"`
	Result       *retention.Result   `json:"-"`
}

// AnalysisService runs the full pipeline: load, analyze, export. Runs are
// batch and sequential; each one recomputes everything from the source file.
type AnalysisService struct {
	cfg      *config.Config
	logger   *slog.Logger
	metrics  *infrastructure.Metrics
	observer retention.Observer
}

// NewAnalysisService creates the service. The observer receives stage
// progress; nil falls back to log-only progress.
func NewAnalysisService(cfg *config.Config, logger *slog.Logger, observer retention.Observer) *AnalysisService {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &AnalysisService{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "analysis_service")),
		metrics:  infrastructure.GetMetrics(),
		observer: observer,
	}
}

// Run executes one full analysis of the configured transactions file and
// exports the workbook and CSV extracts. It returns the run report with
// row-level diagnostics; any stage error aborts the run with no partial
// report output.
func (s *AnalysisService) Run(ctx context.Context) (*RunReport, error) {
	runID := uuid.NewString()
	ctx = infrastructure.WithRunID(ctx, runID)
	started := time.Now()

	s.metrics.AnalysesStarted.Inc()
	s.logger.InfoContext(ctx, "analysis run started",
		slog.String("input", s.cfg.Input.TransactionsFile))

	ld := loader.New(s.cfg.Schema, s.logger)
	transactions, diag, err := ld.Load(ctx, s.cfg.Input.TransactionsFile)
	if err != nil {
		s.metrics.AnalysesFailed.Inc()
		return nil, err
	}

	analyzer := retention.NewAnalyzer(s.cfg.Analysis, s.logger, s.observer)
	result, err := analyzer.Run(ctx, transactions)
	if err != nil {
		s.metrics.AnalysesFailed.Inc()
		return nil, err
	}

	workbookPath := filepath.Join(s.cfg.Output.Dir, s.cfg.Output.WorkbookName)
	exp := exporter.NewWorkbookExporter(s.logger, s.cfg.Analysis.Checkpoints, s.cfg.Output.MonthlySampleRows)
	if err := exp.Export(ctx, result, diag, workbookPath); err != nil {
		s.metrics.AnalysesFailed.Inc()
		return nil, err
	}
	if err := exp.ExportCSV(ctx, result, s.cfg.Output.Dir); err != nil {
		s.metrics.AnalysesFailed.Inc()
		return nil, err
	}

	duration := time.Since(started)
	s.metrics.AnalysisSeconds.Observe(duration.Seconds())

	s.logger.InfoContext(ctx, "analysis run completed",
		slog.Duration("duration", duration),
		slog.Int("transactions", diag.Transactions),
		slog.Int("monthly_rows", len(result.Monthly)),
		slog.Int("dropped_rows", diag.Dropped()),
		slog.String("workbook", workbookPath))

	return &RunReport{
		RunID:        runID,
		StartedAt:    started,
		Duration:     duration,
		WorkbookPath: workbookPath,
		Diagnostics:  diag,
		Result:       result,
	}, nil
}
