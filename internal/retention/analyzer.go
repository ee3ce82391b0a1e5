package retention

import (
	"context"
	"fmt"
	"log/slog"

	"churnlens/internal/config"
	"churnlens/internal/infrastructure"
	"churnlens/pkg/contracts/domain"
)

// Observer receives stage progress events from an analysis run. It replaces
// ad-hoc progress printing; implementations log, broadcast to dashboard
// clients, or discard.
type Observer interface {
	StageStarted(ctx context.Context, stage string)
	StageCompleted(ctx context.Context, stage string, detail map[string]any)
}

// NopObserver discards all events.
type NopObserver struct{}

func (NopObserver) StageStarted(context.Context, string)                   {}
func (NopObserver) StageCompleted(context.Context, string, map[string]any) {}

// LogObserver reports stage progress through slog.
type LogObserver struct {
	Logger *slog.Logger
}

func (o LogObserver) StageStarted(ctx context.Context, stage string) {
	o.logger().InfoContext(ctx, "stage started", slog.String("stage", stage))
}

func (o LogObserver) StageCompleted(ctx context.Context, stage string, detail map[string]any) {
	attrs := []any{slog.String("stage", stage)}
	for k, v := range detail {
		attrs = append(attrs, slog.Any(k, v))
	}
	o.logger().InfoContext(ctx, "stage completed", attrs...)
}

func (o LogObserver) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return infrastructure.GetLogger()
}

// Analyzer runs the full retention computation over loaded transactions.
// It is stateless between runs; every run recomputes from scratch.
type Analyzer struct {
	cfg      config.AnalysisConfig
	logger   *slog.Logger
	observer Observer
}

// NewAnalyzer creates an analyzer. A nil observer defaults to LogObserver.
func NewAnalyzer(cfg config.AnalysisConfig, logger *slog.Logger, observer Observer) *Analyzer {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	if observer == nil {
		observer = LogObserver{Logger: logger}
	}
	return &Analyzer{
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "analyzer")),
		observer: observer,
	}
}

// Pipeline stage names, also used as websocket progress event identifiers.
const (
	StageSegmentJourneys    = "segment_journeys"
	StageExpandMonthly      = "expand_monthly"
	StageCohortRetention    = "cohort_retention"
	StageSegmentedRetention = "segmented_retention"
	StageSummaries          = "summaries"
	StageChurnProfile       = "churn_profile"
	StageUpgrades           = "revenue_upgrades"
)

// Run executes every stage over the given transactions and returns the
// complete result. Transactions must already be cleaned; the analyzer does
// not drop rows.
func (a *Analyzer) Run(ctx context.Context, transactions []domain.Transaction) (*Result, error) {
	if len(transactions) == 0 {
		return nil, fmt.Errorf("no transactions to analyze")
	}

	a.observer.StageStarted(ctx, StageSegmentJourneys)
	journeys := SegmentJourneys(transactions, a.cfg.MonthlyGraceDays, a.cfg.DefaultGraceDays)
	a.observer.StageCompleted(ctx, StageSegmentJourneys, map[string]any{
		"transactions": len(transactions),
		"journeys":     len(journeys),
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	a.observer.StageStarted(ctx, StageExpandMonthly)
	expanded, stats := ExpandJourneys(journeys)
	monthly, collapsed := Deduplicate(expanded)
	stats.DuplicatesCollapsed = collapsed
	a.observer.StageCompleted(ctx, StageExpandMonthly, map[string]any{
		"rows_emitted":         stats.RowsEmitted,
		"rows_deduplicated":    len(monthly),
		"duplicates_collapsed": stats.DuplicatesCollapsed,
		"empty_expansions":     stats.EmptyExpansions,
	})

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("analysis cancelled: %w", err)
	}

	a.observer.StageStarted(ctx, StageCohortRetention)
	curve := CohortRetention(monthly)
	a.observer.StageCompleted(ctx, StageCohortRetention, map[string]any{
		"points": len(curve),
	})

	a.observer.StageStarted(ctx, StageSegmentedRetention)
	segmenter := Segmenter{
		DefaultProcessor: a.cfg.DefaultProcessor,
		RevenueBands:     a.cfg.RevenueBands,
	}
	segments := SegmentedRetention(monthly, segmenter, a.cfg.MinSegmentCohortSize)
	a.observer.StageCompleted(ctx, StageSegmentedRetention, map[string]any{
		"segment_types": len(segments),
	})

	a.observer.StageStarted(ctx, StageSummaries)
	cohortSummaries := SummarizeCohorts(curve, a.cfg.Checkpoints)
	trend := TrendSummary(curve, a.cfg.MinTrendCohortSize)
	segmentSummaries := SummarizeSegments(segments, a.cfg.Checkpoints, a.cfg.MinTrendCohortSize)
	comparison := CompareSegments(segmentSummaries, 5)
	a.observer.StageCompleted(ctx, StageSummaries, map[string]any{
		"cohorts":      len(cohortSummaries),
		"trend_points": len(trend),
	})

	a.observer.StageStarted(ctx, StageChurnProfile)
	churn := ChurnCharacteristics(monthly, a.cfg.EarlyChurnHorizonMonths)
	a.observer.StageCompleted(ctx, StageChurnProfile, map[string]any{
		"comparison_rows": len(churn),
	})

	a.observer.StageStarted(ctx, StageUpgrades)
	upgrades := FindRevenueUpgrades(transactions)
	a.observer.StageCompleted(ctx, StageUpgrades, map[string]any{
		"upgrades": len(upgrades),
	})

	return &Result{
		Monthly:          monthly,
		ExpandStats:      stats,
		Retention:        curve,
		CohortSummaries:  cohortSummaries,
		Trend:            trend,
		Segments:         segments,
		SegmentSummaries: segmentSummaries,
		Comparison:       comparison,
		Churn:            churn,
		Upgrades:         upgrades,
	}, nil
}
