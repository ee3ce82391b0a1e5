// Package exporter writes analysis results to spreadsheet reports: one
// Excel workbook with a sheet per table, plus flat CSV extracts of the raw
// monthly table and the retention curve.
package exporter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/xuri/excelize/v2"

	apperrors "churnlens/internal/errors"
	"churnlens/internal/infrastructure"
	"churnlens/internal/loader"
	"churnlens/internal/retention"
	"churnlens/pkg/contracts/domain"
)

// Sheet names of the exported workbook. The dashboard report store reads
// them back by these names.
const (
	SheetMonthly           = "Monthly_Activity"
	SheetCohortRetention   = "Cohort_Retention"
	SheetCohortSummary     = "Cohort_Summary"
	SheetGlobalAverages    = "Global_Averages"
	SheetSegmentComparison = "Segment_Comparison"
	SheetChurnProfile      = "Churn_Profile"
	SheetUpgrades          = "Upgrades"
	SheetRepairAudit       = "Repair_Audit"
)

// SegmentRetentionSheet returns the sheet name holding raw segmented
// retention for a segment type.
func SegmentRetentionSheet(segType retention.SegmentType) string {
	return "Retention_" + string(segType)
}

// SegmentSummarySheet returns the sheet name holding the summary table for
// a segment type.
func SegmentSummarySheet(segType retention.SegmentType) string {
	return "Summary_" + string(segType)
}

// WorkbookExporter writes one analysis result into an Excel workbook.
type WorkbookExporter struct {
	logger      *slog.Logger
	checkpoints []int
	// monthlySampleRows caps the raw monthly sheet; 0 means no cap.
	monthlySampleRows int
}

// NewWorkbookExporter creates a workbook exporter. checkpoints are the
// summary offsets, monthlySampleRows caps the raw monthly sheet.
func NewWorkbookExporter(logger *slog.Logger, checkpoints []int, monthlySampleRows int) *WorkbookExporter {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &WorkbookExporter{
		logger:            logger.With(slog.String("component", "workbook_exporter")),
		checkpoints:       checkpoints,
		monthlySampleRows: monthlySampleRows,
	}
}

// Export writes the complete workbook to path, creating parent directories
// as needed. Any failure aborts without leaving a partial workbook behind.
func (e *WorkbookExporter) Export(ctx context.Context, result *retention.Result, diag *loader.Diagnostics, path string) error {
	e.logger.InfoContext(ctx, "exporting workbook",
		slog.String("path", path),
		slog.Int("monthly_rows", len(result.Monthly)),
		slog.Int("retention_points", len(result.Retention)))

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return apperrors.NewStorageError("failed to create report directory", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := e.writeMonthly(f, result.Monthly); err != nil {
		return err
	}
	if err := e.writeRetention(f, SheetCohortRetention, result.Retention); err != nil {
		return err
	}
	if err := e.writeCohortSummary(f, result.CohortSummaries); err != nil {
		return err
	}
	if err := e.writeTrend(f, result.Trend); err != nil {
		return err
	}
	for _, segType := range retention.SegmentTypes {
		points, ok := result.Segments[segType]
		if !ok {
			continue
		}
		if err := e.writeSegmentRetention(f, SegmentRetentionSheet(segType), points); err != nil {
			return err
		}
	}
	for _, segType := range retention.SegmentTypes {
		summaries, ok := result.SegmentSummaries[segType]
		if !ok {
			continue
		}
		if err := e.writeSegmentSummaries(f, SegmentSummarySheet(segType), summaries, false); err != nil {
			return err
		}
	}
	if err := e.writeSegmentSummaries(f, SheetSegmentComparison, result.Comparison, true); err != nil {
		return err
	}
	if err := e.writeChurn(f, result.Churn); err != nil {
		return err
	}
	if err := e.writeUpgrades(f, result.Upgrades); err != nil {
		return err
	}
	if err := e.writeRepairAudit(f, diag, result.ExpandStats); err != nil {
		return err
	}

	// The default sheet is replaced by the report sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return apperrors.NewStorageError("failed to remove default sheet", err)
	}
	if idx, err := f.GetSheetIndex(SheetCohortRetention); err == nil && idx >= 0 {
		f.SetActiveSheet(idx)
	}

	if err := f.SaveAs(path); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to save workbook %s", path), err)
	}

	e.logger.InfoContext(ctx, "workbook exported", slog.String("path", path))
	return nil
}

func (e *WorkbookExporter) addSheet(f *excelize.File, name string, header []string) error {
	if _, err := f.NewSheet(name); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to create sheet %s", name), err)
	}
	return e.setRow(f, name, 1, toAny(header))
}

func (e *WorkbookExporter) setRow(f *excelize.File, sheet string, rowNum int, values []interface{}) error {
	cell := "A" + strconv.Itoa(rowNum)
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return apperrors.NewStorageError(fmt.Sprintf("failed to write row %d of sheet %s", rowNum, sheet), err)
	}
	return nil
}

func (e *WorkbookExporter) writeMonthly(f *excelize.File, rows []retention.MonthlyRow) error {
	header := []string{
		"customer_id", "subscription_id", "journey_id", "month", "relative_month",
		"journey_start_month", "frequency", "monthly_revenue",
		"source", "medium", "campaign", "payment_origin", "processor", "repair_method",
	}
	if err := e.addSheet(f, SheetMonthly, header); err != nil {
		return err
	}

	limit := len(rows)
	if e.monthlySampleRows > 0 && limit > e.monthlySampleRows {
		limit = e.monthlySampleRows
	}

	for i := 0; i < limit; i++ {
		row := rows[i]
		values := []interface{}{
			row.CustomerID, row.SubscriptionID, row.JourneyID,
			domain.MonthLabel(row.Month), row.RelativeMonth,
			domain.MonthLabel(row.JourneyStartMonth), row.Frequency, row.Revenue,
			row.Acquisition.Source, row.Acquisition.Medium, row.Acquisition.Campaign,
			row.Acquisition.PaymentOrigin, row.Acquisition.Processor, string(row.RepairMethod),
		}
		if err := e.setRow(f, SheetMonthly, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeRetention(f *excelize.File, sheet string, points []retention.RetentionPoint) error {
	header := []string{"cohort", "relative_month", "initial_customers", "active_customers", "retention_rate"}
	if err := e.addSheet(f, sheet, header); err != nil {
		return err
	}
	for i, p := range points {
		values := []interface{}{p.Cohort, p.RelativeMonth, p.InitialCustomers, p.ActiveCustomers, p.Rate}
		if err := e.setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeCohortSummary(f *excelize.File, summaries []retention.CohortSummary) error {
	header := []string{"cohort", "initial_size"}
	for _, cp := range e.checkpoints {
		header = append(header, fmt.Sprintf("retention_%dm", cp))
	}
	header = append(header, "follow_up_months")
	if err := e.addSheet(f, SheetCohortSummary, header); err != nil {
		return err
	}

	for i, s := range summaries {
		values := []interface{}{s.Cohort, s.InitialSize}
		for _, cp := range e.checkpoints {
			if rate, ok := s.Retention[cp]; ok {
				values = append(values, rate)
			} else {
				values = append(values, "")
			}
		}
		values = append(values, s.FollowUpMonths)
		if err := e.setRow(f, SheetCohortSummary, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeTrend(f *excelize.File, trend []retention.TrendPoint) error {
	header := []string{"relative_month", "mean_retention", "initial_customers", "active_customers", "cohorts"}
	if err := e.addSheet(f, SheetGlobalAverages, header); err != nil {
		return err
	}
	for i, p := range trend {
		values := []interface{}{p.RelativeMonth, p.MeanRate, p.InitialCustomers, p.ActiveCustomers, p.Cohorts}
		if err := e.setRow(f, SheetGlobalAverages, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeSegmentRetention(f *excelize.File, sheet string, points []retention.SegmentRetentionPoint) error {
	header := []string{"segment_value", "cohort", "relative_month", "initial_customers", "active_customers", "retention_rate"}
	if err := e.addSheet(f, sheet, header); err != nil {
		return err
	}
	for i, p := range points {
		values := []interface{}{p.SegmentValue, p.Cohort, p.RelativeMonth, p.InitialCustomers, p.ActiveCustomers, p.Rate}
		if err := e.setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeSegmentSummaries(f *excelize.File, sheet string, summaries []retention.SegmentSummary, includeType bool) error {
	var header []string
	if includeType {
		header = append(header, "segment_type")
	}
	header = append(header, "segment_value", "total_customers")
	for _, cp := range e.checkpoints {
		header = append(header, fmt.Sprintf("retention_%dm", cp))
	}
	if err := e.addSheet(f, sheet, header); err != nil {
		return err
	}

	for i, s := range summaries {
		var values []interface{}
		if includeType {
			values = append(values, string(s.SegmentType))
		}
		values = append(values, s.SegmentValue, s.TotalInitialCustomers)
		for _, cp := range e.checkpoints {
			if rate, ok := s.Retention[cp]; ok {
				values = append(values, rate)
			} else {
				values = append(values, "")
			}
		}
		if err := e.setRow(f, sheet, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeChurn(f *excelize.File, churn []retention.ChurnComparisonRow) error {
	header := []string{"attribute", "value", "churner_share_pct", "retained_share_pct"}
	if err := e.addSheet(f, SheetChurnProfile, header); err != nil {
		return err
	}
	for i, row := range churn {
		values := []interface{}{row.Attribute, row.Value, row.ChurnerShare, row.RetainedShare}
		if err := e.setRow(f, SheetChurnProfile, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeUpgrades(f *excelize.File, upgrades []retention.RevenueUpgrade) error {
	header := []string{
		"customer_id", "upgrade_date",
		"old_subscription_id", "old_offer", "old_frequency", "old_revenue",
		"old_discount", "old_processor", "old_payment_origin",
		"old_source", "old_medium", "old_campaign",
		"new_subscription_id", "new_offer", "new_frequency", "new_revenue",
		"new_discount", "new_processor", "new_payment_origin",
		"new_source", "new_medium", "new_campaign",
	}
	if err := e.addSheet(f, SheetUpgrades, header); err != nil {
		return err
	}

	for i, u := range upgrades {
		values := []interface{}{u.CustomerID, u.Date.Format("2006-01-02")}
		for _, side := range []retention.UpgradeSide{u.Previous, u.New} {
			values = append(values,
				side.SubscriptionID, side.Offer, side.Frequency, side.Revenue,
				side.Acquisition.Discount, side.Acquisition.Processor, side.Acquisition.PaymentOrigin,
				side.Acquisition.Source, side.Acquisition.Medium, side.Acquisition.Campaign,
			)
		}
		if err := e.setRow(f, SheetUpgrades, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

func (e *WorkbookExporter) writeRepairAudit(f *excelize.File, diag *loader.Diagnostics, stats retention.ExpandStats) error {
	header := []string{"metric", "count"}
	if err := e.addSheet(f, SheetRepairAudit, header); err != nil {
		return err
	}

	rows := [][]interface{}{
		{"rows_read", diag.RowsRead},
		{"transactions", diag.Transactions},
		{"rows_collapsed", diag.RowsCollapsed},
		{"dropped_missing_id", diag.DroppedMissingID},
		{"dropped_bad_dates", diag.DroppedBadDates},
		{"dates_original", diag.RepairCounts[domain.RepairOriginal]},
		{"dates_reconstructed", diag.RepairCounts[domain.RepairReconstructed]},
		{"dates_imputed_30d", diag.RepairCounts[domain.RepairImputed]},
		{"empty_expansions", stats.EmptyExpansions},
		{"duplicates_collapsed", stats.DuplicatesCollapsed},
	}
	for i, values := range rows {
		if err := e.setRow(f, SheetRepairAudit, i+2, values); err != nil {
			return err
		}
	}
	return nil
}

// ExportCSV writes the flat CSV extracts next to the workbook: the raw
// monthly table and the global retention curve.
func (e *WorkbookExporter) ExportCSV(ctx context.Context, result *retention.Result, outDir string) error {
	w := NewCSVWriter(outDir)

	monthlyHeader := []string{
		"customer_id", "subscription_id", "journey_id", "month", "relative_month",
		"journey_start_month", "frequency", "monthly_revenue", "source", "medium",
		"campaign", "payment_origin", "processor", "repair_method",
	}
	monthlyRecords := make([][]string, 0, len(result.Monthly))
	for _, row := range result.Monthly {
		monthlyRecords = append(monthlyRecords, []string{
			row.CustomerID, row.SubscriptionID, row.JourneyID,
			domain.MonthLabel(row.Month), strconv.Itoa(row.RelativeMonth),
			domain.MonthLabel(row.JourneyStartMonth), row.Frequency,
			strconv.FormatFloat(row.Revenue, 'f', 2, 64),
			row.Acquisition.Source, row.Acquisition.Medium, row.Acquisition.Campaign,
			row.Acquisition.PaymentOrigin, row.Acquisition.Processor, string(row.RepairMethod),
		})
	}
	if err := w.WriteSimpleCSV("monthly_activity.csv", monthlyHeader, monthlyRecords); err != nil {
		return fmt.Errorf("export monthly CSV: %w", err)
	}

	curveHeader := []string{"cohort", "relative_month", "initial_customers", "active_customers", "retention_rate"}
	curveRecords := make([][]string, 0, len(result.Retention))
	for _, p := range result.Retention {
		curveRecords = append(curveRecords, []string{
			p.Cohort, strconv.Itoa(p.RelativeMonth),
			strconv.Itoa(p.InitialCustomers), strconv.Itoa(p.ActiveCustomers),
			strconv.FormatFloat(p.Rate, 'f', 2, 64),
		})
	}
	if err := w.WriteSimpleCSV("cohort_retention.csv", curveHeader, curveRecords); err != nil {
		return fmt.Errorf("export retention CSV: %w", err)
	}

	e.logger.InfoContext(ctx, "CSV extracts exported", slog.String("dir", outDir))
	return nil
}

func toAny(values []string) []interface{} {
	result := make([]interface{}, len(values))
	for i, v := range values {
		result[i] = v
	}
	return result
}
