// Package loader reads subscription transactions from tabular sources and
// performs the cleanup the retention pipeline depends on: schema-driven
// column mapping, date reconstruction and repair, row-level quality drops,
// and collapsing duplicate rows per subscription.
package loader

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"
	"strings"

	"churnlens/internal/config"
	apperrors "churnlens/internal/errors"
	"churnlens/internal/infrastructure"
	"churnlens/pkg/contracts/domain"
)

// Diagnostics collects row-level quality information for one load. It is
// reported alongside the result instead of being printed during processing.
type Diagnostics struct {
	RowsRead         int                         `json:"rows_read"`
	RowsCollapsed    int                         `json:"rows_collapsed"`
	DroppedMissingID int                         `json:"dropped_missing_id"`
	DroppedBadDates  int                         `json:"dropped_bad_dates"`
	RepairCounts     map[domain.RepairMethod]int `json:"repair_counts"`
	Transactions     int                         `json:"transactions"`
}

// Dropped returns the total number of rows excluded before segmentation.
func (d *Diagnostics) Dropped() int {
	return d.DroppedMissingID + d.DroppedBadDates
}

// Loader reads transaction files according to a column schema.
type Loader struct {
	schema  config.Schema
	logger  *slog.Logger
	metrics *infrastructure.Metrics
}

// New creates a loader for the given schema.
func New(schema config.Schema, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = infrastructure.GetLogger()
	}
	return &Loader{
		schema:  schema,
		logger:  logger.With(slog.String("component", "loader")),
		metrics: infrastructure.GetMetrics(),
	}
}

// Load reads the CSV file at path and returns the cleaned transactions
// sorted by customer and start date. An unreadable file or a header missing
// a required column is fatal; bad rows are dropped and counted instead.
func (l *Loader) Load(ctx context.Context, path string) ([]domain.Transaction, *Diagnostics, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, apperrors.NewStorageError(fmt.Sprintf("cannot open transactions file %s", path), err)
	}
	defer file.Close()

	return l.Read(ctx, file)
}

// Read consumes CSV content from r. Split out from Load so tests and future
// sources (uploads, stdin) can reuse the row handling.
func (l *Loader) Read(ctx context.Context, r io.Reader) ([]domain.Transaction, *Diagnostics, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, apperrors.NewParsingError("cannot read header row", err)
	}
	stripBOM(header)

	cols, err := resolveColumns(header, l.schema)
	if err != nil {
		return nil, nil, err
	}

	diag := &Diagnostics{RepairCounts: make(map[domain.RepairMethod]int)}
	// Keyed by subscription id; duplicate raw rows for one subscription
	// collapse into a single transaction keeping first attributes and the
	// last due date seen.
	bySubscription := make(map[string]*domain.Transaction)
	var order []string

	for {
		select {
		case <-ctx.Done():
			return nil, nil, fmt.Errorf("load cancelled: %w", ctx.Err())
		default:
		}

		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, nil, apperrors.NewParsingError("cannot read CSV record", err)
		}

		diag.RowsRead++
		l.metrics.RowsLoaded.Inc()

		customerID := strings.TrimSpace(cols.value(record, cols.customerID))
		subscriptionID := strings.TrimSpace(cols.value(record, cols.subscriptionID))
		if customerID == "" || subscriptionID == "" {
			diag.DroppedMissingID++
			l.metrics.RowsDropped.WithLabelValues("missing_id").Inc()
			continue
		}

		frequency := strings.TrimSpace(cols.value(record, cols.frequency))

		startDate, startMethod, startOK := cols.startDate.parse(record)
		dueDate, dueMethod, dueOK := cols.dueDate.parse(record)

		// Monthly subscriptions with a valid start but no usable due date
		// get the due date imputed 30 days out.
		method := worseRepair(startMethod, dueMethod)
		if !dueOK && startOK && strings.Contains(strings.ToLower(frequency), "monthly") {
			dueDate = startDate.AddDate(0, 0, 30)
			dueOK = true
			method = domain.RepairImputed
		}

		if !startOK || !dueOK {
			diag.DroppedBadDates++
			l.metrics.RowsDropped.WithLabelValues("bad_dates").Inc()
			continue
		}

		tx, exists := bySubscription[subscriptionID]
		if exists {
			// Later rows for the same subscription extend the span.
			diag.RowsCollapsed++
			tx.DueDate = dueDate
			if tx.RepairMethod == domain.RepairOriginal && method != domain.RepairOriginal {
				tx.RepairMethod = method
			}
			continue
		}

		tx = &domain.Transaction{
			CustomerID:     customerID,
			SubscriptionID: subscriptionID,
			StartDate:      startDate,
			DueDate:        dueDate,
			Frequency:      frequency,
			Revenue:        parseRevenue(cols.value(record, cols.revenue)),
			Acquisition: domain.Acquisition{
				Source:        strings.TrimSpace(cols.value(record, cols.source)),
				Medium:        strings.TrimSpace(cols.value(record, cols.medium)),
				Campaign:      strings.TrimSpace(cols.value(record, cols.campaign)),
				PaymentOrigin: strings.TrimSpace(cols.value(record, cols.paymentOrigin)),
				Processor:     strings.TrimSpace(cols.value(record, cols.processor)),
				Discount:      strings.TrimSpace(cols.value(record, cols.discount)),
			},
			RepairMethod: method,
		}
		bySubscription[subscriptionID] = tx
		order = append(order, subscriptionID)
	}

	transactions := make([]domain.Transaction, 0, len(order))
	for _, id := range order {
		tx := *bySubscription[id]
		diag.RepairCounts[tx.RepairMethod]++
		if tx.RepairMethod != domain.RepairOriginal {
			l.metrics.DatesRepaired.WithLabelValues(string(tx.RepairMethod)).Inc()
		}
		transactions = append(transactions, tx)
	}

	// Stable customer/date ordering; downstream dedup tie-breaks rely on it.
	sort.SliceStable(transactions, func(i, j int) bool {
		if transactions[i].CustomerID != transactions[j].CustomerID {
			return transactions[i].CustomerID < transactions[j].CustomerID
		}
		if !transactions[i].StartDate.Equal(transactions[j].StartDate) {
			return transactions[i].StartDate.Before(transactions[j].StartDate)
		}
		return transactions[i].SubscriptionID < transactions[j].SubscriptionID
	})

	diag.Transactions = len(transactions)

	l.logger.InfoContext(ctx, "transactions loaded",
		slog.Int("rows_read", diag.RowsRead),
		slog.Int("transactions", diag.Transactions),
		slog.Int("rows_collapsed", diag.RowsCollapsed),
		slog.Int("dropped_missing_id", diag.DroppedMissingID),
		slog.Int("dropped_bad_dates", diag.DroppedBadDates),
		slog.Int("repaired", diag.RepairCounts[domain.RepairReconstructed]+diag.RepairCounts[domain.RepairImputed]),
	)

	return transactions, diag, nil
}

// stripBOM removes a UTF-8 byte order mark from the first header cell.
func stripBOM(header []string) {
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\uFEFF")
	}
}
