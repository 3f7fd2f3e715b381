package monitor

import (
	"context"
	"errors"
	"fmt"

	"github.com/datametry/edr/alert"
	"github.com/datametry/edr/engine"
	"github.com/datametry/edr/metrics"
	"github.com/datametry/edr/pkg/logger"
)

const (
	// MaxMarkSentBatch is the largest number of alert ids submitted in one sent-state update.
	MaxMarkSentBatch = 50

	getNewAlertsOperation     = "get_new_alerts"
	updateSentAlertsOperation = "update_sent_alerts"
)

// MarkSentError is returned when a sent-state update chunk fails.  Chunks before Chunk were confirmed
// and stay marked as sent.
type MarkSentError struct {
	Chunk     int
	Confirmed int
	Err       error
}

func (e *MarkSentError) Error() string {
	return fmt.Sprintf("mark sent chunk %d failed after %d confirmed ids: %s", e.Chunk, e.Confirmed, e.Err)
}

func (e *MarkSentError) Unwrap() error { return e.Err }

// Repository reads and updates alert state in the warehouse through engine operations.
type Repository struct {
	engine engine.Engine
	props  *Properties
}

func NewRepository(eng engine.Engine, props *Properties) *Repository {
	return &Repository{engine: eng, props: props}
}

// FetchNewAlerts returns the alerts detected within the last daysBack days that were not sent yet, in
// the order the warehouse returned them.  A row that cannot be parsed fails the whole fetch.
func (r *Repository) FetchNewAlerts(ctx context.Context, daysBack int) ([]*alert.Alert, error) {
	if daysBack <= 0 {
		return nil, fmt.Errorf("days back must be positive, got %d", daysBack)
	}

	rows, err := r.engine.RunOperation(ctx, getNewAlertsOperation, map[string]any{"days_back": daysBack})
	if err != nil {
		return nil, fmt.Errorf("query new alerts: %w", err)
	}
	r.props.Set(PropAlertRows, len(rows))
	metrics.AlertsFetched.Add(float64(len(rows)))

	alerts := make([]*alert.Alert, 0, len(rows))
	for i, row := range rows {
		a, err := alert.ParseRow([]byte(row))
		if err != nil {
			metrics.Errors.WithLabelValues(metrics.ParseAlertError).Inc()
			return nil, fmt.Errorf("alert row %d: %w", i, err)
		}
		alerts = append(alerts, a)
	}
	return alerts, nil
}

// MarkSent marks the given alert ids as sent in chunks of at most MaxMarkSentBatch ids.  Chunks are
// submitted one at a time in input order; the first failing chunk stops the update.
func (r *Repository) MarkSent(ctx context.Context, ids []string) error {
	var confirmed int
	for i, chunk := range Chunk(ids, MaxMarkSentBatch) {
		if _, err := r.engine.RunOperation(ctx, updateSentAlertsOperation, map[string]any{"alert_ids": chunk}); err != nil {
			metrics.MarkSentChunks.WithLabelValues("failed").Inc()
			return &MarkSentError{Chunk: i, Confirmed: confirmed, Err: err}
		}
		metrics.MarkSentChunks.WithLabelValues("ok").Inc()
		confirmed += len(chunk)
		logger.Debugf("Marked %d/%d alerts as sent", confirmed, len(ids))
	}
	return nil
}

// IsMarkSentError reports whether err came from a failed sent-state update.
func IsMarkSentError(err error) bool {
	var mse *MarkSentError
	return errors.As(err, &mse)
}
