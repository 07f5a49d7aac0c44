package worker

import (
	"context"
	"time"

	"github.com/jwalitptl/practice-api/internal/service/audit"
	"github.com/jwalitptl/practice-api/pkg/logger"
	"github.com/jwalitptl/practice-api/pkg/metrics"
)

// AuditCleanupWorker deletes audit entries older than the retention window.
type AuditCleanupWorker struct {
	auditor   *audit.Service
	retention time.Duration
	interval  time.Duration
	logger    *logger.Logger
	metrics   *metrics.Metrics
}

func NewAuditCleanupWorker(auditor *audit.Service, retentionDays int, interval time.Duration, log *logger.Logger, m *metrics.Metrics) *AuditCleanupWorker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if log == nil {
		log = logger.NewLogger(nil)
	}
	return &AuditCleanupWorker{
		auditor:   auditor,
		retention: time.Duration(retentionDays) * 24 * time.Hour,
		interval:  interval,
		logger:    log.With("audit_cleanup"),
		metrics:   m,
	}
}

func (w *AuditCleanupWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil {
				w.logger.Error(err, "Failed to clean up audit logs")
			}
		}
	}
}

// RunOnce purges expired entries and returns how many were removed.
func (w *AuditCleanupWorker) RunOnce(ctx context.Context) (int64, error) {
	rows, err := w.auditor.Purge(ctx, w.retention)
	if err != nil {
		return 0, err
	}
	if w.metrics != nil {
		w.metrics.AuditLogsPurged.Add(float64(rows))
	}
	w.logger.Info("Cleaned up audit logs", "rows", rows, "retention_days", int(w.retention.Hours()/24))
	return rows, nil
}
