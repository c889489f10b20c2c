package workflow

import (
	"context"
	"sort"

	"github.com/mmdatafocus/warehouse_backend/models"
	"github.com/sirupsen/logrus"
)

// ReconciliationSummary groups one run's findings by check type.
type ReconciliationSummary struct {
	CorrelationId string                        `json:"correlation_id"`
	Total         int                           `json:"total"`
	ByCheck       map[string]int                `json:"by_check"`
	Findings      []models.ReconciliationReport `json:"findings"`
}

// Clean reports whether the run found nothing.
func (s *ReconciliationSummary) Clean() bool {
	return s.Total == 0
}

// CheckTypes returns the check types that produced findings, sorted.
func (s *ReconciliationSummary) CheckTypes() []string {
	out := make([]string, 0, len(s.ByCheck))
	for k := range s.ByCheck {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunReconciliationChecks runs every invariant check once. With persist set the
// findings are written to reconciliation_reports as well.
// Meant for a nightly schedule, the ops binary, or an admin trigger.
func RunReconciliationChecks(ctx context.Context, logger *logrus.Logger, persist bool) (*ReconciliationSummary, error) {
	cid, findings, err := models.RunReconciliationChecks(ctx, persist)
	if err != nil {
		return nil, err
	}
	summary := &ReconciliationSummary{
		CorrelationId: cid,
		Total:         len(findings),
		ByCheck:       make(map[string]int),
		Findings:      findings,
	}
	for _, f := range findings {
		summary.ByCheck[f.CheckType]++
	}
	if summary.Findings == nil {
		summary.Findings = []models.ReconciliationReport{}
	}

	if logger != nil {
		entry := logger.WithFields(logrus.Fields{
			"field":          "ReconciliationChecks",
			"correlation_id": cid,
			"findings":       summary.Total,
		})
		if summary.Clean() {
			entry.Info("reconciliation checks completed")
		} else {
			entry.WithField("by_check", summary.ByCheck).Warn("reconciliation checks found mismatches")
		}
	}
	return summary, nil
}
