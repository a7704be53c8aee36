package btrace

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"
)

type Reporter interface {
	WriteFile(filepath string) error
}

type statsReporter struct {
	logger *zap.SugaredLogger
	stats  *Stats
}

// NewStatsReporter saves decoder counters as JSON.
func NewStatsReporter(logger *zap.SugaredLogger, stats *Stats) Reporter {
	return &statsReporter{logger: logger, stats: stats}
}

func (r *statsReporter) WriteFile(filepath string) error {
	snap := r.stats.Snapshot()

	r.logger.Infow("saving trace stats", "path", filepath, "records", snap.Records, "orphaned", snap.Orphaned)

	bts, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshall stats: %w", err)
	}

	if err := os.WriteFile(filepath, bts, 0o644); err != nil {
		return fmt.Errorf("failed to save trace stats: %w", err)
	}

	return nil
}
