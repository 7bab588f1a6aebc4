// Package notify announces finished ingestion runs.
package notify

import (
	"context"

	"github.com/justsurfingit/eis/internal/dtos"
)

// Notifier is told about every finished run. Failures are logged by the
// caller and never affect the run.
type Notifier interface {
	Name() string
	NotifyRun(ctx context.Context, stats dtos.RunStats) error
}
