// Package model holds the records persisted in run history.
package model

import (
	"time"

	"github.com/sells-group/reconcile-cli/internal/reconcile"
)

// RunStatus describes how a reconciliation run ended.
type RunStatus string

const (
	RunStatusComplete RunStatus = "complete"  // outputs written
	RunStatusDryRun   RunStatus = "dry_run"   // stats only
	RunStatusNoChange RunStatus = "no_change" // no novel rows found
)

// Run records one reconciliation: where the data came from, how columns were
// paired and what was found. Row data is never stored.
type Run struct {
	ID        string            `json:"id"`
	Reference string            `json:"reference"`
	Incoming  string            `json:"incoming"`
	Key       reconcile.Pair    `json:"key"`
	Mapping   reconcile.Mapping `json:"mapping"`
	Stats     reconcile.Stats   `json:"stats"`
	Status    RunStatus         `json:"status"`
	Outputs   []string          `json:"outputs,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// StatusFor picks the status of a finished run.
func StatusFor(stats reconcile.Stats, dryRun bool) RunStatus {
	switch {
	case dryRun:
		return RunStatusDryRun
	case stats.Novel == 0:
		return RunStatusNoChange
	default:
		return RunStatusComplete
	}
}

// MappingTemplate is a named mapping saved for future loads.
type MappingTemplate struct {
	Name      string            `json:"name"`
	Mapping   reconcile.Mapping `json:"mapping"`
	CreatedAt time.Time         `json:"created_at"`
	UpdatedAt time.Time         `json:"updated_at"`
}
