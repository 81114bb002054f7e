// Package store persists reconciliation run history and saved mapping
// templates.
package store

import (
	"context"
	"encoding/json"

	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
)

// ErrNotFound is returned when a run or template does not exist.
var ErrNotFound = eris.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status    model.RunStatus `json:"status,omitempty"`
	Reference string          `json:"reference,omitempty"`
	Limit     int             `json:"limit,omitempty"`
	Offset    int             `json:"offset,omitempty"`
}

// Store defines the persistence interface for run history.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, run model.Run) (*model.Run, error)
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Mapping templates
	SaveTemplate(ctx context.Context, name string, m reconcile.Mapping) (*model.MappingTemplate, error)
	GetTemplate(ctx context.Context, name string) (*model.MappingTemplate, error)
	ListTemplates(ctx context.Context) ([]model.MappingTemplate, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

const defaultListLimit = 100

func listLimit(n int) int {
	if n <= 0 {
		return defaultListLimit
	}
	return n
}

// runColumns is the JSON-encoded part of a run row.
type runColumns struct {
	mapping []byte
	stats   []byte
	outputs []byte
}

func encodeRun(r model.Run) (runColumns, error) {
	var c runColumns
	var err error
	if c.mapping, err = json.Marshal(r.Mapping); err != nil {
		return c, eris.Wrap(err, "store: marshal mapping")
	}
	if c.stats, err = json.Marshal(r.Stats); err != nil {
		return c, eris.Wrap(err, "store: marshal stats")
	}
	outputs := r.Outputs
	if outputs == nil {
		outputs = []string{}
	}
	if c.outputs, err = json.Marshal(outputs); err != nil {
		return c, eris.Wrap(err, "store: marshal outputs")
	}
	return c, nil
}

func decodeRun(r *model.Run, c runColumns) error {
	if err := json.Unmarshal(c.mapping, &r.Mapping); err != nil {
		return eris.Wrap(err, "store: unmarshal mapping")
	}
	if err := json.Unmarshal(c.stats, &r.Stats); err != nil {
		return eris.Wrap(err, "store: unmarshal stats")
	}
	if len(c.outputs) > 0 {
		if err := json.Unmarshal(c.outputs, &r.Outputs); err != nil {
			return eris.Wrap(err, "store: unmarshal outputs")
		}
	}
	if len(r.Outputs) == 0 {
		r.Outputs = nil
	}
	return nil
}

func validTemplateName(name string) error {
	if name == "" {
		return eris.New("store: template name is required")
	}
	return nil
}
