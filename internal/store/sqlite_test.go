package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func sampleMapping() reconcile.Mapping {
	return reconcile.NewMapping(
		reconcile.Pair{Reference: "ID", Incoming: "Id Cliente"},
		reconcile.Pair{Reference: "Nombre", Incoming: "Nombre Completo"},
	)
}

func sampleRun(reference string, status model.RunStatus) model.Run {
	m := sampleMapping()
	key, _ := m.KeyPair()
	return model.Run{
		Reference: reference,
		Incoming:  "promo.xlsx",
		Key:       key,
		Mapping:   m,
		Stats: reconcile.Stats{
			NoveltyCounts: reconcile.NoveltyCounts{
				ReferenceRows: 3, ReferenceTokens: 3, IncomingRows: 5,
				Novel: 2, Matched: 2, ExcludedNullKeys: 1,
			},
			UpdatedRows: 5,
		},
		Status:  status,
		Outputs: []string{"nuevos_registros.xlsx", "sw11_actualizado.xlsx"},
	}
}

func TestSQLite_MigrateIdempotent(t *testing.T) {
	st := newTestSQLiteStore(t)
	assert.NoError(t, st.Migrate(context.Background()))
}

func TestSQLite_CreateAndGetRun(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	run, err := st.CreateRun(ctx, sampleRun("sw11.xlsx", model.RunStatusComplete))
	require.NoError(t, err)
	assert.NotEmpty(t, run.ID)
	assert.False(t, run.CreatedAt.IsZero())

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, "sw11.xlsx", got.Reference)
	assert.Equal(t, reconcile.Pair{Reference: "ID", Incoming: "Id Cliente"}, got.Key)
	assert.True(t, got.Mapping.Equal(sampleMapping()))
	assert.Equal(t, run.Stats, got.Stats)
	assert.Equal(t, model.RunStatusComplete, got.Status)
	assert.Equal(t, []string{"nuevos_registros.xlsx", "sw11_actualizado.xlsx"}, got.Outputs)
}

func TestSQLite_CreateRunWithoutOutputs(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	r := sampleRun("sw11.xlsx", model.RunStatusDryRun)
	r.Outputs = nil
	run, err := st.CreateRun(ctx, r)
	require.NoError(t, err)

	got, err := st.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Outputs)
}

func TestSQLite_GetRun_NotFound(t *testing.T) {
	st := newTestSQLiteStore(t)

	_, err := st.GetRun(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestSQLite_ListRuns(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	for _, r := range []model.Run{
		sampleRun("a.xlsx", model.RunStatusComplete),
		sampleRun("a.xlsx", model.RunStatusDryRun),
		sampleRun("b.xlsx", model.RunStatusComplete),
	} {
		_, err := st.CreateRun(ctx, r)
		require.NoError(t, err)
	}

	all, err := st.ListRuns(ctx, RunFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	complete, err := st.ListRuns(ctx, RunFilter{Status: model.RunStatusComplete})
	require.NoError(t, err)
	assert.Len(t, complete, 2)

	byRef, err := st.ListRuns(ctx, RunFilter{Reference: "a.xlsx"})
	require.NoError(t, err)
	assert.Len(t, byRef, 2)

	limited, err := st.ListRuns(ctx, RunFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)

	offset, err := st.ListRuns(ctx, RunFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, offset, 1)
}

func TestSQLite_ListRuns_Empty(t *testing.T) {
	st := newTestSQLiteStore(t)

	runs, err := st.ListRuns(context.Background(), RunFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestSQLite_Templates(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	saved, err := st.SaveTemplate(ctx, "promocion", sampleMapping())
	require.NoError(t, err)
	assert.Equal(t, "promocion", saved.Name)
	assert.True(t, saved.Mapping.Equal(sampleMapping()))

	// Saving again replaces the mapping but keeps the name unique.
	updated := sampleMapping().Without("Nombre")
	_, err = st.SaveTemplate(ctx, "promocion", updated)
	require.NoError(t, err)
	_, err = st.SaveTemplate(ctx, "another", sampleMapping())
	require.NoError(t, err)

	got, err := st.GetTemplate(ctx, "promocion")
	require.NoError(t, err)
	assert.True(t, got.Mapping.Equal(updated))
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	list, err := st.ListTemplates(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "another", list[0].Name)
	assert.Equal(t, "promocion", list[1].Name)
}

func TestSQLite_Templates_Errors(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	_, err := st.GetTemplate(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = st.SaveTemplate(ctx, "", sampleMapping())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template name is required")
}

func TestSQLite_InterfaceCompliance(t *testing.T) {
	var _ Store = newTestSQLiteStore(t)
}
