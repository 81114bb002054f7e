package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/reconcile-cli/internal/model"
	"github.com/sells-group/reconcile-cli/internal/reconcile"
)

// Pool is the subset of *pgxpool.Pool used by PostgresStore.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const postgresRunSelect = `SELECT id, reference, incoming, key_reference, key_incoming, mapping, stats, status, outputs, created_at FROM runs`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"insert_run":     `INSERT INTO runs (id, reference, incoming, key_reference, key_incoming, mapping, stats, status, outputs, created_at) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
	"get_run":        postgresRunSelect + ` WHERE id = $1`,
	"save_template":  `INSERT INTO mapping_templates (name, mapping, created_at, updated_at) VALUES ($1, $2, $3, $3) ON CONFLICT (name) DO UPDATE SET mapping = EXCLUDED.mapping, updated_at = EXCLUDED.updated_at RETURNING created_at, updated_at`,
	"get_template":   `SELECT name, mapping, created_at, updated_at FROM mapping_templates WHERE name = $1`,
	"list_templates": `SELECT name, mapping, created_at, updated_at FROM mapping_templates ORDER BY name`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id            TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	reference     TEXT NOT NULL,
	incoming      TEXT NOT NULL,
	key_reference TEXT NOT NULL,
	key_incoming  TEXT NOT NULL,
	mapping       JSONB NOT NULL,
	stats         JSONB NOT NULL,
	status        TEXT NOT NULL,
	outputs       JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS mapping_templates (
	name       TEXT PRIMARY KEY,
	mapping    JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_reference ON runs(reference);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run) (*model.Run, error) {
	run.ID = uuid.New().String()
	run.CreatedAt = time.Now().UTC()

	cols, err := encodeRun(run)
	if err != nil {
		return nil, err
	}

	_, err = s.pool.Exec(ctx, preparedStatements["insert_run"],
		run.ID, run.Reference, run.Incoming, run.Key.Reference, run.Key.Incoming,
		cols.mapping, cols.stats, string(run.Status), cols.outputs, run.CreatedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}
	return &run, nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPostgresRun(s.pool.QueryRow(ctx, preparedStatements["get_run"], runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := postgresRunSelect + ` WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Reference != "" {
		query += fmt.Sprintf(` AND reference = $%d`, argIdx)
		args = append(args, filter.Reference)
		argIdx++
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, argIdx)
	args = append(args, listLimit(filter.Limit))
	argIdx++

	if filter.Offset > 0 {
		query += fmt.Sprintf(` OFFSET $%d`, argIdx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPostgresRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) SaveTemplate(ctx context.Context, name string, m reconcile.Mapping) (*model.MappingTemplate, error) {
	if err := validTemplateName(name); err != nil {
		return nil, err
	}
	mappingJSON, err := json.Marshal(m)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: marshal mapping")
	}

	t := model.MappingTemplate{Name: name, Mapping: m}
	err = s.pool.QueryRow(ctx, preparedStatements["save_template"], name, mappingJSON, time.Now().UTC()).
		Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: save template %s", name)
	}
	return &t, nil
}

func (s *PostgresStore) GetTemplate(ctx context.Context, name string) (*model.MappingTemplate, error) {
	t, err := scanPostgresTemplate(s.pool.QueryRow(ctx, preparedStatements["get_template"], name))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get template %s", name)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get template %s", name)
	}
	return t, nil
}

func (s *PostgresStore) ListTemplates(ctx context.Context) ([]model.MappingTemplate, error) {
	rows, err := s.pool.Query(ctx, preparedStatements["list_templates"])
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list templates")
	}
	defer rows.Close()

	var out []model.MappingTemplate
	for rows.Next() {
		t, err := scanPostgresTemplate(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan template")
		}
		out = append(out, *t)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list templates iterate")
}

func scanPostgresRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var status string
	var cols runColumns

	err := row.Scan(&r.ID, &r.Reference, &r.Incoming, &r.Key.Reference, &r.Key.Incoming,
		&cols.mapping, &cols.stats, &status, &cols.outputs, &r.CreatedAt)
	if err != nil {
		return nil, err
	}
	r.Status = model.RunStatus(status)
	if err := decodeRun(&r, cols); err != nil {
		return nil, err
	}
	return &r, nil
}

func scanPostgresTemplate(row pgx.Row) (*model.MappingTemplate, error) {
	var t model.MappingTemplate
	var mapping []byte

	if err := row.Scan(&t.Name, &mapping, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(mapping, &t.Mapping); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal mapping")
	}
	return &t, nil
}
