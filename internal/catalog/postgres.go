package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/stepflow/orchestrator/internal/apierr"
	"github.com/stepflow/orchestrator/internal/domain"
)

// PostgresStore is the reference Store adapter for the standalone
// binary. Suites, environments and schedules are nested object graphs
// (steps, dependencies, handlers, assertions...) with no cross-entity
// foreign keys the engine itself needs to join on, so each entity is
// persisted whole as a JSONB column rather than normalized across a
// dozen tables — the catalog store is an external collaborator per
// spec.md §1, and only its contract (read a hydrated suite, write a
// run) matters to the engine.
type PostgresStore struct {
	db *sqlx.DB
}

// NewPostgresStore opens dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, apierr.Internal("connect to catalog database", err)
	}
	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// NewPostgresStoreFromDB wraps an already-open handle (or a sqlmock
// fake for tests), ensuring the schema exists.
func NewPostgresStoreFromDB(ctx context.Context, db *sqlx.DB) (*PostgresStore, error) {
	store := &PostgresStore{db: db}
	if err := store.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS catalog_suites (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS catalog_environments (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS catalog_schedules (
	id TEXT PRIMARY KEY,
	data JSONB NOT NULL,
	deleted_at TIMESTAMPTZ
);
CREATE TABLE IF NOT EXISTS catalog_runs (
	id TEXT PRIMARY KEY,
	suite_id TEXT NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	data JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS catalog_runs_suite_id_idx ON catalog_runs (suite_id, started_at DESC);
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return apierr.Internal("bootstrap catalog schema", err)
	}
	return nil
}

func (s *PostgresStore) Suite(ctx context.Context, id string) (*domain.Suite, error) {
	var row struct {
		Data      []byte     `db:"data"`
		DeletedAt *time.Time `db:"deleted_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT data, deleted_at FROM catalog_suites WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("suite", id)
	}
	if err != nil {
		return nil, apierr.Internal("load suite", err)
	}
	if row.DeletedAt != nil {
		return nil, apierr.NotFound("suite", id)
	}
	var suite domain.Suite
	if err := json.Unmarshal(row.Data, &suite); err != nil {
		return nil, apierr.Internal("decode suite", err)
	}
	return &suite, nil
}

func (s *PostgresStore) ListSuites(ctx context.Context, offset, limit int) ([]domain.Suite, error) {
	limit = NormalizePage(limit)
	var rows [][]byte
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM catalog_suites WHERE deleted_at IS NULL ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list suites", err)
	}
	return decodeAll[domain.Suite](rows)
}

func (s *PostgresStore) SaveSuite(ctx context.Context, suite *domain.Suite) error {
	data, err := json.Marshal(suite)
	if err != nil {
		return apierr.Internal("encode suite", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO catalog_suites (id, data, deleted_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, deleted_at = EXCLUDED.deleted_at`,
		suite.ID, data, suite.DeletedAt)
	if err != nil {
		return apierr.Internal("save suite", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSuite(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalog_suites SET deleted_at = now() WHERE id = $1`, id)
	return checkTombstone(res, err, "suite", id)
}

func (s *PostgresStore) Environment(ctx context.Context, id string) (*domain.Environment, error) {
	var row struct {
		Data      []byte     `db:"data"`
		DeletedAt *time.Time `db:"deleted_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT data, deleted_at FROM catalog_environments WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("environment", id)
	}
	if err != nil {
		return nil, apierr.Internal("load environment", err)
	}
	if row.DeletedAt != nil {
		return nil, apierr.NotFound("environment", id)
	}
	var env domain.Environment
	if err := json.Unmarshal(row.Data, &env); err != nil {
		return nil, apierr.Internal("decode environment", err)
	}
	return &env, nil
}

func (s *PostgresStore) ListEnvironments(ctx context.Context, offset, limit int) ([]domain.Environment, error) {
	limit = NormalizePage(limit)
	var rows [][]byte
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM catalog_environments WHERE deleted_at IS NULL ORDER BY id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list environments", err)
	}
	return decodeAll[domain.Environment](rows)
}

func (s *PostgresStore) SaveEnvironment(ctx context.Context, env *domain.Environment) error {
	data, err := json.Marshal(env)
	if err != nil {
		return apierr.Internal("encode environment", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO catalog_environments (id, data, deleted_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, deleted_at = EXCLUDED.deleted_at`,
		env.ID, data, env.DeletedAt)
	if err != nil {
		return apierr.Internal("save environment", err)
	}
	return nil
}

func (s *PostgresStore) DeleteEnvironment(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalog_environments SET deleted_at = now() WHERE id = $1`, id)
	return checkTombstone(res, err, "environment", id)
}

func (s *PostgresStore) Schedule(ctx context.Context, id string) (*domain.Schedule, error) {
	var row struct {
		Data      []byte     `db:"data"`
		DeletedAt *time.Time `db:"deleted_at"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT data, deleted_at FROM catalog_schedules WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("schedule", id)
	}
	if err != nil {
		return nil, apierr.Internal("load schedule", err)
	}
	if row.DeletedAt != nil {
		return nil, apierr.NotFound("schedule", id)
	}
	var sched domain.Schedule
	if err := json.Unmarshal(row.Data, &sched); err != nil {
		return nil, apierr.Internal("decode schedule", err)
	}
	return &sched, nil
}

func (s *PostgresStore) ListSchedules(ctx context.Context) ([]domain.Schedule, error) {
	var rows [][]byte
	err := s.db.SelectContext(ctx, &rows, `SELECT data FROM catalog_schedules WHERE deleted_at IS NULL ORDER BY id`)
	if err != nil {
		return nil, apierr.Internal("list schedules", err)
	}
	return decodeAll[domain.Schedule](rows)
}

func (s *PostgresStore) SaveSchedule(ctx context.Context, sched *domain.Schedule) error {
	data, err := json.Marshal(sched)
	if err != nil {
		return apierr.Internal("encode schedule", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO catalog_schedules (id, data, deleted_at) VALUES ($1, $2, $3)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data, deleted_at = EXCLUDED.deleted_at`,
		sched.ID, data, sched.DeletedAt)
	if err != nil {
		return apierr.Internal("save schedule", err)
	}
	return nil
}

func (s *PostgresStore) DeleteSchedule(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE catalog_schedules SET deleted_at = now() WHERE id = $1`, id)
	return checkTombstone(res, err, "schedule", id)
}

func (s *PostgresStore) SaveRun(ctx context.Context, run *domain.Run) error {
	data, err := json.Marshal(run)
	if err != nil {
		return apierr.Internal("encode run", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO catalog_runs (id, suite_id, started_at, data) VALUES ($1, $2, $3, $4)
ON CONFLICT (id) DO UPDATE SET data = EXCLUDED.data`,
		run.ID, run.SuiteID, run.StartedAt, data)
	if err != nil {
		return apierr.Internal("save run", err)
	}
	return nil
}

func (s *PostgresStore) Run(ctx context.Context, id string) (*domain.Run, error) {
	var data []byte
	err := s.db.GetContext(ctx, &data, `SELECT data FROM catalog_runs WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierr.NotFound("run", id)
	}
	if err != nil {
		return nil, apierr.Internal("load run", err)
	}
	var run domain.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, apierr.Internal("decode run", err)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, suiteID string, offset, limit int) ([]domain.Run, error) {
	limit = NormalizePage(limit)
	var rows [][]byte
	err := s.db.SelectContext(ctx, &rows,
		`SELECT data FROM catalog_runs WHERE suite_id = $1 ORDER BY started_at DESC LIMIT $2 OFFSET $3`,
		suiteID, limit, offset)
	if err != nil {
		return nil, apierr.Internal("list runs", err)
	}
	return decodeAll[domain.Run](rows)
}

func checkTombstone(res sql.Result, err error, resource, id string) error {
	if err != nil {
		return apierr.Internal("delete "+resource, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return apierr.Internal("delete "+resource, err)
	}
	if n == 0 {
		return apierr.NotFound(resource, id)
	}
	return nil
}

func decodeAll[T any](rows [][]byte) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, apierr.Internal("decode row", err)
		}
		out = append(out, v)
	}
	return out, nil
}
