package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/model"
)

func (s *PostgresStore) CreateRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	var req []byte
	if len(run.Request) > 0 {
		req = []byte(run.Request)
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, kind, status, request, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, string(run.Kind), string(run.Status), req, run.CreatedAt, run.UpdatedAt,
	)
	return model.StoreFailure("postgres: insert run", err)
}

func (s *PostgresStore) FinishRun(ctx context.Context, id string, result *model.RunResult, runErr *model.RunError) error {
	status := model.RunStatusSuccess
	if runErr != nil {
		status = model.RunStatusError
	}
	resultJSON, err := jsonOrNil(result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run result")
	}
	errJSON, err := jsonOrNil(runErr)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal run error")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, result = $2, error = $3, updated_at = $4 WHERE id = $5`,
		string(status), resultJSON, errJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return model.StoreFailure("postgres: finish run", err)
	}
	if tag.RowsAffected() == 0 {
		return model.StoreFailure("postgres: finish run", eris.Errorf("run not found: %s", id))
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, kind, status, request, result, error, created_at, updated_at FROM runs WHERE id = $1`, id)
	r, err := scanPgRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return r, model.StoreFailure("postgres: get run", err)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, request, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		args = append(args, string(filter.Kind))
		query += fmt.Sprintf(` AND kind = $%d`, len(args))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += fmt.Sprintf(` AND status = $%d`, len(args))
	}
	args = append(args, runLimit(filter.Limit))
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure("postgres: list runs", err)
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, model.StoreFailure("postgres: scan run", err)
		}
		runs = append(runs, *r)
	}
	return runs, model.StoreFailure("postgres: list runs iterate", rows.Err())
}

func jsonOrNil[T any](v *T) ([]byte, error) {
	if v == nil {
		return nil, nil
	}
	return json.Marshal(v)
}

func scanPgRun(row scannable) (*model.Run, error) {
	var r model.Run
	var req, result, runErr []byte

	if err := row.Scan(&r.ID, &r.Kind, &r.Status, &req, &result, &runErr, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if len(req) > 0 {
		r.Request = json.RawMessage(req)
	}
	if len(result) > 0 {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal(result, r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal run result")
		}
	}
	if len(runErr) > 0 {
		r.Error = &model.RunError{}
		if err := json.Unmarshal(runErr, r.Error); err != nil {
			return nil, eris.Wrap(err, "unmarshal run error")
		}
	}
	return &r, nil
}
