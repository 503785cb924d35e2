package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/profile-sync/internal/model"
)

func (s *SQLiteStore) CreateRun(ctx context.Context, run *model.Run) error {
	now := time.Now().UTC()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = now
	}
	run.UpdatedAt = run.CreatedAt
	if run.Status == "" {
		run.Status = model.RunStatusRunning
	}

	var req sql.NullString
	if len(run.Request) > 0 {
		req = sql.NullString{String: string(run.Request), Valid: true}
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, status, request, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Kind), string(run.Status), req, run.CreatedAt, run.UpdatedAt,
	)
	return model.StoreFailure("sqlite: insert run", err)
}

func (s *SQLiteStore) FinishRun(ctx context.Context, id string, result *model.RunResult, runErr *model.RunError) error {
	status := model.RunStatusSuccess
	if runErr != nil {
		status = model.RunStatusError
	}
	resultJSON, err := nullJSON(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run result")
	}
	errJSON, err := nullJSON(runErr)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run error")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, result = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(status), resultJSON, errJSON, time.Now().UTC(), id,
	)
	if err != nil {
		return model.StoreFailure("sqlite: finish run", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return model.StoreFailure("sqlite: finish run", eris.Errorf("run not found: %s", id))
	}
	return nil
}

func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, status, request, result, error, created_at, updated_at FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return r, model.StoreFailure("sqlite: get run", err)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, kind, status, request, result, error, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.Kind != "" {
		query += ` AND kind = ?`
		args = append(args, string(filter.Kind))
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, runLimit(filter.Limit))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, model.StoreFailure("sqlite: list runs", err)
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, model.StoreFailure("sqlite: scan run", err)
		}
		runs = append(runs, *r)
	}
	return runs, model.StoreFailure("sqlite: list runs iterate", rows.Err())
}

func runLimit(limit int) int {
	if limit <= 0 {
		return 100
	}
	return limit
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var req, result, runErr sql.NullString

	if err := row.Scan(&r.ID, &r.Kind, &r.Status, &req, &result, &runErr, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	if req.Valid {
		r.Request = json.RawMessage(req.String)
	}
	if result.Valid {
		r.Result = &model.RunResult{}
		if err := json.Unmarshal([]byte(result.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "unmarshal run result")
		}
	}
	if runErr.Valid {
		r.Error = &model.RunError{}
		if err := json.Unmarshal([]byte(runErr.String), r.Error); err != nil {
			return nil, eris.Wrap(err, "unmarshal run error")
		}
	}
	return &r, nil
}
