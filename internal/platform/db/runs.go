package db

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"

	"sierrawbs/internal/domain/payroll"
)

// RunStore persists conversion run summaries in conversion_runs.
type RunStore struct {
	DB *pgxpool.Pool
}

func NewRunStore(pool *pgxpool.Pool) *RunStore {
	return &RunStore{DB: pool}
}

var _ payroll.RunStore = (*RunStore)(nil)

func (s *RunStore) RecordRun(ctx context.Context, run payroll.Run) error {
	dropped, err := json.Marshal(run.DroppedRows)
	if err != nil {
		return err
	}
	names := run.UnmatchedNames
	if names == nil {
		names = []string{}
	}
	_, err = s.DB.Exec(ctx, `
    INSERT INTO conversion_runs (
      id, request_id, actor, source, status, roster_count, matched_count,
      zero_count, salaried_count, unmatched_count, dropped_rows_json,
      grand_total, unmatched_amount, unmatched_names, requires_review, error, created_at
    ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
  `, run.ID, run.RequestID, run.Actor, run.Source, run.Status, run.RosterCount, run.MatchedCount,
		run.ZeroCount, run.SalariedCount, run.UnmatchedCount, dropped,
		run.GrandTotal, run.UnmatchedAmount, names, run.RequiresReview, run.Error, run.CreatedAt)
	return err
}

func (s *RunStore) CountRuns(ctx context.Context) (int, error) {
	var total int
	if err := s.DB.QueryRow(ctx, `SELECT COUNT(1) FROM conversion_runs`).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (s *RunStore) ListRuns(ctx context.Context, limit, offset int) ([]payroll.Run, error) {
	rows, err := s.DB.Query(ctx, `
    SELECT id::text, request_id, actor, source, status, roster_count, matched_count,
           zero_count, salaried_count, unmatched_count, dropped_rows_json,
           grand_total::float8, unmatched_amount::float8, unmatched_names, requires_review, error, created_at
    FROM conversion_runs
    ORDER BY created_at DESC
    LIMIT $1 OFFSET $2
  `, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []payroll.Run
	for rows.Next() {
		var run payroll.Run
		var dropped []byte
		if err := rows.Scan(&run.ID, &run.RequestID, &run.Actor, &run.Source, &run.Status, &run.RosterCount, &run.MatchedCount,
			&run.ZeroCount, &run.SalariedCount, &run.UnmatchedCount, &dropped,
			&run.GrandTotal, &run.UnmatchedAmount, &run.UnmatchedNames, &run.RequiresReview, &run.Error, &run.CreatedAt); err != nil {
			return nil, err
		}
		if len(dropped) > 0 {
			if err := json.Unmarshal(dropped, &run.DroppedRows); err != nil {
				return nil, err
			}
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
