package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rcliao/personae/internal/model"
)

// UnshiftJob enqueues a job. The most recently enqueued pending job is the
// next one PopJob returns.
func (s *SQLiteStore) UnshiftJob(ctx context.Context, payload model.JobPayload) (model.JobID, error) {
	kind, data, err := model.EncodeJobPayload(payload)
	if err != nil {
		return model.JobID{}, wrap("unshift job", err)
	}

	now := s.clock()
	id := model.As[model.JobID](s.newID(now))
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO job (id, kind, payload, created_at) VALUES (?, ?, ?, ?)`,
		id.String(), string(kind), string(data), formatTime(now))
	if err != nil {
		return model.JobID{}, wrap("unshift job", err)
	}
	return id, nil
}

// PopJob claims the newest pending job and returns it with StartedAt set.
// It returns nil when the queue is empty. A claimed job whose payload cannot
// be decoded is returned without a payload together with the decode error,
// so the caller can still finish it.
func (s *SQLiteStore) PopJob(ctx context.Context) (*model.Job, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, wrap("pop job", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM job
		 WHERE started_at IS NULL AND finished_at IS NULL
		 ORDER BY created_at DESC, id DESC LIMIT 1`)
	r, err := scanJobRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("pop job", err)
	}

	now := s.clock()
	res, err := tx.ExecContext(ctx,
		`UPDATE job SET started_at = ? WHERE id = ? AND started_at IS NULL AND finished_at IS NULL`,
		formatTime(now), r.id)
	if err != nil {
		return nil, wrap("pop job", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, wrap("pop job", err)
	}
	if n == 0 {
		return nil, wrap("pop job", fmt.Errorf("job %s was claimed concurrently", r.id))
	}

	if err := tx.Commit(); err != nil {
		return nil, wrap("pop job", err)
	}

	job, err := r.decode()
	if job == nil {
		return nil, wrap("pop job", err)
	}
	job.StartedAt = &now
	return job, wrap("pop job", err)
}

// MarkJobFinished sets finished_at. Finishing an already finished job is a no-op.
func (s *SQLiteStore) MarkJobFinished(ctx context.Context, id model.JobID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE job SET finished_at = ? WHERE id = ? AND finished_at IS NULL`,
		formatTime(s.clock()), id.String())
	if err != nil {
		return wrap("mark job finished", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap("mark job finished", err)
	}
	if n > 0 {
		return nil
	}

	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM job WHERE id = ?`, id.String()).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return wrap("mark job finished", fmt.Errorf("%w: job %s", ErrNotFound, id))
	}
	return wrap("mark job finished", err)
}

// GetJob returns a job by id.
func (s *SQLiteStore) GetJob(ctx context.Context, id model.JobID) (*model.Job, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM job WHERE id = ?`, id.String())
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, wrap("get job", fmt.Errorf("%w: job %s", ErrNotFound, id))
	}
	if err != nil {
		return nil, wrap("get job", err)
	}
	return job, nil
}

// ListJobs returns jobs in creation order, optionally only those of one kind.
func (s *SQLiteStore) ListJobs(ctx context.Context, kind model.JobKind) ([]model.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM job`
	var args []any
	if kind != "" {
		query += ` WHERE kind = ?`
		args = append(args, string(kind))
	}
	query += ` ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrap("list jobs", err)
	}
	defer rows.Close()

	var jobs []model.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, wrap("list jobs", err)
		}
		jobs = append(jobs, *job)
	}
	return jobs, wrap("list jobs", rows.Err())
}

const jobColumns = `id, kind, payload, created_at, started_at, finished_at`

// jobRow holds a job's columns before decoding.
type jobRow struct {
	id, kind, payload, createdAt string
	startedAt, finishedAt        sql.NullString
}

func scanJobRow(row scanner) (*jobRow, error) {
	var r jobRow
	if err := row.Scan(&r.id, &r.kind, &r.payload, &r.createdAt, &r.startedAt, &r.finishedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// decode returns nil when the row itself is unreadable. When only the
// payload fails to decode it returns the job without a payload and the error.
func (r *jobRow) decode() (*model.Job, error) {
	var job model.Job
	var err error
	if job.ID, err = model.Parse[model.JobID](r.id); err != nil {
		return nil, err
	}
	if job.CreatedAt, err = parseTime(r.createdAt); err != nil {
		return nil, err
	}
	if job.StartedAt, err = parseOptTime(r.startedAt); err != nil {
		return nil, err
	}
	if job.FinishedAt, err = parseOptTime(r.finishedAt); err != nil {
		return nil, err
	}
	if job.Payload, err = model.DecodeJobPayload(model.JobKind(r.kind), []byte(r.payload)); err != nil {
		return &job, err
	}
	return &job, nil
}

func scanJob(row scanner) (*model.Job, error) {
	r, err := scanJobRow(row)
	if err != nil {
		return nil, err
	}
	job, err := r.decode()
	if err != nil {
		return nil, err
	}
	return job, nil
}
