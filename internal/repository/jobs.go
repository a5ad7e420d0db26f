package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/tomaszkw/docmeter/constants"
	"github.com/tomaszkw/docmeter/internal/common"
	"github.com/tomaszkw/docmeter/internal/entity"
)

// JobRepository persists the client-side view of submitted jobs. The
// backend executor owns the authoritative record; rows here are written at
// submission time and reconciled from tracker updates.
type JobRepository interface {
	Insert(ctx context.Context, job *entity.Job) error
	ApplyUpdate(ctx context.Context, job *entity.Job) error
	GetByID(ctx context.Context, id string) (*entity.Job, error)
	ListBySession(ctx context.Context, sessionID string) ([]*entity.Job, error)
}

type jobRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewJobRepository(pool *pgxpool.Pool, log *slog.Logger) JobRepository {
	if log == nil {
		log = slog.Default()
	}
	return &jobRepo{pool: pool, log: log}
}

func (r *jobRepo) Insert(ctx context.Context, job *entity.Job) error {
	const q = `
		INSERT INTO jobs (id, task, status, result_url, error_message, session_id, user_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err := r.pool.Exec(ctx, q,
		job.ID, string(job.Task), string(job.Status), job.ResultURL, job.ErrorMessage,
		job.SessionID, job.UserID, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		r.log.Error("job insert failed", "job_id", job.ID, "err", err)
		return err
	}
	r.log.Info("job persisted", "job_id", job.ID, "task", job.Task)
	return nil
}

// ApplyUpdate reconciles a tracker update into the stored row. Terminal
// rows are never overwritten: the status guard keeps SUCCEEDED and FAILED
// sticky even if a stale STARTED arrives late.
func (r *jobRepo) ApplyUpdate(ctx context.Context, job *entity.Job) error {
	const q = `
		UPDATE jobs
		SET status = $2, result_url = $3, error_message = $4, updated_at = $5
		WHERE id = $1 AND status NOT IN ('SUCCEEDED', 'FAILED')`
	tag, err := r.pool.Exec(ctx, q,
		job.ID, string(job.Status), job.ResultURL, job.ErrorMessage, time.Now().UTC())
	if err != nil {
		r.log.Error("job update failed", "job_id", job.ID, "err", err)
		return err
	}
	if tag.RowsAffected() == 0 {
		r.log.Info("job update skipped (terminal or missing row)", "job_id", job.ID, "status", job.Status)
	}
	return nil
}

func (r *jobRepo) GetByID(ctx context.Context, id string) (*entity.Job, error) {
	const q = `
		SELECT id, task, status, result_url, error_message, session_id, user_id, created_at, updated_at
		FROM jobs WHERE id = $1`
	job, err := scanJob(r.pool.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		r.log.Error("job lookup failed", "job_id", id, "err", err)
		return nil, err
	}
	return job, nil
}

func (r *jobRepo) ListBySession(ctx context.Context, sessionID string) ([]*entity.Job, error) {
	const q = `
		SELECT id, task, status, result_url, error_message, session_id, user_id, created_at, updated_at
		FROM jobs WHERE session_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, sessionID)
	if err != nil {
		r.log.Error("job list failed", "session_id", sessionID, "err", err)
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func scanJob(row pgx.Row) (*entity.Job, error) {
	var (
		j      entity.Job
		task   string
		status string
	)
	err := row.Scan(&j.ID, &task, &status, &j.ResultURL, &j.ErrorMessage,
		&j.SessionID, &j.UserID, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Task = constants.TaskKind(task)
	j.Status = constants.JobStatus(status)
	return &j, nil
}
