package job

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

type Repository interface {
	Save(ctx context.Context, job *Job) error
	List(ctx context.Context, f Filter) ([]Job, error)
	Get(ctx context.Context, id string) (*Job, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	CountByHandler(ctx context.Context) (map[string]int, error)
}

const jobColumns = `id, source_id, handler, payload, error, retries, created_at`

type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (Job, error) {
	var (
		j       Job
		payload []byte
	)
	if err := row.Scan(&j.ID, &j.SourceID, &j.Handler, &payload, &j.Error, &j.Retries, &j.CreatedAt); err != nil {
		return Job{}, err
	}
	j.Payload = payload
	return j, nil
}

func (r *PostgresRepo) Save(ctx context.Context, job *Job) error {
	query := `INSERT INTO failed_jobs (source_id, handler, payload, error, retries) VALUES ($1, $2, $3, $4, $5) RETURNING id, created_at`
	return r.db.QueryRowContext(ctx, query, job.SourceID, job.Handler, []byte(job.Payload), job.Error, job.Retries).
		Scan(&job.ID, &job.CreatedAt)
}

// List returns dead letters newest first.
func (r *PostgresRepo) List(ctx context.Context, f Filter) ([]Job, error) {
	query := `SELECT ` + jobColumns + ` FROM failed_jobs`
	var args []any
	if f.Topic != "" {
		args = append(args, f.Topic)
		query += ` WHERE handler = $1`
	}
	args = append(args, f.limit())
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list dead letters: %w", err)
	}
	defer rows.Close()

	var jobs []Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (r *PostgresRepo) Get(ctx context.Context, id string) (*Job, error) {
	j, err := scanJob(r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM failed_jobs WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &j, nil
}

func (r *PostgresRepo) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM failed_jobs WHERE id = $1`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM failed_jobs`).Scan(&count)
	return count, err
}

// CountByHandler groups dead letters by originating topic.
func (r *PostgresRepo) CountByHandler(ctx context.Context) (map[string]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT handler, COUNT(*) FROM failed_jobs GROUP BY handler`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			handler string
			n       int
		)
		if err := rows.Scan(&handler, &n); err != nil {
			return nil, err
		}
		counts[handler] = n
	}
	return counts, rows.Err()
}
