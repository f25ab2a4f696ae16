package database

import (
	"context"
	stderr "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

const pgUniqueViolation = "23505"

// Postgres is a Database implementation that uses postgres.
type Postgres struct {
	opts *Options
	pool *pgxpool.Pool
}

// NewPostgres returns a new Postgres database connection.
func NewPostgres(opts *Options) (*Postgres, error) {
	opts.SetDefaults()
	pool, err := pgxpool.New(context.Background(), opts.resolvedURL())
	return &Postgres{pool: pool, opts: opts}, err
}

// Close shuts down the database connection.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

// InsertJob inserts a single job row
func (p *Postgres) InsertJob(ctx context.Context, j *structs.Job) (string, error) {
	if err := prepareInsert(j); err != nil {
		return "", err
	}
	vals, args := toJobSqlArgs(1, dollarPlaceholder, j) // the sql lib starts at 1
	qstr := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s;`, tableJobs, jobColumns, vals)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return "", err
	}
	defer conn.Release()

	_, err = conn.Exec(ctx, qstr, args...)
	if isUniqueViolation(err) {
		return "", fmt.Errorf("%w job %s already exists", errors.ErrConflict, j.ID)
	}
	return j.ID, err
}

// Job returns a job by id
func (p *Postgres) Job(ctx context.Context, id string) (*structs.Job, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	qstr := fmt.Sprintf(`SELECT %s FROM %s WHERE id=$1;`, jobColumns, tableJobs)
	j, err := scanJob(conn.QueryRow(ctx, qstr, id))
	if stderr.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	return j, err
}

// UpdateJobState sets the state of a job if (and only if) it is currently `expect`.
func (p *Postgres) UpdateJobState(ctx context.Context, id string, expect, next structs.Status, f *structs.Fields) (*structs.Job, error) {
	if err := validateUpdate(expect, next, f); err != nil {
		return nil, err
	}
	qstr, args := toSqlUpdate(dollarPlaceholder, id, expect, next, f, timeNow())
	qstr = fmt.Sprintf("%s RETURNING %s;", qstr, jobColumns)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	j, err := scanJob(conn.QueryRow(ctx, qstr, args...))
	if err == nil {
		return j, nil
	}
	if !stderr.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// nothing matched; either the job doesn't exist or someone beat us to it
	var state string
	err = conn.QueryRow(ctx, fmt.Sprintf(`SELECT state FROM %s WHERE id=$1;`, tableJobs), id).Scan(&state)
	if stderr.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	} else if err != nil {
		return nil, err
	}
	return nil, fmt.Errorf("%w job %s is %s, expected %s", errors.ErrConflict, id, state, expect)
}

// Jobs returns a page of jobs matching the query
func (p *Postgres) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, string, error) {
	q.Sanitize()
	after, err := decodeCursor(q.PageToken)
	if err != nil {
		return nil, "", err
	}
	qstr, args := toSqlSelect(dollarPlaceholder, q, after)

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, "", err
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, qstr, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	out := []*structs.Job{}
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, "", err
		}
		out = append(out, j)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	jobs, token := toPage(out, q.Limit)
	return jobs, token, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return stderr.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}
