package database

import (
	"context"
	"database/sql"
	stderr "errors"
	"fmt"
	"strings"

	"github.com/mattn/go-sqlite3"

	"github.com/voidshard/vidpipe/pkg/errors"
	"github.com/voidshard/vidpipe/pkg/structs"
)

// sqliteParams are appended to the file path we're given.
// A single writer plus a busy timeout serialises racing compare-and-swaps.
const sqliteParams = "_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=1"

// SQLite is a Database implementation backed by a single sqlite file, suitable
// for single node deployments.
type SQLite struct {
	opts *Options
	db   *sql.DB
}

// NewSQLite opens (creating if needed) the sqlite database at opts.URL
func NewSQLite(opts *Options) (*SQLite, error) {
	opts.SetDefaults()
	db, err := sql.Open("sqlite3", sqliteDSN(opts.sqlitePath()))
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return &SQLite{opts: opts, db: db}, db.Ping()
}

func sqliteDSN(path string) string {
	if strings.Contains(path, "?") {
		return path + "&" + sqliteParams
	}
	return path + "?" + sqliteParams
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) InsertJob(ctx context.Context, j *structs.Job) (string, error) {
	if err := prepareInsert(j); err != nil {
		return "", err
	}
	vals, args := toJobSqlArgs(1, questionPlaceholder, j)
	qstr := fmt.Sprintf(`INSERT INTO %s (%s) VALUES %s;`, tableJobs, jobColumns, vals)

	_, err := s.db.ExecContext(ctx, qstr, args...)
	var sqErr sqlite3.Error
	if stderr.As(err, &sqErr) && sqErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
		return "", fmt.Errorf("%w job %s already exists", errors.ErrConflict, j.ID)
	}
	return j.ID, err
}

func (s *SQLite) Job(ctx context.Context, id string) (*structs.Job, error) {
	qstr := fmt.Sprintf(`SELECT %s FROM %s WHERE id=?;`, jobColumns, tableJobs)
	j, err := scanJob(s.db.QueryRowContext(ctx, qstr, id))
	if stderr.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
	}
	return j, err
}

// UpdateJobState runs the conditional update & the read back in one transaction.
func (s *SQLite) UpdateJobState(ctx context.Context, id string, expect, next structs.Status, f *structs.Fields) (*structs.Job, error) {
	if err := validateUpdate(expect, next, f); err != nil {
		return nil, err
	}
	qstr, args := toSqlUpdate(questionPlaceholder, id, expect, next, f, timeNow())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, qstr, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}

	if n == 0 {
		var state string
		err = tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT state FROM %s WHERE id=?;`, tableJobs), id).Scan(&state)
		if stderr.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w job %s", errors.ErrNotFound, id)
		} else if err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%w job %s is %s, expected %s", errors.ErrConflict, id, state, expect)
	}

	j, err := scanJob(tx.QueryRowContext(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE id=?;`, jobColumns, tableJobs), id))
	if err != nil {
		return nil, err
	}
	return j, tx.Commit()
}

func (s *SQLite) Jobs(ctx context.Context, q *structs.Query) ([]*structs.Job, string, error) {
	q.Sanitize()
	after, err := decodeCursor(q.PageToken)
	if err != nil {
		return nil, "", err
	}
	qstr, args := toSqlSelect(questionPlaceholder, q, after)

	rows, err := s.db.QueryContext(ctx, qstr, args...)
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
