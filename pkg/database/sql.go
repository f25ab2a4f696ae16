package database

import (
	"fmt"
	"strings"

	"github.com/voidshard/vidpipe/pkg/structs"
)

const (
	tableJobs = "jobs"

	// jobColumns in the order scanJob & toJobSqlArgs expect them
	jobColumns = `id, owner, input_ref, input_format, output_format, state, attempt, timeouts, output_ref, error, created_at, updated_at`
)

// scanner is satisfied by both pgx.Row & *sql.Row(s)
type scanner interface {
	Scan(dest ...interface{}) error
}

// placeholder returns the n'th (1 indexed) bind parameter for some sql dialect
type placeholder func(n int) string

func dollarPlaceholder(n int) string {
	return fmt.Sprintf("$%d", n)
}

func questionPlaceholder(n int) string {
	return "?"
}

// scanJob reads a row selected with jobColumns
func scanJob(row scanner) (*structs.Job, error) {
	j := &structs.Job{}
	var state string
	err := row.Scan(
		&j.ID,
		&j.Owner,
		&j.InputRef,
		&j.InputFormat,
		&j.OutputFormat,
		&state,
		&j.Attempt,
		&j.Timeouts,
		&j.OutputRef,
		&j.Error,
		&j.CreatedAt,
		&j.UpdatedAt,
	)
	j.State = structs.Status(state)
	return j, err
}

// toJobSqlArgs converts a job into a SQL values string & args (for an insert)
func toJobSqlArgs(offset int, ph placeholder, j *structs.Job) (string, []interface{}) {
	vals := []string{}
	for i := offset; i < 12+offset; i++ {
		vals = append(vals, ph(i))
	}
	return fmt.Sprintf("(%s)", strings.Join(vals, ", ")), []interface{}{
		j.ID,
		j.Owner,
		j.InputRef,
		j.InputFormat,
		j.OutputFormat,
		string(j.State),
		j.Attempt,
		j.Timeouts,
		j.OutputRef,
		j.Error,
		j.CreatedAt,
		j.UpdatedAt,
	}
}

// toSqlUpdate builds the compare-and-swap UPDATE statement & args
func toSqlUpdate(ph placeholder, id string, expect, next structs.Status, f *structs.Fields, now int64) (string, []interface{}) {
	qstr := fmt.Sprintf(
		`UPDATE %s SET state=%s, attempt=%s, timeouts=%s, output_ref=%s, error=%s, updated_at=%s WHERE id=%s AND state=%s`,
		tableJobs, ph(1), ph(2), ph(3), ph(4), ph(5), ph(6), ph(7), ph(8),
	)
	return qstr, []interface{}{string(next), f.Attempt, f.Timeouts, f.OutputRef, f.Error, now, id, string(expect)}
}

// toSqlQuery converts query data into a SQL WHERE clause & args.
// The cursor (if any) selects rows strictly after it in (created_at, id) order.
func toSqlQuery(ph placeholder, q *structs.Query, after *cursor) (string, []interface{}) {
	and := []string{}
	args := []interface{}{}
	if q.Owner != "" {
		args = append(args, q.Owner)
		and = append(and, fmt.Sprintf("owner = %s", ph(len(args))))
	}
	if len(q.States) > 0 {
		s, a := toSqlIn(len(args)+1, ph, "state", statusToStrings(q.States))
		and = append(and, s)
		args = append(args, a...)
	}
	if after != nil {
		args = append(args, after.CreatedAt, after.CreatedAt, after.ID)
		n := len(args)
		and = append(and, fmt.Sprintf("(created_at > %s OR (created_at = %s AND id > %s))", ph(n-2), ph(n-1), ph(n)))
	}
	if len(and) == 0 {
		return "", args
	}
	return fmt.Sprintf("WHERE %s", strings.Join(and, " AND ")), args
}

// toSqlIn converts a list of strings into a SQL IN clause
func toSqlIn(offset int, ph placeholder, field string, args []string) (string, []interface{}) {
	if len(args) == 0 {
		return "", []interface{}{}
	}
	vals := []string{}
	ifargs := []interface{}{}
	for i, a := range args {
		vals = append(vals, ph(i+offset))
		ifargs = append(ifargs, a)
	}
	return fmt.Sprintf("%s IN (%s)", field, strings.Join(vals, ", ")), ifargs
}

// toSqlSelect builds a page select; we fetch one more row than asked for so we know
// if there's another page.
func toSqlSelect(ph placeholder, q *structs.Query, after *cursor) (string, []interface{}) {
	where, args := toSqlQuery(ph, q, after)
	args = append(args, q.Limit+1)
	qstr := fmt.Sprintf(`SELECT %s FROM %s %s ORDER BY created_at ASC, id ASC LIMIT %s;`,
		jobColumns, tableJobs, where, ph(len(args)),
	)
	return qstr, args
}

// toPage trims the extra row fetched by toSqlSelect & builds the next token.
func toPage(jobs []*structs.Job, limit int) ([]*structs.Job, string) {
	if len(jobs) > limit {
		jobs = jobs[:limit]
		return jobs, encodeCursor(jobs[len(jobs)-1])
	}
	return jobs, ""
}
