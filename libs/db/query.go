package db

import (
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

var ErrEmptyInsert = errors.New("db: insert without rows")

// InsertQuery builds multi-row INSERT statements, optionally as an upsert.
// Identifiers are quoted with pgx.Identifier; values always travel as arguments.
type InsertQuery struct {
	table     string
	columns   []string
	rows      [][]any
	conflict  []string
	update    []string
	returning []string
}

func Insert(table string, columns ...string) *InsertQuery {
	return &InsertQuery{table: table, columns: columns}
}

// Upsert is Insert with ON CONFLICT (conflict...). Without DoUpdate the conflicting
// rows are left untouched.
func Upsert(table string, conflict []string, columns ...string) *InsertQuery {
	return &InsertQuery{table: table, columns: columns, conflict: conflict}
}

func (q *InsertQuery) Values(vals ...any) *InsertQuery {
	q.rows = append(q.rows, vals)
	return q
}

func (q *InsertQuery) DoUpdate(columns ...string) *InsertQuery {
	q.update = append(q.update, columns...)
	return q
}

func (q *InsertQuery) Returning(columns ...string) *InsertQuery {
	q.returning = append(q.returning, columns...)
	return q
}

func (q *InsertQuery) Build() (string, []any, error) {
	if len(q.rows) == 0 {
		return "", nil, ErrEmptyInsert
	}
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", quote(q.table), quoteList(q.columns))

	args := make([]any, 0, len(q.rows)*len(q.columns))
	for i, row := range q.rows {
		if len(row) != len(q.columns) {
			return "", nil, fmt.Errorf("db: row %d has %d values for %d columns", i, len(row), len(q.columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j, v := range row {
			if j > 0 {
				b.WriteString(", ")
			}
			args = append(args, v)
			fmt.Fprintf(&b, "$%d", len(args))
		}
		b.WriteByte(')')
	}

	if len(q.conflict) > 0 {
		fmt.Fprintf(&b, " ON CONFLICT (%s) ", quoteList(q.conflict))
		if len(q.update) == 0 {
			b.WriteString("DO NOTHING")
		} else {
			b.WriteString("DO UPDATE SET ")
			for i, col := range q.update {
				if i > 0 {
					b.WriteString(", ")
				}
				fmt.Fprintf(&b, "%s = EXCLUDED.%s", quote(col), quote(col))
			}
		}
	}
	if len(q.returning) > 0 {
		fmt.Fprintf(&b, " RETURNING %s", quoteList(q.returning))
	}
	return b.String(), args, nil
}

// SelectQuery builds SELECT statements with equality filters and ordering.
type SelectQuery struct {
	table   string
	columns []string
	filters []string
	args    []any
	orderBy []string
	limit   int
}

func Select(table string, columns ...string) *SelectQuery {
	return &SelectQuery{table: table, columns: columns}
}

func (q *SelectQuery) Where(column string, value any) *SelectQuery {
	q.args = append(q.args, value)
	q.filters = append(q.filters, fmt.Sprintf("%s = $%d", quote(column), len(q.args)))
	return q
}

func (q *SelectQuery) OrderBy(column string, desc bool) *SelectQuery {
	dir := "ASC"
	if desc {
		dir = "DESC"
	}
	q.orderBy = append(q.orderBy, quote(column)+" "+dir)
	return q
}

func (q *SelectQuery) Limit(n int) *SelectQuery {
	q.limit = n
	return q
}

func (q *SelectQuery) Build() (string, []any) {
	cols := "*"
	if len(q.columns) > 0 {
		cols = quoteList(q.columns)
	}
	query := fmt.Sprintf("SELECT %s FROM %s", cols, quote(q.table))
	if len(q.filters) > 0 {
		query += " WHERE " + strings.Join(q.filters, " AND ")
	}
	if len(q.orderBy) > 0 {
		query += " ORDER BY " + strings.Join(q.orderBy, ", ")
	}
	if q.limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", q.limit)
	}
	return query, q.args
}

func quote(name string) string {
	return pgx.Identifier{name}.Sanitize()
}

func quoteList(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = quote(n)
	}
	return strings.Join(quoted, ", ")
}
