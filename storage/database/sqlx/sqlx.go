// Package sqlxrepos implements the repositories on postgres with sqlx.
package sqlxrepos

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/thesisflow/core"
)

type base struct {
	db *sqlx.DB
}

// getExec returns the transaction handed by the service if any, the repository DB otherwise.
func (b base) getExec(exec []core.DBExecutor) sqlx.ExtContext {
	switch e := core.ExecOrNil(exec).(type) {
	case sqlx.ExtContext:
		return e
	case *sql.Tx:
		return &sqlx.Tx{Tx: e, Mapper: b.db.Mapper}
	}
	return b.db
}

// query builds a WHERE clause with postgres positional args.
type query struct {
	conds []string
	args  []interface{}
}

// arg registers v and returns its placeholder.
func (q *query) arg(v interface{}) string {
	q.args = append(q.args, v)
	return fmt.Sprintf("$%d", len(q.args))
}

// where adds a condition; `?` in cond are replaced by the placeholders of vals, in order.
func (q *query) where(cond string, vals ...interface{}) {
	for _, v := range vals {
		cond = strings.Replace(cond, "?", q.arg(v), 1)
	}
	q.conds = append(q.conds, cond)
}

func (q *query) String() string {
	if len(q.conds) == 0 {
		return ""
	}
	return " WHERE (" + strings.Join(q.conds, ") AND (") + ")"
}

// orderBy renders ordering, keeping only the given sortable columns.
func orderBy(ordering []core.DBOrdering, sortable map[string]bool, dflt string) string {
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if sortable[ord.Field] {
			orderList = append(orderList, ord.String())
		}
	}
	if len(orderList) == 0 {
		return " ORDER BY " + dflt
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}
