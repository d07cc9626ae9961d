package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/thesisflow/core"
)

const orderingParam = "ordering"

// fields each listing may be ordered by
var (
	thesisOrderings = []string{"title", "status", "created_at", "updated_at"}
	userOrderings   = []string{"name", "username", "email", "created_at", "last_login"}
)

// Ordering binds `?ordering=-updated_at,title`: comma separated fields, `-` for descending.
type Ordering struct {
	Orderings []core.DBOrdering
}

// Bind reads the ordering query param; a field outside sortable is a validation error.
func (ord *Ordering) Bind(ctx echo.Context, sortable []string) error {
	val := ctx.QueryParam(orderingParam)
	if val == "" {
		return nil
	}

	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if field == "" {
			continue
		}
		if !containsField(sortable, field) {
			return core.NewFieldError(orderingParam, "must be any of: "+strings.Join(sortable, ", "))
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
	return nil
}

func containsField(fields []string, field string) bool {
	for _, f := range fields {
		if f == field {
			return true
		}
	}
	return false
}
