package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/shuleapp/shule/core"
)

var orderingParam = "ordering"

type Ordering struct {
	Orderings []core.DBOrdering
}

func (ord *Ordering) Bind(ctx echo.Context) {
	data := ctx.QueryParams()
	if len(data) == 0 {
		return
	}
	val, ok := data[orderingParam]
	if !ok || len(val) == 0 || val[0] == "" {
		return
	}

	for _, field := range strings.Split(val[0], ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		ord.Orderings = append(ord.Orderings, core.DBOrdering{Field: field, Ascending: !descending})
	}
}

// queryParams reads typed query params. The first parse error is kept and reported as a field error.
type queryParams struct {
	ctx echo.Context
	err error
}

func newQueryParams(ctx echo.Context) *queryParams {
	return &queryParams{ctx: ctx}
}

func (qp *queryParams) fail(name, msg string) {
	if qp.err == nil {
		qp.err = core.NewFieldError(name, msg)
	}
}

func (qp *queryParams) String(name string) string {
	return strings.TrimSpace(qp.ctx.QueryParam(name))
}

// Strings accepts repeated params as well as comma separated values.
func (qp *queryParams) Strings(name string) []string {
	var vals []string
	for _, v := range qp.ctx.QueryParams()[name] {
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				vals = append(vals, s)
			}
		}
	}
	return vals
}

func (qp *queryParams) Int(name string) int {
	s := qp.String(name)
	if s == "" {
		return 0
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		qp.fail(name, "must be an integer")
	}
	return i
}

func (qp *queryParams) Bool(name string) *bool {
	s := qp.String(name)
	if s == "" {
		return nil
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		qp.fail(name, "must be a boolean")
		return nil
	}
	return &b
}

func (qp *queryParams) Time(name string) time.Time {
	s := qp.String(name)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		qp.fail(name, "must be an RFC3339 timestamp")
	}
	return t
}

func (qp *queryParams) Err() error {
	return qp.err
}
