package echoapi

import (
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
)

const (
	orderingParam = "ordering"
	searchParam   = "search"
	idParam       = "id"
	dateLayout    = "2006-01-02"
)

var errInvalidDate = errors.New("enter a valid date (YYYY-MM-DD or RFC 3339)")

func bindOrdering(ctx echo.Context, allowed ...string) []core.DBOrdering {
	return core.ParseOrdering(ctx.QueryParam(orderingParam), allowed...)
}

// queryList returns the values of a repeated or comma separated query param.
func queryList(ctx echo.Context, name string) []string {
	var list []string
	for _, val := range ctx.QueryParams()[name] {
		for _, item := range strings.Split(val, ",") {
			if item = strings.TrimSpace(item); item != "" {
				list = append(list, item)
			}
		}
	}
	return list
}

func queryBool(ctx echo.Context, name string) *bool {
	val, err := strconv.ParseBool(ctx.QueryParam(name))
	if err != nil {
		return nil
	}
	return &val
}

// queryTime parses a date (UTC midnight) or an RFC 3339 timestamp. Missing params yield the zero Time.
func queryTime(ctx echo.Context, name string) (time.Time, error) {
	val := strings.TrimSpace(ctx.QueryParam(name))
	if val == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return t, nil
	}
	t, err := time.Parse(dateLayout, val)
	if err != nil {
		return time.Time{}, core.NewValidationError(errInvalidDate, core.FieldError{Field: name, Error: errInvalidDate.Error()})
	}
	return t, nil
}

// queryPeriod reads the `from` & `to` query params.
func queryPeriod(ctx echo.Context) (from, to time.Time, err error) {
	if from, err = queryTime(ctx, "from"); err != nil {
		return
	}
	to, err = queryTime(ctx, "to")
	return
}

// bindIDs reads the IDs of a bulk delete request.
func bindIDs(ctx echo.Context) []string {
	return queryList(ctx, idParam)
}
