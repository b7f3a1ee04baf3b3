package core

import (
	"context"
	"strings"
)

// TxManager runs fn in a database transaction carried by the context passed to fn.
// Repositories called with that context take part in the transaction.
// The transaction is committed if fn returns nil and rolled back otherwise.
type TxManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

type DBOrdering struct {
	Field     string
	Ascending bool
}

func (ord DBOrdering) String() string {
	direction := "DESC"
	if ord.Ascending {
		direction = "ASC"
	}
	return ord.Field + " " + direction
}

// ParseOrdering parses "field,-other" into DBOrderings, dropping fields that are not in `allowed`.
func ParseOrdering(val string, allowed ...string) []DBOrdering {
	if val == "" {
		return nil
	}
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}

	var orderings []DBOrdering
	for _, field := range strings.Split(val, ",") {
		field = strings.TrimSpace(field)
		descending := strings.HasPrefix(field, "-")
		if descending {
			field = field[1:] // drop "-"
		}
		if _, ok := allowedSet[field]; !ok {
			continue
		}
		orderings = append(orderings, DBOrdering{Field: field, Ascending: !descending})
	}
	return orderings
}
