// Package sqlxrepos implements the repositories on PostgreSQL with sqlx and squirrel.
package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/storage/database"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

type repo struct {
	db *sqlx.DB
}

func (r repo) exec(ctx context.Context) sqlx.ExtContext {
	return database.Executor(ctx, r.db)
}

func (r repo) get(ctx context.Context, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, r.exec(ctx), dest, query, args...)
}

func (r repo) selectAll(ctx context.Context, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, r.exec(ctx), dest, query, args...)
}

// run executes q and returns the number of affected rows.
func (r repo) run(ctx context.Context, q sq.Sqlizer) (int, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return 0, errors.Wrap(err, "building query")
	}
	res, err := r.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return 0, trapConstraintErr(err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

// trapNoRowsErr maps the "no rows" error to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// trapConstraintErr maps integrity violations to core.ConflictError
func trapConstraintErr(err error) error {
	pqErr, ok := errors.Cause(err).(*pq.Error)
	if !ok {
		return err
	}
	switch pqErr.Code {
	case "23503": // foreign_key_violation
		return core.NewConflictError("this record is still referenced by other records")
	case "23505": // unique_violation
		return core.NewConflictError("this record already exists")
	}
	return err
}

func validUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// validUUIDs drops the ids postgres would reject as malformed.
func validUUIDs(ids []string) []string {
	valid := make([]string, 0, len(ids))
	for _, id := range ids {
		if validUUID(id) {
			valid = append(valid, id)
		}
	}
	return valid
}

// orderBy renders the orderings restricted to `allowed`, falling back to `fallback`.
func orderBy(ordering []core.DBOrdering, allowed []string, fallback ...string) []string {
	allowedSet := make(map[string]struct{}, len(allowed))
	for _, f := range allowed {
		allowedSet[f] = struct{}{}
	}
	clauses := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := allowedSet[ord.Field]; ok {
			clauses = append(clauses, ord.String())
		}
	}
	if len(clauses) == 0 {
		return fallback
	}
	return clauses
}

func search(val string, columns ...string) sq.Or {
	like := "%" + val + "%"
	cond := make(sq.Or, 0, len(columns))
	for _, col := range columns {
		cond = append(cond, sq.ILike{col: like})
	}
	return cond
}
