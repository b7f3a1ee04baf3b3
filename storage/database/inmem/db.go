// Package inmemdb implements the repositories in memory. It backs the tests and the in-memory mode of the API.
package inmemdb

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/company"
	"github.com/kcci/portal/core/finance"
	"github.com/kcci/portal/core/membership"
	"github.com/kcci/portal/core/reviewer"
	"github.com/kcci/portal/core/user"
)

type contextKey string

const txKey contextKey = "inmem-tx"

type tables struct {
	users        map[string]user.User
	reviewers    map[string]reviewer.Reviewer
	companies    map[string]company.Company
	applications map[string]membership.Application
	costs        map[string]finance.CostItem
	revenues     map[string]finance.RevenueItem
	settlements  map[string]finance.Settlement
}

func newTables() tables {
	return tables{
		users:        make(map[string]user.User),
		reviewers:    make(map[string]reviewer.Reviewer),
		companies:    make(map[string]company.Company),
		applications: make(map[string]membership.Application),
		costs:        make(map[string]finance.CostItem),
		revenues:     make(map[string]finance.RevenueItem),
		settlements:  make(map[string]finance.Settlement),
	}
}

func (t tables) clone() tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.reviewers {
		c.reviewers[k] = v
	}
	for k, v := range t.companies {
		c.companies[k] = v
	}
	for k, v := range t.applications {
		c.applications[k] = v
	}
	for k, v := range t.costs {
		c.costs[k] = v
	}
	for k, v := range t.revenues {
		c.revenues[k] = v
	}
	for k, v := range t.settlements {
		c.settlements[k] = v
	}
	return c
}

// DB holds every table behind a single lock.
// Transactions snapshot the tables and restore them when the transaction fails.
// Writes outside of a transaction wait for the running one to end; reads do not.
type DB struct {
	mu    sync.RWMutex
	txMu  sync.Mutex
	store tables
}

var _ core.TxManager = (*DB)(nil) // interface compliance check

func Open() *DB {
	return &DB{store: newTables()}
}

// Reset empties every table.
func (db *DB) Reset() {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.store = newTables()
}

func (db *DB) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if ctx.Value(txKey) != nil {
		return fn(ctx)
	}

	db.txMu.Lock()
	defer db.txMu.Unlock()

	db.mu.RLock()
	snapshot := db.store.clone()
	db.mu.RUnlock()

	defer func() {
		if p := recover(); p != nil {
			db.restore(snapshot)
			panic(p)
		}
	}()

	if err = fn(context.WithValue(ctx, txKey, true)); err != nil {
		db.restore(snapshot)
	}
	return err
}

// lockWrite locks the tables for a write made with ctx and returns the unlock func.
func (db *DB) lockWrite(ctx context.Context) (unlock func()) {
	if ctx.Value(txKey) != nil {
		db.mu.Lock()
		return db.mu.Unlock
	}
	db.txMu.Lock()
	db.mu.Lock()
	return func() {
		db.mu.Unlock()
		db.txMu.Unlock()
	}
}

func (db *DB) restore(snapshot tables) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.store = snapshot
}

// comparators maps an ordering field to a three-way comparison of two records.
type comparators[T any] map[string]func(a, b T) int

// sortRecords sorts records by the known fields of ordering, or by fallback when none is known.
func sortRecords[T any](records []T, ordering []core.DBOrdering, cmps comparators[T], fallback ...core.DBOrdering) {
	known := make([]core.DBOrdering, 0, len(ordering))
	for _, ord := range ordering {
		if _, ok := cmps[ord.Field]; ok {
			known = append(known, ord)
		}
	}
	if len(known) == 0 {
		known = fallback
	}

	sort.SliceStable(records, func(i, j int) bool {
		for _, ord := range known {
			c := cmps[ord.Field](records[i], records[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func cmpTime(a, b time.Time) int { return a.Compare(b) }

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}

func cmpBool(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// matches does a case-insensitive search of `query` in any of the values.
func matches(query string, values ...string) bool {
	query = strings.ToLower(query)
	for _, v := range values {
		if strings.Contains(strings.ToLower(v), query) {
			return true
		}
	}
	return false
}

func inTimeRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}

func contains[T comparable](list []T, val T) bool {
	for _, item := range list {
		if item == val {
			return true
		}
	}
	return false
}
