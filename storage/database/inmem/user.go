package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/kcci/portal/core"
	"github.com/kcci/portal/core/user"
)

var userComparators = comparators[user.User]{
	"name":       func(a, b user.User) int { return strings.Compare(a.Name, b.Name) },
	"username":   func(a, b user.User) int { return strings.Compare(a.Username, b.Username) },
	"email":      func(a, b user.User) int { return strings.Compare(a.Email, b.Email) },
	"is_active":  func(a, b user.User) int { return cmpBool(!a.IsDeactivated(), !b.IsDeactivated()) },
	"created_at": func(a, b user.User) int { return cmpTime(a.CreatedAt, b.CreatedAt) },
	"updated_at": func(a, b user.User) int { return cmpTime(a.UpdatedAt, b.UpdatedAt) },
	"last_login": func(a, b user.User) int { return cmpTime(a.LastLogin, b.LastLogin) },
}

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers ...user.User) error {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	excluded := make(map[string]struct{}, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = struct{}{}
	}

	for _, usr := range repo.db.store.users {
		if _, ok := excluded[usr.ID]; ok {
			continue
		}
		if username != "" && usr.Username == username {
			return user.ErrUsernameExists
		}
		if email != "" && usr.Email == email {
			return user.ErrEmailExists
		}
	}
	return nil
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	usr.ID = uuid.New().String()
	repo.db.store.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering) ([]user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	users := make([]user.User, 0, len(repo.db.store.users))
	for _, usr := range repo.db.store.users {
		if filter != nil {
			if filter.Search != "" && !matches(filter.Search, usr.Name, usr.Username, usr.Email) {
				continue
			}
			if len(filter.Roles) > 0 && !hasAnyRolePrefix(usr, filter.Roles) {
				continue
			}
			if filter.IsActive != nil && usr.IsDeactivated() == *filter.IsActive {
				continue
			}
			if !inTimeRange(usr.CreatedAt, filter.CreatedFrom, filter.CreatedTo) {
				continue
			}
		}
		users = append(users, usr)
	}
	sortRecords(users, ordering, userComparators, core.DBOrdering{Field: "created_at"})
	return users, nil
}

func hasAnyRolePrefix(usr user.User, prefixes []string) bool {
	for _, prefix := range prefixes {
		if usr.RoleStartsWith(prefix) {
			return true
		}
	}
	return false
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.store.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.store.users {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return usr, nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return usr, nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	defer repo.db.lockWrite(ctx)()

	if _, ok := repo.db.store.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.store.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(ctx context.Context, ids ...string) (int, error) {
	defer repo.db.lockWrite(ctx)()

	var deleted int
	for _, id := range ids {
		if _, ok := repo.db.store.users[id]; ok {
			delete(repo.db.store.users, id)
			deleted++
		}
	}
	// ON DELETE SET NULL
	for id, rev := range repo.db.store.reviewers {
		if _, ok := repo.db.store.users[rev.UserID]; rev.UserID != "" && !ok {
			rev.UserID = ""
			repo.db.store.reviewers[id] = rev
		}
	}
	for id, comp := range repo.db.store.companies {
		if _, ok := repo.db.store.users[comp.UserID]; comp.UserID != "" && !ok {
			comp.UserID = ""
			repo.db.store.companies[id] = comp
		}
	}
	return deleted, nil
}
