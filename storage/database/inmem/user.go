package inmemdb

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/shuleapp/shule/core"
	"github.com/shuleapp/shule/core/user"
)

type userRepository struct {
	db *DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) *userRepository {
	return &userRepository{db: db}
}

func isExcluded(usr user.User, excludedUsers []user.User) bool {
	for _, u := range excludedUsers {
		if u.ID == usr.ID {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	for _, usr := range repo.db.t.users {
		if isExcluded(usr, excludedUsers) {
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

func (repo *userRepository) CreateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, u := range repo.db.t.users {
		if (usr.Username != "" && u.Username == usr.Username) || (usr.Email != "" && u.Email == usr.Email) {
			return user.User{}, errConflict
		}
	}
	usr.ID = uuid.New().String()
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func hasRolePrefix(usr user.User, prefixes []string) bool {
	for _, role := range usr.Roles {
		for _, prefix := range prefixes {
			if strings.HasPrefix(strings.ToLower(role), strings.ToLower(prefix)) {
				return true
			}
		}
	}
	return false
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	keep := func(u user.User) bool {
		if filter == nil {
			return true
		}
		if filter.Search != "" && !containsAny(filter.Search, u.Name, u.Username, u.Email) {
			return false
		}
		if len(filter.Roles) > 0 && !hasRolePrefix(u, filter.Roles) {
			return false
		}
		if filter.IsActive != nil && u.IsActive != *filter.IsActive {
			return false
		}
		if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom) {
			return false
		}
		if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo) {
			return false
		}
		return true
	}
	less := func(a, b user.User) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "username":
				cmp = strings.Compare(a.Username, b.Username)
			case "email":
				cmp = strings.Compare(a.Email, b.Email)
			case "created_at":
				cmp = compareTime(a.CreatedAt, b.CreatedAt)
			case "updated_at":
				cmp = compareTime(a.UpdatedAt, b.UpdatedAt)
			case "last_login":
				cmp = compareTime(a.LastLogin, b.LastLogin)
			case "name":
				cmp = strings.Compare(a.Name, b.Name)
			case "is_active":
				cmp = compareBool(a.IsActive, b.IsActive)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return a.Name < b.Name
	}
	return values(repo.db.t.users, keep, less), nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	var match func(u user.User) bool
	switch {
	case filter.ID != "":
		if usr, ok := repo.db.t.users[filter.ID]; ok {
			return usr, nil
		}
		return user.User{}, user.ErrNotFound
	case filter.Username != "":
		match = func(u user.User) bool { return u.Username == filter.Username }
	case filter.Email != "":
		match = func(u user.User) bool { return u.Email == filter.Email }
	case filter.UsernameOrEmail != "":
		match = func(u user.User) bool { return u.Username == filter.UsernameOrEmail || u.Email == filter.UsernameOrEmail }
	default:
		return user.User{}, user.ErrNotFound
	}
	for _, usr := range repo.db.t.users {
		if match(usr) {
			return usr, nil
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.t.users[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	repo.db.t.users[usr.ID] = usr
	return usr, nil
}

func (repo *userRepository) DeleteUsersByID(_ context.Context, ids []string, _ ...core.DBExecutor) (int, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	var n int
	for _, id := range ids {
		if _, ok := repo.db.t.users[id]; ok {
			delete(repo.db.t.users, id)
			n++
		}
	}
	return n, nil
}
