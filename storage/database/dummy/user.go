package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func copyUser(usr user.User) user.User {
	if usr.Roles != nil {
		usr.Roles = append([]string(nil), usr.Roles...)
	}
	if usr.IsActive != nil {
		active := *usr.IsActive
		usr.IsActive = &active
	}
	return usr
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, copyUser(*u))
	}
	return users
}

func (repo *userRepository) CheckUsernameUniqueness(_ context.Context, username, email string, excludedUsers []user.User, _ ...core.DBExecutor) error {
	repo.db.RLock()
	defer repo.db.RUnlock()

	excluded := make(map[string]bool, len(excludedUsers))
	for _, u := range excludedUsers {
		excluded[u.ID] = true
	}

	for _, usr := range repo.db.table {
		if excluded[usr.ID] {
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
	repo.db.Lock()
	defer repo.db.Unlock()

	usr.ID = uuid.New().String()
	stored := copyUser(usr)
	repo.db.table[usr.ID] = &stored
	return usr, nil
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, _ ...core.DBExecutor) ([]user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	users := repo.query()
	if filter != nil {
		filtered := make([]user.User, 0, len(users))
		for _, u := range users {
			if matchUser(u, filter) {
				filtered = append(filtered, u)
			}
		}
		users = filtered
	}

	sortUsers(users, ordering)
	return users, nil
}

func matchUser(u user.User, filter *user.QueryFilter) bool {
	// users with search keyword matching any Name, Username or Email ?
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !(strings.Contains(strings.ToLower(u.Username), search) ||
			strings.Contains(strings.ToLower(u.Email), search) ||
			strings.Contains(strings.ToLower(u.Name), search)) {
			return false
		}
	}
	// users with any of the specified roles
	if len(filter.Roles) > 0 {
		var found bool
		for _, r := range filter.Roles {
			if u.RoleStartsWith(r) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if filter.IsActive != nil && u.Active() != *filter.IsActive {
		return false
	}
	if !filter.CreatedFrom.IsZero() && u.CreatedAt.Before(filter.CreatedFrom.UTC()) {
		return false
	}
	if !filter.CreatedTo.IsZero() && u.CreatedAt.After(filter.CreatedTo.UTC()) {
		return false
	}
	return true
}

func sortUsers(users []user.User, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: true}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(users[i].Name, users[j].Name)
			case "username":
				cmp = strings.Compare(users[i].Username, users[j].Username)
			case "email":
				cmp = strings.Compare(users[i].Email, users[j].Email)
			case "created_at":
				cmp = compareTimes(users[i].CreatedAt, users[j].CreatedAt)
			case "last_login":
				cmp = compareTimes(users[i].LastLogin, users[j].LastLogin)
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return false
	})
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter, _ ...core.DBExecutor) (user.User, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if filter.ID != "" {
		if usr, ok := repo.db.table[filter.ID]; ok {
			return copyUser(*usr), nil
		}
		return user.User{}, user.ErrNotFound
	}

	for _, usr := range repo.db.table {
		switch {
		case filter.Username != "":
			if usr.Username == filter.Username {
				return copyUser(*usr), nil
			}
		case filter.Email != "":
			if usr.Email == filter.Email {
				return copyUser(*usr), nil
			}
		case filter.UsernameOrEmail != "":
			if usr.Username == filter.UsernameOrEmail || usr.Email == filter.UsernameOrEmail {
				return copyUser(*usr), nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User, _ ...core.DBExecutor) (user.User, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[usr.ID]; !ok {
		return user.User{}, user.ErrNotFound
	}
	stored := copyUser(usr)
	repo.db.table[usr.ID] = &stored
	return usr, nil
}
