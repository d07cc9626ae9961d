package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/thesisflow/core"
	"github.com/trezcool/thesisflow/core/user"
)

const userColumns = `id, name, username, email, is_active, roles, password_hash, created_at, updated_at, last_login`

var userSortable = map[string]bool{"name": true, "username": true, "email": true, "created_at": true, "last_login": true}

type userRow struct {
	ID           string         `db:"id"`
	Name         string         `db:"name"`
	Username     null.String    `db:"username"`
	Email        null.String    `db:"email"`
	IsActive     bool           `db:"is_active"`
	Roles        pq.StringArray `db:"roles"`
	PasswordHash []byte         `db:"password_hash"`
	CreatedAt    time.Time      `db:"created_at"`
	UpdatedAt    time.Time      `db:"updated_at"`
	LastLogin    null.Time      `db:"last_login"`
}

func toUserRow(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Username:     null.NewString(usr.Username, usr.Username != ""),
		Email:        null.NewString(usr.Email, usr.Email != ""),
		IsActive:     usr.Active(),
		Roles:        pq.StringArray(usr.Roles),
		PasswordHash: usr.PasswordHash,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
		LastLogin:    null.NewTime(usr.LastLogin.UTC(), !usr.LastLogin.IsZero()),
	}
}

func (r userRow) user() user.User {
	active := r.IsActive
	return user.User{
		ID:           r.ID,
		Name:         r.Name,
		Username:     r.Username.String,
		Email:        r.Email.String,
		IsActive:     &active,
		Roles:        []string(r.Roles),
		PasswordHash: r.PasswordHash,
		CreatedAt:    r.CreatedAt.UTC(),
		UpdatedAt:    r.UpdatedAt.UTC(),
		LastLogin:    r.LastLogin.Time.UTC(),
	}
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{base{db: db}}
}

// trapNoRowsErr maps psql "no rows" err to user.ErrNotFound
func (repo userRepository) trapNoRowsErr(err error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return user.ErrNotFound
	}
	return errors.Wrap(err, msg)
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers []user.User, exec ...core.DBExecutor) error {
	q := new(query)
	q.where("(? <> '' AND username = ?) OR (? <> '' AND email = ?)", username, username, email, email)
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q.where("id::text <> ALL(?)", pq.StringArray(ids))
	}

	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+userColumns+` FROM "user"`+q.String()+` LIMIT 1`, q.args...)
	switch {
	case errors.Cause(err) == sql.ErrNoRows:
		return nil
	case err != nil:
		return errors.Wrap(err, "checking user uniqueness")
	case username != "" && row.Username.String == username:
		return user.ErrUsernameExists
	default:
		return user.ErrEmailExists
	}
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	r := toUserRow(usr)

	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		INSERT INTO "user" (`+userColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING `+userColumns,
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.CreatedAt, r.UpdatedAt, r.LastLogin,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return row.user(), nil
}

func (repo userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	q := new(query)

	if filter != nil {
		// users with Name, Username or Email matching the search keyword
		if filter.Search != "" {
			val := "%" + filter.Search + "%"
			q.where("name ILIKE ? OR username ILIKE ? OR email ILIKE ?", val, val, val)
		}
		// users with any role that starts with any of the provided roles
		if len(filter.Roles) > 0 {
			prefixes := make([]string, 0, len(filter.Roles))
			for _, role := range filter.Roles {
				prefixes = append(prefixes, role+"%")
			}
			q.where("EXISTS (SELECT 1 FROM UNNEST(roles) user_role WHERE user_role LIKE ANY(?))", pq.StringArray(prefixes))
		}
		if filter.IsActive != nil {
			q.where("is_active = ?", *filter.IsActive)
		}
		if !filter.CreatedFrom.IsZero() {
			q.where("created_at >= ?", filter.CreatedFrom.UTC())
		}
		if !filter.CreatedTo.IsZero() {
			q.where("created_at <= ?", filter.CreatedTo.UTC())
		}
	}

	var rows []userRow
	stmt := `SELECT ` + userColumns + ` FROM "user"` + q.String() + orderBy(ordering, userSortable, "created_at ASC")
	if err := sqlx.SelectContext(ctx, repo.getExec(exec), &rows, stmt, q.args...); err != nil {
		return nil, errors.Wrap(err, "querying users")
	}

	users := make([]user.User, 0, len(rows))
	for _, r := range rows {
		users = append(users, r.user())
	}
	return users, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter, exec ...core.DBExecutor) (user.User, error) {
	q := new(query)
	switch {
	case filter.ID != "":
		if _, err := uuid.Parse(filter.ID); err != nil {
			return user.User{}, user.ErrNotFound
		}
		q.where("id = ?", filter.ID)
	case filter.Username != "":
		q.where("username = ?", filter.Username)
	case filter.Email != "":
		q.where("email = ?", filter.Email)
	case filter.UsernameOrEmail != "":
		q.where("username = ? OR email = ?", filter.UsernameOrEmail, filter.UsernameOrEmail)
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `SELECT `+userColumns+` FROM "user"`+q.String()+` LIMIT 1`, q.args...); err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	r := toUserRow(usr)

	var row userRow
	err := sqlx.GetContext(ctx, repo.getExec(exec), &row, `
		UPDATE "user"
		SET name = $2, username = $3, email = $4, is_active = $5, roles = $6, password_hash = $7,
			updated_at = $8, last_login = $9
		WHERE id = $1
		RETURNING `+userColumns,
		r.ID, r.Name, r.Username, r.Email, r.IsActive, r.Roles, r.PasswordHash, r.UpdatedAt, r.LastLogin,
	)
	if err != nil {
		return user.User{}, repo.trapNoRowsErr(err, "updating user")
	}
	return row.user(), nil
}
