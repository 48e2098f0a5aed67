package postgres

import (
	"context"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"

	"fuelstation/backend/internal/domain"
	"fuelstation/backend/internal/store"
	"fuelstation/backend/internal/xid"
)

var userColumns = []string{"employee_id", "username", "password_hash", "role", "active", "created_at"}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" {
		return store.ErrConflict
	}
	if user.EmployeeID == "" {
		user.EmployeeID = xid.New()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.exec(ctx, builder().Insert("users").Columns(userColumns...).Values(
		user.EmployeeID, user.Username, user.Password, user.Role, user.Active, user.CreatedAt,
	))
	if isUniqueViolation(err) {
		return store.ErrConflict
	}
	return err
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	users := make([]domain.UserAccount, 0)
	if err := s.list(ctx, &users, builder().Select(userColumns...).From("users").OrderBy("username")); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	affected, err := s.exec(ctx, builder().Update("users").
		Set("password_hash", password).
		Where(sq.Eq{"username": strings.ToLower(strings.TrimSpace(username))}))
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
