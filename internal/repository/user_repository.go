package repository

import (
	"context"
	"strings"
	"time"

	"github.com/pinnity/pinnity/internal/id"
	"github.com/pinnity/pinnity/internal/model"
)

const userColumns = `id, email, username, password_hash, first_name, last_name, user_type, created_at, updated_at`

// CreateUser inserts a user. Email is stored lowercased.
func (s *Postgres) CreateUser(ctx context.Context, u *model.User) error {
	now := time.Now().UTC()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	u.CreatedAt = now
	u.UpdatedAt = now

	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (:id, :email, :username, :password_hash, :first_name, :last_name, :user_type, :created_at, :updated_at)
	`
	_, err := s.ex.NamedExecContext(ctx, query, u)
	return translate(err, "create user")
}

// GetUser retrieves a user by ID
func (s *Postgres) GetUser(ctx context.Context, userID id.ID) (*model.User, error) {
	var u model.User
	err := s.ex.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID)
	if err != nil {
		return nil, translate(err, "get user")
	}
	return &u, nil
}

// GetUserByEmail matches case-insensitively.
func (s *Postgres) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := s.ex.GetContext(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = $1`,
		strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, translate(err, "get user by email")
	}
	return &u, nil
}

func (s *Postgres) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	users := []model.User{}
	err := s.ex.SelectContext(ctx, &users,
		`SELECT `+userColumns+` FROM users ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, translate(err, "list users")
	}
	return users, nil
}

func (s *Postgres) UpdateUserType(ctx context.Context, userID id.ID, t model.UserType) error {
	result, err := s.ex.ExecContext(ctx,
		`UPDATE users SET user_type = $1, updated_at = $2 WHERE id = $3`, t, time.Now().UTC(), userID)
	if err != nil {
		return translate(err, "update user type")
	}
	return expectRows(result, "update user type")
}

func (s *Postgres) CountUsersByType(ctx context.Context) (map[string]int, error) {
	counts, err := countByColumn(ctx, s.ex, `SELECT user_type AS key, COUNT(*) AS count FROM users GROUP BY user_type`)
	if err != nil {
		return nil, translate(err, "count users")
	}
	return counts, nil
}
