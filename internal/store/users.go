package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"backoffice-api/internal/models"
)

// GetUserByEmail retrieves a user and their roles, or nil if the email is unknown
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user,
		"SELECT id, email, password_hash, created_at FROM users WHERE email = $1",
		strings.ToLower(email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	user.Roles = []string{}
	if err := s.db.SelectContext(ctx, &user.Roles,
		"SELECT role FROM user_roles WHERE user_id = $1 ORDER BY role", user.ID); err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	return &user, nil
}

// CreateUser inserts a user together with their roles
func (s *Store) CreateUser(ctx context.Context, user *models.User) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	user.Email = strings.ToLower(user.Email)
	err = tx.QueryRowxContext(ctx,
		"INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3) RETURNING created_at",
		user.ID, user.Email, user.PasswordHash).Scan(&user.CreatedAt)
	if isUniqueViolation(err) {
		return models.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("failed to insert user: %w", err)
	}

	for _, role := range user.Roles {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING",
			user.ID, role); err != nil {
			return fmt.Errorf("failed to insert role %s: %w", role, err)
		}
	}

	return tx.Commit()
}

// AddUserRole grants a role to an existing user
func (s *Store) AddUserRole(ctx context.Context, userID, role string) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO user_roles (user_id, role) VALUES ($1, $2) ON CONFLICT DO NOTHING",
		userID, role)
	return err
}
