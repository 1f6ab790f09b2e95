package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/safar/storefront/internal/database"
	"github.com/safar/storefront/internal/models"
)

const userColumns = `id, email, name, created_at, updated_at, version`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner, user *models.User) error {
	return row.Scan(
		&user.ID,
		&user.Email,
		&user.Name,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.Version,
	)
}

// normalizeEmail lowercases the address and rejects anything that is not a
// bare addr-spec.
func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", database.ErrInvalidEmail
	}
	return email, nil
}

// CreateUser registers a customer. Emails are unique case-insensitively.
func CreateUser(ctx context.Context, db *sql.DB, email, name string) (*models.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return nil, err
	}

	user := &models.User{}
	err = scanUser(db.QueryRowContext(ctx,
		`INSERT INTO users (email, name, created_at, updated_at, version)
		 VALUES ($1, $2, NOW(), NOW(), 1)
		 RETURNING `+userColumns,
		email, strings.TrimSpace(name)), user)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, database.ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return user, nil
}

func GetUser(ctx context.Context, db *sql.DB, id int64) (*models.User, error) {
	user := &models.User{}

	err := scanUser(db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id), user)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return user, nil
}

func ListUsers(ctx context.Context, db *sql.DB, page, pageSize int) (*OffsetPage, error) {
	var total int64
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&total); err != nil {
		return nil, fmt.Errorf("count users: %w", err)
	}

	rows, err := db.QueryContext(ctx,
		`SELECT `+userColumns+`
		 FROM users
		 ORDER BY created_at DESC, id DESC
		 LIMIT $1 OFFSET $2`,
		pageSize, offsetOf(page, pageSize))
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		var user models.User
		if err := scanUser(rows, &user); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, user)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return newOffsetPage(users, total, page, pageSize), nil
}
