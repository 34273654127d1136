package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"projecthub/internal/platform/database"
	"projecthub/internal/platform/models"
)

type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, email, full_name, password_hash, email_verified, created_at, updated_at`

func scanUser(row scanner) (*models.User, error) {
	user := &models.User{}
	var hash sql.NullString
	if err := row.Scan(&user.ID, &user.Email, &user.FullName, &hash, &user.EmailVerified, &user.CreatedAt, &user.UpdatedAt); err != nil {
		return nil, err
	}
	user.PasswordHash = hash.String
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	var hash interface{}
	if user.PasswordHash != "" {
		hash = user.PasswordHash
	}
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `
		INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)
	`, user.ID, user.Email, user.FullName, hash, user.EmailVerified, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	user, err := scanUser(database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := scanUser(database.Conn(ctx, r.db).QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ?`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return user, err
}

func (r *UserRepository) Delete(ctx context.Context, id string) error {
	_, err := database.Conn(ctx, r.db).ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id)
	return err
}
