package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/crypto/bcrypt"

	"parkingsystem/internal/db"
	apperrors "parkingsystem/internal/errors"
)

type AdminAuthRepository interface {
	GetByEmail(ctx context.Context, email string) (*db.Admin, error)
	CreateNewUser(ctx context.Context, email, password string) error
}

type adminAuthRepository struct {
	store *Store
}

func NewAdminAuthRepository(store *Store) AdminAuthRepository {
	return &adminAuthRepository{store: store}
}

// GetByEmail returns nil, nil when no admin has that email.
func (r *adminAuthRepository) GetByEmail(ctx context.Context, email string) (*db.Admin, error) {
	var admin db.Admin
	err := r.store.Q().QueryRowContext(ctx,
		"SELECT id, email, password_hash FROM admins WHERE email = ?", email).
		Scan(&admin.ID, &admin.Email, &admin.PasswordHash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &admin, nil
}

func (r *adminAuthRepository) CreateNewUser(ctx context.Context, email, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = r.store.Q().ExecContext(ctx,
		"INSERT INTO admins (email, password_hash, created_at) VALUES (?, ?, ?)",
		email, string(hashedPassword), time.Now().UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: admin %s already exists", apperrors.ErrConflict, email)
		}
		return err
	}
	return nil
}
