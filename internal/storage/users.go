package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"mahal/internal/core"
)

func (r *SQLiteRepository) UserCodeExists(ctx context.Context, code string) (bool, error) {
	return r.codeExists(ctx, "users", code)
}

// CreateUser claims the registration code and inserts the user in one
// transaction. An email already registered yields core.ErrDuplicateEmail.
func (r *SQLiteRepository) CreateUser(ctx context.Context, u core.User) (core.User, error) {
	now := r.now().UTC()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var taken bool
		if err := tx.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE email = ?)`, u.Email).Scan(&taken); err != nil {
			return fmt.Errorf("check user email: %w", err)
		}
		if taken {
			return fmt.Errorf("email %s: %w", u.Email, core.ErrDuplicateEmail)
		}
		if err := r.claimCode(ctx, tx, u.RegistrationCode, "user", now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO users (registration_code, name, email, phone, role, password_hash, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			u.RegistrationCode, u.Name, u.Email, u.Phone, string(u.Role), u.PasswordHash, now.Unix())
		if err != nil {
			return mapError("insert user", err)
		}
		u.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.User{}, err
	}
	u.CreatedAt = now.Truncate(time.Second)

	slog.InfoContext(ctx, "User saved to SQLite",
		"id", u.ID,
		"registration_code", u.RegistrationCode,
		"role", u.Role)

	return u, nil
}

func (r *SQLiteRepository) GetUser(ctx context.Context, id int64) (core.User, error) {
	var (
		u         core.User
		role      string
		createdAt int64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, registration_code, name, email, phone, role, password_hash, created_at
		FROM users WHERE id = ?`, id).
		Scan(&u.ID, &u.RegistrationCode, &u.Name, &u.Email, &u.Phone, &role, &u.PasswordHash, &createdAt)
	if err != nil {
		return core.User{}, mapError(fmt.Sprintf("get user %d", id), err)
	}
	u.Role = core.Role(role)
	u.CreatedAt = unixTime(createdAt)
	return u, nil
}

func (r *SQLiteRepository) CountUsers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}
