package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mahal/internal/core"
)

const memberColumns = `id, registration_code, name, age, phone, national_id, house_name, address, family_members, created_at, updated_at`

func (r *SQLiteRepository) MemberCodeExists(ctx context.Context, code string) (bool, error) {
	return r.codeExists(ctx, "members", code)
}

// CreateMember claims the registration code and inserts the member in one
// transaction.
func (r *SQLiteRepository) CreateMember(ctx context.Context, m core.Member) (core.Member, error) {
	now := r.now().UTC()
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := r.claimCode(ctx, tx, m.RegistrationCode, "member", now); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `
			INSERT INTO members (registration_code, name, age, phone, national_id, house_name, address, family_members, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			m.RegistrationCode, m.Name, m.Age, m.Phone, m.NationalID, m.HouseName, m.Address, m.FamilyMembers,
			now.Unix(), now.Unix())
		if err != nil {
			return mapError("insert member", err)
		}
		m.ID, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return core.Member{}, err
	}
	m.CreatedAt = now.Truncate(time.Second)
	m.UpdatedAt = m.CreatedAt

	slog.InfoContext(ctx, "Member saved to SQLite",
		"id", m.ID,
		"registration_code", m.RegistrationCode)

	return m, nil
}

func (r *SQLiteRepository) GetMember(ctx context.Context, id int64) (core.Member, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM members WHERE id = ?`, id)
	m, err := scanMember(row)
	if err != nil {
		return core.Member{}, mapError(fmt.Sprintf("get member %d", id), err)
	}
	return m, nil
}

func (r *SQLiteRepository) ListMembers(ctx context.Context) ([]core.Member, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+memberColumns+` FROM members ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []core.Member
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

func (r *SQLiteRepository) UpdateMember(ctx context.Context, m core.Member) (core.Member, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE members
		SET name = ?, age = ?, phone = ?, national_id = ?, house_name = ?, address = ?, family_members = ?, updated_at = ?
		WHERE id = ?`,
		m.Name, m.Age, m.Phone, m.NationalID, m.HouseName, m.Address, m.FamilyMembers, r.now().Unix(), m.ID)
	if err != nil {
		return core.Member{}, mapError(fmt.Sprintf("update member %d", m.ID), err)
	}
	if err := expectAffected(res, fmt.Sprintf("update member %d", m.ID)); err != nil {
		return core.Member{}, err
	}
	return r.GetMember(ctx, m.ID)
}

// DeleteMember removes the member and releases its registration code.
// Collections referencing the member are left untouched.
func (r *SQLiteRepository) DeleteMember(ctx context.Context, id int64) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var code string
		err := tx.QueryRowContext(ctx, `SELECT registration_code FROM members WHERE id = ?`, id).Scan(&code)
		if err != nil {
			return mapError(fmt.Sprintf("delete member %d", id), err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM members WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete member %d: %w", id, err)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM registration_codes WHERE code = ?`, code); err != nil {
			return fmt.Errorf("release registration code %s: %w", code, err)
		}
		return nil
	})
}

func (r *SQLiteRepository) CountMembers(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM members`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

func (r *SQLiteRepository) MemberRefs(ctx context.Context, ids []int64) (map[int64]core.MemberRef, error) {
	refs := make(map[int64]core.MemberRef, len(ids))
	if len(ids) == 0 {
		return refs, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, registration_code FROM members WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("member refs: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ref core.MemberRef
		if err := rows.Scan(&ref.ID, &ref.Name, &ref.RegistrationCode); err != nil {
			return nil, fmt.Errorf("scan member ref: %w", err)
		}
		refs[ref.ID] = ref
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMember(row rowScanner) (core.Member, error) {
	var (
		m                    core.Member
		createdAt, updatedAt int64
	)
	err := row.Scan(&m.ID, &m.RegistrationCode, &m.Name, &m.Age, &m.Phone, &m.NationalID,
		&m.HouseName, &m.Address, &m.FamilyMembers, &createdAt, &updatedAt)
	if err != nil {
		return core.Member{}, err
	}
	m.CreatedAt = unixTime(createdAt)
	m.UpdatedAt = unixTime(updatedAt)
	return m, nil
}
