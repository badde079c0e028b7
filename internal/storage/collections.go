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

const collectionColumns = `id, amount_cents, category, description, collected_by, member_id, collected_at, receipt_number, created_at, updated_at`

func (r *SQLiteRepository) CreateCollection(ctx context.Context, c core.FundCollection) (core.FundCollection, error) {
	now := r.now().UTC().Truncate(time.Second)
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO fund_collections (amount_cents, category, description, collected_by, member_id, collected_at, receipt_number, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.Amount.Cents, c.Category, c.Description, c.CollectedBy, nullableID(c.MemberID),
		c.CollectedDate.Unix(), c.ReceiptNumber, now.Unix(), now.Unix())
	if err != nil {
		return core.FundCollection{}, mapError("insert collection", err)
	}
	c.ID, err = res.LastInsertId()
	if err != nil {
		return core.FundCollection{}, fmt.Errorf("insert collection: %w", err)
	}
	c.Member = nil
	c.CollectedDate = c.CollectedDate.UTC().Truncate(time.Second)
	c.CreatedAt = now
	c.UpdatedAt = now

	slog.InfoContext(ctx, "Collection saved to SQLite",
		"id", c.ID,
		"amount_cents", c.Amount.Cents,
		"category", c.Category,
		"receipt_number", c.ReceiptNumber)

	return c, nil
}

func (r *SQLiteRepository) UpdateCollection(ctx context.Context, c core.FundCollection) (core.FundCollection, error) {
	op := fmt.Sprintf("update collection %d", c.ID)
	res, err := r.db.ExecContext(ctx, `
		UPDATE fund_collections
		SET amount_cents = ?, category = ?, description = ?, collected_by = ?, member_id = ?, collected_at = ?, receipt_number = ?, updated_at = ?
		WHERE id = ?`,
		c.Amount.Cents, c.Category, c.Description, c.CollectedBy, nullableID(c.MemberID),
		c.CollectedDate.Unix(), c.ReceiptNumber, r.now().Unix(), c.ID)
	if err != nil {
		return core.FundCollection{}, mapError(op, err)
	}
	if err := expectAffected(res, op); err != nil {
		return core.FundCollection{}, err
	}
	return r.GetCollection(ctx, c.ID)
}

func (r *SQLiteRepository) DeleteCollection(ctx context.Context, id int64) error {
	op := fmt.Sprintf("delete collection %d", id)
	res, err := r.db.ExecContext(ctx, `DELETE FROM fund_collections WHERE id = ?`, id)
	if err != nil {
		return mapError(op, err)
	}
	return expectAffected(res, op)
}

func (r *SQLiteRepository) GetCollection(ctx context.Context, id int64) (core.FundCollection, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+collectionColumns+` FROM fund_collections WHERE id = ?`, id)
	c, err := scanCollection(row)
	if err != nil {
		return core.FundCollection{}, mapError(fmt.Sprintf("get collection %d", id), err)
	}
	return c, nil
}

func (r *SQLiteRepository) ListCollections(ctx context.Context) ([]core.FundCollection, error) {
	return r.queryCollections(ctx, "list collections",
		`SELECT `+collectionColumns+` FROM fund_collections ORDER BY collected_at DESC, id DESC`)
}

func (r *SQLiteRepository) ListCollectionsByCategories(ctx context.Context, categories []string) ([]core.FundCollection, error) {
	if len(categories) == 0 {
		return nil, nil
	}
	args := make([]any, len(categories))
	for i, c := range categories {
		args[i] = c
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(categories)), ",")
	return r.queryCollections(ctx, "list collections by category",
		`SELECT `+collectionColumns+` FROM fund_collections
		WHERE category IN (`+placeholders+`)
		ORDER BY collected_at DESC, id DESC`, args...)
}

func (r *SQLiteRepository) RecentCollections(ctx context.Context, limit int) ([]core.FundCollection, error) {
	return r.queryCollections(ctx, "recent collections",
		`SELECT `+collectionColumns+` FROM fund_collections ORDER BY collected_at DESC, id DESC LIMIT ?`, limit)
}

func (r *SQLiteRepository) SumByCategory(ctx context.Context) ([]core.CategoryAmount, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT category, SUM(amount_cents), COUNT(*)
		FROM fund_collections
		GROUP BY category
		ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("sum by category: %w", err)
	}
	defer rows.Close()

	var sums []core.CategoryAmount
	for rows.Next() {
		var ca core.CategoryAmount
		if err := rows.Scan(&ca.Category, &ca.Amount.Cents, &ca.Count); err != nil {
			return nil, fmt.Errorf("scan category sum: %w", err)
		}
		sums = append(sums, ca)
	}
	return sums, rows.Err()
}

func (r *SQLiteRepository) MonthlyTotals(ctx context.Context) ([]core.MonthlyTotal, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT CAST(strftime('%Y', collected_at, 'unixepoch') AS INTEGER) AS y,
		       CAST(strftime('%m', collected_at, 'unixepoch') AS INTEGER) AS m,
		       SUM(amount_cents), COUNT(*)
		FROM fund_collections
		GROUP BY y, m
		ORDER BY y, m`)
	if err != nil {
		return nil, fmt.Errorf("monthly totals: %w", err)
	}
	defer rows.Close()

	var series []core.MonthlyTotal
	for rows.Next() {
		var mt core.MonthlyTotal
		if err := rows.Scan(&mt.Year, &mt.Month, &mt.Total.Cents, &mt.Count); err != nil {
			return nil, fmt.Errorf("scan monthly total: %w", err)
		}
		series = append(series, mt)
	}
	return series, rows.Err()
}

func (r *SQLiteRepository) queryCollections(ctx context.Context, op, query string, args ...any) ([]core.FundCollection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var out []core.FundCollection
	for rows.Next() {
		c, err := scanCollection(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", op, err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func scanCollection(row rowScanner) (core.FundCollection, error) {
	var (
		c                                 core.FundCollection
		memberID                          sql.NullInt64
		collectedAt, createdAt, updatedAt int64
	)
	err := row.Scan(&c.ID, &c.Amount.Cents, &c.Category, &c.Description, &c.CollectedBy, &memberID,
		&collectedAt, &c.ReceiptNumber, &createdAt, &updatedAt)
	if err != nil {
		return core.FundCollection{}, err
	}
	if memberID.Valid {
		id := memberID.Int64
		c.MemberID = &id
	}
	c.CollectedDate = unixTime(collectedAt)
	c.CreatedAt = unixTime(createdAt)
	c.UpdatedAt = unixTime(updatedAt)
	return c, nil
}
