package categories

import (
	"context"
	"database/sql"
	"errors"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

type Store struct{ db *sql.DB }

func NewStore(d *sql.DB) *Store { return &Store{db: d} }

func (s *Store) Insert(ctx context.Context, c *Category) error {
	res, err := s.db.ExecContext(ctx, `INSERT INTO categories (name) VALUES (?)`, c.Name)
	if err != nil {
		if db.IsDuplicateKey(err) {
			return apperr.ErrDuplicateKey("category name already exists")
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	c.CategoryID = id
	return nil
}

func (s *Store) List(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT category_id, name FROM categories ORDER BY category_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Category{}
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.CategoryID, &c.Name); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// DeleteByName はカテゴリ配下の本と、その借出記録まで同一Txで消す。
// 記録 → 本 → カテゴリの順で明示的にDELETEする。
func (s *Store) DeleteByName(ctx context.Context, name string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT category_id FROM categories WHERE name = ? FOR UPDATE`, name).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound("category not found")
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM borrow_records WHERE book_id IN (SELECT book_id FROM books WHERE category_id = ?)`, id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM books WHERE category_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM categories WHERE category_id = ?`, id)
		return err
	})
}
