package books

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

type Store interface {
	// CreateOrRestock は同タイトルが既にあれば quantity を加算し、
	// なければ新規INSERTする。どちらの場合も b に確定後の行を書き戻す。
	CreateOrRestock(ctx context.Context, b *Book) (created bool, err error)
	GetByTitle(ctx context.Context, title string) (*Book, error)
	GetByID(ctx context.Context, id int64) (*Book, error)
	List(ctx context.Context) ([]Book, error)
	AdjustQuantity(ctx context.Context, bookID int64, delta int) error
	UpdateByTitle(ctx context.Context, title string, in UpdateBookRequest) (*Book, error)
	DeleteByTitle(ctx context.Context, title string) error
}

type MySQLStore struct{ db *sql.DB }

func NewStore(d *sql.DB) Store { return &MySQLStore{db: d} }

const selectBook = `
SELECT book_id, title, author, isbn, category_id, quantity, created_at
FROM books`

func (s *MySQLStore) CreateOrRestock(ctx context.Context, b *Book) (bool, error) {
	created := false
	err := db.RunInTxWithRetry(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		created = false

		// タイトル行をロックしてから存在判定（同時補充の取りこぼし防止）
		var existing Book
		err := tx.QueryRowContext(ctx, selectBook+` WHERE title = ? FOR UPDATE`, b.Title).Scan(
			&existing.BookID, &existing.Title, &existing.Author, &existing.ISBN,
			&existing.CategoryID, &existing.Quantity, &existing.CreatedAt,
		)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			const q = `
			INSERT INTO books (title, author, isbn, category_id, quantity, created_at)
			VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
			res, err := tx.ExecContext(ctx, q, b.Title, b.Author, b.ISBN, b.CategoryID, b.Quantity)
			if err != nil {
				if db.IsDuplicateKey(err) {
					return apperr.ErrDuplicateKey("isbn already registered for another title")
				}
				if db.IsFKViolation(err) {
					return apperr.ErrNotFound("category not found")
				}
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			b.BookID = id
			created = true
			return nil

		case err != nil:
			return err
		}

		// 既存タイトル: 補充として扱い quantity だけ加算。他フィールドは維持。
		if _, err := tx.ExecContext(ctx,
			`UPDATE books SET quantity = quantity + ? WHERE book_id = ?`, b.Quantity, existing.BookID); err != nil {
			return err
		}
		existing.Quantity += b.Quantity
		*b = existing
		return nil
	})
	return created, err
}

func (s *MySQLStore) GetByTitle(ctx context.Context, title string) (*Book, error) {
	return s.getOne(ctx, selectBook+` WHERE title = ? LIMIT 1`, title)
}

func (s *MySQLStore) GetByID(ctx context.Context, id int64) (*Book, error) {
	return s.getOne(ctx, selectBook+` WHERE book_id = ? LIMIT 1`, id)
}

// 見つからない場合は (nil, nil)
func (s *MySQLStore) getOne(ctx context.Context, q string, arg any) (*Book, error) {
	var b Book
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&b.BookID, &b.Title, &b.Author, &b.ISBN, &b.CategoryID, &b.Quantity, &b.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *MySQLStore) List(ctx context.Context) ([]Book, error) {
	rows, err := s.db.QueryContext(ctx, selectBook+` ORDER BY title`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Book{}
	for rows.Next() {
		var b Book
		if err := rows.Scan(&b.BookID, &b.Title, &b.Author, &b.ISBN, &b.CategoryID, &b.Quantity, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// AdjustQuantity は quantity に delta を加える。結果が負になる更新は
// WHERE 句で弾いて CONFLICT を返す（部分適用はしない）。
func (s *MySQLStore) AdjustQuantity(ctx context.Context, bookID int64, delta int) error {
	const q = `UPDATE books SET quantity = quantity + ? WHERE book_id = ? AND quantity + ? >= 0`
	res, err := s.db.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 1 {
		return nil
	}

	b, err := s.GetByID(ctx, bookID)
	if err != nil {
		return err
	}
	if b == nil {
		return apperr.ErrNotFound("book not found")
	}
	return apperr.ErrConflict("quantity would become negative")
}

func (s *MySQLStore) UpdateByTitle(ctx context.Context, title string, in UpdateBookRequest) (*Book, error) {
	// 動的アップデート
	sets := []string{}
	args := []any{}
	if in.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *in.Title)
	}
	if in.Author != nil {
		sets = append(sets, "author = ?")
		args = append(args, *in.Author)
	}
	if in.ISBN != nil {
		sets = append(sets, "isbn = ?")
		args = append(args, *in.ISBN)
	}
	if in.CategoryID != nil {
		sets = append(sets, "category_id = ?")
		args = append(args, *in.CategoryID)
	}

	lookup := title
	if len(sets) > 0 {
		args = append(args, title)
		q := "UPDATE books SET " + strings.Join(sets, ", ") + " WHERE title = ?"
		res, err := s.db.ExecContext(ctx, q, args...)
		if err != nil {
			if db.IsDuplicateKey(err) {
				return nil, apperr.ErrDuplicateKey("title or isbn already registered")
			}
			if db.IsFKViolation(err) {
				return nil, apperr.ErrNotFound("category not found")
			}
			return nil, err
		}
		if aff, _ := res.RowsAffected(); aff == 0 {
			// 同値更新でも matched は返らないので存在確認で切り分ける
			b, err := s.GetByTitle(ctx, title)
			if err != nil {
				return nil, err
			}
			if b == nil {
				return nil, apperr.ErrNotFound("book not found")
			}
		}
		if in.Title != nil {
			lookup = *in.Title
		}
	}

	b, err := s.GetByTitle(ctx, lookup)
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.ErrNotFound("book not found")
	}
	return b, nil
}

// DeleteByTitle は借出記録ごと本を消す。カスケードは同一Txで明示的に発行する。
func (s *MySQLStore) DeleteByTitle(ctx context.Context, title string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT book_id FROM books WHERE title = ? FOR UPDATE`, title).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound("book not found")
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM borrow_records WHERE book_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM books WHERE book_id = ?`, id)
		return err
	})
}
