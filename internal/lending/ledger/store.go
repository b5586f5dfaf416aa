package ledger

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

// Store は台帳の原子的な状態遷移を担う。実装は以下を必ず守ること:
//   - Borrow / Return は check-then-mutate 全体を1トランザクションで行う
//   - 同一の本に対する呼び出し同士は直列化される（片方だけが成功する）
//   - 在庫と記録は必ず一緒に動く。片方だけ適用された状態を残さない
type Store interface {
	// Borrow は title の本を rec.UserID に貸し出す。
	// rec には UserID / BorrowULID / BorrowedAt を詰めて渡し、
	// 成功時に BorrowID / BookID / Status が書き戻される。
	Borrow(ctx context.Context, title string, rec *BorrowRecord) error

	// Return は未返却の記録を returned に遷移させ、在庫を1戻す。
	Return(ctx context.Context, title string, userID int64, returnedAt time.Time) (*BorrowRecord, error)

	ListByUser(ctx context.Context, userID int64, onlyOutstanding bool) ([]HistoryRow, error)
}

type MySQLStore struct{ db *sql.DB }

func NewStore(d *sql.DB) Store { return &MySQLStore{db: d} }

// 本の行をロックして取得。以降の在庫チェック・記録操作はこのロックで直列化される。
func lockBookRow(ctx context.Context, tx db.DBTX, title string) (bookID int64, quantity int, err error) {
	const q = `SELECT book_id, quantity FROM books WHERE title = ? LIMIT 1 FOR UPDATE`
	err = tx.QueryRowContext(ctx, q, title).Scan(&bookID, &quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, 0, apperr.ErrNotFound("book not found")
	}
	if err != nil {
		return 0, 0, err
	}
	return bookID, quantity, nil
}

// 在庫を delta だけ動かす。負になる更新はWHERE句で弾く。
func adjustQuantity(ctx context.Context, tx db.DBTX, bookID int64, delta int) error {
	const q = `UPDATE books SET quantity = quantity + ? WHERE book_id = ? AND quantity + ? >= 0`
	res, err := tx.ExecContext(ctx, q, delta, bookID, delta)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff != 1 {
		// ロック取得後なので本来ここには来ない。来たらTxごと破棄する。
		return apperr.ErrConflict("quantity would become negative")
	}
	return nil
}

func (s *MySQLStore) Borrow(ctx context.Context, title string, rec *BorrowRecord) error {
	return db.RunInTxWithRetry(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		bookID, qty, err := lockBookRow(ctx, tx, title)
		if err != nil {
			return err
		}

		// 未返却チェックが在庫チェックより先（二重借りは在庫があっても弾く）
		var n int
		const qOut = `
		SELECT COUNT(*) FROM borrow_records
		WHERE book_id = ? AND user_id = ? AND status = 'outstanding'`
		if err := tx.QueryRowContext(ctx, qOut, bookID, rec.UserID).Scan(&n); err != nil {
			return err
		}
		if n > 0 {
			return apperr.ErrAlreadyBorrowed()
		}

		if qty <= 0 {
			return apperr.ErrOutOfStock()
		}

		if err := adjustQuantity(ctx, tx, bookID, -1); err != nil {
			return err
		}

		const qIns = `
		INSERT INTO borrow_records (borrow_ulid, book_id, user_id, status, borrowed_at)
		VALUES (?, ?, ?, 'outstanding', ?)`
		res, err := tx.ExecContext(ctx, qIns, rec.BorrowULID, bookID, rec.UserID, rec.BorrowedAt)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}

		rec.BorrowID = id
		rec.BookID = bookID
		rec.Status = StatusOutstanding
		return nil
	})
}

func (s *MySQLStore) Return(ctx context.Context, title string, userID int64, returnedAt time.Time) (*BorrowRecord, error) {
	var rec BorrowRecord
	err := db.RunInTxWithRetry(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		bookID, _, err := lockBookRow(ctx, tx, title)
		if err != nil {
			return err
		}

		const qOut = `
		SELECT borrow_id, borrow_ulid, borrowed_at FROM borrow_records
		WHERE book_id = ? AND user_id = ? AND status = 'outstanding'
		LIMIT 1 FOR UPDATE`
		err = tx.QueryRowContext(ctx, qOut, bookID, userID).Scan(&rec.BorrowID, &rec.BorrowULID, &rec.BorrowedAt)
		if errors.Is(err, sql.ErrNoRows) {
			// 「借りていない」と「返却済み」は区別しない
			return apperr.ErrNotBorrowed()
		}
		if err != nil {
			return err
		}

		const qUpd = `
		UPDATE borrow_records SET status = 'returned', returned_at = ?
		WHERE borrow_id = ? AND status = 'outstanding'`
		res, err := tx.ExecContext(ctx, qUpd, returnedAt, rec.BorrowID)
		if err != nil {
			return err
		}
		if aff, _ := res.RowsAffected(); aff != 1 {
			return apperr.ErrInternal("failed to update borrow_records.status")
		}

		if err := adjustQuantity(ctx, tx, bookID, 1); err != nil {
			return err
		}

		rec.BookID = bookID
		rec.UserID = userID
		rec.Status = StatusReturned
		rec.ReturnedAt = sql.NullTime{Time: returnedAt, Valid: true}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *MySQLStore) ListByUser(ctx context.Context, userID int64, onlyOutstanding bool) ([]HistoryRow, error) {
	q := `
	SELECT r.borrow_id, r.borrow_ulid, r.book_id, r.user_id, r.status, r.borrowed_at, r.returned_at,
	       b.title
	FROM borrow_records r
	JOIN books b ON b.book_id = r.book_id
	WHERE r.user_id = ?`
	if onlyOutstanding {
		q += ` AND r.status = 'outstanding'`
	}
	q += ` ORDER BY r.borrowed_at DESC, r.borrow_id DESC`

	rows, err := s.db.QueryContext(ctx, q, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []HistoryRow{}
	for rows.Next() {
		var r HistoryRow
		var status string
		if err := rows.Scan(
			&r.BorrowID, &r.BorrowULID, &r.BookID, &r.UserID, &status, &r.BorrowedAt, &r.ReturnedAt,
			&r.Title,
		); err != nil {
			return nil, err
		}
		r.Status = Status(status)
		out = append(out, r)
	}
	return out, rows.Err()
}
