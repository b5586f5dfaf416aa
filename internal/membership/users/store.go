package users

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"LIBRIS-backend/internal/platform/apperr"
	"LIBRIS-backend/internal/platform/db"
)

type Store interface {
	Insert(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id int64) (*User, error)
	UpdateProfile(ctx context.Context, id int64, firstname, lastname *string) error
	DeleteByEmail(ctx context.Context, email string) error
	List(ctx context.Context) ([]User, error)
}

type MySQLStore struct{ db *sql.DB }

func NewStore(d *sql.DB) Store { return &MySQLStore{db: d} }

func (s *MySQLStore) Insert(ctx context.Context, u *User) error {
	const q = `
	INSERT INTO users (firstname, lastname, email, password_hash, role, created_at)
	VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`
	res, err := s.db.ExecContext(ctx, q, u.Firstname, u.Lastname, u.Email, u.PasswordHash, string(u.Role))
	if err != nil {
		if db.IsDuplicateKey(err) {
			return apperr.ErrDuplicateKey("email already registered")
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.UserID = id
	return nil
}

const selectUser = `
SELECT user_id, firstname, lastname, email, password_hash, role, created_at
FROM users`

func (s *MySQLStore) GetByEmail(ctx context.Context, email string) (*User, error) {
	return s.getOne(ctx, selectUser+` WHERE email = ? LIMIT 1`, email)
}

func (s *MySQLStore) GetByID(ctx context.Context, id int64) (*User, error) {
	return s.getOne(ctx, selectUser+` WHERE user_id = ? LIMIT 1`, id)
}

// 見つからない場合は (nil, nil)。判断はサービス層に任せる。
func (s *MySQLStore) getOne(ctx context.Context, q string, arg any) (*User, error) {
	var u User
	var role string
	err := s.db.QueryRowContext(ctx, q, arg).Scan(
		&u.UserID, &u.Firstname, &u.Lastname, &u.Email, &u.PasswordHash, &role, &u.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	u.Role = Role(role)
	return &u, nil
}

func (s *MySQLStore) UpdateProfile(ctx context.Context, id int64, firstname, lastname *string) error {
	sets := []string{}
	args := []any{}
	if firstname != nil {
		sets = append(sets, "firstname = ?")
		args = append(args, *firstname)
	}
	if lastname != nil {
		sets = append(sets, "lastname = ?")
		args = append(args, *lastname)
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, id)

	q := "UPDATE users SET " + strings.Join(sets, ", ") + " WHERE user_id = ?"
	_, err := s.db.ExecContext(ctx, q, args...)
	return err
}

// DeleteByEmail は借出記録ごとユーザーを消す。
// カスケードはORM任せにせず、同一Tx内で明示的にDELETEを発行する。
func (s *MySQLStore) DeleteByEmail(ctx context.Context, email string) error {
	return db.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx db.DBTX) error {
		var id int64
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM users WHERE email = ? FOR UPDATE`, email).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return apperr.ErrNotFound("user not found")
		}
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM borrow_records WHERE user_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM users WHERE user_id = ?`, id)
		return err
	})
}

func (s *MySQLStore) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, selectUser+` ORDER BY user_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []User{}
	for rows.Next() {
		var u User
		var role string
		if err := rows.Scan(&u.UserID, &u.Firstname, &u.Lastname, &u.Email, &u.PasswordHash, &role, &u.CreatedAt); err != nil {
			return nil, err
		}
		u.Role = Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}
