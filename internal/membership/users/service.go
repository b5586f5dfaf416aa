package users

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"LIBRIS-backend/internal/platform/apperr"
)

type Service struct {
	store Store
}

func NewService(d *sql.DB) *Service {
	return &Service{store: NewStore(d)}
}

// Create は会員を登録する。ロールは常に user で作る（admin化はDB運用）。
func (s *Service) Create(ctx context.Context, firstname, lastname, email, password string) (*User, error) {
	firstname = strings.TrimSpace(firstname)
	lastname = strings.TrimSpace(lastname)
	email = normalizeEmail(email)

	if firstname == "" || lastname == "" {
		return nil, apperr.ErrInvalid("firstname and lastname are required")
	}
	if email == "" {
		return nil, apperr.ErrInvalid("email is required")
	}
	if len(password) < 8 {
		return nil, apperr.ErrInvalid("password must be at least 8 characters")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	u := &User{
		Firstname:    firstname,
		Lastname:     lastname,
		Email:        email,
		PasswordHash: string(hash),
		Role:         RoleUser,
	}
	if err := s.store.Insert(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// Authenticate は email とパスワードを検証する。
// 「emailが存在しない」と「パスワードが違う」は区別せず同じ失敗を返す
// （アカウント列挙をさせない）。
func (s *Service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.store.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrInvalidCredentials()
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, apperr.ErrInvalidCredentials()
	}
	return u, nil
}

func (s *Service) Get(ctx context.Context, userID int64) (*User, error) {
	u, err := s.store.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.ErrNotFound("user not found")
	}
	return u, nil
}

func (s *Service) UpdateProfile(ctx context.Context, userID int64, in UpdateProfileRequest) (*User, error) {
	if in.Firstname != nil && strings.TrimSpace(*in.Firstname) == "" {
		return nil, apperr.ErrInvalid("firstname must not be empty")
	}
	if in.Lastname != nil && strings.TrimSpace(*in.Lastname) == "" {
		return nil, apperr.ErrInvalid("lastname must not be empty")
	}

	// 先に存在確認（更新0行と未存在を区別するため）
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.store.UpdateProfile(ctx, userID, in.Firstname, in.Lastname); err != nil {
		return nil, err
	}
	return s.Get(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, email string) error {
	return s.store.DeleteByEmail(ctx, normalizeEmail(email))
}

func (s *Service) List(ctx context.Context) ([]User, error) {
	return s.store.List(ctx)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
