package books

import (
	"context"
	"database/sql"
	"strings"

	"golang.org/x/text/unicode/norm"

	"LIBRIS-backend/internal/platform/apperr"
)

type Service struct {
	store Store
}

func NewService(d *sql.DB) *Service {
	return &Service{store: NewStore(d)}
}

// Create は蔵書を登録する。既存タイトルなら補充（quantity加算）。
// 戻り値の bool は新規作成かどうか。
func (s *Service) Create(ctx context.Context, in CreateBookRequest) (*Book, bool, error) {
	title := NormalizeTitle(in.Title)
	if title == "" {
		return nil, false, apperr.ErrInvalid("title is required")
	}
	if strings.TrimSpace(in.Author) == "" || strings.TrimSpace(in.ISBN) == "" {
		return nil, false, apperr.ErrInvalid("author and isbn are required")
	}
	if in.CategoryID <= 0 {
		return nil, false, apperr.ErrInvalid("category_id is required")
	}
	if in.Quantity <= 0 {
		return nil, false, apperr.ErrInvalid("quantity must be > 0")
	}

	b := &Book{
		Title:      title,
		Author:     strings.TrimSpace(in.Author),
		ISBN:       strings.TrimSpace(in.ISBN),
		CategoryID: in.CategoryID,
		Quantity:   in.Quantity,
	}
	created, err := s.store.CreateOrRestock(ctx, b)
	if err != nil {
		return nil, false, err
	}
	return b, created, nil
}

func (s *Service) GetByTitle(ctx context.Context, title string) (*Book, error) {
	b, err := s.store.GetByTitle(ctx, NormalizeTitle(title))
	if err != nil {
		return nil, err
	}
	if b == nil {
		return nil, apperr.ErrNotFound("book not found")
	}
	return b, nil
}

func (s *Service) List(ctx context.Context) ([]Book, error) {
	return s.store.List(ctx)
}

// AdjustQuantity は在庫数を delta だけ動かす。貸出・返却は台帳側が
// 自前のトランザクション内で在庫を動かすので、ここは補充・棚卸し用。
func (s *Service) AdjustQuantity(ctx context.Context, bookID int64, delta int) error {
	if bookID <= 0 {
		return apperr.ErrInvalid("book_id must be > 0")
	}
	if delta == 0 {
		return apperr.ErrInvalid("delta must not be 0")
	}
	return s.store.AdjustQuantity(ctx, bookID, delta)
}

func (s *Service) Update(ctx context.Context, title string, in UpdateBookRequest) (*Book, error) {
	if in.Title != nil {
		t := NormalizeTitle(*in.Title)
		if t == "" {
			return nil, apperr.ErrInvalid("title must not be empty")
		}
		in.Title = &t
	}
	if in.CategoryID != nil && *in.CategoryID <= 0 {
		return nil, apperr.ErrInvalid("category_id must be > 0")
	}
	return s.store.UpdateByTitle(ctx, NormalizeTitle(title), in)
}

func (s *Service) Delete(ctx context.Context, title string) error {
	return s.store.DeleteByTitle(ctx, NormalizeTitle(title))
}

// NormalizeTitle はタイトルを検索キーとして安定させる。
// クライアントが送ってくるUnicode正規形に依存しないよう NFC に揃える。
func NormalizeTitle(title string) string {
	return norm.NFC.String(strings.TrimSpace(title))
}
