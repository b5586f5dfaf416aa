package ledger

import (
	"context"
	"crypto/rand"
	"database/sql"
	"time"

	ulid "github.com/oklog/ulid/v2"

	"LIBRIS-backend/internal/catalog/books"
	"LIBRIS-backend/internal/platform/apperr"
)

// -------------- Clock & ID --------------

type Clock interface{ Now() time.Time }
type realClock struct{}

// 記録のタイムスタンプは秒精度で揃える
func (realClock) Now() time.Time { return time.Now().UTC().Truncate(time.Second) }

type IDGen interface{ NewULID(t time.Time) string }
type ulidGen struct{}

func (ulidGen) NewULID(t time.Time) string {
	entropy := ulid.Monotonic(rand.Reader, 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

// -------------- Service --------------

// Service が外部呼び出し側（webルート）へ見せる台帳のファサード。
// どの操作も呼び出し元ユーザーIDを明示的な引数で受け取る。
type Service struct {
	store Store
	clock Clock
	id    IDGen
}

func NewService(d *sql.DB) *Service {
	return &Service{
		store: NewStore(d),
		clock: realClock{},
		id:    ulidGen{},
	}
}

// Borrow は userID に title の本を1冊貸し出す。
// 失敗種別: NOT_FOUND / ALREADY_BORROWED / OUT_OF_STOCK / CONTENTION
func (s *Service) Borrow(ctx context.Context, userID int64, title string) (*BorrowResponse, error) {
	title = books.NormalizeTitle(title)
	if title == "" {
		return nil, apperr.ErrInvalid("title is required")
	}
	if userID <= 0 {
		return nil, apperr.ErrInvalid("user id is required")
	}

	now := s.clock.Now()
	rec := &BorrowRecord{
		BorrowULID: s.id.NewULID(now),
		UserID:     userID,
		BorrowedAt: now,
	}
	if err := s.store.Borrow(ctx, title, rec); err != nil {
		return nil, err
	}

	resp := buildBorrowResponse(rec, title)
	return &resp, nil
}

// ReturnBook は userID が借りている title の本を返却する。
// 失敗種別: NOT_FOUND / NOT_BORROWED / CONTENTION
func (s *Service) ReturnBook(ctx context.Context, userID int64, title string) (*BorrowResponse, error) {
	title = books.NormalizeTitle(title)
	if title == "" {
		return nil, apperr.ErrInvalid("title is required")
	}
	if userID <= 0 {
		return nil, apperr.ErrInvalid("user id is required")
	}

	rec, err := s.store.Return(ctx, title, userID, s.clock.Now())
	if err != nil {
		return nil, err
	}

	resp := buildBorrowResponse(rec, title)
	return &resp, nil
}

// Outstanding は未返却の借出だけを新しい順に返す。
func (s *Service) Outstanding(ctx context.Context, userID int64) ([]BorrowResponse, error) {
	return s.list(ctx, userID, true)
}

// History は返却済みも含めた全履歴を新しい順に返す。
func (s *Service) History(ctx context.Context, userID int64) ([]BorrowResponse, error) {
	return s.list(ctx, userID, false)
}

func (s *Service) list(ctx context.Context, userID int64, onlyOutstanding bool) ([]BorrowResponse, error) {
	if userID <= 0 {
		return nil, apperr.ErrInvalid("user id is required")
	}
	rows, err := s.store.ListByUser(ctx, userID, onlyOutstanding)
	if err != nil {
		return nil, err
	}
	out := make([]BorrowResponse, 0, len(rows))
	for i := range rows {
		out = append(out, buildBorrowResponse(&rows[i].BorrowRecord, rows[i].Title))
	}
	return out, nil
}
