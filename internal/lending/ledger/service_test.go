package ledger

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRIS-backend/internal/platform/apperr"
)

// memStore は Store の原子性契約をメモリ上で再現する。
// Mutexで全体を直列化するので、MySQL実装の行ロックと同じ可視性になる。
type memBook struct {
	id       int64
	quantity int
}

type memStore struct {
	mu    sync.Mutex
	books map[string]*memBook
	seq   int64
	recs  []BorrowRecord
}

func newMemStore() *memStore {
	return &memStore{books: map[string]*memBook{}}
}

func (m *memStore) addBook(title string, quantity int) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	m.books[title] = &memBook{id: m.seq, quantity: quantity}
	return m.seq
}

func (m *memStore) quantityOf(title string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.books[title].quantity
}

func (m *memStore) Borrow(_ context.Context, title string, rec *BorrowRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[title]
	if !ok {
		return apperr.ErrNotFound("book not found")
	}
	for i := range m.recs {
		r := &m.recs[i]
		if r.BookID == b.id && r.UserID == rec.UserID && r.Status == StatusOutstanding {
			return apperr.ErrAlreadyBorrowed()
		}
	}
	if b.quantity <= 0 {
		return apperr.ErrOutOfStock()
	}

	b.quantity--
	m.seq++
	rec.BorrowID = m.seq
	rec.BookID = b.id
	rec.Status = StatusOutstanding
	m.recs = append(m.recs, *rec)
	return nil
}

func (m *memStore) Return(_ context.Context, title string, userID int64, returnedAt time.Time) (*BorrowRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.books[title]
	if !ok {
		return nil, apperr.ErrNotFound("book not found")
	}
	for i := range m.recs {
		r := &m.recs[i]
		if r.BookID == b.id && r.UserID == userID && r.Status == StatusOutstanding {
			r.Status = StatusReturned
			r.ReturnedAt = sql.NullTime{Time: returnedAt, Valid: true}
			b.quantity++
			cp := *r
			return &cp, nil
		}
	}
	return nil, apperr.ErrNotBorrowed()
}

func (m *memStore) ListByUser(_ context.Context, userID int64, onlyOutstanding bool) ([]HistoryRow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	titleOf := map[int64]string{}
	for t, b := range m.books {
		titleOf[b.id] = t
	}

	out := []HistoryRow{}
	for _, r := range m.recs {
		if r.UserID != userID {
			continue
		}
		if onlyOutstanding && r.Status != StatusOutstanding {
			continue
		}
		out = append(out, HistoryRow{BorrowRecord: r, Title: titleOf[r.BookID]})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].BorrowedAt.Equal(out[j].BorrowedAt) {
			return out[i].BorrowedAt.After(out[j].BorrowedAt)
		}
		return out[i].BorrowID > out[j].BorrowID
	})
	return out, nil
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t.UTC().Truncate(time.Second) }

func newTestService(st Store) *Service {
	return &Service{
		store: st,
		clock: fixedClock{t: time.Date(2024, 5, 1, 12, 0, 0, 500_000_000, time.UTC)},
		id:    ulidGen{},
	}
}

func TestBorrow(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 2)
	svc := newTestService(st)
	ctx := context.Background()

	res, err := svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)
	assert.Equal(t, StatusOutstanding, res.Status)
	assert.Equal(t, "Dune", res.Title)
	assert.NotEmpty(t, res.BorrowULID)
	assert.Nil(t, res.ReturnedAt)
	assert.Equal(t, 1, st.quantityOf("Dune"))

	// タイムスタンプは秒精度
	assert.Equal(t, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC), res.BorrowedAt)
}

func TestBorrow_UnknownTitle(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.Borrow(context.Background(), 1, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestBorrow_TwiceWithoutReturn(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 5)
	svc := newTestService(st)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)

	// 在庫が残っていても二重借りは弾く。在庫は1回分しか減らない。
	_, err = svc.Borrow(ctx, 1, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeAlreadyBorrowed))
	assert.Equal(t, 4, st.quantityOf("Dune"))
}

func TestBorrow_OutOfStock(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 0)
	svc := newTestService(st)

	_, err := svc.Borrow(context.Background(), 1, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeOutOfStock))

	// 記録も作られていないこと
	list, err := svc.History(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestReturn_RestoresQuantityExactly(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 3)
	svc := newTestService(st)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 2, st.quantityOf("Dune"))

	res, err := svc.ReturnBook(ctx, 1, "Dune")
	require.NoError(t, err)
	assert.Equal(t, StatusReturned, res.Status)
	require.NotNil(t, res.ReturnedAt)
	assert.Equal(t, 3, st.quantityOf("Dune"), "borrow then return restores quantity exactly")

	// 返却後はもう一度借りられる
	_, err = svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)
}

func TestReturn_NotBorrowed(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 1)
	svc := newTestService(st)
	ctx := context.Background()

	_, err := svc.ReturnBook(ctx, 1, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeNotBorrowed))
	assert.Equal(t, 1, st.quantityOf("Dune"))

	// 返却済みをもう一度返すのも同じ失敗種別
	_, err = svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, 1, "Dune")
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, 1, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeNotBorrowed))
	assert.Equal(t, 1, st.quantityOf("Dune"))
}

func TestReturn_UnknownTitle(t *testing.T) {
	svc := newTestService(newMemStore())
	_, err := svc.ReturnBook(context.Background(), 1, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestValidation(t *testing.T) {
	svc := newTestService(newMemStore())
	ctx := context.Background()

	_, err := svc.Borrow(ctx, 1, "   ")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	_, err = svc.Borrow(ctx, 0, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	_, err = svc.ReturnBook(ctx, 0, "Dune")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
	_, err = svc.Outstanding(ctx, 0)
	assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
}

// 蔵書 "Dune" quantity=2 のシナリオ:
// A借→1, B借→0, A返→1(Aの記録はreturned), C借→0
func TestDuneScenario(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 2)
	svc := newTestService(st)
	ctx := context.Background()

	const (
		userA int64 = 1
		userB int64 = 2
		userC int64 = 3
	)

	_, err := svc.Borrow(ctx, userA, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 1, st.quantityOf("Dune"))

	_, err = svc.Borrow(ctx, userB, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 0, st.quantityOf("Dune"))

	_, err = svc.ReturnBook(ctx, userA, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 1, st.quantityOf("Dune"))

	aHist, err := svc.History(ctx, userA)
	require.NoError(t, err)
	require.Len(t, aHist, 1)
	assert.Equal(t, StatusReturned, aHist[0].Status)

	_, err = svc.Borrow(ctx, userC, "Dune")
	require.NoError(t, err)
	assert.Equal(t, 0, st.quantityOf("Dune"))

	bOut, err := svc.Outstanding(ctx, userB)
	require.NoError(t, err)
	require.Len(t, bOut, 1)
	assert.Equal(t, StatusOutstanding, bOut[0].Status)
}

// 在庫1冊に対して別ユーザーがN並列で借りに来る:
// ちょうど1人だけ成功し、残りは OUT_OF_STOCK。最終在庫は0。
func TestConcurrentBorrow_SingleCopy(t *testing.T) {
	const n = 32

	st := newMemStore()
	st.addBook("Dune", 1)
	svc := newTestService(st)
	ctx := context.Background()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, int64(i+1), "Dune")
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		switch {
		case err == nil:
			success++
		case apperr.Is(err, apperr.CodeOutOfStock):
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 0, st.quantityOf("Dune"))
}

// 同一ユーザー・同一タイトルへの並列borrow: 成功は高々1回。
func TestConcurrentBorrow_SameUser(t *testing.T) {
	const n = 16

	st := newMemStore()
	st.addBook("Dune", 10)
	svc := newTestService(st)
	ctx := context.Background()

	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Borrow(ctx, 1, "Dune")
		}(i)
	}
	wg.Wait()

	success := 0
	for _, err := range errs {
		if err == nil {
			success++
		} else {
			assert.True(t, apperr.Is(err, apperr.CodeAlreadyBorrowed))
		}
	}
	assert.Equal(t, 1, success)
	assert.Equal(t, 9, st.quantityOf("Dune"), "quantity decremented exactly once")
}

func TestHistoryOrdering(t *testing.T) {
	st := newMemStore()
	st.addBook("Dune", 1)
	st.addBook("SPQR", 1)
	svc := newTestService(st)
	ctx := context.Background()

	_, err := svc.Borrow(ctx, 1, "Dune")
	require.NoError(t, err)
	_, err = svc.Borrow(ctx, 1, "SPQR")
	require.NoError(t, err)
	_, err = svc.ReturnBook(ctx, 1, "Dune")
	require.NoError(t, err)

	all, err := svc.History(ctx, 1)
	require.NoError(t, err)
	require.Len(t, all, 2)
	// 同時刻（fixed clock）なので borrow_id 降順 = 新しい順
	assert.Equal(t, "SPQR", all[0].Title)
	assert.Equal(t, "Dune", all[1].Title)

	out, err := svc.Outstanding(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "SPQR", out[0].Title)
}
