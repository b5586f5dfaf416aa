package books

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"LIBRIS-backend/internal/platform/apperr"
)

// fakeStore は MySQL 実装と同じ意味論（補充・unique制約・負在庫ガード）を
// メモリ上で再現する。
type fakeStore struct {
	mu      sync.Mutex
	seq     int64
	byTitle map[string]*Book
}

func newFakeStore() *fakeStore {
	return &fakeStore{byTitle: map[string]*Book{}}
}

func (f *fakeStore) CreateOrRestock(_ context.Context, b *Book) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if existing, ok := f.byTitle[b.Title]; ok {
		existing.Quantity += b.Quantity
		*b = *existing
		return false, nil
	}
	for _, other := range f.byTitle {
		if other.ISBN == b.ISBN {
			return false, apperr.ErrDuplicateKey("isbn already registered for another title")
		}
	}
	f.seq++
	b.BookID = f.seq
	b.CreatedAt = time.Now().UTC()
	cp := *b
	f.byTitle[b.Title] = &cp
	return true, nil
}

func (f *fakeStore) GetByTitle(_ context.Context, title string) (*Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b, ok := f.byTitle[title]; ok {
		cp := *b
		return &cp, nil
	}
	return nil, nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byTitle {
		if b.BookID == id {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) List(_ context.Context) ([]Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []Book{}
	for _, b := range f.byTitle {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeStore) AdjustQuantity(_ context.Context, bookID int64, delta int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.byTitle {
		if b.BookID == bookID {
			if b.Quantity+delta < 0 {
				return apperr.ErrConflict("quantity would become negative")
			}
			b.Quantity += delta
			return nil
		}
	}
	return apperr.ErrNotFound("book not found")
}

func (f *fakeStore) UpdateByTitle(_ context.Context, title string, in UpdateBookRequest) (*Book, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.byTitle[title]
	if !ok {
		return nil, apperr.ErrNotFound("book not found")
	}
	if in.Title != nil && *in.Title != title {
		if _, taken := f.byTitle[*in.Title]; taken {
			return nil, apperr.ErrDuplicateKey("title or isbn already registered")
		}
		delete(f.byTitle, title)
		b.Title = *in.Title
		f.byTitle[b.Title] = b
	}
	if in.Author != nil {
		b.Author = *in.Author
	}
	if in.ISBN != nil {
		b.ISBN = *in.ISBN
	}
	if in.CategoryID != nil {
		b.CategoryID = *in.CategoryID
	}
	cp := *b
	return &cp, nil
}

func (f *fakeStore) DeleteByTitle(_ context.Context, title string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byTitle[title]; !ok {
		return apperr.ErrNotFound("book not found")
	}
	delete(f.byTitle, title)
	return nil
}

func newTestService() (*Service, *fakeStore) {
	st := newFakeStore()
	return &Service{store: st}, st
}

func TestCreate_NewBook(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	b, created, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", CategoryID: 1, Quantity: 2,
	})
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, 2, b.Quantity)
	assert.NotZero(t, b.BookID)
}

func TestCreate_RestockExistingTitle(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, _, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", CategoryID: 1, Quantity: 2,
	})
	require.NoError(t, err)

	// 同タイトル再登録は補充になる。著者などは元の値が残る。
	again, created, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "Someone Else", ISBN: "0000000000000", CategoryID: 9, Quantity: 3,
	})
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, first.BookID, again.BookID)
	assert.Equal(t, 5, again.Quantity)
	assert.Equal(t, "Frank Herbert", again.Author)
}

func TestCreate_ISBNCollision(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "Frank Herbert", ISBN: "9780441013593", CategoryID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	_, _, err = svc.Create(ctx, CreateBookRequest{
		Title: "Not Dune", Author: "Anon", ISBN: "9780441013593", CategoryID: 1, Quantity: 1,
	})
	assert.True(t, apperr.Is(err, apperr.CodeDuplicateKey))
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	tests := []struct {
		name string
		in   CreateBookRequest
	}{
		{"empty_title", CreateBookRequest{Title: "  ", Author: "a", ISBN: "i", CategoryID: 1, Quantity: 1}},
		{"empty_author", CreateBookRequest{Title: "t", Author: " ", ISBN: "i", CategoryID: 1, Quantity: 1}},
		{"zero_quantity", CreateBookRequest{Title: "t", Author: "a", ISBN: "i", CategoryID: 1, Quantity: 0}},
		{"no_category", CreateBookRequest{Title: "t", Author: "a", ISBN: "i", Quantity: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := svc.Create(ctx, tt.in)
			assert.True(t, apperr.Is(err, apperr.CodeInvalidArgument))
		})
	}
}

func TestTitleNormalization(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// NFD（結合文字）で登録して NFC で引けること
	decomposed := "Cafe\u0301" // 結合文字つき
	composed := "Caf\u00e9"

	_, _, err := svc.Create(ctx, CreateBookRequest{
		Title: decomposed, Author: "a", ISBN: "i1", CategoryID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	b, err := svc.GetByTitle(ctx, composed)
	require.NoError(t, err)
	assert.Equal(t, composed, b.Title)
}

func TestGetByTitle_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetByTitle(context.Background(), "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))
}

func TestAdjustQuantity(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()

	b, _, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "a", ISBN: "i", CategoryID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	require.NoError(t, svc.AdjustQuantity(ctx, b.BookID, -1))

	// 0 → -1 は弾かれ、在庫は変わらない
	err = svc.AdjustQuantity(ctx, b.BookID, -1)
	assert.True(t, apperr.Is(err, apperr.CodeConflict))
	got, _ := st.GetByID(ctx, b.BookID)
	assert.Equal(t, 0, got.Quantity)

	assert.True(t, apperr.Is(svc.AdjustQuantity(ctx, b.BookID, 0), apperr.CodeInvalidArgument))
	assert.True(t, apperr.Is(svc.AdjustQuantity(ctx, 999, 1), apperr.CodeNotFound))
}

func TestUpdateAndDelete(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, _, err := svc.Create(ctx, CreateBookRequest{
		Title: "Dune", Author: "a", ISBN: "i", CategoryID: 1, Quantity: 1,
	})
	require.NoError(t, err)

	author := "Frank Herbert"
	b, err := svc.Update(ctx, "Dune", UpdateBookRequest{Author: &author})
	require.NoError(t, err)
	assert.Equal(t, "Frank Herbert", b.Author)

	_, err = svc.Update(ctx, "missing", UpdateBookRequest{Author: &author})
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	require.NoError(t, svc.Delete(ctx, "Dune"))
	assert.True(t, apperr.Is(svc.Delete(ctx, "Dune"), apperr.CodeNotFound))
}
