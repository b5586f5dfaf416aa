package books

import "time"

// 蔵書登録リクエスト。既存タイトルなら補充（quantity加算）になる。
type CreateBookRequest struct {
	Title      string `json:"title" binding:"required"`
	Author     string `json:"author" binding:"required"`
	ISBN       string `json:"isbn" binding:"required"`
	CategoryID int64  `json:"category_id" binding:"required"`
	Quantity   int    `json:"quantity" binding:"required"`
}

// 蔵書編集（部分更新）。quantity はここでは触らせない。
// 在庫数は補充(create)と貸出・返却だけが動かす。
type UpdateBookRequest struct {
	Title      *string `json:"title,omitempty"`
	Author     *string `json:"author,omitempty"`
	ISBN       *string `json:"isbn,omitempty"`
	CategoryID *int64  `json:"category_id,omitempty"`
}

// 在庫数の増減。delta=0 は無効。
type AdjustQuantityRequest struct {
	Delta int `json:"delta" binding:"required"`
}

type BookResponse struct {
	BookID     int64     `json:"book_id"`
	Title      string    `json:"title"`
	Author     string    `json:"author"`
	ISBN       string    `json:"isbn"`
	CategoryID int64     `json:"category_id"`
	Quantity   int       `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

func buildBookResponse(b *Book) BookResponse {
	return BookResponse{
		BookID:     b.BookID,
		Title:      b.Title,
		Author:     b.Author,
		ISBN:       b.ISBN,
		CategoryID: b.CategoryID,
		Quantity:   b.Quantity,
		CreatedAt:  b.CreatedAt,
	}
}
