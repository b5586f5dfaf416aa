package ledger

import "time"

// 貸出・返却リクエスト。呼び出し元ユーザーは認証済みトークンから取り、
// リクエストボディには載せない。
type BorrowRequest struct {
	Title string `json:"title" binding:"required"`
}

type ReturnRequest struct {
	Title string `json:"title" binding:"required"`
}

type BorrowResponse struct {
	BorrowID   int64      `json:"borrow_id"`
	BorrowULID string     `json:"borrow_ulid"`
	Title      string     `json:"title"`
	Status     Status     `json:"status"`
	BorrowedAt time.Time  `json:"borrowed_at"`
	ReturnedAt *time.Time `json:"returned_at,omitempty"`
}

func buildBorrowResponse(rec *BorrowRecord, title string) BorrowResponse {
	resp := BorrowResponse{
		BorrowID:   rec.BorrowID,
		BorrowULID: rec.BorrowULID,
		Title:      title,
		Status:     rec.Status,
		BorrowedAt: rec.BorrowedAt,
	}
	if rec.ReturnedAt.Valid {
		val := rec.ReturnedAt.Time
		resp.ReturnedAt = &val
	}
	return resp
}
