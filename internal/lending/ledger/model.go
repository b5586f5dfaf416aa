package ledger

import (
	"database/sql"
	"time"
)

// Status は借出記録の状態。outstanding → returned の一方向にしか進まない。
// （旧実装の 'false'/'true' 文字列センチネルは持ち込まない）
type Status string

const (
	StatusOutstanding Status = "outstanding"
	StatusReturned    Status = "returned"
)

// BorrowRecord は borrow_records テーブルの1行を表す。
// 同一 (user, book) で outstanding な行は常に高々1つ。
type BorrowRecord struct {
	BorrowID   int64
	BorrowULID string
	BookID     int64
	UserID     int64
	Status     Status
	BorrowedAt time.Time
	ReturnedAt sql.NullTime
}

// HistoryRow は一覧表示用に books をJOINした行。
type HistoryRow struct {
	BorrowRecord
	Title string
}
