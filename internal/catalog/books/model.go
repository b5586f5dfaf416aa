package books

import "time"

// Book は books テーブルの1行を表す。
// quantity は「いま棚にある貸出可能な冊数」。貸出・返却以外の経路で
// 減らしてはいけない（補充は CreateOrRestock / AdjustQuantity 経由）。
type Book struct {
	BookID     int64
	Title      string
	Author     string
	ISBN       string
	CategoryID int64
	Quantity   int
	CreatedAt  time.Time
}
