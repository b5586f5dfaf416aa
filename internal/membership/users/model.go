package users

import "time"

// Role は閉じた列挙。自由文字列のロールは受け付けない。
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

func ParseRole(s string) (Role, bool) {
	r := Role(s)
	return r, r.Valid()
}

// User は users テーブルの1行を表す。
// セッション側に渡す形は Profile() で射影する（エンティティは1つだけ持つ）。
type User struct {
	UserID       int64
	Firstname    string
	Lastname     string
	Email        string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}
