package users

import "time"

// 会員登録リクエスト
type RegisterRequest struct {
	Firstname string `json:"firstname" binding:"required"`
	Lastname  string `json:"lastname" binding:"required"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// プロフィール更新（部分更新）
type UpdateProfileRequest struct {
	Firstname *string `json:"firstname,omitempty"`
	Lastname  *string `json:"lastname,omitempty"`
}

type UserResponse struct {
	UserID    int64     `json:"user_id"`
	Firstname string    `json:"firstname"`
	Lastname  string    `json:"lastname"`
	Email     string    `json:"email"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// SessionResponse: login / register 成功時のレスポンス
type SessionResponse struct {
	Token string       `json:"token"`
	User  UserResponse `json:"user"`
}

// Profile はセッション層へ渡す公開射影。パスワードハッシュは含めない。
func (u *User) Profile() UserResponse {
	return UserResponse{
		UserID:    u.UserID,
		Firstname: u.Firstname,
		Lastname:  u.Lastname,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}
