package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// 失敗種別。catalog / membership / ledger で共通に使う。
// （パッケージごとに同型のエラーモデルを複製しない）
type Code string

const (
	CodeInvalidArgument    Code = "INVALID_ARGUMENT"
	CodeNotFound           Code = "NOT_FOUND"
	CodeDuplicateKey       Code = "DUPLICATE_KEY"       // unique制約違反（email / title / isbn / name）
	CodeAlreadyBorrowed    Code = "ALREADY_BORROWED"    // 同一 (user, book) の未返却レコードあり
	CodeOutOfStock         Code = "OUT_OF_STOCK"        // quantity == 0
	CodeNotBorrowed        Code = "NOT_BORROWED"        // 未返却レコードなし（未貸出・返却済みを区別しない）
	CodeInvalidCredentials Code = "INVALID_CREDENTIALS" // email不明とパスワード誤りを区別しない
	CodeContention         Code = "CONTENTION"          // リトライ上限までにトランザクションを直列化できなかった
	CodeConflict           Code = "CONFLICT"            // 在庫が負になる等の状態違反
	CodeInternal           Code = "INTERNAL"
)

type APIError struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func ErrInvalid(msg string) *APIError      { return &APIError{Code: CodeInvalidArgument, Message: msg} }
func ErrNotFound(msg string) *APIError     { return &APIError{Code: CodeNotFound, Message: msg} }
func ErrDuplicateKey(msg string) *APIError { return &APIError{Code: CodeDuplicateKey, Message: msg} }
func ErrConflict(msg string) *APIError     { return &APIError{Code: CodeConflict, Message: msg} }
func ErrInternal(msg string) *APIError     { return &APIError{Code: CodeInternal, Message: msg} }

func ErrAlreadyBorrowed() *APIError {
	return &APIError{Code: CodeAlreadyBorrowed, Message: "book already borrowed and not yet returned"}
}

func ErrOutOfStock() *APIError {
	return &APIError{Code: CodeOutOfStock, Message: "no copies available"}
}

func ErrNotBorrowed() *APIError {
	return &APIError{Code: CodeNotBorrowed, Message: "no outstanding borrow for this book"}
}

func ErrInvalidCredentials() *APIError {
	return &APIError{Code: CodeInvalidCredentials, Message: "email or password is incorrect"}
}

func ErrContention() *APIError {
	return &APIError{Code: CodeContention, Message: "could not serialize transaction, please retry"}
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	var api *APIError
	if errors.As(err, &api) {
		return api.Code == code
	}
	return false
}

func ToHTTPStatus(err error) int {
	var api *APIError
	if errors.As(err, &api) {
		switch api.Code {
		case CodeInvalidArgument:
			return http.StatusBadRequest
		case CodeNotFound:
			return http.StatusNotFound
		case CodeInvalidCredentials:
			return http.StatusUnauthorized
		case CodeDuplicateKey, CodeAlreadyBorrowed, CodeOutOfStock, CodeNotBorrowed, CodeConflict:
			return http.StatusConflict
		case CodeContention:
			// 呼び出し側がリクエストごと再試行する前提
			return http.StatusServiceUnavailable
		default:
			return http.StatusInternalServerError
		}
	}
	return http.StatusInternalServerError
}
