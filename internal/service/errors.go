package service

import "errors"

// 业务层通用错误，handler 根据错误类型映射到合适的 HTTP 状态码。
var (
	ErrUsernameTaken      = errors.New("username taken")
	ErrEmailTaken         = errors.New("email taken")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrTokenNotFound      = errors.New("token not found")
	ErrTokenRevoked       = errors.New("token already revoked")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("forbidden")
	ErrUnknownRole        = errors.New("unknown role")
	ErrMessageNotFound    = errors.New("message not found")
	ErrEmptyBody          = errors.New("empty message body")
)
