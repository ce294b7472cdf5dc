// Package errors provides the error taxonomy shared by the query cache,
// the mutation layer and the API transport. Every failure is mapped onto a
// Class which decides whether a fetch may be retried.
//
// Package errors 提供查询缓存、变更层和API传输层共享的错误分类。
// 每个失败都会被映射到一个Class，由它决定请求是否可以重试。
package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"
)

// Standard errors that can be returned by the cache.
//
// 缓存可能返回的标准错误。
var (
	// ErrClosed is returned when an operation is performed on a closed client.
	// 当对已关闭的客户端执行操作时返回ErrClosed。
	ErrClosed = errors.New("cache: client is closed")

	// ErrCleared is delivered to waiters whose fetch was dropped by Clear.
	// 当请求被Clear丢弃时，等待者收到ErrCleared。
	ErrCleared = errors.New("cache: cache was cleared")

	// ErrNoLoader is returned when no fetch function is bound to a key.
	// 当没有为键绑定获取函数时返回ErrNoLoader。
	ErrNoLoader = errors.New("cache: no loader bound to key")

	// ErrInvalidKey is returned for an empty or malformed query key.
	// 当查询键为空或格式错误时返回ErrInvalidKey。
	ErrInvalidKey = errors.New("cache: invalid query key")

	// ErrDisabled is returned when fetching a key whose query is disabled.
	// 当获取被禁用的查询时返回ErrDisabled。
	ErrDisabled = errors.New("cache: query is disabled")
)

// Class is the retry-relevant category of a failure.
//
// Class 是与重试相关的失败类别。
type Class int

const (
	// ClassUnknown is retried once, then terminal.
	ClassUnknown Class = iota
	// ClassAuth is an expired or missing credential (401/403).
	ClassAuth
	// ClassNotFound is terminal (404).
	ClassNotFound
	// ClassValidation is any other 4xx; terminal.
	ClassValidation
	// ClassRateLimited is 429; retried with a larger delay.
	ClassRateLimited
	// ClassServer is 5xx; retried up to the bound.
	ClassServer
	// ClassNetwork covers transport failures and timeouts; retried up to the bound.
	ClassNetwork
)

var classNames = map[Class]string{
	ClassUnknown:     "unknown",
	ClassAuth:        "auth",
	ClassNotFound:    "not_found",
	ClassValidation:  "validation",
	ClassRateLimited: "rate_limited",
	ClassServer:      "server",
	ClassNetwork:     "network",
}

// String returns the metric-friendly name of the class.
func (c Class) String() string {
	if name, ok := classNames[c]; ok {
		return name
	}
	return fmt.Sprintf("class(%d)", int(c))
}

// Retryable reports whether the class may be retried at all.
// Auth is retryable only through a credential refresh, decided by the caller.
//
// Retryable 判断该类别是否允许重试。
func (c Class) Retryable() bool {
	switch c {
	case ClassServer, ClassNetwork, ClassRateLimited, ClassUnknown:
		return true
	}
	return false
}

// Classify maps an HTTP status code to a Class.
// Codes below 400 classify as ClassUnknown.
//
// Classify 将HTTP状态码映射为Class。
//
// Parameters:
//   - status: The HTTP status code
//
// Returns:
//   - Class: The failure class
func Classify(status int) Class {
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ClassAuth
	case status == http.StatusNotFound:
		return ClassNotFound
	case status == http.StatusTooManyRequests:
		return ClassRateLimited
	case status == http.StatusRequestTimeout:
		return ClassNetwork
	case status >= 500:
		return ClassServer
	case status >= 400:
		return ClassValidation
	}
	return ClassUnknown
}

// APIError is a classified failure returned by the remote API or its transport.
//
// APIError 是远程API或其传输层返回的已分类失败。
type APIError struct {
	Class      Class         // Failure class / 失败类别
	StatusCode int           // HTTP status, 0 for transport failures / HTTP状态码，传输失败时为0
	Op         string        // Operation, e.g. "GET /questions/1" / 操作
	Message    string        // Server supplied message / 服务器返回的消息
	RetryAfter time.Duration // Server supplied backoff hint / 服务器建议的退避时间
	Err        error         // Underlying cause / 底层原因
}

// Error returns the error message.
// It implements the error interface.
//
// Error 返回错误消息。
func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.StatusCode > 0 {
		return fmt.Sprintf("%s: %s error (%d): %s", e.Op, e.Class, e.StatusCode, msg)
	}
	return fmt.Sprintf("%s: %s error: %s", e.Op, e.Class, msg)
}

// Unwrap returns the underlying error.
func (e *APIError) Unwrap() error {
	return e.Err
}

// FromStatus builds an APIError for an HTTP response status.
//
// FromStatus 根据HTTP响应状态码构建APIError。
//
// Parameters:
//   - op: The operation that failed
//   - status: The HTTP status code
//   - message: The server message, may be empty
//
// Returns:
//   - *APIError: A classified error
func FromStatus(op string, status int, message string) *APIError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &APIError{Class: Classify(status), StatusCode: status, Op: op, Message: message}
}

// Network wraps a transport failure as a network-class error.
//
// Network 将传输失败包装为网络类错误。
func Network(op string, err error) *APIError {
	return &APIError{Class: ClassNetwork, Op: op, Err: err}
}

// Validation builds a validation-class error that never reached the server.
func Validation(op string, err error) *APIError {
	return &APIError{Class: ClassValidation, Op: op, Err: err}
}

// ClassOf returns the class of err.
// APIError carries its own class; deadlines and net.Error values are
// network-class; everything else is unknown.
//
// ClassOf 返回err的类别。
//
// Parameters:
//   - err: The error to classify
//
// Returns:
//   - Class: The failure class
func ClassOf(err error) Class {
	if err == nil {
		return ClassUnknown
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Class
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ClassNetwork
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return ClassNetwork
	}
	return ClassUnknown
}

// RetryAfterOf returns the server backoff hint carried by err, if any.
func RetryAfterOf(err error) time.Duration {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.RetryAfter
	}
	return 0
}

// KeyError represents an error related to a specific query key.
// It wraps an underlying error with the key that caused the error.
//
// KeyError 表示与特定查询键相关的错误。
type KeyError struct {
	Key string // Canonical key / 规范化键
	Err error  // The underlying error / 底层错误
}

// Error returns the error message.
func (e *KeyError) Error() string {
	return fmt.Sprintf("%s: %s", e.Key, e.Err)
}

// Unwrap returns the underlying error.
func (e *KeyError) Unwrap() error {
	return e.Err
}

// NewKeyError creates a new KeyError.
//
// NewKeyError 创建一个新的KeyError。
func NewKeyError(key string, err error) *KeyError {
	return &KeyError{Key: key, Err: err}
}

// IsAuth reports whether err is an auth-class failure.
func IsAuth(err error) bool { return err != nil && ClassOf(err) == ClassAuth }

// IsNotFound reports whether err is a not-found failure.
func IsNotFound(err error) bool { return err != nil && ClassOf(err) == ClassNotFound }

// IsValidation reports whether err is a validation failure.
func IsValidation(err error) bool { return err != nil && ClassOf(err) == ClassValidation }

// IsRateLimited reports whether err is a rate-limit failure.
func IsRateLimited(err error) bool { return err != nil && ClassOf(err) == ClassRateLimited }

// IsServer reports whether err is a server failure.
func IsServer(err error) bool { return err != nil && ClassOf(err) == ClassServer }

// IsNetwork reports whether err is a transport or timeout failure.
func IsNetwork(err error) bool { return err != nil && ClassOf(err) == ClassNetwork }

// IsClosed returns true if the error indicates that the client is closed.
//
// IsClosed 如果错误表示客户端已关闭，则返回true。
func IsClosed(err error) bool {
	return errors.Is(err, ErrClosed)
}

// IsCleared reports whether a fetch was dropped by Clear.
func IsCleared(err error) bool {
	return errors.Is(err, ErrCleared)
}
