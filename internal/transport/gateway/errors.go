package gateway

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOrderNotFound = errors.New("order not found in gateway")
	// ErrUnknownStatus шлюз вернул статус, которого нет в словаре. Сверка откладывается.
	ErrUnknownStatus = errors.New("unknown gateway transaction status")
)

type StatusCodeError struct {
	Code int
}

func NewStatusCodeError(code int) *StatusCodeError {
	return &StatusCodeError{Code: code}
}

func (e *StatusCodeError) Error() string {
	return fmt.Sprintf("Unexpected status code %d", e.Code)
}

type TooManyRequestError struct {
	RetryAfter time.Duration
}

func NewTooManyRequestError(retryAfter time.Duration) *TooManyRequestError {
	return &TooManyRequestError{RetryAfter: retryAfter}
}

func (e *TooManyRequestError) Error() string {
	return fmt.Sprintf("Too many requests. Need retry after %.f seconds", e.RetryAfter.Seconds())
}
