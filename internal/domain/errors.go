package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key")
	ErrUnknown        = errors.New("unknown error")

	ErrForbidden = errors.New("forbidden")
	// ErrConflict конкурентный переход уже применен. Сервисы трактуют его как успешный no-op.
	ErrConflict = errors.New("concurrent transition already applied")
	// ErrLedgerIntegrity попытка нарушить инвариант баланса. Прерывает всю транзакцию.
	ErrLedgerIntegrity = errors.New("ledger integrity violation")

	ErrValidation = errors.New("validation failed")
	ErrGateway    = errors.New("payment gateway error")
)

// Причины ошибок валидации. Используются вместе с ValidationError.
var (
	ErrInvalidAmount          = errors.New("invalid amount")
	ErrNotEnoughBalance       = errors.New("not enough balance")
	ErrBelowMinimumWithdrawal = errors.New("amount is below minimum withdrawal")
	ErrActiveWithdrawalExists = errors.New("user already has an active withdrawal")
	ErrItemUnavailable        = errors.New("item is not available")
	ErrItemTypeMismatch       = errors.New("item type mismatch")
	ErrSelfPurchase           = errors.New("buyer cannot be the seller")
	ErrInvalidTransition      = errors.New("invalid status transition")
	ErrReasonRequired         = errors.New("rejection reason is required")
	ErrInvalidDestination     = errors.New("invalid destination account")
	ErrUnknownDecision        = errors.New("unknown decision")
)

// ValidationError ошибка входных данных. Отклоняется синхронно и никогда не применяется частично.
// errors.Is(err, ErrValidation) истинно для любой ValidationError, errors.Is(err, Reason) - для конкретной причины.
type ValidationError struct {
	Reason error
	Detail string
}

func NewValidationError(reason error, detailFormat string, args ...any) error {
	return &ValidationError{
		Reason: reason,
		Detail: fmt.Sprintf(detailFormat, args...),
	}
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return e.Reason.Error()
	}
	return fmt.Sprintf("%s: %s", e.Reason.Error(), e.Detail)
}

func (e *ValidationError) Unwrap() error {
	return e.Reason
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

// GatewayError ошибка платежного шлюза (таймаут, недоступность, неизвестный заказ). Сверка откладывается,
// статус транзакции не меняется.
type GatewayError struct {
	Op  string
	Err error
}

func NewGatewayError(op string, err error) error {
	return &GatewayError{Op: op, Err: err}
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s: %s", e.Op, e.Err.Error())
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

func (e *GatewayError) Is(target error) bool {
	return target == ErrGateway
}
