package repoargs

import (
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
)

type WithdrawalCreate struct {
	UserID      int64
	Amount      int64
	Destination domain.Destination
}

// WithdrawalStatusCAS обновление статуса заявки, применяется только если текущий статус равен From.
type WithdrawalStatusCAS struct {
	ID              int64
	From            domain.WithdrawalStatusType
	To              domain.WithdrawalStatusType
	RejectionReason *string
	ProcessedBy     *int64
	ProcessedAt     *time.Time
}
