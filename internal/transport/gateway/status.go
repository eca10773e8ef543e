package gateway

import (
	"fmt"

	"github.com/fsdevblog/campus-ledger/internal/domain"
)

// Словарь статусов шлюза.
const (
	statusCapture    = "capture"
	statusSettlement = "settlement"
	statusPending    = "pending"
	statusDeny       = "deny"
	statusFailure    = "failure"
	statusCancel     = "cancel"
	statusExpire     = "expire"

	fraudAccept    = "accept"
	fraudChallenge = "challenge"
	fraudDeny      = "deny"
)

// mapStatus переводит статус шлюза в закрытый набор статусов транзакции. capture с fraud статусом challenge
// ждет ручной проверки на стороне шлюза и остается PENDING, а с deny считается отклоненным.
func mapStatus(transactionStatus, fraudStatus string) (domain.TransactionStatusType, error) {
	switch transactionStatus {
	case statusCapture, statusSettlement:
		switch fraudStatus {
		case fraudChallenge:
			return domain.TransactionStatusPending, nil
		case fraudDeny:
			return domain.TransactionStatusFailed, nil
		default:
			return domain.TransactionStatusCompleted, nil
		}
	case statusPending:
		return domain.TransactionStatusPending, nil
	case statusDeny, statusFailure:
		return domain.TransactionStatusFailed, nil
	case statusCancel:
		return domain.TransactionStatusCancelled, nil
	case statusExpire:
		return domain.TransactionStatusExpired, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownStatus, transactionStatus)
	}
}
