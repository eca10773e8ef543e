package repoargs

import (
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
)

type TransactionCreate struct {
	OrderID   string
	Amount    int64
	ItemType  domain.ItemType
	ItemID    int64
	ItemTitle string
	BuyerID   int64
	SellerID  int64
	ExpiresAt time.Time
}

type TransactionSession struct {
	ID           int64
	SessionToken string
	RedirectURL  string
}

// TransactionStatusCAS обновление статуса, которое применяется только если текущий статус равен From.
type TransactionStatusCAS struct {
	OrderID              string
	From                 domain.TransactionStatusType
	To                   domain.TransactionStatusType
	SellerID             *int64
	PaymentMethod        string
	FraudStatus          string
	GatewayTransactionID string
	CompletedAt          *time.Time
}
