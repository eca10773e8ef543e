package domain

import (
	"time"
)

type Transaction struct {
	ID                   int64
	CreatedAt            time.Time
	UpdatedAt            time.Time
	OrderID              string
	Amount               int64
	Status               TransactionStatusType
	ItemType             ItemType
	ItemID               int64
	ItemTitle            string
	BuyerID              int64
	SellerID             *int64
	PaymentMethod        string
	GatewayTransactionID string
	FraudStatus          string
	SessionToken         string
	RedirectURL          string
	ExpiresAt            time.Time
	CompletedAt          *time.Time
	Released             bool
	ReleasedAt           *time.Time
}

// IsExpired сообщает, что ожидающая оплаты транзакция просрочена на момент now.
func (t *Transaction) IsExpired(now time.Time) bool {
	return t.Status == TransactionStatusPending && !now.Before(t.ExpiresAt)
}

// IsParticipant сообщает, является ли юзер покупателем или продавцом.
func (t *Transaction) IsParticipant(userID int64) bool {
	if t.BuyerID == userID {
		return true
	}
	return t.SellerID != nil && *t.SellerID == userID
}

type Item struct {
	ID          int64
	SellerID    int64
	Title       string
	Type        ItemType
	Price       int64
	Stock       int
	IsAvailable bool
}

// CanBePurchased товар доступен к покупке. У услуг нет остатков.
func (i *Item) CanBePurchased() bool {
	if !i.IsAvailable {
		return false
	}
	return i.Type != ItemTypeProduct || i.Stock > 0
}

type Destination struct {
	BankName      string
	AccountNumber string
	AccountHolder string
}

type Withdrawal struct {
	ID              int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
	UserID          int64
	Amount          int64
	Destination     Destination
	Status          WithdrawalStatusType
	RejectionReason *string
	ProcessedBy     *int64
	ProcessedAt     *time.Time
}

// GatewayStatus статус заказа в платежном шлюзе, уже переведенный в закрытый набор внутренних статусов.
type GatewayStatus struct {
	Status               TransactionStatusType
	PaymentMethod        string
	FraudStatus          string
	GatewayTransactionID string
}

// SessionRequest параметры создания платежной сессии в шлюзе.
type SessionRequest struct {
	OrderID     string
	GrossAmount int64
	ItemID      int64
	ItemTitle   string
	BuyerID     int64
	BuyerName   string
	BuyerEmail  string
	FinishURL   string
	Expiry      time.Duration
}

type PaymentSession struct {
	Token       string
	RedirectURL string
}

type Notification struct {
	UserID    int64
	Type      NotificationType
	Title     string
	Message   string
	Reference string
}
