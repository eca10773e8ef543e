package service

import (
	"context"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
)

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

type TransactionRepository interface {
	Create(ctx context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error)
	FindByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error)
	SetSession(ctx context.Context, args repoargs.TransactionSession) error
	CompareAndSetStatus(ctx context.Context, args repoargs.TransactionStatusCAS) (*domain.Transaction, error)
	GetPendingForReconciliation(ctx context.Context, limit uint) ([]domain.Transaction, error)
	GetUnreleasedCompleted(ctx context.Context, completedBefore time.Time, limit uint) ([]domain.Transaction, error)
	MarkReleased(ctx context.Context, id int64, releasedAt time.Time) (bool, error)
	GetCompletedBySeller(ctx context.Context, sellerID int64) ([]domain.Transaction, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Transaction, error)
}

type BalanceRepository interface {
	GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.Balance, error)
	FindByUserID(ctx context.Context, userID int64) (*domain.Balance, error)
	Save(ctx context.Context, b *domain.Balance) error
}

type WithdrawalRepository interface {
	Create(ctx context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error)
	FindByID(ctx context.Context, id int64) (*domain.Withdrawal, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error)
	FindActiveByUserID(ctx context.Context, userID int64) (*domain.Withdrawal, error)
	UpdateStatus(ctx context.Context, args repoargs.WithdrawalStatusCAS) (*domain.Withdrawal, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	GetByStatuses(ctx context.Context, statuses []domain.WithdrawalStatusType) ([]domain.Withdrawal, error)
}

type ItemRepository interface {
	FindByID(ctx context.Context, id int64) (*domain.Item, error)
	DecrementStock(ctx context.Context, id int64) error
}

// Gateway платежный шлюз. Ошибки оборачиваются в *domain.GatewayError.
type Gateway interface {
	CreateSession(ctx context.Context, args domain.SessionRequest) (*domain.PaymentSession, error)
	GetStatus(ctx context.Context, orderID string) (*domain.GatewayStatus, error)
}

type Notifier interface {
	Notify(ctx context.Context, n domain.Notification) error
}
