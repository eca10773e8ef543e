package api

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
)

type PaymentServicer interface {
	InitiatePayment(ctx context.Context, args service.InitiatePaymentArgs) (*service.InitiatePaymentResult, error)
	CheckStatus(ctx context.Context, orderID string, userID int64) (*domain.Transaction, error)
	Reconcile(ctx context.Context, orderID string) (*domain.Transaction, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Transaction, error)
}

type BalanceServicer interface {
	GetUserBalance(ctx context.Context, userID int64) (*domain.Balance, error)
	AuditBalance(ctx context.Context, userID int64) (*service.BalanceAudit, error)
}

type WithdrawalServicer interface {
	Request(ctx context.Context, args service.RequestWithdrawalArgs) (*domain.Withdrawal, error)
	Decide(ctx context.Context, args service.DecideWithdrawalArgs) (*domain.Withdrawal, error)
	GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error)
	ListByStatus(ctx context.Context, statuses []domain.WithdrawalStatusType) ([]domain.Withdrawal, error)
}

// ReleaseRunner ручной запуск перевода заработка из холда.
type ReleaseRunner interface {
	RunOnce(ctx context.Context) (*service.ReleaseReport, error)
}

type NotificationVerifier interface {
	VerifyNotification(n gateway.Notification) bool
}
