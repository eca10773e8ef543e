package reconcile

//go:generate mockgen -source=interfaces.go -destination=mocks/mocks.go -package=mocks

import (
	"context"

	"github.com/fsdevblog/campus-ledger/internal/domain"
)

type Servicer interface {
	TransactionsForReconciliation(ctx context.Context, limit uint) ([]domain.Transaction, error)
	ReconcileTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error)
}
