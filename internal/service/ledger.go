package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/sirupsen/logrus"
)

// Ledger единственная точка изменения балансов. Все операции выполняются внутри транзакции вызывающего и
// начинаются с блокировки строки баланса, поэтому операции над одним балансом выполняются строго по очереди.
type Ledger struct {
	holdingPeriod time.Duration
	metrics       *metrics.Metrics
	now           func() time.Time
	l             *logrus.Entry
}

func NewLedger(holdingPeriod time.Duration, m *metrics.Metrics, l *logrus.Logger) *Ledger {
	return &Ledger{
		holdingPeriod: holdingPeriod,
		metrics:       m,
		now:           time.Now,
		l:             l.WithField("component", "service").WithField("module", "ledger"),
	}
}

// SetClock подменяет источник текущего времени.
func (lg *Ledger) SetClock(now func() time.Time) *Ledger {
	lg.now = now
	return lg
}

type CreditResult struct {
	Earnings int64
	Fee      int64
	// Matured холд уже истек, заработок зачислен сразу в доступный баланс.
	Matured bool
}

// Credit зачисляет продавцу заработок с продажи на gross. Если с createdAt прошло больше холда, деньги
// зачисляются сразу в available, иначе в pending.
//
// Не защищен от повторного вызова для одной транзакции, это обеспечивает CAS статуса транзакции.
func (lg *Ledger) Credit(
	ctx context.Context,
	tx uow.TX,
	sellerID int64,
	gross int64,
	createdAt time.Time,
) (*CreditResult, error) {
	if gross <= 0 {
		return nil, domain.NewValidationError(domain.ErrInvalidAmount, "credit gross %d", gross)
	}
	earnings, fee := domain.SplitGross(gross)
	matured := lg.now().Sub(createdAt) >= lg.holdingPeriod

	if _, err := lg.mutate(ctx, tx, sellerID, "credit", func(b *domain.Balance) error {
		return b.Credit(earnings, matured)
	}); err != nil {
		return nil, err
	}
	return &CreditResult{Earnings: earnings, Fee: fee, Matured: matured}, nil
}

// Release переводит amount из pending в available. Если в pending меньше amount, переводится остаток.
// Возвращает фактически переведенную сумму.
func (lg *Ledger) Release(ctx context.Context, tx uow.TX, sellerID, amount int64) (int64, error) {
	var released int64
	b, err := lg.mutate(ctx, tx, sellerID, "release", func(b *domain.Balance) error {
		var releaseErr error
		released, releaseErr = b.Release(amount)
		return releaseErr //nolint:wrapcheck
	})
	if err != nil {
		return 0, err
	}
	if released < amount {
		lg.l.WithFields(logrus.Fields{
			"user_id":  sellerID,
			"amount":   amount,
			"released": released,
			"balance":  b.String(),
		}).Warn("release clamped to pending balance")
	}
	return released, nil
}

// Reserve резервирует amount под вывод. Если доступных средств не хватает, возвращает ValidationError
// с причиной domain.ErrNotEnoughBalance.
func (lg *Ledger) Reserve(ctx context.Context, tx uow.TX, userID, amount int64) error {
	_, err := lg.mutate(ctx, tx, userID, "reserve", func(b *domain.Balance) error {
		return b.Reserve(amount)
	})
	return err
}

// Unreserve возвращает ранее зарезервированную сумму в available.
func (lg *Ledger) Unreserve(ctx context.Context, tx uow.TX, userID, amount int64) error {
	_, err := lg.mutate(ctx, tx, userID, "unreserve", func(b *domain.Balance) error {
		return b.Unreserve(amount)
	})
	return err
}

// Finalize учитывает ранее зарезервированную сумму как выведенную.
func (lg *Ledger) Finalize(ctx context.Context, tx uow.TX, userID, amount int64) error {
	_, err := lg.mutate(ctx, tx, userID, "finalize", func(b *domain.Balance) error {
		return b.Finalize(amount)
	})
	return err
}

// mutate блокирует баланс, применяет к нему fn и сохраняет результат. Нарушение инварианта логируется как
// ошибка целостности и прерывает транзакцию вызывающего.
func (lg *Ledger) mutate(
	ctx context.Context,
	tx uow.TX,
	userID int64,
	op string,
	fn func(b *domain.Balance) error,
) (*domain.Balance, error) {
	repo, repoErr := uow.GetAs[BalanceRepository](tx, uow.RepositoryName(repoargs.BalanceRepoName))
	if repoErr != nil {
		return nil, repoErr //nolint:wrapcheck
	}

	b, err := repo.GetOrCreateForUpdate(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ledger %s: %w", op, err)
	}

	if err = fn(b); err != nil {
		if errors.Is(err, domain.ErrLedgerIntegrity) {
			lg.integrityFailure(userID, op, err)
		}
		return nil, fmt.Errorf("ledger %s: %w", op, err)
	}

	if err = repo.Save(ctx, b); err != nil {
		if errors.Is(err, domain.ErrLedgerIntegrity) {
			lg.integrityFailure(userID, op, err)
		}
		return nil, fmt.Errorf("ledger %s: %w", op, err)
	}
	return b, nil
}

func (lg *Ledger) integrityFailure(userID int64, op string, err error) {
	lg.metrics.RecordIntegrityFailure()
	lg.l.WithError(err).
		WithField("user_id", userID).
		WithField("op", op).
		Error("ledger integrity failure")
}
