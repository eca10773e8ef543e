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

// ReleaseService переводит заработок из холда в доступный баланс.
type ReleaseService struct {
	uow      uow.UOW
	txRepo   TransactionRepository
	ledger   *Ledger
	notifier Notifier
	metrics  *metrics.Metrics
	settings Settings
	l        *logrus.Entry
}

func NewReleaseService(
	u uow.UOW,
	ledger *Ledger,
	notifier Notifier,
	m *metrics.Metrics,
	settings Settings,
	l *logrus.Logger,
) (*ReleaseService, error) {
	txRepo, err := uow.GetRepositoryAs[TransactionRepository](u, uow.RepositoryName(repoargs.TransactionRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &ReleaseService{
		uow:      u,
		txRepo:   txRepo,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		settings: settings.withDefaults(),
		l:        l.WithField("component", "service").WithField("module", "release"),
	}, nil
}

// ReleaseReport итог одного прогона.
type ReleaseReport struct {
	Released       int   `json:"released"`
	ReleasedAmount int64 `json:"released_amount"`
	Skipped        int   `json:"skipped"`
	Failed         int   `json:"failed"`
}

// ReleaseMatured переводит в доступный баланс заработок по всем завершенным транзакциям, холд которых истек
// к моменту now.
//
// Транзакции выбираются пачками по Settings.ReleaseBatch. Каждая транзакция выпускается в своей транзакции БД:
// сначала флаг released (CAS), затем Ledger.Release. Уже выпущенные транзакции пропускаются, поэтому
// повторный или параллельный прогон ничего не переведет дважды. Ошибка по одной транзакции не
// останавливает прогон, она учитывается в отчете.
func (s *ReleaseService) ReleaseMatured(ctx context.Context, now time.Time) (*ReleaseReport, error) {
	report := new(ReleaseReport)
	cutoff := now.Add(-s.settings.HoldingPeriod)

	for {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}

		batch, err := s.txRepo.GetUnreleasedCompleted(ctx, cutoff, s.settings.ReleaseBatch)
		if err != nil {
			return report, fmt.Errorf("release matured: %w", err)
		}

		var progress int
		for _, t := range batch {
			released, releaseErr := s.releaseOne(ctx, t, now)
			switch {
			case releaseErr != nil:
				report.Failed++
				s.l.WithError(releaseErr).WithField("order_id", t.OrderID).Error("failed to release earnings")
			case released == nil:
				report.Skipped++
			default:
				progress++
				report.Released++
				report.ReleasedAmount += *released
			}
		}

		// транзакции с ошибкой вернутся в следующей выборке, без прогресса выходим.
		if uint(len(batch)) < s.settings.ReleaseBatch || progress == 0 {
			break
		}
	}

	s.l.WithFields(logrus.Fields{
		"released":        report.Released,
		"released_amount": report.ReleasedAmount,
		"skipped":         report.Skipped,
		"failed":          report.Failed,
	}).Info("release run finished")
	return report, nil
}

// releaseOne возвращает фактически переведенную сумму или nil, если транзакция уже выпущена.
func (s *ReleaseService) releaseOne(ctx context.Context, t domain.Transaction, now time.Time) (*int64, error) {
	if t.SellerID == nil {
		return nil, fmt.Errorf("%w: completed transaction %s has no seller", domain.ErrLedgerIntegrity, t.OrderID)
	}

	var released *int64
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		released = nil
		repo, err := uow.GetAs[TransactionRepository](tx, uow.RepositoryName(repoargs.TransactionRepoName))
		if err != nil {
			return err //nolint:wrapcheck
		}

		marked, err := repo.MarkReleased(c, t.ID, now)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if !marked {
			return domain.ErrConflict
		}

		amount, err := s.ledger.Release(c, tx, *t.SellerID, domain.SellerEarnings(t.Amount))
		if err != nil {
			return err
		}
		released = &amount
		return nil
	})
	if errors.Is(txErr, domain.ErrConflict) {
		return nil, nil //nolint:nilnil
	}
	if txErr != nil {
		return nil, txErr //nolint:wrapcheck
	}

	s.metrics.RecordRelease(*released)
	if err := s.notifier.Notify(ctx, domain.Notification{
		UserID:    *t.SellerID,
		Type:      domain.NotificationEarningsReleased,
		Title:     "Earnings available",
		Message:   fmt.Sprintf("%d from order %s is now available for withdrawal", *released, t.OrderID),
		Reference: t.OrderID,
	}); err != nil {
		s.l.WithError(err).WithField("user_id", *t.SellerID).Warn("failed to send notification")
	}
	return released, nil
}
