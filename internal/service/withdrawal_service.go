package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/sirupsen/logrus"
)

type WithdrawalService struct {
	uow            uow.UOW
	withdrawalRepo WithdrawalRepository
	ledger         *Ledger
	notifier       Notifier
	metrics        *metrics.Metrics
	settings       Settings
	now            func() time.Time
	l              *logrus.Entry
}

func NewWithdrawalService(
	u uow.UOW,
	ledger *Ledger,
	notifier Notifier,
	m *metrics.Metrics,
	settings Settings,
	l *logrus.Logger,
) (*WithdrawalService, error) {
	repo, err := uow.GetRepositoryAs[WithdrawalRepository](u, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &WithdrawalService{
		uow:            u,
		withdrawalRepo: repo,
		ledger:         ledger,
		notifier:       notifier,
		metrics:        m,
		settings:       settings.withDefaults(),
		now:            time.Now,
		l:              l.WithField("component", "service").WithField("module", "withdrawal"),
	}, nil
}

// SetClock подменяет источник текущего времени.
func (s *WithdrawalService) SetClock(now func() time.Time) *WithdrawalService {
	s.now = now
	return s
}

type RequestWithdrawalArgs struct {
	UserID      int64
	Amount      int64
	Destination domain.Destination
}

// Request создает заявку на вывод в статусе PENDING.
//
// В одной транзакции БД резервирует сумму (блокируя баланс юзера), проверяет отсутствие активной заявки и
// создает заявку. Нехватка средств, активная заявка и сумма ниже минимальной возвращаются как
// *domain.ValidationError, при этом ничего не меняется.
func (s *WithdrawalService) Request(ctx context.Context, args RequestWithdrawalArgs) (*domain.Withdrawal, error) {
	if args.Amount < s.settings.MinWithdrawal {
		return nil, domain.NewValidationError(
			domain.ErrBelowMinimumWithdrawal, "minimum %d, requested %d", s.settings.MinWithdrawal, args.Amount,
		)
	}
	if err := validateDestination(args.Destination); err != nil {
		return nil, err
	}

	var withdrawal *domain.Withdrawal
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		if err := s.ledger.Reserve(c, tx, args.UserID, args.Amount); err != nil {
			return err
		}

		repo, err := uow.GetAs[WithdrawalRepository](tx, uow.RepositoryName(repoargs.WithdrawalRepoName))
		if err != nil {
			return err //nolint:wrapcheck
		}

		active, err := repo.FindActiveByUserID(c, args.UserID)
		if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
			return err //nolint:wrapcheck
		}
		if active != nil {
			return domain.NewValidationError(
				domain.ErrActiveWithdrawalExists, "withdrawal %d is %s", active.ID, active.Status,
			)
		}

		withdrawal, err = repo.Create(c, repoargs.WithdrawalCreate{
			UserID:      args.UserID,
			Amount:      args.Amount,
			Destination: args.Destination,
		})
		if err != nil {
			if errors.Is(err, domain.ErrDuplicateKey) {
				return domain.NewValidationError(domain.ErrActiveWithdrawalExists, "user %d", args.UserID)
			}
			return err //nolint:wrapcheck
		}
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("request withdrawal: %w", txErr)
	}

	s.metrics.RecordWithdrawal(string(withdrawal.Status))
	s.l.WithFields(logrus.Fields{
		"withdrawal_id": withdrawal.ID,
		"user_id":       withdrawal.UserID,
		"amount":        withdrawal.Amount,
	}).Info("withdrawal requested")
	s.notifyStatus(ctx, withdrawal)
	return withdrawal, nil
}

func validateDestination(d domain.Destination) error {
	if strings.TrimSpace(d.BankName) == "" ||
		strings.TrimSpace(d.AccountNumber) == "" ||
		strings.TrimSpace(d.AccountHolder) == "" {
		return domain.NewValidationError(domain.ErrInvalidDestination, "bank name, account number and holder are required")
	}
	return nil
}

type DecideWithdrawalArgs struct {
	WithdrawalID int64
	OperatorID   int64
	Decision     domain.WithdrawalDecision
	Reason       string
}

// Decide применяет решение оператора к заявке.
//
// Завершение учитывает зарезервированную сумму как выведенную, отклонение и сбой возвращают ее в доступный
// баланс. Изменение баланса и статуса происходят в одной транзакции БД. Повторное применение решения, которое
// уже привело заявку в текущий статус, ничего не меняет. Недопустимый переход возвращает *domain.ValidationError
// с причиной domain.ErrInvalidTransition.
func (s *WithdrawalService) Decide(ctx context.Context, args DecideWithdrawalArgs) (*domain.Withdrawal, error) {
	target, ok := args.Decision.TargetStatus()
	if !ok {
		return nil, domain.NewValidationError(domain.ErrUnknownDecision, "%q", args.Decision)
	}
	reason := strings.TrimSpace(args.Reason)
	if target == domain.WithdrawalStatusRejected && reason == "" {
		return nil, domain.NewValidationError(domain.ErrReasonRequired, "withdrawal %d", args.WithdrawalID)
	}

	var withdrawal *domain.Withdrawal
	var changed bool
	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		changed = false
		repo, err := uow.GetAs[WithdrawalRepository](tx, uow.RepositoryName(repoargs.WithdrawalRepoName))
		if err != nil {
			return err //nolint:wrapcheck
		}

		current, err := repo.FindByIDForUpdate(c, args.WithdrawalID)
		if err != nil {
			return err //nolint:wrapcheck
		}
		if current.Status == target {
			withdrawal = current
			return nil
		}
		if !current.Status.CanTransitionTo(target) {
			return domain.NewValidationError(domain.ErrInvalidTransition, "%s -> %s", current.Status, target)
		}

		if err = s.applyBalanceEffect(c, tx, current, target); err != nil {
			return err
		}

		now := s.now()
		update := repoargs.WithdrawalStatusCAS{
			ID:          current.ID,
			From:        current.Status,
			To:          target,
			ProcessedBy: &args.OperatorID,
			ProcessedAt: &now,
		}
		if reason != "" && (target == domain.WithdrawalStatusRejected || target == domain.WithdrawalStatusFailed) {
			update.RejectionReason = &reason
		}

		withdrawal, err = repo.UpdateStatus(c, update)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return domain.ErrConflict
			}
			return err //nolint:wrapcheck
		}
		changed = true
		return nil
	})
	if txErr != nil {
		return nil, fmt.Errorf("decide withdrawal %d: %w", args.WithdrawalID, txErr)
	}
	if !changed {
		return withdrawal, nil
	}

	s.metrics.RecordWithdrawal(string(withdrawal.Status))
	s.l.WithFields(logrus.Fields{
		"withdrawal_id": withdrawal.ID,
		"status":        withdrawal.Status,
		"operator_id":   args.OperatorID,
	}).Info("withdrawal status changed")
	s.notifyStatus(ctx, withdrawal)
	return withdrawal, nil
}

func (s *WithdrawalService) applyBalanceEffect(
	ctx context.Context,
	tx uow.TX,
	w *domain.Withdrawal,
	target domain.WithdrawalStatusType,
) error {
	switch target {
	case domain.WithdrawalStatusCompleted:
		return s.ledger.Finalize(ctx, tx, w.UserID, w.Amount)
	case domain.WithdrawalStatusRejected, domain.WithdrawalStatusFailed:
		return s.ledger.Unreserve(ctx, tx, w.UserID, w.Amount)
	default:
		return nil
	}
}

func (s *WithdrawalService) notifyStatus(ctx context.Context, w *domain.Withdrawal) {
	message := fmt.Sprintf("Withdrawal #%d of %d is %s", w.ID, w.Amount, w.Status)
	if w.RejectionReason != nil {
		message += ": " + *w.RejectionReason
	}
	if err := s.notifier.Notify(ctx, domain.Notification{
		UserID:    w.UserID,
		Type:      domain.NotificationWithdrawalStatus,
		Title:     "Withdrawal " + string(w.Status),
		Message:   message,
		Reference: fmt.Sprintf("withdrawal-%d", w.ID),
	}); err != nil {
		s.l.WithError(err).WithField("user_id", w.UserID).Warn("failed to send notification")
	}
}

// GetByUserID возвращает заявки юзера, новые первыми.
func (s *WithdrawalService) GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	withdrawals, err := s.withdrawalRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}

// ListByStatus возвращает заявки в статусах statuses. Без статусов возвращает активные заявки.
func (s *WithdrawalService) ListByStatus(
	ctx context.Context,
	statuses []domain.WithdrawalStatusType,
) ([]domain.Withdrawal, error) {
	if len(statuses) == 0 {
		statuses = domain.ActiveWithdrawalStatuses
	}
	withdrawals, err := s.withdrawalRepo.GetByStatuses(ctx, statuses)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return withdrawals, nil
}
