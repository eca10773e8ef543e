package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/sirupsen/logrus"
)

type BalanceService struct {
	balanceRepo    BalanceRepository
	txRepo         TransactionRepository
	withdrawalRepo WithdrawalRepository
	metrics        *metrics.Metrics
	l              *logrus.Entry
}

func NewBalanceService(u uow.UOW, m *metrics.Metrics, l *logrus.Logger) (*BalanceService, error) {
	balanceRepo, err := uow.GetRepositoryAs[BalanceRepository](u, uow.RepositoryName(repoargs.BalanceRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	txRepo, err := uow.GetRepositoryAs[TransactionRepository](u, uow.RepositoryName(repoargs.TransactionRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	withdrawalRepo, err := uow.GetRepositoryAs[WithdrawalRepository](u, uow.RepositoryName(repoargs.WithdrawalRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &BalanceService{
		balanceRepo:    balanceRepo,
		txRepo:         txRepo,
		withdrawalRepo: withdrawalRepo,
		metrics:        m,
		l:              l.WithField("component", "service").WithField("module", "balance"),
	}, nil
}

// GetUserBalance возвращает баланс юзера. Если продаж еще не было, возвращает нулевой баланс.
func (s *BalanceService) GetUserBalance(ctx context.Context, userID int64) (*domain.Balance, error) {
	b, err := s.balanceRepo.FindByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return &domain.Balance{UserID: userID}, nil
		}
		return nil, fmt.Errorf("get user balance: %w", err)
	}
	return b, nil
}

// BalanceAudit результат сверки хранимого баланса с историей продаж и выводов.
type BalanceAudit struct {
	Balance          domain.Balance `json:"balance"`
	CompletedCount   int            `json:"completed_count"`
	ExpectedTotal    int64          `json:"expected_total"`
	ExpectedPending  int64          `json:"expected_pending"`
	ExpectedReserved int64          `json:"expected_reserved"`
	Consistent       bool           `json:"consistent"`
	Problems         []string       `json:"problems,omitempty"`
}

// AuditBalance пересчитывает заработок юзера по всем завершенным продажам и сравнивает с хранимым балансом:
//   - total_earnings должен равняться сумме заработка по всем завершенным продажам;
//   - pending должен равняться заработку по продажам, которые еще в холде;
//   - reserved должен равняться сумме активной заявки на вывод;
//   - корзины должны быть неотрицательны и в сумме давать total_earnings.
//
// Расхождения логируются как ошибки целостности.
func (s *BalanceService) AuditBalance(ctx context.Context, userID int64) (*BalanceAudit, error) {
	b, err := s.GetUserBalance(ctx, userID)
	if err != nil {
		return nil, err
	}
	completed, err := s.txRepo.GetCompletedBySeller(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("audit balance: %w", err)
	}

	audit := &BalanceAudit{Balance: *b, CompletedCount: len(completed)}
	for _, t := range completed {
		earnings := domain.SellerEarnings(t.Amount)
		audit.ExpectedTotal += earnings
		if !t.Released {
			audit.ExpectedPending += earnings
		}
	}

	active, err := s.withdrawalRepo.FindActiveByUserID(ctx, userID)
	switch {
	case err == nil:
		audit.ExpectedReserved = active.Amount
	case !errors.Is(err, domain.ErrRecordNotFound):
		return nil, fmt.Errorf("audit balance: %w", err)
	}

	if validateErr := b.Validate(); validateErr != nil {
		audit.Problems = append(audit.Problems, validateErr.Error())
	}
	if audit.ExpectedTotal != b.TotalEarnings {
		audit.Problems = append(audit.Problems,
			fmt.Sprintf("total earnings %d, expected %d", b.TotalEarnings, audit.ExpectedTotal))
	}
	if audit.ExpectedPending != b.Pending {
		audit.Problems = append(audit.Problems,
			fmt.Sprintf("pending %d, expected %d", b.Pending, audit.ExpectedPending))
	}
	if audit.ExpectedReserved != b.Reserved {
		audit.Problems = append(audit.Problems,
			fmt.Sprintf("reserved %d, expected %d", b.Reserved, audit.ExpectedReserved))
	}
	audit.Consistent = len(audit.Problems) == 0

	if !audit.Consistent {
		s.metrics.RecordIntegrityFailure()
		s.l.WithField("user_id", userID).
			WithField("problems", audit.Problems).
			Error("ledger integrity failure: balance audit mismatch")
	}
	return audit, nil
}
