package service

import (
	"context"
	"testing"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/internal/service/mocks"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	uowmocks "github.com/fsdevblog/campus-ledger/pkg/uow/mocks"
	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/suite"
)

type LedgerTestSuite struct {
	suite.Suite
	mockCtrl        *gomock.Controller
	mockTX          *uowmocks.MockTX
	mockBalanceRepo *mocks.MockBalanceRepository
	now             time.Time
	ledger          *Ledger
}

func TestLedgerSuite(t *testing.T) {
	suite.Run(t, new(LedgerTestSuite))
}

func (s *LedgerTestSuite) SetupTest() {
	s.mockCtrl = gomock.NewController(s.T())
	s.mockTX = uowmocks.NewMockTX(s.mockCtrl)
	s.mockBalanceRepo = mocks.NewMockBalanceRepository(s.mockCtrl)
	s.now = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	s.mockTX.EXPECT().
		Get(uow.RepositoryName(repoargs.BalanceRepoName)).
		Return(s.mockBalanceRepo, nil).AnyTimes()

	s.ledger = NewLedger(DefaultHoldingPeriod, nil, discardLogger()).SetClock(func() time.Time { return s.now })
}

func (s *LedgerTestSuite) TearDownTest() {
	s.mockCtrl.Finish()
}

// expectBalance настраивает блокировку баланса и проверяет сохраненный результат.
func (s *LedgerTestSuite) expectBalance(current domain.Balance, expected *domain.Balance) {
	s.mockBalanceRepo.EXPECT().
		GetOrCreateForUpdate(gomock.Any(), current.UserID).
		Return(&current, nil)
	if expected == nil {
		return
	}
	s.mockBalanceRepo.EXPECT().
		Save(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, b *domain.Balance) error {
			s.Equal(*expected, *b)
			return nil
		})
}

func (s *LedgerTestSuite) TestCredit() {
	cases := []struct {
		name      string
		gross     int64
		createdAt time.Time
		expected  domain.Balance
		matured   bool
		fee       int64
	}{
		{
			name:      "fresh sale goes to pending",
			gross:     200000,
			createdAt: s.now.Add(-time.Minute),
			expected:  domain.Balance{UserID: 1, TotalEarnings: 190000, Pending: 190000},
			fee:       10000,
		},
		{
			name:      "fee is floored",
			gross:     99,
			createdAt: s.now,
			expected:  domain.Balance{UserID: 1, TotalEarnings: 95, Pending: 95},
			fee:       4,
		},
		{
			name:      "late settlement goes to available",
			gross:     100000,
			createdAt: s.now.Add(-DefaultHoldingPeriod),
			expected:  domain.Balance{UserID: 1, TotalEarnings: 95000, Available: 95000},
			matured:   true,
			fee:       5000,
		},
	}

	for _, tc := range cases {
		s.Run(tc.name, func() {
			s.expectBalance(domain.Balance{UserID: 1}, &tc.expected)

			res, err := s.ledger.Credit(s.T().Context(), s.mockTX, 1, tc.gross, tc.createdAt)
			s.Require().NoError(err)
			s.Equal(tc.expected.TotalEarnings, res.Earnings)
			s.Equal(tc.fee, res.Fee)
			s.Equal(tc.matured, res.Matured)
		})
	}
}

func (s *LedgerTestSuite) TestCredit_InvalidAmount() {
	_, err := s.ledger.Credit(s.T().Context(), s.mockTX, 1, 0, s.now)
	s.Require().ErrorIs(err, domain.ErrValidation)
	s.ErrorIs(err, domain.ErrInvalidAmount)
}

func (s *LedgerTestSuite) TestRelease() {
	s.expectBalance(
		domain.Balance{UserID: 1, TotalEarnings: 190000, Pending: 190000},
		&domain.Balance{UserID: 1, TotalEarnings: 190000, Pending: 95000, Available: 95000},
	)

	released, err := s.ledger.Release(s.T().Context(), s.mockTX, 1, 95000)
	s.Require().NoError(err)
	s.Equal(int64(95000), released)
}

func (s *LedgerTestSuite) TestRelease_ClampedToPending() {
	s.expectBalance(
		domain.Balance{UserID: 1, TotalEarnings: 100000, Pending: 30000, Available: 70000},
		&domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 100000},
	)

	released, err := s.ledger.Release(s.T().Context(), s.mockTX, 1, 95000)
	s.Require().NoError(err)
	s.Equal(int64(30000), released)
}

func (s *LedgerTestSuite) TestReserve() {
	s.Run("enough balance", func() {
		s.expectBalance(
			domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 100000},
			&domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 20000, Reserved: 80000},
		)
		s.Require().NoError(s.ledger.Reserve(s.T().Context(), s.mockTX, 1, 80000))
	})

	s.Run("not enough balance", func() {
		// Save не вызывается.
		s.expectBalance(domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 20000, Reserved: 80000}, nil)

		err := s.ledger.Reserve(s.T().Context(), s.mockTX, 1, 80000)
		s.Require().ErrorIs(err, domain.ErrValidation)
		s.ErrorIs(err, domain.ErrNotEnoughBalance)
	})
}

func (s *LedgerTestSuite) TestUnreserveAndFinalize() {
	s.expectBalance(
		domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 40000, Reserved: 60000},
		&domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 100000},
	)
	s.Require().NoError(s.ledger.Unreserve(s.T().Context(), s.mockTX, 1, 60000))

	s.expectBalance(
		domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 40000, Reserved: 60000},
		&domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 40000, Withdrawn: 60000},
	)
	s.Require().NoError(s.ledger.Finalize(s.T().Context(), s.mockTX, 1, 60000))
}

func (s *LedgerTestSuite) TestIntegrityFailure() {
	s.Run("finalize without reserve", func() {
		s.expectBalance(domain.Balance{UserID: 1, TotalEarnings: 100000, Available: 100000}, nil)

		err := s.ledger.Finalize(s.T().Context(), s.mockTX, 1, 60000)
		s.Require().ErrorIs(err, domain.ErrLedgerIntegrity)
		s.NotErrorIs(err, domain.ErrValidation)
	})

	s.Run("stored balance already broken", func() {
		s.expectBalance(domain.Balance{UserID: 1, TotalEarnings: 100, Pending: 10}, nil)

		_, err := s.ledger.Credit(s.T().Context(), s.mockTX, 1, 1000, s.now)
		s.Require().ErrorIs(err, domain.ErrLedgerIntegrity)
	})

	s.Run("rejected by database", func() {
		s.mockBalanceRepo.EXPECT().
			GetOrCreateForUpdate(gomock.Any(), int64(1)).
			Return(&domain.Balance{UserID: 1}, nil)
		s.mockBalanceRepo.EXPECT().
			Save(gomock.Any(), gomock.Any()).
			Return(domain.ErrLedgerIntegrity)

		_, err := s.ledger.Credit(s.T().Context(), s.mockTX, 1, 1000, s.now)
		s.Require().ErrorIs(err, domain.ErrLedgerIntegrity)
	})
}
