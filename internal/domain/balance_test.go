package domain

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type BalanceTestSuite struct {
	suite.Suite
}

func TestBalanceSuite(t *testing.T) {
	suite.Run(t, new(BalanceTestSuite))
}

func (s *BalanceTestSuite) TestSplitGross() {
	cases := []struct {
		gross        int64
		wantEarnings int64
		wantFee      int64
	}{
		{gross: 100000, wantEarnings: 95000, wantFee: 5000},
		{gross: 200000, wantEarnings: 190000, wantFee: 10000},
		// комиссия округляется вниз.
		{gross: 19, wantEarnings: 19, wantFee: 0},
		{gross: 21, wantEarnings: 20, wantFee: 1},
		{gross: 15999, wantEarnings: 15200, wantFee: 799},
		{gross: 0, wantEarnings: 0, wantFee: 0},
	}
	for _, c := range cases {
		earnings, fee := SplitGross(c.gross)
		s.Equal(c.wantEarnings, earnings, "gross %d", c.gross)
		s.Equal(c.wantFee, fee, "gross %d", c.gross)
		s.Equal(c.gross, earnings+fee)
	}
}

func (s *BalanceTestSuite) TestCredit() {
	b := Balance{UserID: 1}

	s.Require().NoError(b.Credit(95000, false))
	s.Equal(int64(95000), b.Pending)
	s.Equal(int64(0), b.Available)
	s.Equal(int64(95000), b.TotalEarnings)

	// холд уже истек - деньги сразу доступны.
	s.Require().NoError(b.Credit(5000, true))
	s.Equal(int64(5000), b.Available)
	s.Equal(int64(100000), b.TotalEarnings)
	s.NoError(b.Validate())

	s.ErrorIs(b.Credit(-1, false), ErrLedgerIntegrity)
}

func (s *BalanceTestSuite) TestRelease() {
	b := Balance{UserID: 1, TotalEarnings: 100000, Pending: 100000}

	released, err := b.Release(95000)
	s.Require().NoError(err)
	s.Equal(int64(95000), released)
	s.Equal(int64(5000), b.Pending)
	s.Equal(int64(95000), b.Available)

	// в pending меньше запрошенного - переводится остаток.
	released, err = b.Release(10000)
	s.Require().NoError(err)
	s.Equal(int64(5000), released)
	s.Equal(int64(0), b.Pending)
	s.Equal(int64(100000), b.Available)
	s.NoError(b.Validate())
}

func (s *BalanceTestSuite) TestReserveFinalizeUnreserve() {
	b := Balance{UserID: 1, TotalEarnings: 100000, Available: 100000}

	err := b.Reserve(120000)
	s.Require().ErrorIs(err, ErrValidation)
	s.Require().ErrorIs(err, ErrNotEnoughBalance)
	s.Equal(int64(100000), b.Available)

	s.Require().NoError(b.Reserve(60000))
	s.Equal(int64(40000), b.Available)
	s.Equal(int64(60000), b.Reserved)
	s.NoError(b.Validate())

	s.Require().NoError(b.Unreserve(60000))
	s.Equal(int64(100000), b.Available)
	s.Equal(int64(0), b.Reserved)
	s.Equal(int64(0), b.Withdrawn)

	s.Require().NoError(b.Reserve(100000))
	s.Require().NoError(b.Finalize(100000))
	s.Equal(int64(0), b.Available)
	s.Equal(int64(100000), b.Withdrawn)
	s.NoError(b.Validate())

	// нечего финализировать.
	s.ErrorIs(b.Finalize(1), ErrLedgerIntegrity)
	s.ErrorIs(b.Unreserve(1), ErrLedgerIntegrity)
}

func (s *BalanceTestSuite) TestValidate() {
	cases := []struct {
		name    string
		balance Balance
		wantErr bool
	}{
		{name: "zero", balance: Balance{}},
		{name: "consistent", balance: Balance{TotalEarnings: 10, Available: 3, Pending: 3, Reserved: 2, Withdrawn: 2}},
		{name: "sum mismatch", balance: Balance{TotalEarnings: 10, Available: 3}, wantErr: true},
		{name: "negative bucket", balance: Balance{TotalEarnings: 0, Available: -5, Pending: 5}, wantErr: true},
	}
	for _, c := range cases {
		s.Run(c.name, func() {
			err := c.balance.Validate()
			if c.wantErr {
				s.ErrorIs(err, ErrLedgerIntegrity)
				return
			}
			s.NoError(err)
		})
	}
}
