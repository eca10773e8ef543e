package reconcile

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
	"github.com/fsdevblog/campus-ledger/internal/transport/reconcile/mocks"
	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"
)

type ProcessorTestSuite struct {
	suite.Suite
	processor   *Processor
	mockService *mocks.MockServicer
	ctrl        *gomock.Controller
}

func (s *ProcessorTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.mockService = mocks.NewMockServicer(s.ctrl)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	s.processor = New(s.mockService, logger).SetWorkers(2).SetLimitPerIteration(10)
}

func (s *ProcessorTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func TestProcessorSuite(t *testing.T) {
	suite.Run(t, new(ProcessorTestSuite))
}

func pending(orderID string) domain.Transaction {
	return domain.Transaction{OrderID: orderID, Status: domain.TransactionStatusPending}
}

func withStatus(t domain.Transaction, status domain.TransactionStatusType) *domain.Transaction {
	t.Status = status
	return &t
}

func (s *ProcessorTestSuite) TestProcess_NoTransactions() {
	s.mockService.EXPECT().
		TransactionsForReconciliation(gomock.Any(), uint(10)).
		Return(nil, nil)

	err := s.processor.process(s.T().Context())
	s.ErrorIs(err, ErrNoTransactions)
}

func (s *ProcessorTestSuite) TestProcess_ServiceError() {
	s.mockService.EXPECT().
		TransactionsForReconciliation(gomock.Any(), uint(10)).
		Return(nil, errors.New("connection refused"))

	err := s.processor.process(s.T().Context())
	s.Require().Error(err)
	s.NotErrorIs(err, ErrNoTransactions)
}

func (s *ProcessorTestSuite) TestRunWorkers() {
	transactions := []domain.Transaction{pending("CMP-1"), pending("CMP-2"), pending("CMP-3")}

	s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), transactions[0]).
		Return(withStatus(transactions[0], domain.TransactionStatusCompleted), nil)
	s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), transactions[1]).
		Return(withStatus(transactions[1], domain.TransactionStatusPending), nil)
	s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), transactions[2]).
		Return(&transactions[2], domain.NewGatewayError("status", context.DeadlineExceeded))

	results := s.processor.runWorkers(s.T().Context(), transactions)
	s.Require().Len(results, 3)

	byOrder := make(map[string]workerResult, len(results))
	for _, r := range results {
		byOrder[r.Transaction.OrderID] = r
	}
	s.Equal(domain.TransactionStatusCompleted, byOrder["CMP-1"].Status)
	s.Equal(domain.TransactionStatusPending, byOrder["CMP-2"].Status)
	s.ErrorIs(byOrder["CMP-3"].Error, domain.ErrGateway)
}

// TestProcessWorkerTask_TooManyRequests после 429 воркер ждет Retry-After и повторяет сверку.
func (s *ProcessorTestSuite) TestProcessWorkerTask_TooManyRequests() {
	t := pending("CMP-1")
	limited := domain.NewGatewayError("status", gateway.NewTooManyRequestError(10*time.Millisecond))

	gomock.InOrder(
		s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), t).Return(nil, limited),
		s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), t).
			Return(withStatus(t, domain.TransactionStatusCompleted), nil),
	)

	result := s.processor.processWorkerTask(s.T().Context(), 1, &t)
	s.Require().NoError(result.Error)
	s.Equal(domain.TransactionStatusCompleted, result.Status)
}

func (s *ProcessorTestSuite) TestProcessWorkerTask_CanceledWhileWaiting() {
	t := pending("CMP-1")
	limited := domain.NewGatewayError("status", gateway.NewTooManyRequestError(time.Minute))
	s.mockService.EXPECT().ReconcileTransaction(gomock.Any(), t).Return(nil, limited)

	ctx, cancel := context.WithCancel(s.T().Context())
	cancel()

	result := s.processor.processWorkerTask(ctx, 1, &t)
	s.ErrorIs(result.Error, context.Canceled)
}

func (s *ProcessorTestSuite) TestRun_StopsOnCancel() {
	s.mockService.EXPECT().
		TransactionsForReconciliation(gomock.Any(), uint(10)).
		Return(nil, nil).AnyTimes()

	ctx, cancel := context.WithCancel(s.T().Context())
	done := make(chan struct{})
	go func() {
		s.processor.SetInterval(10 * time.Millisecond).Run(ctx)
		close(done)
	}()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		s.Fail("processor did not stop")
	}
}

func TestJitter(t *testing.T) {
	for range 100 {
		v := jitter(100, 0.15, 0.15)
		if v < 85 || v > 115 {
			t.Fatalf("jitter out of range: %f", v)
		}
	}
}
