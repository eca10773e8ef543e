package service

import (
	"fmt"

	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/sirupsen/logrus"
)

type AppServices struct {
	PaymentService    *PaymentService
	ReleaseService    *ReleaseService
	WithdrawalService *WithdrawalService
	BalanceService    *BalanceService
}

func Factory(
	unitOfWork uow.UOW,
	gateway Gateway,
	notifier Notifier,
	m *metrics.Metrics,
	settings Settings,
	l *logrus.Logger,
) (*AppServices, error) {
	settings = settings.withDefaults()
	ledger := NewLedger(settings.HoldingPeriod, m, l)

	paymentService, paymentServiceErr := NewPaymentService(unitOfWork, gateway, ledger, notifier, m, settings, l)
	if paymentServiceErr != nil {
		return nil, fmt.Errorf("service factory: %w", paymentServiceErr)
	}

	releaseService, releaseServiceErr := NewReleaseService(unitOfWork, ledger, notifier, m, settings, l)
	if releaseServiceErr != nil {
		return nil, fmt.Errorf("service factory: %w", releaseServiceErr)
	}

	withdrawalService, withdrawalServiceErr := NewWithdrawalService(unitOfWork, ledger, notifier, m, settings, l)
	if withdrawalServiceErr != nil {
		return nil, fmt.Errorf("service factory: %w", withdrawalServiceErr)
	}

	balanceService, balanceServiceErr := NewBalanceService(unitOfWork, m, l)
	if balanceServiceErr != nil {
		return nil, fmt.Errorf("service factory: %w", balanceServiceErr)
	}

	return &AppServices{
		PaymentService:    paymentService,
		ReleaseService:    releaseService,
		WithdrawalService: withdrawalService,
		BalanceService:    balanceService,
	}, nil
}
