package service

import "time"

const (
	DefaultHoldingPeriod  = 72 * time.Hour
	DefaultPaymentExpiry  = 24 * time.Hour
	DefaultGatewayTimeout = 10 * time.Second
	DefaultMinWithdrawal  = 50000
	DefaultReleaseBatch   = 100
)

// Settings параметры расчетов.
type Settings struct {
	// HoldingPeriod время, через которое заработок с продажи становится доступен к выводу.
	HoldingPeriod time.Duration
	// PaymentExpiry сколько ждем оплату, после чего транзакция считается просроченной.
	PaymentExpiry  time.Duration
	GatewayTimeout time.Duration
	// FinishURL куда шлюз вернет покупателя после оплаты.
	FinishURL     string
	MinWithdrawal int64
	ReleaseBatch  uint
}

// withDefaults заполняет незаданные параметры значениями по умолчанию.
func (s Settings) withDefaults() Settings {
	if s.HoldingPeriod <= 0 {
		s.HoldingPeriod = DefaultHoldingPeriod
	}
	if s.PaymentExpiry <= 0 {
		s.PaymentExpiry = DefaultPaymentExpiry
	}
	if s.GatewayTimeout <= 0 {
		s.GatewayTimeout = DefaultGatewayTimeout
	}
	if s.MinWithdrawal <= 0 {
		s.MinWithdrawal = DefaultMinWithdrawal
	}
	if s.ReleaseBatch == 0 {
		s.ReleaseBatch = DefaultReleaseBatch
	}
	return s
}
