package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "campus_ledger"

// Metrics метрики расчетов и баланса. Нулевой указатель допустим, все методы тогда ничего не делают.
type Metrics struct {
	// Переходы статусов транзакций
	TransactionTransitionsTotal *prometheus.CounterVec
	// Зачисления продавцам
	CreditedAmountTotal prometheus.Counter
	PlatformFeeTotal    prometheus.Counter
	// Перевод из холда в доступный баланс
	ReleasedTotal       prometheus.Counter
	ReleasedAmountTotal prometheus.Counter
	// Заявки на вывод
	WithdrawalTransitionsTotal *prometheus.CounterVec
	// Ошибки
	GatewayErrorsTotal     *prometheus.CounterVec
	IntegrityFailuresTotal prometheus.Counter
	// Время ответа шлюза
	GatewayRequestDuration *prometheus.HistogramVec
	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New регистрирует метрики в reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		TransactionTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "transaction_transitions_total",
				Help:      "Количество переходов транзакций в терминальный статус",
			},
			[]string{"status"},
		),
		CreditedAmountTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "credited_amount_total",
			Help:      "Сумма заработка, зачисленного продавцам",
		}),
		PlatformFeeTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "platform_fee_total",
			Help:      "Сумма комиссий площадки",
		}),
		ReleasedTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "released_transactions_total",
			Help:      "Количество транзакций, заработок по которым вышел из холда",
		}),
		ReleasedAmountTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "released_amount_total",
			Help:      "Сумма, переведенная из pending в available",
		}),
		WithdrawalTransitionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "withdrawal_transitions_total",
				Help:      "Количество переходов заявок на вывод по статусам",
			},
			[]string{"status"},
		),
		GatewayErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_errors_total",
				Help:      "Ошибки платежного шлюза",
			},
			[]string{"op"},
		),
		IntegrityFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_integrity_failures_total",
			Help:      "Попытки нарушить инвариант баланса",
		}),
		GatewayRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "gateway_request_duration_seconds",
				Help:      "Время запросов к платежному шлюзу",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 9), // 50ms ... 12.8s
			},
			[]string{"op"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Количество HTTP запросов",
			},
			[]string{"method", "route", "code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Время обработки HTTP запросов",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

func (m *Metrics) RecordTransition(status string) {
	if m == nil {
		return
	}
	m.TransactionTransitionsTotal.WithLabelValues(status).Inc()
}

// RecordCredit записывает зачисление продавцу и удержанную комиссию.
func (m *Metrics) RecordCredit(earnings, fee int64) {
	if m == nil {
		return
	}
	m.CreditedAmountTotal.Add(float64(earnings))
	m.PlatformFeeTotal.Add(float64(fee))
}

func (m *Metrics) RecordRelease(amount int64) {
	if m == nil {
		return
	}
	m.ReleasedTotal.Inc()
	m.ReleasedAmountTotal.Add(float64(amount))
}

func (m *Metrics) RecordWithdrawal(status string) {
	if m == nil {
		return
	}
	m.WithdrawalTransitionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordGatewayError(op string) {
	if m == nil {
		return
	}
	m.GatewayErrorsTotal.WithLabelValues(op).Inc()
}

func (m *Metrics) RecordGatewayDuration(op string, seconds float64) {
	if m == nil {
		return
	}
	m.GatewayRequestDuration.WithLabelValues(op).Observe(seconds)
}

func (m *Metrics) RecordIntegrityFailure() {
	if m == nil {
		return
	}
	m.IntegrityFailuresTotal.Inc()
}

func (m *Metrics) RecordHTTPRequest(method, route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(seconds)
}
