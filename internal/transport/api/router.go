package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/transport/api/middlewares"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

const (
	DefaultServiceTimeout = 3 * time.Second
	// DefaultGatewayRequestTimeout для запросов, которые ходят в платежный шлюз.
	DefaultGatewayRequestTimeout = 15 * time.Second
)

const (
	RouteGroup         = "/api"
	MetricsRoute       = "/metrics"
	PaymentsRoute      = "/payments"
	PaymentRoute       = "/payments/:orderID"
	NotificationRoute  = "/payments/notification"
	BalanceRoute       = "/balance"
	WithdrawalsRoute   = "/withdrawals"
	AdminGroup         = "/admin"
	AdminDecisionRoute = "/withdrawals/:id/decision"
	AdminWithdrawals   = "/withdrawals"
	AdminAuditRoute    = "/balances/:userID/audit"
	AdminReleasesRoute = "/releases"
)

type RouterArgs struct {
	Logger            *logrus.Logger
	Metrics           *metrics.Metrics
	MetricsHandler    http.Handler
	PaymentService    PaymentServicer
	Verifier          NotificationVerifier
	BalanceService    BalanceServicer
	WithdrawalService WithdrawalServicer
	Releaser          ReleaseRunner
	JWTSecretKey      []byte
}

func New(args RouterArgs) (*gin.Engine, error) {
	if err := registerValidators(); err != nil {
		return nil, fmt.Errorf("router: %w", err)
	}

	l := args.Logger
	if l == nil {
		l = logrus.New()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if args.Logger != nil {
		r.Use(middlewares.Logger(args.Logger, args.Metrics))
	}
	r.Use(middlewares.Errors())

	if args.MetricsHandler != nil {
		r.GET(MetricsRoute, gin.WrapH(args.MetricsHandler))
	}

	paymentsHandler := NewPaymentsHandler(args.PaymentService, args.Verifier, l)
	balanceHandler := NewBalanceHandler(args.BalanceService)
	withdrawalsHandler := NewWithdrawalsHandler(args.WithdrawalService)
	adminHandler := NewAdminHandler(args.WithdrawalService, args.BalanceService, args.Releaser)

	api := r.Group(RouteGroup)

	// уведомления шлюза приходят без JWT, подлинность проверяется подписью.
	api.POST(NotificationRoute, paymentsHandler.Notification)

	api.Use(middlewares.AuthRequired(args.JWTSecretKey))
	// ниже все роуты группы требуют авторизованного пользователя.
	api.POST(PaymentsRoute, paymentsHandler.Initiate)
	api.GET(PaymentsRoute, paymentsHandler.Index)
	api.GET(PaymentRoute, paymentsHandler.Show)

	api.GET(BalanceRoute, balanceHandler.Index)

	api.POST(WithdrawalsRoute, withdrawalsHandler.Create)
	api.GET(WithdrawalsRoute, withdrawalsHandler.Index)

	admin := api.Group(AdminGroup, middlewares.OperatorRequired())
	admin.POST(AdminDecisionRoute, adminHandler.Decide)
	admin.GET(AdminWithdrawals, adminHandler.Withdrawals)
	admin.GET(AdminAuditRoute, adminHandler.Audit)
	admin.POST(AdminReleasesRoute, adminHandler.Release)
	return r, nil
}
