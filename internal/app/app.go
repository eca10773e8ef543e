package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/config"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/notify"
	"github.com/fsdevblog/campus-ledger/internal/repository/pgrepo"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/fsdevblog/campus-ledger/internal/transport/api"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
	"github.com/fsdevblog/campus-ledger/internal/transport/reconcile"
	"github.com/fsdevblog/campus-ledger/internal/transport/scheduler"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	// driver for migration applying postgres.
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive
	// driver to get migrations from files (*.sql in our case).
	_ "github.com/golang-migrate/migrate/v4/source/file" //nolint:revive
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 10 * time.Second
)

type notifier interface {
	service.Notifier
	Close() error
}

type App struct {
	Config *config.Config
	Logger *logrus.Logger
}

func New(conf *config.Config, l *logrus.Logger) *App {
	return &App{
		Config: conf,
		Logger: l,
	}
}

func (a *App) Run() error {
	notifyCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a.Logger.WithFields(logrus.Fields{
		"run_address":      a.Config.RunAddress,
		"gateway_api_url":  a.Config.GatewayAPIURL,
		"holding_period":   a.Config.HoldingPeriod.String(),
		"release_schedule": a.Config.ReleaseSchedule,
		"kafka_brokers":    a.Config.KafkaBrokers,
	}).Info("Starting app")

	conn, connErr := pgrepo.Connect(notifyCtx, a.Config.MigrationsDir, a.Config.DatabaseDSN, a.Logger)
	if connErr != nil {
		return fmt.Errorf("app run: %s", connErr.Error())
	}
	defer conn.Close()

	unitOfWork, uowErr := initUOW(conn)
	if uowErr != nil {
		return fmt.Errorf("app run: %s", uowErr.Error())
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	n := a.initNotifier()
	defer func() {
		if closeErr := n.Close(); closeErr != nil {
			a.Logger.WithError(closeErr).Error("close notifier")
		}
	}()

	gatewayClient := gateway.New(gateway.Config{
		APIURL:    a.Config.GatewayAPIURL,
		SnapURL:   a.Config.GatewaySnapURL,
		ServerKey: a.Config.GatewayServerKey,
		Timeout:   a.Config.GatewayTimeout,
	}, m, a.Logger)

	services, sErr := service.Factory(unitOfWork, gatewayClient, n, m, service.Settings{
		HoldingPeriod:  a.Config.HoldingPeriod,
		PaymentExpiry:  a.Config.PaymentExpiry,
		GatewayTimeout: a.Config.GatewayTimeout,
		FinishURL:      a.Config.GatewayFinishURL,
		MinWithdrawal:  a.Config.MinWithdrawal,
		ReleaseBatch:   a.Config.ReleaseBatch,
	}, a.Logger)
	if sErr != nil {
		return fmt.Errorf("app run: %s", sErr.Error())
	}

	releaseScheduler, schedErr := scheduler.New(services.ReleaseService, a.Config.ReleaseSchedule, a.Logger)
	if schedErr != nil {
		return fmt.Errorf("app run: %s", schedErr.Error())
	}

	router, routerErr := api.New(api.RouterArgs{
		Logger:            a.Logger,
		Metrics:           m,
		MetricsHandler:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		PaymentService:    services.PaymentService,
		Verifier:          gatewayClient,
		BalanceService:    services.BalanceService,
		WithdrawalService: services.WithdrawalService,
		Releaser:          releaseScheduler,
		JWTSecretKey:      []byte(a.Config.JWTSecret),
	})
	if routerErr != nil {
		return fmt.Errorf("app run: %s", routerErr.Error())
	}

	server := &http.Server{
		Addr:              a.Config.RunAddress,
		Handler:           router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errChan := make(chan error, 2) //nolint:mnd

	go func() {
		if runErr := server.ListenAndServe(); runErr != nil && !errors.Is(runErr, http.ErrServerClosed) {
			errChan <- runErr
		}
	}()

	processor := reconcile.New(services.PaymentService, a.Logger).
		SetInterval(a.Config.ReconcileInterval).
		SetWorkers(a.Config.ReconcileWorkers).
		SetLimitPerIteration(a.Config.ReconcileBatch)

	go processor.Run(notifyCtx)

	go func() {
		if runErr := releaseScheduler.Run(notifyCtx); runErr != nil {
			errChan <- runErr
		}
	}()

	var runErr error
	select {
	case <-notifyCtx.Done():
		runErr = notifyCtx.Err()
	case runErr = <-errChan:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
		a.Logger.WithError(shutdownErr).Error("http server shutdown")
	}
	return runErr
}

// initNotifier при заданных брокерах уведомления уходят в kafka, иначе только в лог.
func (a *App) initNotifier() notifier {
	if len(a.Config.KafkaBrokers) == 0 {
		a.Logger.Warn("kafka brokers are not set, notifications will be logged only")
		return notify.NewLogNotifier(a.Logger)
	}
	return notify.NewKafkaNotifier(a.Config.KafkaBrokers, a.Config.NotificationTopic, a.Logger)
}

func initUOW(conn *pgxpool.Pool) (*uow.UnitOfWork, error) {
	unitOfWork := uow.NewUnitOfWork(conn)

	// transaction repo
	transactionRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewTransactionRepository(dbtx)
	}
	if regErr := unitOfWork.Register(
		uow.RepositoryName(repoargs.TransactionRepoName),
		transactionRepoFactoryFn,
	); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// balance repo
	balanceRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewBalanceRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.BalanceRepoName), balanceRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// withdrawal repo
	withdrawalRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewWithdrawalRepository(dbtx)
	}
	if regErr := unitOfWork.Register(
		uow.RepositoryName(repoargs.WithdrawalRepoName),
		withdrawalRepoFactoryFn,
	); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	// item repo
	itemRepoFactoryFn := func(dbtx uow.DBTX) uow.Repository {
		return pgrepo.NewItemRepository(dbtx)
	}
	if regErr := unitOfWork.Register(uow.RepositoryName(repoargs.ItemRepoName), itemRepoFactoryFn); regErr != nil {
		return nil, fmt.Errorf("init UOW: %s", regErr.Error())
	}

	return unitOfWork, nil
}
