package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/metrics"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jaevor/go-nanoid"
	"github.com/sirupsen/logrus"
)

const (
	orderIDPrefix = "CMP-"
	orderIDLength = 21
)

type PaymentService struct {
	uow        uow.UOW
	txRepo     TransactionRepository
	itemRepo   ItemRepository
	gateway    Gateway
	ledger     *Ledger
	notifier   Notifier
	metrics    *metrics.Metrics
	settings   Settings
	newOrderID func() string
	now        func() time.Time
	l          *logrus.Entry
}

func NewPaymentService(
	u uow.UOW,
	gateway Gateway,
	ledger *Ledger,
	notifier Notifier,
	m *metrics.Metrics,
	settings Settings,
	l *logrus.Logger,
) (*PaymentService, error) {
	txRepo, err := uow.GetRepositoryAs[TransactionRepository](u, uow.RepositoryName(repoargs.TransactionRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	itemRepo, err := uow.GetRepositoryAs[ItemRepository](u, uow.RepositoryName(repoargs.ItemRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	idGenerator, err := nanoid.Standard(orderIDLength)
	if err != nil {
		return nil, fmt.Errorf("order id generator: %w", err)
	}

	return &PaymentService{
		uow:      u,
		txRepo:   txRepo,
		itemRepo: itemRepo,
		gateway:  gateway,
		ledger:   ledger,
		notifier: notifier,
		metrics:  m,
		settings: settings.withDefaults(),
		newOrderID: func() string {
			return orderIDPrefix + idGenerator()
		},
		now: time.Now,
		l:   l.WithField("component", "service").WithField("module", "payment"),
	}, nil
}

// SetClock подменяет источник текущего времени.
func (s *PaymentService) SetClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

type InitiatePaymentArgs struct {
	BuyerID    int64
	ItemID     int64
	ItemType   domain.ItemType
	Amount     int64
	Title      string
	BuyerName  string
	BuyerEmail string
}

type InitiatePaymentResult struct {
	TransactionID int64
	OrderID       string
	Token         string
	RedirectURL   string
}

// InitiatePayment создает транзакцию в статусе PENDING и платежную сессию в шлюзе.
//
// Перед созданием проверяет, что товар существует, доступен к покупке, тип совпадает и покупатель не продавец.
// Продавец фиксируется в транзакции сразу. Если шлюз не смог создать сессию, транзакция переводится в FAILED
// и возвращается *domain.GatewayError.
func (s *PaymentService) InitiatePayment(
	ctx context.Context,
	args InitiatePaymentArgs,
) (*InitiatePaymentResult, error) {
	if args.Amount <= 0 {
		return nil, domain.NewValidationError(domain.ErrInvalidAmount, "amount %d", args.Amount)
	}

	item, err := s.itemRepo.FindByID(ctx, args.ItemID)
	if err != nil {
		return nil, fmt.Errorf("initiate payment: %w", err)
	}
	if err = s.validatePurchase(args, item); err != nil {
		return nil, err
	}

	title := args.Title
	if title == "" {
		title = item.Title
	}

	now := s.now()
	t, err := s.txRepo.Create(ctx, repoargs.TransactionCreate{
		OrderID:   s.newOrderID(),
		Amount:    args.Amount,
		ItemType:  item.Type,
		ItemID:    item.ID,
		ItemTitle: title,
		BuyerID:   args.BuyerID,
		SellerID:  item.SellerID,
		ExpiresAt: now.Add(s.settings.PaymentExpiry),
	})
	if err != nil {
		return nil, fmt.Errorf("initiate payment: %w", err)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	session, err := s.gateway.CreateSession(gwCtx, domain.SessionRequest{
		OrderID:     t.OrderID,
		GrossAmount: t.Amount,
		ItemID:      t.ItemID,
		ItemTitle:   t.ItemTitle,
		BuyerID:     t.BuyerID,
		BuyerName:   args.BuyerName,
		BuyerEmail:  args.BuyerEmail,
		FinishURL:   s.settings.FinishURL,
		Expiry:      s.settings.PaymentExpiry,
	})
	cancel()
	if err != nil {
		s.metrics.RecordGatewayError("create_session")
		s.failTransaction(ctx, t)
		return nil, fmt.Errorf("initiate payment %s: %w", t.OrderID, err)
	}

	if err = s.txRepo.SetSession(ctx, repoargs.TransactionSession{
		ID:           t.ID,
		SessionToken: session.Token,
		RedirectURL:  session.RedirectURL,
	}); err != nil {
		return nil, fmt.Errorf("initiate payment %s: %w", t.OrderID, err)
	}

	s.l.WithFields(logrus.Fields{
		"order_id": t.OrderID,
		"amount":   t.Amount,
		"buyer_id": t.BuyerID,
	}).Info("payment initiated")

	return &InitiatePaymentResult{
		TransactionID: t.ID,
		OrderID:       t.OrderID,
		Token:         session.Token,
		RedirectURL:   session.RedirectURL,
	}, nil
}

func (s *PaymentService) validatePurchase(args InitiatePaymentArgs, item *domain.Item) error {
	if !args.ItemType.IsValid() || item.Type != args.ItemType {
		return domain.NewValidationError(domain.ErrItemTypeMismatch, "item %d is %s", item.ID, item.Type)
	}
	if !item.CanBePurchased() {
		return domain.NewValidationError(domain.ErrItemUnavailable, "item %d", item.ID)
	}
	if item.SellerID == args.BuyerID {
		return domain.NewValidationError(domain.ErrSelfPurchase, "item %d", item.ID)
	}
	return nil
}

// failTransaction переводит транзакцию без платежной сессии в FAILED. Ошибка только логируется: если перевод
// не удался, транзакция истечет сама.
func (s *PaymentService) failTransaction(ctx context.Context, t *domain.Transaction) {
	if _, err := s.txRepo.CompareAndSetStatus(ctx, repoargs.TransactionStatusCAS{
		OrderID: t.OrderID,
		From:    domain.TransactionStatusPending,
		To:      domain.TransactionStatusFailed,
	}); err != nil {
		s.l.WithError(err).WithField("order_id", t.OrderID).Warn("failed to mark transaction as failed")
		return
	}
	s.metrics.RecordTransition(string(domain.TransactionStatusFailed))
}

// CheckStatus возвращает транзакцию участнику сделки, предварительно сверив статус со шлюзом. Ошибка шлюза
// не возвращается: сверка откладывается, отдается последний известный статус.
func (s *PaymentService) CheckStatus(ctx context.Context, orderID string, userID int64) (*domain.Transaction, error) {
	t, err := s.txRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("check status: %w", err)
	}
	if !t.IsParticipant(userID) {
		return nil, domain.ErrForbidden
	}

	reconciled, err := s.reconcile(ctx, t)
	if err != nil {
		if errors.Is(err, domain.ErrGateway) {
			s.l.WithError(err).WithField("order_id", orderID).Warn("reconciliation deferred")
			return t, nil
		}
		return nil, err
	}
	return reconciled, nil
}

// Reconcile сверяет статус транзакции orderID со шлюзом и применяет переход. Повторный вызов для транзакции
// в терминальном статусе ничего не делает.
func (s *PaymentService) Reconcile(ctx context.Context, orderID string) (*domain.Transaction, error) {
	t, err := s.txRepo.FindByOrderID(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("reconcile %s: %w", orderID, err)
	}
	return s.reconcile(ctx, t)
}

// ReconcileTransaction то же что Reconcile, для уже загруженной транзакции.
func (s *PaymentService) ReconcileTransaction(ctx context.Context, t domain.Transaction) (*domain.Transaction, error) {
	return s.reconcile(ctx, &t)
}

// reconcile алгоритм:
//  1. Терминальный статус - ничего не делаем.
//  2. Срок оплаты истек - переводим в EXPIRED без запроса к шлюзу.
//  3. Запрашиваем статус в шлюзе. PENDING - ничего не делаем.
//  4. Применяем переход (см. applyTransition).
func (s *PaymentService) reconcile(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if t.Status.IsTerminal() {
		return t, nil
	}

	now := s.now()
	if t.IsExpired(now) {
		return s.applyTransition(ctx, t, domain.GatewayStatus{Status: domain.TransactionStatusExpired}, now)
	}

	gwCtx, cancel := context.WithTimeout(ctx, s.settings.GatewayTimeout)
	status, err := s.gateway.GetStatus(gwCtx, t.OrderID)
	cancel()
	if err != nil {
		s.metrics.RecordGatewayError("status")
		return t, fmt.Errorf("reconcile %s: %w", t.OrderID, err)
	}

	if !t.Status.CanTransitionTo(status.Status) {
		return t, nil
	}
	return s.applyTransition(ctx, t, *status, now)
}

// applyTransition в одной транзакции БД выполняет CAS статуса и, при первом переходе в COMPLETED, зачисление
// продавцу и списание остатка товара. Если переход уже применил кто-то другой, возвращается актуальная
// транзакция без побочных эффектов. Уведомления и метрики отправляются только после коммита.
func (s *PaymentService) applyTransition(
	ctx context.Context,
	t *domain.Transaction,
	status domain.GatewayStatus,
	now time.Time,
) (*domain.Transaction, error) {
	var updated *domain.Transaction
	var credit *CreditResult

	txErr := s.uow.Do(ctx, func(c context.Context, tx uow.TX) error {
		credit = nil

		var err error
		updated, err = s.compareAndSetStatus(c, tx, t, status, now)
		if err != nil {
			return err
		}
		if updated.Status != domain.TransactionStatusCompleted {
			return nil
		}

		if credit, err = s.settle(c, tx, updated, now); err != nil {
			return err
		}
		return s.fulfill(c, tx, updated)
	})

	if errors.Is(txErr, domain.ErrConflict) {
		s.l.WithField("order_id", t.OrderID).Debug("transition already applied")
		latest, err := s.txRepo.FindByOrderID(ctx, t.OrderID)
		if err != nil {
			return nil, fmt.Errorf("reconcile %s: %w", t.OrderID, err)
		}
		return latest, nil
	}
	if txErr != nil {
		return t, fmt.Errorf("reconcile %s: %w", t.OrderID, txErr)
	}

	s.afterTransition(ctx, updated, credit)
	return updated, nil
}

func (s *PaymentService) compareAndSetStatus(
	ctx context.Context,
	tx uow.TX,
	t *domain.Transaction,
	status domain.GatewayStatus,
	now time.Time,
) (*domain.Transaction, error) {
	repo, err := uow.GetAs[TransactionRepository](tx, uow.RepositoryName(repoargs.TransactionRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	args := repoargs.TransactionStatusCAS{
		OrderID:              t.OrderID,
		From:                 t.Status,
		To:                   status.Status,
		PaymentMethod:        status.PaymentMethod,
		FraudStatus:          status.FraudStatus,
		GatewayTransactionID: status.GatewayTransactionID,
	}
	if status.Status == domain.TransactionStatusCompleted {
		sellerID, sellerErr := s.resolveSeller(ctx, tx, t)
		if sellerErr != nil {
			return nil, sellerErr
		}
		args.SellerID = &sellerID
		args.CompletedAt = &now
	}

	updated, err := repo.CompareAndSetStatus(ctx, args)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrConflict
		}
		return nil, err //nolint:wrapcheck
	}
	return updated, nil
}

// resolveSeller продавец фиксируется при создании транзакции. Для старых записей без продавца берем
// продавца товара по ссылке, никогда по названию.
func (s *PaymentService) resolveSeller(ctx context.Context, tx uow.TX, t *domain.Transaction) (int64, error) {
	if t.SellerID != nil {
		return *t.SellerID, nil
	}
	itemRepo, err := uow.GetAs[ItemRepository](tx, uow.RepositoryName(repoargs.ItemRepoName))
	if err != nil {
		return 0, err //nolint:wrapcheck
	}
	item, err := itemRepo.FindByID(ctx, t.ItemID)
	if err != nil {
		return 0, fmt.Errorf("resolve seller of item %d: %w", t.ItemID, err)
	}
	return item.SellerID, nil
}

// settle зачисляет заработок продавцу. Если холд уже истек, транзакция сразу помечается как выпущенная, чтобы
// планировщик не перевел ее повторно.
func (s *PaymentService) settle(
	ctx context.Context,
	tx uow.TX,
	t *domain.Transaction,
	now time.Time,
) (*CreditResult, error) {
	credit, err := s.ledger.Credit(ctx, tx, *t.SellerID, t.Amount, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	if !credit.Matured {
		return credit, nil
	}

	repo, err := uow.GetAs[TransactionRepository](tx, uow.RepositoryName(repoargs.TransactionRepoName))
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	if _, err = repo.MarkReleased(ctx, t.ID, now); err != nil {
		return nil, err //nolint:wrapcheck
	}
	t.Released = true
	t.ReleasedAt = &now
	return credit, nil
}

// fulfill одноразовый побочный эффект оплаты. Для товара списывается единица остатка, у услуг остатков нет.
func (s *PaymentService) fulfill(ctx context.Context, tx uow.TX, t *domain.Transaction) error {
	if t.ItemType != domain.ItemTypeProduct {
		return nil
	}
	itemRepo, err := uow.GetAs[ItemRepository](tx, uow.RepositoryName(repoargs.ItemRepoName))
	if err != nil {
		return err //nolint:wrapcheck
	}
	if err = itemRepo.DecrementStock(ctx, t.ItemID); err != nil {
		// оплата уже прошла, поэтому нехватку остатка только логируем.
		if errors.Is(err, domain.ErrRecordNotFound) {
			s.l.WithField("order_id", t.OrderID).WithField("item_id", t.ItemID).Warn("item out of stock on settlement")
			return nil
		}
		return err //nolint:wrapcheck
	}
	return nil
}

func (s *PaymentService) afterTransition(ctx context.Context, t *domain.Transaction, credit *CreditResult) {
	s.metrics.RecordTransition(string(t.Status))
	s.l.WithFields(logrus.Fields{
		"order_id": t.OrderID,
		"status":   t.Status,
	}).Info("transaction status changed")

	if credit != nil {
		s.metrics.RecordCredit(credit.Earnings, credit.Fee)
		s.notify(ctx, domain.Notification{
			UserID:    *t.SellerID,
			Type:      domain.NotificationPaymentCompleted,
			Title:     "Payment received",
			Message:   fmt.Sprintf("Order %s for %q is paid, %d credited to your balance", t.OrderID, t.ItemTitle, credit.Earnings),
			Reference: t.OrderID,
		})
	}

	s.notify(ctx, domain.Notification{
		UserID:    t.BuyerID,
		Type:      domain.NotificationPaymentStatus,
		Title:     "Payment " + string(t.Status),
		Message:   fmt.Sprintf("Payment for order %s is %s", t.OrderID, t.Status),
		Reference: t.OrderID,
	})
}

func (s *PaymentService) notify(ctx context.Context, n domain.Notification) {
	if err := s.notifier.Notify(ctx, n); err != nil {
		s.l.WithError(err).WithField("user_id", n.UserID).Warn("failed to send notification")
	}
}

// TransactionsForReconciliation возвращает ожидающие оплаты транзакции для фоновой сверки.
func (s *PaymentService) TransactionsForReconciliation(ctx context.Context, limit uint) ([]domain.Transaction, error) {
	transactions, err := s.txRepo.GetPendingForReconciliation(ctx, limit)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return transactions, nil
}

// GetByUserID возвращает транзакции юзера как покупателя и как продавца, новые первыми.
func (s *PaymentService) GetByUserID(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	transactions, err := s.txRepo.GetByUserID(ctx, userID)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return transactions, nil
}
