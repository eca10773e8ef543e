package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/sirupsen/logrus"
)

// memState состояние базы в памяти. Хранит значения, а не указатели, чтобы снимок для отката был дешевым.
type memState struct {
	seq          int64
	transactions map[string]domain.Transaction
	balances     map[int64]domain.Balance
	withdrawals  map[int64]domain.Withdrawal
	items        map[int64]domain.Item
}

func (s memState) clone() memState {
	return memState{
		seq:          s.seq,
		transactions: cloneMap(s.transactions),
		balances:     cloneMap(s.balances),
		withdrawals:  cloneMap(s.withdrawals),
		items:        cloneMap(s.items),
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	res := make(map[K]V, len(m))
	for k, v := range m {
		res[k] = v
	}
	return res
}

// memStore база в памяти для сценарных тестов. Транзакции uow выполняются строго по очереди под мьютексом,
// что повторяет сериализацию по блокировке строки баланса, а при ошибке состояние откатывается.
type memStore struct {
	mu    sync.Mutex
	state memState
	now   func() time.Time
}

func newMemStore(now func() time.Time) *memStore {
	return &memStore{
		state: memState{
			transactions: make(map[string]domain.Transaction),
			balances:     make(map[int64]domain.Balance),
			withdrawals:  make(map[int64]domain.Withdrawal),
			items:        make(map[int64]domain.Item),
		},
		now: now,
	}
}

func (s *memStore) nextID() int64 {
	s.state.seq++
	return s.state.seq
}

func (s *memStore) repository(name uow.RepositoryName, inTx bool) (uow.Repository, error) {
	conn := memConn{store: s, inTx: inTx}
	switch repoargs.RepositoryName(name) {
	case repoargs.TransactionRepoName:
		return &memTransactionRepo{conn}, nil
	case repoargs.BalanceRepoName:
		return &memBalanceRepo{conn}, nil
	case repoargs.WithdrawalRepoName:
		return &memWithdrawalRepo{conn}, nil
	case repoargs.ItemRepoName:
		return &memItemRepo{conn}, nil
	default:
		return nil, uow.ErrRepositoryNotRegistered
	}
}

// snapshot возвращает копию состояния для проверок в тестах.
func (s *memStore) snapshot() memState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

func (s *memStore) putItem(item domain.Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.items[item.ID] = item
}

func (s *memStore) putBalance(b domain.Balance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state.balances[b.UserID] = b
}

func (s *memStore) putTransaction(t domain.Transaction) domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == 0 {
		t.ID = s.nextID()
	}
	s.state.transactions[t.OrderID] = t
	return t
}

type fakeUOW struct {
	store *memStore
}

func (u *fakeUOW) Register(uow.RepositoryName, uow.RepositoryFactory) error {
	return nil
}

func (u *fakeUOW) GetRepository(name uow.RepositoryName) (uow.Repository, error) {
	return u.store.repository(name, false)
}

func (u *fakeUOW) Do(ctx context.Context, fn func(context.Context, uow.TX) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	backup := u.store.state.clone()
	if err := fn(ctx, &memTX{store: u.store}); err != nil {
		u.store.state = backup
		return err
	}
	return nil
}

type memTX struct {
	store *memStore
}

func (t *memTX) Get(name uow.RepositoryName) (uow.Repository, error) {
	return t.store.repository(name, true)
}

// memConn внутри транзакции мьютекс уже захвачен uow.
type memConn struct {
	store *memStore
	inTx  bool
}

func (c memConn) lock() func() {
	if c.inTx {
		return func() {}
	}
	c.store.mu.Lock()
	return c.store.mu.Unlock
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("[repository/%s] %w", fmt.Sprintf(format, args...), domain.ErrRecordNotFound)
}

type memTransactionRepo struct{ memConn }

func (r *memTransactionRepo) Create(_ context.Context, args repoargs.TransactionCreate) (*domain.Transaction, error) {
	defer r.lock()()
	st := &r.store.state
	if _, ok := st.transactions[args.OrderID]; ok {
		return nil, domain.ErrDuplicateKey
	}
	sellerID := args.SellerID
	now := r.store.now()
	t := domain.Transaction{
		ID:        r.store.nextID(),
		CreatedAt: now,
		UpdatedAt: now,
		OrderID:   args.OrderID,
		Amount:    args.Amount,
		Status:    domain.TransactionStatusPending,
		ItemType:  args.ItemType,
		ItemID:    args.ItemID,
		ItemTitle: args.ItemTitle,
		BuyerID:   args.BuyerID,
		SellerID:  &sellerID,
		ExpiresAt: args.ExpiresAt,
	}
	st.transactions[t.OrderID] = t
	return &t, nil
}

func (r *memTransactionRepo) FindByOrderID(_ context.Context, orderID string) (*domain.Transaction, error) {
	defer r.lock()()
	t, ok := r.store.state.transactions[orderID]
	if !ok {
		return nil, notFound("find transaction %s", orderID)
	}
	return &t, nil
}

func (r *memTransactionRepo) SetSession(_ context.Context, args repoargs.TransactionSession) error {
	defer r.lock()()
	for k, t := range r.store.state.transactions {
		if t.ID == args.ID {
			t.SessionToken = args.SessionToken
			t.RedirectURL = args.RedirectURL
			r.store.state.transactions[k] = t
			return nil
		}
	}
	return notFound("set session %d", args.ID)
}

func (r *memTransactionRepo) CompareAndSetStatus(
	_ context.Context,
	args repoargs.TransactionStatusCAS,
) (*domain.Transaction, error) {
	defer r.lock()()
	t, ok := r.store.state.transactions[args.OrderID]
	if !ok || t.Status != args.From {
		return nil, notFound("cas transaction %s", args.OrderID)
	}
	t.Status = args.To
	if args.SellerID != nil {
		t.SellerID = args.SellerID
	}
	if args.PaymentMethod != "" {
		t.PaymentMethod = args.PaymentMethod
	}
	if args.FraudStatus != "" {
		t.FraudStatus = args.FraudStatus
	}
	if args.GatewayTransactionID != "" {
		t.GatewayTransactionID = args.GatewayTransactionID
	}
	if args.CompletedAt != nil {
		t.CompletedAt = args.CompletedAt
	}
	t.UpdatedAt = r.store.now()
	r.store.state.transactions[args.OrderID] = t
	return &t, nil
}

func (r *memTransactionRepo) filter(fn func(t domain.Transaction) bool) []domain.Transaction {
	var res []domain.Transaction
	for _, t := range r.store.state.transactions {
		if fn(t) {
			res = append(res, t)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *memTransactionRepo) GetPendingForReconciliation(_ context.Context, limit uint) ([]domain.Transaction, error) {
	defer r.lock()()
	res := r.filter(func(t domain.Transaction) bool { return t.Status == domain.TransactionStatusPending })
	return res[:min(uint(len(res)), limit)], nil
}

func (r *memTransactionRepo) GetUnreleasedCompleted(
	_ context.Context,
	completedBefore time.Time,
	limit uint,
) ([]domain.Transaction, error) {
	defer r.lock()()
	res := r.filter(func(t domain.Transaction) bool {
		return t.Status == domain.TransactionStatusCompleted && !t.Released && !t.CompletedAt.After(completedBefore)
	})
	return res[:min(uint(len(res)), limit)], nil
}

func (r *memTransactionRepo) MarkReleased(_ context.Context, id int64, releasedAt time.Time) (bool, error) {
	defer r.lock()()
	for k, t := range r.store.state.transactions {
		if t.ID != id {
			continue
		}
		if t.Status != domain.TransactionStatusCompleted || t.Released {
			return false, nil
		}
		t.Released = true
		t.ReleasedAt = &releasedAt
		r.store.state.transactions[k] = t
		return true, nil
	}
	return false, nil
}

func (r *memTransactionRepo) GetCompletedBySeller(_ context.Context, sellerID int64) ([]domain.Transaction, error) {
	defer r.lock()()
	return r.filter(func(t domain.Transaction) bool {
		return t.Status == domain.TransactionStatusCompleted && t.SellerID != nil && *t.SellerID == sellerID
	}), nil
}

func (r *memTransactionRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Transaction, error) {
	defer r.lock()()
	return r.filter(func(t domain.Transaction) bool { return t.IsParticipant(userID) }), nil
}

type memBalanceRepo struct{ memConn }

func (r *memBalanceRepo) GetOrCreateForUpdate(_ context.Context, userID int64) (*domain.Balance, error) {
	defer r.lock()()
	b, ok := r.store.state.balances[userID]
	if !ok {
		now := r.store.now()
		b = domain.Balance{UserID: userID, CreatedAt: now, UpdatedAt: now}
		r.store.state.balances[userID] = b
	}
	return &b, nil
}

func (r *memBalanceRepo) FindByUserID(_ context.Context, userID int64) (*domain.Balance, error) {
	defer r.lock()()
	b, ok := r.store.state.balances[userID]
	if !ok {
		return nil, notFound("find balance %d", userID)
	}
	return &b, nil
}

// Save повторяет CHECK ограничения таблицы balances.
func (r *memBalanceRepo) Save(_ context.Context, b *domain.Balance) error {
	defer r.lock()()
	if err := b.Validate(); err != nil {
		return fmt.Errorf("[repository/save balance] %w", err)
	}
	b.UpdatedAt = r.store.now()
	r.store.state.balances[b.UserID] = *b
	return nil
}

type memWithdrawalRepo struct{ memConn }

func (r *memWithdrawalRepo) active(userID int64) (domain.Withdrawal, bool) {
	for _, w := range r.store.state.withdrawals {
		if w.UserID == userID && !w.Status.IsTerminal() {
			return w, true
		}
	}
	return domain.Withdrawal{}, false
}

// Create повторяет частичный уникальный индекс по активным заявкам.
func (r *memWithdrawalRepo) Create(_ context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	defer r.lock()()
	if _, ok := r.active(args.UserID); ok {
		return nil, fmt.Errorf("[repository/create withdrawal] %w", domain.ErrDuplicateKey)
	}
	now := r.store.now()
	w := domain.Withdrawal{
		ID:          r.store.nextID(),
		CreatedAt:   now,
		UpdatedAt:   now,
		UserID:      args.UserID,
		Amount:      args.Amount,
		Destination: args.Destination,
		Status:      domain.WithdrawalStatusPending,
	}
	r.store.state.withdrawals[w.ID] = w
	return &w, nil
}

func (r *memWithdrawalRepo) FindByID(_ context.Context, id int64) (*domain.Withdrawal, error) {
	defer r.lock()()
	w, ok := r.store.state.withdrawals[id]
	if !ok {
		return nil, notFound("find withdrawal %d", id)
	}
	return &w, nil
}

func (r *memWithdrawalRepo) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	return r.FindByID(ctx, id)
}

func (r *memWithdrawalRepo) FindActiveByUserID(_ context.Context, userID int64) (*domain.Withdrawal, error) {
	defer r.lock()()
	w, ok := r.active(userID)
	if !ok {
		return nil, notFound("find active withdrawal %d", userID)
	}
	return &w, nil
}

func (r *memWithdrawalRepo) UpdateStatus(
	_ context.Context,
	args repoargs.WithdrawalStatusCAS,
) (*domain.Withdrawal, error) {
	defer r.lock()()
	w, ok := r.store.state.withdrawals[args.ID]
	if !ok || w.Status != args.From {
		return nil, notFound("update withdrawal %d", args.ID)
	}
	w.Status = args.To
	if args.RejectionReason != nil {
		w.RejectionReason = args.RejectionReason
	}
	if args.ProcessedBy != nil {
		w.ProcessedBy = args.ProcessedBy
	}
	if args.ProcessedAt != nil {
		w.ProcessedAt = args.ProcessedAt
	}
	w.UpdatedAt = r.store.now()
	r.store.state.withdrawals[w.ID] = w
	return &w, nil
}

func (r *memWithdrawalRepo) list(fn func(w domain.Withdrawal) bool) []domain.Withdrawal {
	var res []domain.Withdrawal
	for _, w := range r.store.state.withdrawals {
		if fn(w) {
			res = append(res, w)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (r *memWithdrawalRepo) GetByUserID(_ context.Context, userID int64) ([]domain.Withdrawal, error) {
	defer r.lock()()
	return r.list(func(w domain.Withdrawal) bool { return w.UserID == userID }), nil
}

func (r *memWithdrawalRepo) GetByStatuses(
	_ context.Context,
	statuses []domain.WithdrawalStatusType,
) ([]domain.Withdrawal, error) {
	defer r.lock()()
	return r.list(func(w domain.Withdrawal) bool { return slices.Contains(statuses, w.Status) }), nil
}

type memItemRepo struct{ memConn }

func (r *memItemRepo) FindByID(_ context.Context, id int64) (*domain.Item, error) {
	defer r.lock()()
	i, ok := r.store.state.items[id]
	if !ok {
		return nil, notFound("find item %d", id)
	}
	return &i, nil
}

func (r *memItemRepo) DecrementStock(_ context.Context, id int64) error {
	defer r.lock()()
	i, ok := r.store.state.items[id]
	if !ok || i.Stock <= 0 {
		return notFound("decrement stock %d", id)
	}
	i.Stock--
	r.store.state.items[id] = i
	return nil
}

// fakeGateway шлюз, статусы заказов в котором задает тест.
type fakeGateway struct {
	mu          sync.Mutex
	statuses    map[string]domain.GatewayStatus
	statusCalls int
	sessionErr  error
	statusErr   error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{statuses: make(map[string]domain.GatewayStatus)}
}

func (g *fakeGateway) CreateSession(_ context.Context, args domain.SessionRequest) (*domain.PaymentSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	g.statuses[args.OrderID] = domain.GatewayStatus{Status: domain.TransactionStatusPending}
	return &domain.PaymentSession{
		Token:       "token-" + args.OrderID,
		RedirectURL: "https://pay.example.com/" + args.OrderID,
	}, nil
}

func (g *fakeGateway) GetStatus(_ context.Context, orderID string) (*domain.GatewayStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	st, ok := g.statuses[orderID]
	if !ok {
		return nil, domain.NewGatewayError("status", errors.New("order not found"))
	}
	return &st, nil
}

func (g *fakeGateway) setStatus(orderID string, status domain.TransactionStatusType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[orderID] = domain.GatewayStatus{
		Status:               status,
		PaymentMethod:        "bank_transfer",
		GatewayTransactionID: "gw-" + orderID,
	}
}

func (g *fakeGateway) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.statusCalls
}

type fakeNotifier struct {
	mu            sync.Mutex
	notifications []domain.Notification
}

func (n *fakeNotifier) Notify(_ context.Context, notification domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
	return nil
}

func (n *fakeNotifier) byType(t domain.NotificationType) []domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var res []domain.Notification
	for _, notification := range n.notifications {
		if notification.Type == t {
			res = append(res, notification)
		}
	}
	return res
}

// testClock управляемые часы.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
