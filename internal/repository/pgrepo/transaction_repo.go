package pgrepo

import (
	"context"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const transactionColumns = `id, created_at, updated_at, order_id, amount, status, item_type, item_id, item_title,
	buyer_id, seller_id, payment_method, gateway_transaction_id, fraud_status, session_token, redirect_url,
	expires_at, completed_at, released, released_at`

type TransactionRepository struct {
	conn uow.DBTX
}

func NewTransactionRepository(conn uow.DBTX) *TransactionRepository {
	return &TransactionRepository{conn: conn}
}

func (r *TransactionRepository) Create(
	ctx context.Context,
	args repoargs.TransactionCreate,
) (*domain.Transaction, error) {
	row := r.conn.QueryRow(ctx, `INSERT INTO transactions
		(order_id, amount, status, item_type, item_id, item_title, buyer_id, seller_id, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+transactionColumns,
		args.OrderID, args.Amount, domain.TransactionStatusPending, args.ItemType, args.ItemID, args.ItemTitle,
		args.BuyerID, args.SellerID, args.ExpiresAt,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, convertErr(err, "creating transaction %s", args.OrderID)
	}
	return t, nil
}

func (r *TransactionRepository) FindByOrderID(ctx context.Context, orderID string) (*domain.Transaction, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+transactionColumns+` FROM transactions WHERE order_id = $1`, orderID)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, convertErr(err, "find transaction by order id %s", orderID)
	}
	return t, nil
}

// SetSession сохраняет токен и ссылку на оплату, полученные от шлюза.
func (r *TransactionRepository) SetSession(ctx context.Context, args repoargs.TransactionSession) error {
	tag, err := r.conn.Exec(ctx, `UPDATE transactions SET session_token = $2, redirect_url = $3, updated_at = NOW()
		WHERE id = $1`, args.ID, args.SessionToken, args.RedirectURL)
	if err != nil {
		return convertErr(err, "set session for transaction %d", args.ID)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "set session for transaction %d", args.ID)
	}
	return nil
}

// CompareAndSetStatus меняет статус только если текущий статус равен args.From. Если строка не обновилась
// (статус уже сменил кто-то другой или транзакции нет) - возвращает ErrRecordNotFound.
func (r *TransactionRepository) CompareAndSetStatus(
	ctx context.Context,
	args repoargs.TransactionStatusCAS,
) (*domain.Transaction, error) {
	row := r.conn.QueryRow(ctx, `UPDATE transactions SET
			status = $3,
			seller_id = COALESCE($4, seller_id),
			payment_method = COALESCE(NULLIF($5, ''), payment_method),
			fraud_status = COALESCE(NULLIF($6, ''), fraud_status),
			gateway_transaction_id = COALESCE(NULLIF($7, ''), gateway_transaction_id),
			completed_at = COALESCE($8, completed_at),
			updated_at = NOW()
		WHERE order_id = $1 AND status = $2
		RETURNING `+transactionColumns,
		args.OrderID, args.From, args.To, args.SellerID, args.PaymentMethod, args.FraudStatus,
		args.GatewayTransactionID, args.CompletedAt,
	)
	t, err := scanTransaction(row)
	if err != nil {
		return nil, convertErr(err, "cas transaction %s %s -> %s", args.OrderID, args.From, args.To)
	}
	return t, nil
}

// GetPendingForReconciliation возвращает самые старые ожидающие оплаты транзакции.
func (r *TransactionRepository) GetPendingForReconciliation(
	ctx context.Context,
	limit uint,
) ([]domain.Transaction, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 ORDER BY created_at LIMIT $2`, domain.TransactionStatusPending, limit)
	if err != nil {
		return nil, convertErr(err, "get pending transactions")
	}
	return collectTransactions(rows, "get pending transactions")
}

// GetUnreleasedCompleted возвращает завершенные транзакции, заработок по которым еще не переведен в доступный.
func (r *TransactionRepository) GetUnreleasedCompleted(
	ctx context.Context,
	completedBefore time.Time,
	limit uint,
) ([]domain.Transaction, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE status = $1 AND released = FALSE AND completed_at <= $2
		ORDER BY completed_at, id LIMIT $3`, domain.TransactionStatusCompleted, completedBefore, limit)
	if err != nil {
		return nil, convertErr(err, "get unreleased transactions")
	}
	return collectTransactions(rows, "get unreleased transactions")
}

// MarkReleased помечает транзакцию как переведенную в доступный баланс. Возвращает false если транзакция
// уже была помечена ранее.
func (r *TransactionRepository) MarkReleased(ctx context.Context, id int64, releasedAt time.Time) (bool, error) {
	tag, err := r.conn.Exec(ctx, `UPDATE transactions SET released = TRUE, released_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3 AND released = FALSE`, id, releasedAt, domain.TransactionStatusCompleted)
	if err != nil {
		return false, convertErr(err, "mark transaction %d released", id)
	}
	return tag.RowsAffected() == 1, nil
}

// GetCompletedBySeller возвращает все завершенные продажи продавца.
func (r *TransactionRepository) GetCompletedBySeller(ctx context.Context, sellerID int64) ([]domain.Transaction, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE seller_id = $1 AND status = $2 ORDER BY completed_at`, sellerID, domain.TransactionStatusCompleted)
	if err != nil {
		return nil, convertErr(err, "get completed by seller %d", sellerID)
	}
	return collectTransactions(rows, "get completed by seller")
}

// GetByUserID возвращает транзакции, где юзер покупатель или продавец, новые первыми.
func (r *TransactionRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Transaction, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+transactionColumns+` FROM transactions
		WHERE buyer_id = $1 OR seller_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, convertErr(err, "get transactions by user %d", userID)
	}
	return collectTransactions(rows, "get transactions by user")
}

func collectTransactions(rows pgx.Rows, op string) ([]domain.Transaction, error) {
	defer rows.Close()
	var transactions []domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, convertErr(err, "%s: scan", op)
		}
		transactions = append(transactions, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, "%s: rows", op)
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID, &t.CreatedAt, &t.UpdatedAt, &t.OrderID, &t.Amount, &t.Status, &t.ItemType, &t.ItemID, &t.ItemTitle,
		&t.BuyerID, &t.SellerID, &t.PaymentMethod, &t.GatewayTransactionID, &t.FraudStatus, &t.SessionToken,
		&t.RedirectURL, &t.ExpiresAt, &t.CompletedAt, &t.Released, &t.ReleasedAt,
	)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &t, nil
}
