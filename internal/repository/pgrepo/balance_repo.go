package pgrepo

import (
	"context"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const balanceColumns = `user_id, created_at, updated_at, total_earnings, available_balance, pending_balance,
	reserved_balance, withdrawn_balance`

type BalanceRepository struct {
	conn uow.DBTX
}

func NewBalanceRepository(conn uow.DBTX) *BalanceRepository {
	return &BalanceRepository{conn: conn}
}

// GetOrCreateForUpdate создает баланс юзера если его еще нет и блокирует строку до конца транзакции.
// Вызывать только внутри uow.Do.
func (r *BalanceRepository) GetOrCreateForUpdate(ctx context.Context, userID int64) (*domain.Balance, error) {
	if _, err := r.conn.Exec(ctx,
		`INSERT INTO balances (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID,
	); err != nil {
		return nil, convertErr(err, "create balance for user %d", userID)
	}

	row := r.conn.QueryRow(ctx, `SELECT `+balanceColumns+` FROM balances WHERE user_id = $1 FOR UPDATE`, userID)
	b, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "lock balance for user %d", userID)
	}
	return b, nil
}

func (r *BalanceRepository) FindByUserID(ctx context.Context, userID int64) (*domain.Balance, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+balanceColumns+` FROM balances WHERE user_id = $1`, userID)
	b, err := scanBalance(row)
	if err != nil {
		return nil, convertErr(err, "find balance for user %d", userID)
	}
	return b, nil
}

// Save записывает все корзины баланса. Строка должна быть заблокирована GetOrCreateForUpdate.
func (r *BalanceRepository) Save(ctx context.Context, b *domain.Balance) error {
	row := r.conn.QueryRow(ctx, `UPDATE balances SET
			total_earnings = $2,
			available_balance = $3,
			pending_balance = $4,
			reserved_balance = $5,
			withdrawn_balance = $6,
			updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`,
		b.UserID, b.TotalEarnings, b.Available, b.Pending, b.Reserved, b.Withdrawn,
	)
	if err := row.Scan(&b.UpdatedAt); err != nil {
		return convertErr(err, "save balance for user %d", b.UserID)
	}
	return nil
}

func scanBalance(row pgx.Row) (*domain.Balance, error) {
	var b domain.Balance
	if err := row.Scan(
		&b.UserID, &b.CreatedAt, &b.UpdatedAt, &b.TotalEarnings, &b.Available, &b.Pending, &b.Reserved, &b.Withdrawn,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &b, nil
}
