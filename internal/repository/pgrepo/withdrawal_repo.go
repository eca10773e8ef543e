package pgrepo

import (
	"context"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/repository/repoargs"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jackc/pgx/v5"
)

const withdrawalColumns = `id, created_at, updated_at, user_id, amount, bank_name, account_number, account_holder,
	status, rejection_reason, processed_by, processed_at`

type WithdrawalRepository struct {
	conn uow.DBTX
}

func NewWithdrawalRepository(conn uow.DBTX) *WithdrawalRepository {
	return &WithdrawalRepository{conn: conn}
}

// Create создает заявку в статусе PENDING. Если у юзера уже есть активная заявка, частичный уникальный индекс
// вернет ErrDuplicateKey.
func (r *WithdrawalRepository) Create(ctx context.Context, args repoargs.WithdrawalCreate) (*domain.Withdrawal, error) {
	row := r.conn.QueryRow(ctx, `INSERT INTO withdrawals
		(user_id, amount, bank_name, account_number, account_holder, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING `+withdrawalColumns,
		args.UserID, args.Amount, args.Destination.BankName, args.Destination.AccountNumber,
		args.Destination.AccountHolder, domain.WithdrawalStatusPending,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "create withdrawal for user %d", args.UserID)
	}
	return w, nil
}

func (r *WithdrawalRepository) FindByID(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1`, id)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "find withdrawal %d", id)
	}
	return w, nil
}

// FindByIDForUpdate блокирует заявку до конца транзакции.
func (r *WithdrawalRepository) FindByIDForUpdate(ctx context.Context, id int64) (*domain.Withdrawal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals WHERE id = $1 FOR UPDATE`, id)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "lock withdrawal %d", id)
	}
	return w, nil
}

// FindActiveByUserID возвращает не завершенную заявку юзера или ErrRecordNotFound.
func (r *WithdrawalRepository) FindActiveByUserID(ctx context.Context, userID int64) (*domain.Withdrawal, error) {
	row := r.conn.QueryRow(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1 AND status = ANY($2) LIMIT 1`, userID, statusesToStrings(domain.ActiveWithdrawalStatuses))
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "find active withdrawal for user %d", userID)
	}
	return w, nil
}

// UpdateStatus меняет статус заявки только если текущий равен args.From, иначе ErrRecordNotFound.
func (r *WithdrawalRepository) UpdateStatus(
	ctx context.Context,
	args repoargs.WithdrawalStatusCAS,
) (*domain.Withdrawal, error) {
	row := r.conn.QueryRow(ctx, `UPDATE withdrawals SET
			status = $3,
			rejection_reason = COALESCE($4, rejection_reason),
			processed_by = COALESCE($5, processed_by),
			processed_at = COALESCE($6, processed_at),
			updated_at = NOW()
		WHERE id = $1 AND status = $2
		RETURNING `+withdrawalColumns,
		args.ID, args.From, args.To, args.RejectionReason, args.ProcessedBy, args.ProcessedAt,
	)
	w, err := scanWithdrawal(row)
	if err != nil {
		return nil, convertErr(err, "update withdrawal %d %s -> %s", args.ID, args.From, args.To)
	}
	return w, nil
}

func (r *WithdrawalRepository) GetByUserID(ctx context.Context, userID int64) ([]domain.Withdrawal, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, convertErr(err, "get withdrawals by user %d", userID)
	}
	return collectWithdrawals(rows, "get withdrawals by user")
}

// GetByStatuses возвращает заявки в указанных статусах, старые первыми.
func (r *WithdrawalRepository) GetByStatuses(
	ctx context.Context,
	statuses []domain.WithdrawalStatusType,
) ([]domain.Withdrawal, error) {
	rows, err := r.conn.Query(ctx, `SELECT `+withdrawalColumns+` FROM withdrawals
		WHERE status = ANY($1) ORDER BY created_at`, statusesToStrings(statuses))
	if err != nil {
		return nil, convertErr(err, "get withdrawals by statuses")
	}
	return collectWithdrawals(rows, "get withdrawals by statuses")
}

func collectWithdrawals(rows pgx.Rows, op string) ([]domain.Withdrawal, error) {
	defer rows.Close()
	var withdrawals []domain.Withdrawal
	for rows.Next() {
		w, err := scanWithdrawal(rows)
		if err != nil {
			return nil, convertErr(err, "%s: scan", op)
		}
		withdrawals = append(withdrawals, *w)
	}
	if err := rows.Err(); err != nil {
		return nil, convertErr(err, "%s: rows", op)
	}
	return withdrawals, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var w domain.Withdrawal
	if err := row.Scan(
		&w.ID, &w.CreatedAt, &w.UpdatedAt, &w.UserID, &w.Amount, &w.Destination.BankName,
		&w.Destination.AccountNumber, &w.Destination.AccountHolder, &w.Status, &w.RejectionReason,
		&w.ProcessedBy, &w.ProcessedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck
	}
	return &w, nil
}

func statusesToStrings(statuses []domain.WithdrawalStatusType) []string {
	res := make([]string, len(statuses))
	for i, s := range statuses {
		res[i] = string(s)
	}
	return res
}
