package pgrepo

import (
	"context"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jackc/pgx/v5"
)

// ItemRepository доступ к витрине товаров. Товары ведет другой сервис, здесь только чтение и списание остатка.
type ItemRepository struct {
	conn uow.DBTX
}

func NewItemRepository(conn uow.DBTX) *ItemRepository {
	return &ItemRepository{conn: conn}
}

func (r *ItemRepository) FindByID(ctx context.Context, id int64) (*domain.Item, error) {
	var i domain.Item
	err := r.conn.QueryRow(ctx, `SELECT id, seller_id, title, type, price, stock, is_available
		FROM items WHERE id = $1`, id).
		Scan(&i.ID, &i.SellerID, &i.Title, &i.Type, &i.Price, &i.Stock, &i.IsAvailable)
	if err != nil {
		return nil, convertErr(err, "find item %d", id)
	}
	return &i, nil
}

// DecrementStock списывает одну единицу товара. Если остатка нет, возвращает ErrRecordNotFound.
func (r *ItemRepository) DecrementStock(ctx context.Context, id int64) error {
	tag, err := r.conn.Exec(ctx, `UPDATE items SET stock = stock - 1, updated_at = NOW()
		WHERE id = $1 AND stock > 0`, id)
	if err != nil {
		return convertErr(err, "decrement stock of item %d", id)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "decrement stock of item %d", id)
	}
	return nil
}
