package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PlatformFeeRate комиссия площадки с каждой продажи.
var PlatformFeeRate = decimal.RequireFromString("0.05")

// SplitGross делит валовую сумму на комиссию площадки floor(gross * PlatformFeeRate) и заработок продавца.
func SplitGross(gross int64) (earnings, fee int64) {
	fee = decimal.NewFromInt(gross).Mul(PlatformFeeRate).Floor().IntPart()
	return gross - fee, fee
}

// SellerEarnings заработок продавца с валовой суммы за вычетом комиссии.
func SellerEarnings(gross int64) int64 {
	earnings, _ := SplitGross(gross)
	return earnings
}

// Balance агрегат баланса юзера. Все суммы в минимальных единицах валюты.
// Инвариант: Available + Pending + Reserved + Withdrawn == TotalEarnings. Reserved - сумма активной заявки
// на вывод, вне заявок она равна нулю.
type Balance struct {
	UserID        int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	TotalEarnings int64
	Available     int64
	Pending       int64
	Reserved      int64
	Withdrawn     int64
}

// Validate проверяет неотрицательность корзин и инвариант суммы.
func (b *Balance) Validate() error {
	if b.TotalEarnings < 0 || b.Available < 0 || b.Pending < 0 || b.Reserved < 0 || b.Withdrawn < 0 {
		return fmt.Errorf("%w: negative bucket for user %d (%s)", ErrLedgerIntegrity, b.UserID, b)
	}
	if b.Available+b.Pending+b.Reserved+b.Withdrawn != b.TotalEarnings {
		return fmt.Errorf("%w: buckets do not sum to total for user %d (%s)", ErrLedgerIntegrity, b.UserID, b)
	}
	return nil
}

func (b *Balance) String() string {
	return fmt.Sprintf(
		"total=%d available=%d pending=%d reserved=%d withdrawn=%d",
		b.TotalEarnings, b.Available, b.Pending, b.Reserved, b.Withdrawn,
	)
}

// Credit зачисляет заработок продавца. matured = true, если холд уже истек и деньги сразу доступны.
func (b *Balance) Credit(earnings int64, matured bool) error {
	if earnings < 0 {
		return fmt.Errorf("%w: negative credit %d", ErrLedgerIntegrity, earnings)
	}
	if matured {
		b.Available += earnings
	} else {
		b.Pending += earnings
	}
	b.TotalEarnings += earnings
	return b.Validate()
}

// Release переводит amount из pending в available. Если в pending меньше, переводится остаток.
// Возвращает фактически переведенную сумму.
func (b *Balance) Release(amount int64) (int64, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: negative release %d", ErrLedgerIntegrity, amount)
	}
	released := min(amount, b.Pending)
	b.Pending -= released
	b.Available += released
	return released, b.Validate()
}

// Reserve резервирует amount под вывод, перенося его из available в reserved.
func (b *Balance) Reserve(amount int64) error {
	if amount <= 0 {
		return NewValidationError(ErrInvalidAmount, "reserve amount %d", amount)
	}
	if b.Available < amount {
		return NewValidationError(ErrNotEnoughBalance, "available %d, requested %d", b.Available, amount)
	}
	b.Available -= amount
	b.Reserved += amount
	return b.Validate()
}

// Unreserve возвращает зарезервированную сумму в available (отклонение или сбой вывода).
func (b *Balance) Unreserve(amount int64) error {
	if amount <= 0 || b.Reserved < amount {
		return fmt.Errorf("%w: unreserve %d with reserved %d", ErrLedgerIntegrity, amount, b.Reserved)
	}
	b.Reserved -= amount
	b.Available += amount
	return b.Validate()
}

// Finalize учитывает зарезервированную сумму как выведенную.
func (b *Balance) Finalize(amount int64) error {
	if amount <= 0 || b.Reserved < amount {
		return fmt.Errorf("%w: finalize %d with reserved %d", ErrLedgerIntegrity, amount, b.Reserved)
	}
	b.Reserved -= amount
	b.Withdrawn += amount
	return b.Validate()
}
