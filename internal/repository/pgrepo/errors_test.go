package pgrepo

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/pkg/uow"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestConvertErr(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{name: "no rows", err: pgx.ErrNoRows, want: domain.ErrRecordNotFound},
		{name: "wrapped no rows", err: fmt.Errorf("scan: %w", pgx.ErrNoRows), want: domain.ErrRecordNotFound},
		{name: "unique violation", err: &pgconn.PgError{Code: uniqueViolationCode}, want: domain.ErrDuplicateKey},
		{name: "check violation", err: &pgconn.PgError{Code: checkViolationCode}, want: domain.ErrLedgerIntegrity},
		{name: "other pg error", err: &pgconn.PgError{Code: "42P01"}, want: domain.ErrUnknown},
		{name: "plain error", err: errors.New("boom"), want: domain.ErrUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := convertErr(tt.err, "op %d", 1)
			assert.ErrorIs(t, err, tt.want)
			assert.Contains(t, err.Error(), "[repository/op 1]")
		})
	}

	assert.NoError(t, convertErr(nil, "noop"))
}

func TestConvertErr_KeepsRetryableCode(t *testing.T) {
	err := convertErr(&pgconn.PgError{Code: "40001"}, "save balance")
	assert.True(t, uow.IsRetryable(err))
}
