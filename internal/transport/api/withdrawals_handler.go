package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/gin-gonic/gin"
)

type WithdrawalsHandler struct {
	svs WithdrawalServicer
}

func NewWithdrawalsHandler(svs WithdrawalServicer) *WithdrawalsHandler {
	return &WithdrawalsHandler{
		svs: svs,
	}
}

type DestinationParams struct {
	BankName      string `json:"bank_name" binding:"required,max_bytes=100"`
	AccountNumber string `json:"account_number" binding:"required,account_number"`
	AccountHolder string `json:"account_holder" binding:"required,max_bytes=255"`
}

type RequestWithdrawalParams struct {
	Amount      int64             `json:"amount" binding:"required"`
	Destination DestinationParams `json:"destination"`
}

type WithdrawalResponse struct {
	ID              int64   `json:"id"`
	UserID          int64   `json:"user_id"`
	Amount          int64   `json:"amount"`
	Status          string  `json:"status"`
	BankName        string  `json:"bank_name"`
	AccountNumber   string  `json:"account_number"`
	AccountHolder   string  `json:"account_holder"`
	RejectionReason *string `json:"rejection_reason,omitempty"`
	ProcessedBy     *int64  `json:"processed_by,omitempty"`
	ProcessedAt     *string `json:"processed_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

func newWithdrawalResponse(w *domain.Withdrawal) WithdrawalResponse {
	resp := WithdrawalResponse{
		ID:              w.ID,
		UserID:          w.UserID,
		Amount:          w.Amount,
		Status:          string(w.Status),
		BankName:        w.Destination.BankName,
		AccountNumber:   w.Destination.AccountNumber,
		AccountHolder:   w.Destination.AccountHolder,
		RejectionReason: w.RejectionReason,
		ProcessedBy:     w.ProcessedBy,
		CreatedAt:       w.CreatedAt.Format(time.RFC3339),
	}
	if w.ProcessedAt != nil {
		processedAt := w.ProcessedAt.Format(time.RFC3339)
		resp.ProcessedAt = &processedAt
	}
	return resp
}

func newWithdrawalsResponse(withdrawals []domain.Withdrawal) []WithdrawalResponse {
	response := make([]WithdrawalResponse, len(withdrawals))
	for i := range withdrawals {
		response[i] = newWithdrawalResponse(&withdrawals[i])
	}
	return response
}

// Create заявка на вывод доступного баланса.
func (h *WithdrawalsHandler) Create(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params RequestWithdrawalParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.svs.Request(reqCtx, service.RequestWithdrawalArgs{
		UserID: currentUserID,
		Amount: params.Amount,
		Destination: domain.Destination{
			BankName:      params.Destination.BankName,
			AccountNumber: params.Destination.AccountNumber,
			AccountHolder: params.Destination.AccountHolder,
		},
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, newWithdrawalResponse(withdrawal))
}

func (h *WithdrawalsHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.svs.GetByUserID(reqCtx, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	if len(withdrawals) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalsResponse(withdrawals))
}
