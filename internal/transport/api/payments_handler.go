package api

import (
	"context"
	"net/http"
	"time"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/fsdevblog/campus-ledger/internal/transport/gateway"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

type PaymentsHandler struct {
	svs      PaymentServicer
	verifier NotificationVerifier
	l        *logrus.Entry
}

func NewPaymentsHandler(svs PaymentServicer, verifier NotificationVerifier, l *logrus.Logger) *PaymentsHandler {
	return &PaymentsHandler{
		svs:      svs,
		verifier: verifier,
		l: l.WithFields(logrus.Fields{
			"component": "api",
			"module":    "payments",
		}),
	}
}

type InitiatePaymentParams struct {
	ItemID     int64           `json:"item_id" binding:"required,gt=0"`
	ItemType   domain.ItemType `json:"item_type" binding:"required"`
	Amount     int64           `json:"amount" binding:"required"`
	Title      string          `json:"title" binding:"max_bytes=255"`
	BuyerName  string          `json:"buyer_name" binding:"max_bytes=255"`
	BuyerEmail string          `json:"buyer_email" binding:"omitempty,email"`
}

type InitiatePaymentResponse struct {
	TransactionID int64  `json:"transaction_id"`
	OrderID       string `json:"order_id"`
	Token         string `json:"token"`
	RedirectURL   string `json:"redirect_url"`
}

type TransactionResponse struct {
	ID            int64   `json:"id"`
	OrderID       string  `json:"order_id"`
	Amount        int64   `json:"amount"`
	Status        string  `json:"status"`
	ItemType      string  `json:"item_type"`
	ItemID        int64   `json:"item_id"`
	ItemTitle     string  `json:"item_title"`
	BuyerID       int64   `json:"buyer_id"`
	SellerID      *int64  `json:"seller_id,omitempty"`
	PaymentMethod string  `json:"payment_method,omitempty"`
	Released      bool    `json:"released"`
	ExpiresAt     string  `json:"expires_at"`
	CompletedAt   *string `json:"completed_at,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

func newTransactionResponse(tx *domain.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:            tx.ID,
		OrderID:       tx.OrderID,
		Amount:        tx.Amount,
		Status:        string(tx.Status),
		ItemType:      string(tx.ItemType),
		ItemID:        tx.ItemID,
		ItemTitle:     tx.ItemTitle,
		BuyerID:       tx.BuyerID,
		SellerID:      tx.SellerID,
		PaymentMethod: tx.PaymentMethod,
		Released:      tx.Released,
		ExpiresAt:     tx.ExpiresAt.Format(time.RFC3339),
		CreatedAt:     tx.CreatedAt.Format(time.RFC3339),
	}
	if tx.CompletedAt != nil {
		completedAt := tx.CompletedAt.Format(time.RFC3339)
		resp.CompletedAt = &completedAt
	}
	return resp
}

// Initiate создает транзакцию и платежную сессию в шлюзе.
func (h *PaymentsHandler) Initiate(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	var params InitiatePaymentParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultGatewayRequestTimeout)
	defer cancel()

	result, err := h.svs.InitiatePayment(reqCtx, service.InitiatePaymentArgs{
		BuyerID:    currentUserID,
		ItemID:     params.ItemID,
		ItemType:   params.ItemType,
		Amount:     params.Amount,
		Title:      params.Title,
		BuyerName:  params.BuyerName,
		BuyerEmail: params.BuyerEmail,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, &InitiatePaymentResponse{
		TransactionID: result.TransactionID,
		OrderID:       result.OrderID,
		Token:         result.Token,
		RedirectURL:   result.RedirectURL,
	})
}

// Show текущий статус транзакции. Доступен только покупателю и продавцу.
func (h *PaymentsHandler) Show(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultGatewayRequestTimeout)
	defer cancel()

	tx, err := h.svs.CheckStatus(reqCtx, c.Param("orderID"), currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTransactionResponse(tx))
}

func (h *PaymentsHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	transactions, err := h.svs.GetByUserID(reqCtx, currentUserID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}

	if len(transactions) == 0 {
		c.AbortWithStatus(http.StatusNoContent)
		return
	}

	response := make([]TransactionResponse, len(transactions))
	for i := range transactions {
		response[i] = newTransactionResponse(&transactions[i])
	}
	c.JSON(http.StatusOK, response)
}

// Notification принимает уведомление шлюза. Статус из тела не применяется напрямую: подпись проверяется,
// а затем запускается сверка со шлюзом. Ошибки сверки не отдаются шлюзу, транзакцию подберет фоновый
// процессор.
func (h *PaymentsHandler) Notification(c *gin.Context) {
	var n gateway.Notification
	if bindErr := c.ShouldBindJSON(&n); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	if !h.verifier.VerifyNotification(n) {
		h.l.WithField("order_id", n.OrderID).Warn("notification with invalid signature")
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultGatewayRequestTimeout)
	defer cancel()

	tx, err := h.svs.Reconcile(reqCtx, n.OrderID)
	if err != nil {
		h.l.WithError(err).WithField("order_id", n.OrderID).Warn("notification reconcile failed")
		c.JSON(http.StatusOK, gin.H{"status": "deferred"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": string(tx.Status)})
}
