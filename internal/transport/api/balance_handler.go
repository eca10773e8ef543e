package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
)

type BalanceHandler struct {
	svs BalanceServicer
}

func NewBalanceHandler(svs BalanceServicer) *BalanceHandler {
	return &BalanceHandler{
		svs: svs,
	}
}

type BalanceResponse struct {
	TotalEarnings int64 `json:"total_earnings"`
	Available     int64 `json:"available"`
	Pending       int64 `json:"pending"`
	Reserved      int64 `json:"reserved"`
	Withdrawn     int64 `json:"withdrawn"`
}

func (b *BalanceHandler) Index(c *gin.Context) {
	currentUserID := getUserIDFromContext(c)

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	balance, err := b.svs.GetUserBalance(reqCtx, currentUserID)
	if err != nil {
		_ = c.AbortWithError(http.StatusInternalServerError, err).SetType(gin.ErrorTypePrivate)
		return
	}

	c.JSON(http.StatusOK, &BalanceResponse{
		TotalEarnings: balance.TotalEarnings,
		Available:     balance.Available,
		Pending:       balance.Pending,
		Reserved:      balance.Reserved,
		Withdrawn:     balance.Withdrawn,
	})
}
