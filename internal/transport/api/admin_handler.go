package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/fsdevblog/campus-ledger/internal/domain"
	"github.com/fsdevblog/campus-ledger/internal/service"
	"github.com/gin-gonic/gin"
)

// AdminHandler операции оператора: решения по заявкам, аудит баланса и ручной запуск выпуска из холда.
type AdminHandler struct {
	withdrawals WithdrawalServicer
	balances    BalanceServicer
	releaser    ReleaseRunner
}

func NewAdminHandler(withdrawals WithdrawalServicer, balances BalanceServicer, releaser ReleaseRunner) *AdminHandler {
	return &AdminHandler{
		withdrawals: withdrawals,
		balances:    balances,
		releaser:    releaser,
	}
}

type DecisionParams struct {
	Decision domain.WithdrawalDecision `json:"decision" binding:"required"`
	Reason   string                    `json:"reason" binding:"max_bytes=1000"`
}

func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (h *AdminHandler) Decide(c *gin.Context) {
	operatorID := getUserIDFromContext(c)

	withdrawalID, ok := pathID(c, "id")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid withdrawal id"})
		return
	}

	var params DecisionParams
	if bindErr := c.ShouldBindJSON(&params); bindErr != nil {
		abortWithBindError(c, bindErr)
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawal, err := h.withdrawals.Decide(reqCtx, service.DecideWithdrawalArgs{
		WithdrawalID: withdrawalID,
		OperatorID:   operatorID,
		Decision:     params.Decision,
		Reason:       params.Reason,
	})
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalResponse(withdrawal))
}

// Withdrawals список заявок по статусам, ?status=PENDING,APPROVED. Без параметра - активные заявки.
func (h *AdminHandler) Withdrawals(c *gin.Context) {
	statuses := domain.ActiveWithdrawalStatuses
	if raw := c.Query("status"); raw != "" {
		statuses = nil
		for _, s := range strings.Split(raw, ",") {
			status := domain.WithdrawalStatusType(strings.ToUpper(strings.TrimSpace(s)))
			if !status.IsValid() {
				c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "unknown status " + s})
				return
			}
			statuses = append(statuses, status)
		}
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	withdrawals, err := h.withdrawals.ListByStatus(reqCtx, statuses)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, newWithdrawalsResponse(withdrawals))
}

func (h *AdminHandler) Audit(c *gin.Context) {
	userID, ok := pathID(c, "userID")
	if !ok {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid user id"})
		return
	}

	reqCtx, cancel := context.WithTimeout(c, DefaultServiceTimeout)
	defer cancel()

	audit, err := h.balances.AuditBalance(reqCtx, userID)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, audit)
}

// Release запускает выпуск из холда вне расписания. Использует тот же путь, что и cron.
func (h *AdminHandler) Release(c *gin.Context) {
	report, err := h.releaser.RunOnce(c)
	if err != nil {
		abortWithServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
