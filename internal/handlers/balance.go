package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/uplinepay/uplinepay-backend/internal/requestdata"
	"github.com/uplinepay/uplinepay-backend/internal/services"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

type BalanceHandler struct {
	balanceService services.BalanceService
}

func NewBalanceHandler(balanceService services.BalanceService) *BalanceHandler {
	return &BalanceHandler{balanceService: balanceService}
}

type creditRequest struct {
	ReceiverID           string          `json:"receiverId" binding:"required"`
	Amount               decimal.Decimal `json:"amount"`
	CommissionPercentage decimal.Decimal `json:"commissionPercentage"`
	Description          string          `json:"description"`
}

// Credit transfers balance to an immediate downline member, skimming the
// configured commission. An X-Idempotency-Key header makes retries safe: a
// replayed key returns the original transaction.
func (bh *BalanceHandler) Credit(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	var req creditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}
	receiverID, err := uuid.Parse(req.ReceiverID)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", errors.New("receiverId is not a valid id"))
		return
	}

	view, replayed, err := bh.balanceService.Transfer(c.Request.Context(), callerID, services.TransferInput{
		ReceiverID:           receiverID,
		Amount:               req.Amount,
		CommissionPercentage: req.CommissionPercentage,
		Description:          req.Description,
		IdempotencyKey:       c.GetHeader("X-Idempotency-Key"),
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "transaction": view, "replayed": replayed})
}

type rechargeRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (bh *BalanceHandler) Recharge(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	var req rechargeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "BAD_REQUEST", err)
		return
	}

	view, err := bh.balanceService.Recharge(c.Request.Context(), callerID, req.Amount)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "transaction": view})
}

// Transactions serves paged history, newest first. Pagination is 1-indexed;
// the response echoes a `before` anchor that later pages should pass back so
// concurrent transfers cannot shift rows between pages.
func (bh *BalanceHandler) Transactions(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	before, _ := strconv.ParseInt(c.DefaultQuery("before", "0"), 10, 64)

	out, err := bh.balanceService.History(c.Request.Context(), callerID, services.HistoryInput{
		Page:      page,
		Limit:     limit,
		Type:      types.TransactionType(c.Query("type")),
		BeforeSeq: before,
	})
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{
		"success":      true,
		"transactions": out.Transactions,
		"pagination":   out.Pagination,
	})
}

func (bh *BalanceHandler) Summary(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	summary, err := bh.balanceService.Summary(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "summary": summary})
}

func (bh *BalanceHandler) Balance(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	balance, err := bh.balanceService.BalanceOf(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "balance": balance})
}

func callerID(c *gin.Context) (uuid.UUID, bool) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil || rd.UserID == uuid.Nil {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errors.New("no authenticated user"))
		return uuid.Nil, false
	}
	return rd.UserID, true
}
