package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/uplinepay/uplinepay-backend/internal/aggregation"
	"github.com/uplinepay/uplinepay-backend/internal/services"
	"github.com/uplinepay/uplinepay-backend/internal/types"
)

type UserHandler struct {
	userService services.UserService
	aggregation *aggregation.Service
}

func NewUserHandler(userService services.UserService, agg *aggregation.Service) *UserHandler {
	return &UserHandler{userService: userService, aggregation: agg}
}

// Downline exposes the caller's descendants as a nested forest.
func (uh *UserHandler) Downline(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	downline, count, err := uh.userService.Downline(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "downline": downline, "count": count})
}

func (uh *UserHandler) ImmediateDownline(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	children, err := uh.userService.ImmediateDownline(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "users": children})
}

// AllUsers is an admin-only flat listing with computed levels.
func (uh *UserHandler) AllUsers(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	caller, err := uh.userService.GetByID(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}
	if caller.Role != types.UserRoleAdmin {
		RespondError(c, http.StatusForbidden, "FORBIDDEN", errors.New("admin role required"))
		return
	}

	users, err := uh.userService.AllUsers(c.Request.Context())
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "users": users})
}

// Rollup aggregates the caller's subtree: balances, accrued commission, and
// active/inactive counts.
func (uh *UserHandler) Rollup(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	rollup, err := uh.aggregation.RollupOf(c.Request.Context(), callerID)
	if err != nil {
		RespondDomainError(c, err)
		return
	}

	RespondOK(c, gin.H{"success": true, "rollup": rollup.View()})
}
