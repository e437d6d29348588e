package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/uplinepay/uplinepay-backend/internal/realtime"
)

type SSEHandler struct {
	hub *realtime.Hub
}

func NewSSEHandler(hub *realtime.Hub) *SSEHandler {
	return &SSEHandler{hub: hub}
}

// Stream opens a session scoped to the caller's own account and serves its
// events until the client disconnects. Events missed while disconnected are
// recovered through transaction history, not replayed here.
func (sh *SSEHandler) Stream(c *gin.Context) {
	callerID, ok := callerID(c)
	if !ok {
		return
	}

	session := sh.hub.NewSession(callerID)
	sh.hub.Subscribe(session, realtime.UserChannel(callerID))
	defer sh.hub.Close(session)

	sh.hub.ServeHTTP(c.Writer, c.Request, session)
}
