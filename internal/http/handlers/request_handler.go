// README: Play request handlers.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"rally/internal/http/middleware"
	"rally/internal/modules/match"
	"rally/internal/types"
)

type RequestHandler struct {
	broker *match.Broker
}

func NewRequestHandler(broker *match.Broker) *RequestHandler {
	return &RequestHandler{broker: broker}
}

type sendRequestBody struct {
	To      string `json:"to"`
	Game    string `json:"game"`
	Time    string `json:"time"`
	Message string `json:"message"`
}

// Send creates and delivers a play request from the authenticated caller.
// The response reports success whenever the attempt was accepted; the true
// delivery status lives on the record.
func (h *RequestHandler) Send(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	var body sendRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		writeError(c, http.StatusBadRequest, "malformed body")
		return
	}
	ack, err := h.broker.SendRequest(c.Request.Context(), match.SendCommand{
		FromID:       uid,
		ToID:         types.ID(body.To),
		Game:         body.Game,
		ProposedTime: body.Time,
		Message:      body.Message,
	})
	if err != nil {
		writeMatchError(c, err)
		return
	}
	writeJSON(c, http.StatusOK, ack)
}

// Get returns the request record, including its true internal status. Only
// the sender may read it.
func (h *RequestHandler) Get(c *gin.Context) {
	uid := middleware.CallerUID(c)
	id := c.Param("id")
	if id == "" {
		writeError(c, http.StatusBadRequest, "missing request id")
		return
	}
	r, err := h.broker.Get(c.Request.Context(), types.ID(id))
	if err != nil {
		writeMatchError(c, err)
		return
	}
	if string(r.FromID) != uid {
		writeError(c, http.StatusForbidden, "forbidden")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{
		"id":           r.ID,
		"from":         r.FromID,
		"to":           r.ToID,
		"game":         r.Game,
		"proposedTime": r.ProposedTime,
		"status":       r.Status,
	})
}
