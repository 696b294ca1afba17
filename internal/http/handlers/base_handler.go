// README: Base handler utilities (JSON helpers, error mapping).
package handlers

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"rally/internal/modules/location"
	"rally/internal/modules/match"
	"rally/internal/types"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Success: false, Message: msg})
}

func writeMatchError(c *gin.Context, err error) {
	switch err {
	case match.ErrBadRequest:
		writeError(c, http.StatusBadRequest, err.Error())
	case match.ErrNotFound:
		writeError(c, http.StatusNotFound, err.Error())
	default:
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

// Providers tracks the push-provider per authenticated user so the location
// and discovery handlers share one device boundary.
type Providers struct {
	mu sync.Mutex
	m  map[types.ID]*location.PushProvider
}

func NewProviders() *Providers {
	return &Providers{m: make(map[types.ID]*location.PushProvider)}
}

func (p *Providers) GetOrCreate(id types.ID) *location.PushProvider {
	p.mu.Lock()
	defer p.mu.Unlock()
	if prov, ok := p.m[id]; ok {
		return prov
	}
	prov := location.NewPushProvider()
	p.m[id] = prov
	return prov
}

func (p *Providers) Get(id types.ID) (*location.PushProvider, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	prov, ok := p.m[id]
	return prov, ok
}
