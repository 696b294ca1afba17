// README: Location handlers: device-reported fixes and permission state.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rally/internal/http/middleware"
	"rally/internal/modules/location"
	"rally/internal/types"
)

type LocationHandler struct {
	store     *location.Store
	providers *Providers
	logger    *zap.Logger
}

func NewLocationHandler(store *location.Store, providers *Providers, logger *zap.Logger) *LocationHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocationHandler{store: store, providers: providers, logger: logger}
}

type fixRequest struct {
	Lat        float64  `json:"lat"`
	Lng        float64  `json:"lng"`
	AccuracyM  *float64 `json:"accuracy"`
	CapturedAt *int64   `json:"capturedAt"` // unix millis; defaults to now
}

// ReportFix records a device fix for the authenticated caller: presence
// index, last-fix cache, journal, and the caller's push provider.
func (h *LocationHandler) ReportFix(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	var req fixRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "malformed body")
		return
	}
	point := types.Point{Lat: req.Lat, Lng: req.Lng}
	if !point.Valid() {
		writeError(c, http.StatusBadRequest, "lat/lng out of range")
		return
	}
	capturedAt := time.Now()
	if req.CapturedAt != nil {
		capturedAt = time.UnixMilli(*req.CapturedAt)
	}
	pos := location.Position{Point: point, CapturedAt: capturedAt, AccuracyM: req.AccuracyM}

	if prov, ok := h.providers.Get(uid); ok {
		prov.Push(pos)
	}
	if err := h.store.SaveFix(c.Request.Context(), uid, pos); err != nil {
		h.logger.Warn("saving reported fix failed",
			zap.String("user_id", string(uid)), zap.Error(err))
		writeError(c, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}

type permissionRequest struct {
	Granted bool `json:"granted"`
}

// ReportPermission records the device-side authorization outcome so the
// caller's session can re-request permission.
func (h *LocationHandler) ReportPermission(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	var req permissionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "malformed body")
		return
	}
	h.providers.GetOrCreate(uid).SetPermission(req.Granted)
	writeJSON(c, http.StatusOK, gin.H{"success": true})
}
