// README: Discovery handlers: session lifecycle, filters, search.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"rally/internal/config"
	"rally/internal/http/middleware"
	"rally/internal/modules/discovery"
	"rally/internal/modules/location"
	"rally/internal/types"
)

// AreaLabeler resolves a point into a short display label. Optional.
type AreaLabeler interface {
	AreaLabel(ctx context.Context, p types.Point) (string, error)
}

type DiscoveryHandler struct {
	engine    *discovery.Engine
	flows     *discovery.Registry
	providers *Providers
	locStore  *location.Store
	area      AreaLabeler
	discovery config.DiscoveryConfig
	location  config.LocationConfig
	logger    *zap.Logger
}

func NewDiscoveryHandler(
	engine *discovery.Engine,
	flows *discovery.Registry,
	providers *Providers,
	locStore *location.Store,
	area AreaLabeler,
	discoveryCfg config.DiscoveryConfig,
	locationCfg config.LocationConfig,
	logger *zap.Logger,
) *DiscoveryHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DiscoveryHandler{
		engine:    engine,
		flows:     flows,
		providers: providers,
		locStore:  locStore,
		area:      area,
		discovery: discoveryCfg,
		location:  locationCfg,
		logger:    logger,
	}
}

type startSessionRequest struct {
	PermissionGranted bool     `json:"permissionGranted"`
	Lat               *float64 `json:"lat"`
	Lng               *float64 `json:"lng"`
}

// StartSession opens the caller's discovery flow. Any previous flow for the
// same caller is stopped first.
func (h *DiscoveryHandler) StartSession(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	var req startSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "malformed body")
		return
	}

	provider := h.providers.GetOrCreate(uid)
	provider.SetPermission(req.PermissionGranted)
	if req.Lat != nil && req.Lng != nil {
		provider.Push(location.Position{
			Point:      types.Point{Lat: *req.Lat, Lng: *req.Lng},
			CapturedAt: time.Now(),
		})
	}

	session := location.NewSession(uid, provider, h.locStore, h.logger)
	state := session.RequestPermission(c.Request.Context())

	fixOpts := location.FixOptions{
		HighAccuracy: true,
		Timeout:      h.location.FixTimeout,
		MaxAge:       h.location.FixMaxAge,
	}
	interval := time.Duration(0)
	if state == location.PermissionGranted {
		interval = h.location.RefreshInterval
		if _, err := session.AcquirePosition(c.Request.Context(), fixOpts); err != nil {
			h.logger.Warn("initial fix failed, continuing with default position",
				zap.String("user_id", string(uid)), zap.Error(err))
		}
	}

	flow := discovery.NewFlow(uid, session, h.engine, discovery.FlowConfig{
		Initial:         discovery.Criteria{RadiusKm: h.discovery.DefaultRadiusKm},
		FixOptions:      fixOpts,
		RefreshInterval: interval,
	})
	h.flows.Put(uid, flow)
	flow.Refresh()

	writeJSON(c, http.StatusOK, gin.H{
		"permission": state,
		"radiusKm":   flow.Filters().Criteria().RadiusKm,
	})
}

// StopSession closes the caller's discovery flow. Safe to call twice.
func (h *DiscoveryHandler) StopSession(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	h.flows.Remove(uid)
	c.Status(http.StatusNoContent)
}

type filtersRequest struct {
	Game       string `json:"game"`
	Skill      string `json:"skillLevel"`
	TimeWindow string `json:"timeWindow"`
	RadiusKm   int    `json:"radiusKm"`
}

// ReplaceFilters installs a whole new criteria value on the caller's flow.
func (h *DiscoveryHandler) ReplaceFilters(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	flow, ok := h.flows.Get(uid)
	if !ok {
		writeError(c, http.StatusNotFound, "no discovery session")
		return
	}
	var req filtersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "malformed body")
		return
	}
	flow.Filters().Replace(discovery.Criteria{
		Game:       req.Game,
		Skill:      discovery.SkillLevel(req.Skill),
		TimeWindow: req.TimeWindow,
		RadiusKm:   req.RadiusKm,
	})
	writeJSON(c, http.StatusOK, gin.H{"criteria": flow.Filters().Criteria()})
}

// Candidates returns the caller's visible candidate list.
func (h *DiscoveryHandler) Candidates(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))
	flow, ok := h.flows.Get(uid)
	if !ok {
		writeError(c, http.StatusNotFound, "no discovery session")
		return
	}
	res, ready := flow.Snapshot()
	writeJSON(c, http.StatusOK, gin.H{
		"ready":      ready,
		"candidates": res.Candidates,
		"fallback":   res.Outcome == discovery.OutcomeFallback,
	})
}

// Search runs one stateless query: ?lat=&lng=&radius_km=&game=&skill=&time=.
func (h *DiscoveryHandler) Search(c *gin.Context) {
	uid := types.ID(middleware.CallerUID(c))

	lat, err1 := strconv.ParseFloat(c.Query("lat"), 64)
	lng, err2 := strconv.ParseFloat(c.Query("lng"), 64)
	if err1 != nil || err2 != nil {
		writeError(c, http.StatusBadRequest, "lat and lng are required")
		return
	}
	point := types.Point{Lat: lat, Lng: lng}
	if !point.Valid() {
		writeError(c, http.StatusBadRequest, "lat/lng out of range")
		return
	}

	radius := h.discovery.DefaultRadiusKm
	if v := c.Query("radius_km"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			radius = n
		}
	}
	criteria := discovery.Criteria{
		Game:       c.Query("game"),
		Skill:      discovery.SkillLevel(c.Query("skill")),
		TimeWindow: c.Query("time"),
		RadiusKm:   radius,
	}
	pos := location.Position{Point: point, CapturedAt: time.Now()}

	res := h.engine.Search(c.Request.Context(), uid, pos, criteria)

	area := ""
	if h.area != nil {
		if label, err := h.area.AreaLabel(c.Request.Context(), point); err == nil {
			area = label
		}
	}

	writeJSON(c, http.StatusOK, gin.H{
		"candidates": res.Candidates,
		"fallback":   res.Outcome == discovery.OutcomeFallback,
		"area":       area,
	})
}
