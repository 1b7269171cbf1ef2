package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pawmatch/engine/internal/app"
	"github.com/pawmatch/engine/internal/db"
	svcErr "github.com/pawmatch/engine/internal/errors"
	"github.com/pawmatch/engine/internal/geo"
	"github.com/pawmatch/engine/internal/service/action"
	"github.com/pawmatch/engine/internal/service/explore"
	"github.com/pawmatch/engine/internal/service/suggest"
)

// ownerHeader carries the already-validated owner id. Authentication
// is the identity provider's job, upstream of this service.
const ownerHeader = "X-Owner-ID"

// Handler wires the engine services into HTTP endpoints.
type Handler struct {
	appCtx     *app.AppContext
	geoIdx     *geo.Index
	suggestSvc *suggest.Service
	actionSvc  *action.Service
	exploreSvc *explore.Service
}

// NewHandler creates all services from the shared AppContext.
func NewHandler(appCtx *app.AppContext) *Handler {
	return &Handler{
		appCtx:     appCtx,
		geoIdx:     geo.NewIndex(appCtx.DB),
		suggestSvc: suggest.NewService(appCtx),
		actionSvc:  action.NewService(appCtx),
		exploreSvc: explore.NewService(appCtx),
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ownerID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.GetHeader(ownerHeader), 10, 64)
	if err != nil || id == 0 {
		c.JSON(http.StatusUnauthorized, gin.H{"code": "missing_owner", "error": "valid X-Owner-ID header required"})
		return 0, false
	}
	return id, true
}

// fail maps a service error onto the JSON error response shape.
func (h *Handler) fail(c *gin.Context, err error) {
	h.appCtx.Logger.Debug("request failed", "path", c.FullPath(), "err", err)
	c.JSON(svcErr.HTTPStatus(err), gin.H{"code": svcErr.Code(err), "error": err.Error()})
}

// zero is a legal coordinate, so pointers distinguish "missing" from
// "equator/meridian"
type locationRequest struct {
	Lat *float64 `json:"lat" binding:"required"`
	Lon *float64 `json:"lon" binding:"required"`
}

// UpsertLocation handles PUT /v1/location: overwrite the owner's
// current position.
func (h *Handler) UpsertLocation(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	var req locationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}
	if err := h.geoIdx.UpsertLocation(c.Request.Context(), ownerID, *req.Lat, *req.Lon); err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

type suggestionItem struct {
	PetID           uint64   `json:"pet_id"`
	OwnerID         uint64   `json:"owner_id"`
	Name            string   `json:"name"`
	Kind            string   `json:"kind"`
	Characteristics []string `json:"characteristics"`
	DistanceMeters  float64  `json:"distance_meters"`
}

// GetSuggestions handles GET /v1/suggestions.
//
// Query params: limit (3..10), infinite (bool), loaded (comma-separated
// pet ids the client already holds).
func (h *Handler) GetSuggestions(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "10"))
	infinite := c.Query("infinite") == "true"

	loaded := make(map[uint64]struct{})
	if raw := c.Query("loaded"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			if id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64); err == nil {
				loaded[id] = struct{}{}
			}
		}
	}

	suggestions, err := h.suggestSvc.Suggest(c.Request.Context(), ownerID, loaded, limit, infinite)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]suggestionItem, 0, len(suggestions))
	for _, s := range suggestions {
		items = append(items, suggestionItem{
			PetID:           s.Pet.ID,
			OwnerID:         s.OwnerID,
			Name:            s.Pet.Name,
			Kind:            s.Pet.Kind,
			Characteristics: s.Characteristics,
			DistanceMeters:  s.DistanceMeters,
		})
	}
	c.JSON(http.StatusOK, gin.H{"suggestions": items})
}

type actionRequest struct {
	TargetPetID uint64 `json:"target_pet_id" binding:"required"`
	Kind        string `json:"kind" binding:"required"`
}

// RecordAction handles POST /v1/actions: like or dismiss a pet.
func (h *Handler) RecordAction(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	var req actionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"code": "bad_request", "error": err.Error()})
		return
	}

	kind, ok := db.ParseActionKind(req.Kind)
	if !ok {
		h.fail(c, svcErr.ErrInvalidActionKind)
		return
	}

	result, err := h.actionSvc.RecordAction(c.Request.Context(), ownerID, req.TargetPetID, kind)
	if err != nil {
		h.fail(c, err)
		return
	}

	resp := gin.H{"success": true, "matched": result.Matched}
	if result.MatchID != "" {
		resp["match_id"] = result.MatchID
	}
	c.JSON(http.StatusOK, resp)
}

type admirerItem struct {
	PetID    uint64 `json:"pet_id"`
	Name     string `json:"name"`
	Kind     string `json:"kind"`
	LikedAt  int64  `json:"liked_at_unix_ms"`
	HasMatch bool   `json:"has_match"`
}

// ListAdmirers handles GET /v1/admirers. ?new=true restricts the list
// to likes not yet reciprocated; page_token paginates.
func (h *Handler) ListAdmirers(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}

	var token *string
	if raw := c.Query("page_token"); raw != "" {
		token = &raw
	}
	onlyNew := c.Query("new") == "true"

	admirers, nextToken, err := h.exploreSvc.ListAdmirers(c.Request.Context(), ownerID, onlyNew, token)
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]admirerItem, 0, len(admirers))
	for _, a := range admirers {
		items = append(items, admirerItem{
			PetID:    a.Pet.ID,
			Name:     a.Pet.Name,
			Kind:     a.Pet.Kind,
			LikedAt:  a.LikedAt.UnixMilli(),
			HasMatch: a.HasMatch,
		})
	}
	resp := gin.H{"admirers": items}
	if nextToken != nil {
		resp["next_page_token"] = *nextToken
	}
	c.JSON(http.StatusOK, resp)
}

// CountAdmirers handles GET /v1/admirers/count.
func (h *Handler) CountAdmirers(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	count, err := h.exploreSvc.CountAdmirers(c.Request.Context(), ownerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": count})
}

type matchItem struct {
	MatchID   string `json:"match_id"`
	PetID     uint64 `json:"pet_id"`
	Name      string `json:"name"`
	Kind      string `json:"kind"`
	CreatedAt int64  `json:"created_at_unix_ms"`
}

// ListMatches handles GET /v1/matches.
func (h *Handler) ListMatches(c *gin.Context) {
	ownerID, ok := h.ownerID(c)
	if !ok {
		return
	}
	matches, err := h.exploreSvc.ListMatches(c.Request.Context(), ownerID)
	if err != nil {
		h.fail(c, err)
		return
	}
	items := make([]matchItem, 0, len(matches))
	for _, m := range matches {
		items = append(items, matchItem{
			MatchID:   m.MatchID,
			PetID:     m.Pet.ID,
			Name:      m.Pet.Name,
			Kind:      m.Pet.Kind,
			CreatedAt: m.CreatedAt.UnixMilli(),
		})
	}
	c.JSON(http.StatusOK, gin.H{"matches": items})
}
