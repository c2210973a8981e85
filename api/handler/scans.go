package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/models"
	"github.com/use-agent/bughunter/store"
)

// List paging bounds.
const (
	DefaultListLimit = 10
	MaxListLimit     = 100
)

// ListScans returns a handler for GET /api/v1/scans?limit&offset.
func ListScans(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := queryInt(c, "limit", DefaultListLimit)
		if err != nil || limit < 1 {
			badRequest(c, "limit must be a positive integer")
			return
		}
		limit = min(limit, MaxListLimit)

		offset, err := queryInt(c, "offset", 0)
		if err != nil || offset < 0 {
			badRequest(c, "offset must be a non-negative integer")
			return
		}

		items, total, err := st.List(c.Request.Context(), limit, offset)
		if err != nil {
			respondError(c, err)
			return
		}
		if items == nil {
			items = []models.ScanListItem{}
		}

		c.JSON(http.StatusOK, models.ScanListResponse{
			Success: true,
			Scans:   items,
			Total:   total,
			Limit:   limit,
			Offset:  offset,
		})
	}
}

// GetScan returns a handler for GET /api/v1/scans/:id.
func GetScan(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := st.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, models.ScanResponse{Success: true, Scan: rec})
	}
}

// ToggleShare returns a handler for POST /api/v1/scans/:id/share.
// Each call flips the record between private and public.
func ToggleShare(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := st.ToggleShare(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		resp := models.ShareResponse{
			Success:    true,
			IsPublic:   rec.IsPublic,
			ShareToken: rec.ShareToken,
		}
		if rec.IsPublic {
			resp.ShareURL = "/api/v1/shared/" + rec.ShareToken
		}
		c.JSON(http.StatusOK, resp)
	}
}

// GetShared returns a handler for GET /api/v1/shared/:token. Private and
// unknown tokens both answer 404.
func GetShared(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := st.GetShared(c.Request.Context(), c.Param("token"))
		if err != nil {
			respondError(c, err)
			return
		}
		rec.ShareToken = ""
		c.JSON(http.StatusOK, models.ScanResponse{Success: true, Scan: rec})
	}
}

// Stats returns a handler for GET /api/v1/stats.
func Stats(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := st.Stats(c.Request.Context())
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, stats)
	}
}

func queryInt(c *gin.Context, key string, fallback int) (int, error) {
	v, ok := c.GetQuery(key)
	if !ok || v == "" {
		return fallback, nil
	}
	return strconv.Atoi(v)
}
