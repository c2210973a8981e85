package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/bughunter/models"
)

// SuggestFix returns a handler for POST /api/v1/suggest-fix.
//
// Without a configured model the endpoint answers 503; a model failure
// still answers 200 with the taxonomy-based fallback and its error field set.
func SuggestFix(an Analyzer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.SuggestFixRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		if req.Bug.Type == "" {
			badRequest(c, "bug data required: provide bug.type")
			return
		}
		if !an.Enabled() {
			respondError(c, models.NewScanError(models.ErrCodeLLMDisabled, "AI service unavailable: API key not configured", nil))
			return
		}

		c.JSON(http.StatusOK, models.FixResponse{
			Success:    true,
			Suggestion: an.SuggestFix(c.Request.Context(), req.Bug),
		})
	}
}
