package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/llmbait/models"
)

// MetadataLookup resolves URL metadata. *metadata.Service satisfies it.
type MetadataLookup interface {
	Lookup(ctx context.Context, req *models.MetadataRequest) *models.MetadataResponse
}

// Metadata returns a handler for POST /api/v1/metadata. Lookup failures
// are reported with status "error" and HTTP 200, so agents read them as
// data; only malformed requests get a 400.
func Metadata(lookup MetadataLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.MetadataRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.MetadataResponse{
				Status:       models.MetadataStatusError,
				URL:          req.URL,
				ErrorMessage: err.Error(),
			})
			return
		}
		c.JSON(http.StatusOK, lookup.Lookup(c.Request.Context(), &req))
	}
}
