// Records HTTP handler.
package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// RecordsResponse is the denormalized snapshot the dashboard seeds its
// client-side cache with.
type RecordsResponse struct {
	Records []domain.CachedRecord `json:"records"`
	Count   int                   `json:"count"`
}

// ListRecords returns the cached record snapshots, optionally filtered by
// kind. This is what a freshly opened dashboard tab loads before the
// websocket feed takes over.
func (h *Handlers) ListRecords(c *gin.Context) {
	all := h.records.Snapshot()

	if raw := strings.TrimSpace(c.Query("kind")); raw != "" {
		kind := domain.RecordKind(raw)
		if !kind.Valid() {
			fail(c, http.StatusBadRequest, ErrCodeBadRequest, "unknown record kind")
			return
		}
		filtered := all[:0]
		for _, rec := range all {
			if rec.Kind == kind {
				filtered = append(filtered, rec)
			}
		}
		all = filtered
	}

	ok(c, http.StatusOK, RecordsResponse{Records: all, Count: len(all)})
}
