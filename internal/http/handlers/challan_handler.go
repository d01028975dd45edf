// Challan HTTP handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// ChallanRequest is the JSON payload for creating or updating a challan.
type ChallanRequest struct {
	ChallanNumber string    `json:"challan_number" binding:"required"`
	VehicleNumber string    `json:"vehicle_number" binding:"required"`
	DriverName    string    `json:"driver_name" binding:"required"`
	Route         string    `json:"route"`
	ChallanDate   time.Time `json:"challan_date"`
}

func (r ChallanRequest) model() *domain.Challan {
	return &domain.Challan{
		ChallanNumber: r.ChallanNumber,
		VehicleNumber: r.VehicleNumber,
		DriverName:    r.DriverName,
		Route:         r.Route,
		ChallanDate:   r.ChallanDate,
	}
}

// ListChallansResponse wraps a page of challans.
type ListChallansResponse struct {
	Challans   []domain.Challan `json:"challans"`
	Pagination Pagination       `json:"pagination"`
}

// CreateChallan creates a challan behind the guard pipeline.
func (h *Handlers) CreateChallan(c *gin.Context) {
	var req ChallanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ch, err := h.challans.Create(c.Request.Context(), formID(c), req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, ch)
}

// GetChallan fetches one challan by ID.
func (h *Handlers) GetChallan(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	ch, err := h.challans.Get(c.Request.Context(), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}

// ListChallans returns a page of challans.
func (h *Handlers) ListChallans(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.challans.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListChallansResponse{
		Challans:   items,
		Pagination: paginate(page, pageSize, total),
	})
}

// UpdateChallan updates a challan with self-excluded uniqueness.
func (h *Handlers) UpdateChallan(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	var req ChallanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	ch, err := h.challans.Update(c.Request.Context(), formID(c), id, req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ch)
}
