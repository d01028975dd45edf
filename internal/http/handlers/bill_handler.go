// Freight bill HTTP handlers.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/freightops/go-freight-backend/internal/domain"
)

// BillRequest is the JSON payload for creating or updating a bill.
type BillRequest struct {
	BillNumber string    `json:"bill_number" binding:"required"`
	Party      string    `json:"party" binding:"required"`
	Amount     float64   `json:"amount"`
	BillDate   time.Time `json:"bill_date"`
}

func (r BillRequest) model() *domain.Bill {
	return &domain.Bill{
		BillNumber: r.BillNumber,
		Party:      r.Party,
		Amount:     r.Amount,
		BillDate:   r.BillDate,
	}
}

// ListBillsResponse wraps a page of bills.
type ListBillsResponse struct {
	Bills      []domain.Bill `json:"bills"`
	Pagination Pagination    `json:"pagination"`
}

// CreateBill creates a bill behind the guard pipeline.
func (h *Handlers) CreateBill(c *gin.Context) {
	var req BillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	b, err := h.bills.Create(c.Request.Context(), formID(c), req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, b)
}

// GetBill fetches one bill by ID.
func (h *Handlers) GetBill(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	b, err := h.bills.Get(c.Request.Context(), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}

// ListBills returns a page of bills.
func (h *Handlers) ListBills(c *gin.Context) {
	page, pageSize := clampPagination(c)
	items, total, err := h.bills.ListPage(c.Request.Context(), page, pageSize)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListBillsResponse{
		Bills:      items,
		Pagination: paginate(page, pageSize, total),
	})
}

// UpdateBill updates a bill with self-excluded uniqueness.
func (h *Handlers) UpdateBill(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	var req BillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}
	b, err := h.bills.Update(c.Request.Context(), formID(c), id, req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, b)
}
