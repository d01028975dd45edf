// Consignment note HTTP handlers.
//
// This file exposes the REST endpoints for consignment notes (LRs):
//   - POST /consignments           (create, guarded)
//   - GET  /consignments           (list, paginated, kind filter)
//   - GET  /consignments/{id}      (fetch)
//   - PUT  /consignments/{id}      (update, guarded with self-exclusion)
//
// Handlers are transport-thin: they bind input, call the services, and
// translate results into HTTP responses. The X-Form-ID header lets a screen
// that hosts several forms key the submission throttle per form.
package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/freightops/go-freight-backend/internal/domain"
	"github.com/freightops/go-freight-backend/internal/session"
	"github.com/freightops/go-freight-backend/internal/utils"
)

// headerFormID is the client-supplied throttle key override.
const headerFormID = "X-Form-ID"

//
// Service contracts (context-aware)
//

// ConsignmentService defines the consignment note operations consumed by
// the HTTP layer. Implementations must be safe for concurrent use.
type ConsignmentService interface {
	Create(ctx context.Context, formID string, n *domain.ConsignmentNote) (*domain.ConsignmentNote, error)
	Get(ctx context.Context, id string) (*domain.ConsignmentNote, error)
	ListPage(ctx context.Context, kind string, page, pageSize int) ([]domain.ConsignmentNote, int64, error)
	Update(ctx context.Context, formID, id string, upd *domain.ConsignmentNote) (*domain.ConsignmentNote, error)
}

// ChallanService defines the challan operations consumed by the HTTP layer.
type ChallanService interface {
	Create(ctx context.Context, formID string, ch *domain.Challan) (*domain.Challan, error)
	Get(ctx context.Context, id string) (*domain.Challan, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Challan, int64, error)
	Update(ctx context.Context, formID, id string, upd *domain.Challan) (*domain.Challan, error)
}

// BillingService defines the bill operations consumed by the HTTP layer.
type BillingService interface {
	Create(ctx context.Context, formID string, b *domain.Bill) (*domain.Bill, error)
	Get(ctx context.Context, id string) (*domain.Bill, error)
	ListPage(ctx context.Context, page, pageSize int) ([]domain.Bill, int64, error)
	Update(ctx context.Context, formID, id string, upd *domain.Bill) (*domain.Bill, error)
}

// SessionService defines the session lifecycle operations consumed by the
// session endpoints. Satisfied by session.Tracker.
type SessionService interface {
	Begin(ctx context.Context, user string) (session.Info, error)
	Check(ctx context.Context) (session.Info, error)
	Touch(ctx context.Context) (session.Info, bool, error)
	End(ctx context.Context) error
}

// RecordsSource supplies the cached record snapshots for the records
// endpoint. Satisfied by records.Cache.
type RecordsSource interface {
	Snapshot() []domain.CachedRecord
	Len() int
}

//
// Handler wiring
//

// Handlers groups the HTTP endpoints for records and sessions.
type Handlers struct {
	consignments ConsignmentService
	challans     ChallanService
	bills        BillingService
	sessions     SessionService
	records      RecordsSource
}

// New constructs a Handlers instance bound to the given collaborators.
func New(cons ConsignmentService, ch ChallanService, bills BillingService, sess SessionService, recs RecordsSource) *Handlers {
	return &Handlers{
		consignments: cons,
		challans:     ch,
		bills:        bills,
		sessions:     sess,
		records:      recs,
	}
}

// formID returns the client-declared form identifier, empty when absent so
// the service falls back to the resource's default form.
func formID(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(headerFormID))
}

//
// DTOs
//

// ConsignmentRequest is the JSON payload for creating or updating a note.
type ConsignmentRequest struct {
	Kind        string    `json:"kind" binding:"required"`
	LRNumber    string    `json:"lr_number" binding:"required"`
	Consignor   string    `json:"consignor" binding:"required"`
	Consignee   string    `json:"consignee" binding:"required"`
	FromStation string    `json:"from_station"`
	ToStation   string    `json:"to_station"`
	Freight     float64   `json:"freight"`
	NoteDate    time.Time `json:"note_date"`
}

func (r ConsignmentRequest) model() *domain.ConsignmentNote {
	return &domain.ConsignmentNote{
		Kind:        r.Kind,
		LRNumber:    r.LRNumber,
		Consignor:   r.Consignor,
		Consignee:   r.Consignee,
		FromStation: r.FromStation,
		ToStation:   r.ToStation,
		Freight:     r.Freight,
		NoteDate:    r.NoteDate,
	}
}

// Pagination carries pagination metadata for list responses.
type Pagination struct {
	Page       int   `json:"page"`
	PageSize   int   `json:"page_size"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	HasNext    bool  `json:"has_next"`
}

// ListConsignmentsResponse wraps a page of notes.
type ListConsignmentsResponse struct {
	Consignments []domain.ConsignmentNote `json:"consignments"`
	Pagination   Pagination               `json:"pagination"`
}

//
// Helpers
//

// clampPagination parses and bounds the page and page_size query params.
func clampPagination(c *gin.Context) (page, pageSize int) {
	const (
		defaultPage     = 1
		defaultPageSize = 20
		maxPageSize     = 100
	)
	page = utils.AtoiDefault(c.Query("page"), defaultPage)
	if page < 1 {
		page = 1
	}
	pageSize = utils.AtoiDefault(c.Query("page_size"), defaultPageSize)
	if pageSize < 1 {
		pageSize = 1
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	return
}

func paginate(page, pageSize int, total int64) Pagination {
	totalPages := int((total + int64(pageSize) - 1) / int64(pageSize))
	return Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages,
		HasNext:    page < totalPages,
	}
}

// requireUUID validates a path id, failing the request when malformed.
func requireUUID(c *gin.Context, id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "id must be a UUID")
		return false
	}
	return true
}

//
// Handlers
//

// CreateConsignment creates a consignment note behind the guard pipeline.
func (h *Handlers) CreateConsignment(c *gin.Context) {
	var req ConsignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	n, err := h.consignments.Create(c.Request.Context(), formID(c), req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusCreated, n)
}

// GetConsignment fetches one note by ID.
func (h *Handlers) GetConsignment(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	n, err := h.consignments.Get(c.Request.Context(), id)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}

// ListConsignments returns a page of notes, optionally filtered by kind.
func (h *Handlers) ListConsignments(c *gin.Context) {
	page, pageSize := clampPagination(c)
	kind := strings.TrimSpace(c.Query("kind"))

	items, total, err := h.consignments.ListPage(c.Request.Context(), kind, page, pageSize)
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, ListConsignmentsResponse{
		Consignments: items,
		Pagination:   paginate(page, pageSize, total),
	})
}

// UpdateConsignment updates a note; its own ID is excluded from the
// uniqueness check so an edit never conflicts with itself.
func (h *Handlers) UpdateConsignment(c *gin.Context) {
	id := c.Param("id")
	if !requireUUID(c, id) {
		return
	}
	var req ConsignmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, ErrCodeBadRequest, "invalid JSON body")
		return
	}

	n, err := h.consignments.Update(c.Request.Context(), formID(c), id, req.model())
	if err != nil {
		failFromErr(c, err)
		return
	}
	ok(c, http.StatusOK, n)
}
