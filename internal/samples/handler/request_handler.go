package handler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sampleflow/sampleflow/internal/samples/entity"
	"github.com/sampleflow/sampleflow/internal/samples/repository"
	"github.com/sampleflow/sampleflow/internal/samples/store"
	"go.uber.org/zap"
)

// RequestHandler serves the creator submission, brand review and public
// status-lookup surfaces. Reads go against the store's in-memory mirror;
// writes go through the store so optimistic state stays consistent.
type RequestHandler struct {
	requests *store.RequestStore
	logger   *zap.Logger
}

func NewRequestHandler(requests *store.RequestStore, logger *zap.Logger) *RequestHandler {
	return &RequestHandler{requests: requests, logger: logger}
}

// SubmitRequestInput 提交样品申请
type SubmitRequestInput struct {
	CreatorName string `json:"creator_name" binding:"required,min=2"`
	Email       string `json:"email" binding:"required,email"`
	ChannelLink string `json:"channel_link" binding:"required,url"`
	ProductID   string `json:"product_id" binding:"required"`
}

// Submit handles POST /api/v1/requests. Validation happens before any write;
// the created entity's id is what the client uses to redirect the submitter
// to their status page.
func (h *RequestHandler) Submit(c *gin.Context) {
	var input SubmitRequestInput
	if err := c.ShouldBindJSON(&input); err != nil {
		BadRequest(c, "Invalid request: "+err.Error())
		return
	}
	if entity.FindProduct(input.ProductID) == nil {
		BadRequest(c, "Unknown product: "+input.ProductID)
		return
	}

	req, err := h.requests.Add(c.Request.Context(), repository.CreateRequestInput{
		CreatorName: input.CreatorName,
		Email:       input.Email,
		ChannelLink: input.ChannelLink,
		ProductID:   input.ProductID,
	})
	if err != nil {
		h.logger.Error("Failed to create sample request", zap.Error(err))
		InternalError(c, "Failed to submit request")
		return
	}

	Created(c, req)
}

// List handles GET /api/v1/requests — the brand dashboard listing, newest
// first, with optional status filter and free-text search plus the stat block
// the dashboard header shows.
func (h *RequestHandler) List(c *gin.Context) {
	statusFilter := c.Query("status")
	if statusFilter != "" && statusFilter != "all" && !entity.RequestStatus(statusFilter).Valid() {
		BadRequest(c, "Unknown status filter: "+statusFilter)
		return
	}
	search := strings.ToLower(c.Query("search"))

	all := h.requests.List()

	stats := struct {
		Total        int    `json:"total"`
		Pending      int    `json:"pending"`
		Approved     int    `json:"approved"`
		Rejected     int    `json:"rejected"`
		ApprovalRate string `json:"approval_rate"`
	}{Total: len(all), ApprovalRate: "0"}

	filtered := make([]entity.SampleRequest, 0, len(all))
	for _, req := range all {
		switch req.Status {
		case entity.RequestStatusPending:
			stats.Pending++
		case entity.RequestStatusApproved:
			stats.Approved++
		case entity.RequestStatusRejected:
			stats.Rejected++
		}

		if statusFilter != "" && statusFilter != "all" && string(req.Status) != statusFilter {
			continue
		}
		if search != "" && !matchesSearch(req, search) {
			continue
		}
		filtered = append(filtered, req)
	}
	if stats.Total > 0 {
		stats.ApprovalRate = fmt.Sprintf("%.1f", float64(stats.Approved)/float64(stats.Total)*100)
	}

	Success(c, gin.H{
		"items":    filtered,
		"total":    len(filtered),
		"stats":    stats,
		"degraded": h.requests.Degraded(),
	})
}

// Get handles GET /api/v1/requests/:id — the public status lookup. The match
// is case-sensitive and served from the in-memory mirror only; an id the
// mirror has not seen yet renders the not-found state rather than an error.
func (h *RequestHandler) Get(c *gin.Context) {
	id := c.Param("id")
	req, ok := h.requests.FindByID(id)
	if !ok {
		NotFound(c, "Request not found: "+id)
		return
	}
	Success(c, req)
}

// Approve handles POST /api/v1/requests/:id/approve.
func (h *RequestHandler) Approve(c *gin.Context) {
	h.decide(c, entity.RequestStatusApproved)
}

// Reject handles POST /api/v1/requests/:id/reject.
func (h *RequestHandler) Reject(c *gin.Context) {
	h.decide(c, entity.RequestStatusRejected)
}

func (h *RequestHandler) decide(c *gin.Context, status entity.RequestStatus) {
	id := c.Param("id")
	if err := h.requests.Decide(c.Request.Context(), id, status); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Request not found: "+id)
			return
		}
		h.logger.Error("Failed to record decision",
			zap.String("request_id", id),
			zap.String("status", string(status)),
			zap.Error(err),
		)
		InternalError(c, "Failed to update request")
		return
	}

	req, _ := h.requests.FindByID(id)
	Success(c, req)
}

// AdvanceShipping handles POST /api/v1/requests/:id/shipping/advance — one
// forward step through the shipping sequence. Requests that are not approved
// have no shipping state to advance.
func (h *RequestHandler) AdvanceShipping(c *gin.Context) {
	id := c.Param("id")
	req, ok := h.requests.FindByID(id)
	if !ok {
		NotFound(c, "Request not found: "+id)
		return
	}
	if req.Status != entity.RequestStatusApproved {
		Conflict(c, "Request is not approved")
		return
	}

	if err := h.requests.AdvanceShippingStatus(c.Request.Context(), id, req.ShippingStatus); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			NotFound(c, "Request not found: "+id)
			return
		}
		h.logger.Error("Failed to advance shipping status", zap.String("request_id", id), zap.Error(err))
		InternalError(c, "Failed to update shipping status")
		return
	}

	updated, _ := h.requests.FindByID(id)
	Success(c, updated)
}

func matchesSearch(req entity.SampleRequest, search string) bool {
	return strings.Contains(strings.ToLower(req.CreatorName), search) ||
		strings.Contains(strings.ToLower(req.Email), search) ||
		strings.Contains(strings.ToLower(req.ID), search) ||
		strings.Contains(strings.ToLower(req.ProductID), search)
}
