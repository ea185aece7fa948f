package risk

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/richxcame/pizzaguard/internal/fraud"
	"github.com/richxcame/pizzaguard/pkg/common"
)

const (
	defaultAlertPage = 20
	maxAlertPage     = 100
)

// ReviewQueue lists and resolves the review alerts raised by the payment gate.
type ReviewQueue interface {
	ListPending(ctx context.Context, limit, offset int) ([]*fraud.ReviewAlert, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status fraud.AlertStatus) error
}

// WithReviewQueue enables the operator alert routes.
func (h *Handler) WithReviewQueue(q ReviewQueue) *Handler {
	h.reviews = q
	return h
}

// ResolveAlertRequest is the body of the alert review endpoint.
type ResolveAlertRequest struct {
	Status fraud.AlertStatus `json:"status" binding:"required"`
}

// ListAlerts returns pending alerts, high tier first.
func (h *Handler) ListAlerts(c *gin.Context) {
	limit := queryInt(c, "limit", defaultAlertPage)
	if limit <= 0 {
		limit = defaultAlertPage
	}
	if limit > maxAlertPage {
		limit = maxAlertPage
	}
	offset := queryInt(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	alerts, err := h.reviews.ListPending(c.Request.Context(), limit, offset)
	if common.HandleServiceError(c, err, "failed to list review alerts") {
		return
	}
	if alerts == nil {
		alerts = []*fraud.ReviewAlert{}
	}
	common.SuccessResponse(c, gin.H{"alerts": alerts, "limit": limit, "offset": offset})
}

// ResolveAlert closes a review as confirmed fraud or a false positive.
func (h *Handler) ResolveAlert(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		common.AppErrorResponse(c, common.NewBadRequestError("invalid alert id", err))
		return
	}

	var req ResolveAlertRequest
	if !common.BindJSON(c, &req) {
		return
	}
	if !req.Status.Resolved() {
		common.AppErrorResponse(c, common.NewValidationError("status must be confirmed or false_positive"))
		return
	}

	err = h.reviews.UpdateStatus(c.Request.Context(), id, req.Status)
	if errors.Is(err, fraud.ErrAlertNotFound) {
		common.AppErrorResponse(c, common.NewNotFoundError("review alert not found", err))
		return
	}
	if common.HandleServiceError(c, err, "failed to update review alert") {
		return
	}
	common.SuccessResponse(c, gin.H{"id": id, "status": req.Status})
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
