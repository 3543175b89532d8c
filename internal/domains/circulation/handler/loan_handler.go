package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/domains/circulation/service"
	"circulation-backend/internal/shared/response"
)

type Handler struct {
	service service.ServiceInterface
}

// NewHandler creates a new circulation handler
func NewHandler(service service.ServiceInterface) *Handler {
	return &Handler{
		service: service,
	}
}

// Borrow handles POST /api/v1/loans
func (h *Handler) Borrow(c *gin.Context) {
	var req model.BorrowRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	loan, err := h.service.Borrow(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to open loan")
		return
	}

	response.Success(c, http.StatusCreated, "Loan opened", loan)
}

// Return handles POST /api/v1/loans/:id/return
// Body is optional: {"fine_per_day": "0.50"} overrides the rate for this return.
func (h *Handler) Return(c *gin.Context) {
	id, ok := parseID(c, "Invalid loan ID format")
	if !ok {
		return
	}

	var req model.ReturnRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	loan, err := h.service.Return(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err, "Failed to return loan")
		return
	}

	response.Success(c, http.StatusOK, "Loan returned", loan)
}

// Renew handles POST /api/v1/loans/:id/renew
func (h *Handler) Renew(c *gin.Context) {
	id, ok := parseID(c, "Invalid loan ID format")
	if !ok {
		return
	}

	var req model.RenewRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	loan, err := h.service.Renew(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err, "Failed to renew loan")
		return
	}

	response.Success(c, http.StatusOK, "Loan renewed", loan)
}

// ForceClose handles POST /api/v1/admin/loans/:id/force-close
func (h *Handler) ForceClose(c *gin.Context) {
	id, ok := parseID(c, "Invalid loan ID format")
	if !ok {
		return
	}

	loan, err := h.service.ForceClose(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to force close loan")
		return
	}

	response.Success(c, http.StatusOK, "Loan force-closed", loan)
}

// DeleteLoan handles DELETE /api/v1/admin/loans/:id?force=true
func (h *Handler) DeleteLoan(c *gin.Context) {
	id, ok := parseID(c, "Invalid loan ID format")
	if !ok {
		return
	}

	force := false
	if raw := c.Query("force"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, http.StatusBadRequest, "Invalid force flag", err.Error())
			return
		}
		force = parsed
	}

	if err := h.service.DeleteLoan(c.Request.Context(), id, force); err != nil {
		writeError(c, err, "Failed to delete loan")
		return
	}

	c.Status(http.StatusNoContent)
}

// GetLoan handles GET /api/v1/loans/:id
func (h *Handler) GetLoan(c *gin.Context) {
	id, ok := parseID(c, "Invalid loan ID format")
	if !ok {
		return
	}

	loan, err := h.service.GetLoan(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get loan")
		return
	}

	response.Success(c, http.StatusOK, "Loan retrieved successfully", loan)
}

// ListLoans handles GET /api/v1/loans?status=open&borrower_id=...&page=1&limit=20
func (h *Handler) ListLoans(c *gin.Context) {
	var req model.ListLoansRequest

	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid query parameters", err.Error())
		return
	}

	result, err := h.service.ListLoans(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to list loans")
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, "Loans retrieved successfully", result.Loans, &response.Meta{
		Page:  result.Page,
		Limit: result.Limit,
	})
}

// ListOverdue handles GET /api/v1/loans/overdue?limit=50
func (h *Handler) ListOverdue(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	loans, err := h.service.ListOverdue(c.Request.Context(), limit)
	if err != nil {
		writeError(c, err, "Failed to list overdue loans")
		return
	}

	response.Success(c, http.StatusOK, "Overdue loans retrieved successfully", loans)
}

// Statistics handles GET /api/v1/loans/statistics
func (h *Handler) Statistics(c *gin.Context) {
	stats, err := h.service.Statistics(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to compute statistics")
		return
	}

	response.Success(c, http.StatusOK, "Statistics retrieved successfully", stats)
}

// CheckEligibility handles GET /api/v1/borrowers/:id/eligibility?item_id=...
// 200 with eligible=false carries the denial reason; only faults are errors.
func (h *Handler) CheckEligibility(c *gin.Context) {
	borrowerID, ok := parseID(c, "Invalid borrower ID format")
	if !ok {
		return
	}
	itemID, err := uuid.Parse(c.Query("item_id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid item ID format", err.Error())
		return
	}

	err = h.service.CheckBorrowEligible(c.Request.Context(), borrowerID, itemID)
	if err != nil {
		if d, denied := model.AsDenial(err); denied {
			response.Success(c, http.StatusOK, "Borrow not allowed", gin.H{
				"eligible": false,
				"reason":   d.Reason,
				"message":  d.Message,
			})
			return
		}
		writeError(c, err, "Failed to check eligibility")
		return
	}

	response.Success(c, http.StatusOK, "Borrow allowed", gin.H{"eligible": true})
}

// Reconcile handles POST /api/v1/admin/reconcile
func (h *Handler) Reconcile(c *gin.Context) {
	result, err := h.service.Reconcile(c.Request.Context())
	if err != nil {
		writeError(c, err, "Failed to reconcile ledger")
		return
	}

	response.Success(c, http.StatusOK, "Ledger reconciled", result)
}

// bindOptionalJSON binds the body when the client sent one, chunked or not.
// An empty body leaves req at its zero value.
func bindOptionalJSON(c *gin.Context, req any) bool {
	if c.Request.Body == nil || c.Request.Body == http.NoBody {
		return true
	}
	if err := c.ShouldBindJSON(req); err != nil && !errors.Is(err, io.EOF) {
		response.Error(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return false
	}
	return true
}

func parseID(c *gin.Context, message string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, message, err.Error())
		return uuid.Nil, false
	}
	return id, true
}

// writeError maps denials to 409 (422 when a referenced record is missing)
// with the reason as error code, and faults to their HTTP status.
func writeError(c *gin.Context, err error, fallback string) {
	if d, ok := model.AsDenial(err); ok {
		status := http.StatusConflict
		if d.Reason == model.ReasonBorrowerNotFound || d.Reason == model.ReasonItemNotFound {
			status = http.StatusUnprocessableEntity
		}
		response.ErrorWithCode(c, status, string(d.Reason), d.Message, nil)
		return
	}

	switch {
	case model.IsValidationError(err):
		response.Error(c, http.StatusBadRequest, "Validation failed", err.Error())
	case errors.Is(err, model.ErrLoanNotFound):
		response.Error(c, http.StatusNotFound, "Loan not found", err.Error())
	case errors.Is(err, model.ErrItemNotFound):
		response.Error(c, http.StatusNotFound, "Item not found", err.Error())
	case errors.Is(err, model.ErrItemAlreadyExists):
		response.Error(c, http.StatusConflict, "Item already exists", err.Error())
	case model.IsConcurrentModification(err):
		response.Error(c, http.StatusConflict, "Loan was modified concurrently, retry", err.Error())
	case model.IsInvariantViolation(err):
		response.ErrorWithCode(c, http.StatusInternalServerError, "LEDGER_INVARIANT_VIOLATION", "Ledger invariant violated", err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, fallback, err.Error())
	}
}
