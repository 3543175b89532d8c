package directory

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"circulation-backend/internal/shared/response"
)

type Handler struct {
	registry Registry
}

func NewHandler(registry Registry) *Handler {
	return &Handler{registry: registry}
}

// UpsertBorrower handles PUT /api/v1/borrowers/:id
func (h *Handler) UpsertBorrower(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid borrower ID format", err.Error())
		return
	}

	var req UpsertBorrowerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}
	if err := req.Validate(); err != nil {
		response.Error(c, http.StatusBadRequest, "Validation failed", fmt.Errorf("%w: %v", ErrInvalidBorrower, err).Error())
		return
	}

	b := &Borrower{ID: id, DisplayName: req.DisplayName, MaxConcurrentLoans: req.MaxConcurrentLoans}
	if err := h.registry.UpsertBorrower(c.Request.Context(), b); err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to save borrower", err.Error())
		return
	}

	saved, err := h.registry.GetBorrower(c.Request.Context(), id)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, "Failed to load borrower", err.Error())
		return
	}
	response.Success(c, http.StatusOK, "Borrower saved", saved)
}

// GetBorrower handles GET /api/v1/borrowers/:id
func (h *Handler) GetBorrower(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid borrower ID format", err.Error())
		return
	}

	b, err := h.registry.GetBorrower(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, ErrBorrowerNotFound) {
			response.Error(c, http.StatusNotFound, "Borrower not found", err.Error())
			return
		}
		response.Error(c, http.StatusInternalServerError, "Failed to get borrower", err.Error())
		return
	}
	response.Success(c, http.StatusOK, "Borrower retrieved successfully", b)
}
