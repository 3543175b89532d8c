package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"circulation-backend/internal/domains/circulation/model"
	"circulation-backend/internal/shared/response"
)

// RegisterItem handles POST /api/v1/admin/items
func (h *Handler) RegisterItem(c *gin.Context) {
	var req model.RegisterItemRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	item, err := h.service.RegisterItem(c.Request.Context(), req)
	if err != nil {
		writeError(c, err, "Failed to register item")
		return
	}

	response.Success(c, http.StatusCreated, "Item registered", item)
}

// ResizeItem handles PUT /api/v1/admin/items/:id/copies
func (h *Handler) ResizeItem(c *gin.Context) {
	id, ok := parseID(c, "Invalid item ID format")
	if !ok {
		return
	}

	var req model.ResizeItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, "Invalid request payload", err.Error())
		return
	}

	item, err := h.service.ResizeItem(c.Request.Context(), id, req)
	if err != nil {
		writeError(c, err, "Failed to resize item")
		return
	}

	response.Success(c, http.StatusOK, "Item resized", item)
}

// GetItem handles GET /api/v1/items/:id
func (h *Handler) GetItem(c *gin.Context) {
	id, ok := parseID(c, "Invalid item ID format")
	if !ok {
		return
	}

	item, err := h.service.GetItem(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get item")
		return
	}

	response.Success(c, http.StatusOK, "Item retrieved successfully", item)
}

// ListItems handles GET /api/v1/items?page=1&limit=20
func (h *Handler) ListItems(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	items, err := h.service.ListItems(c.Request.Context(), page, limit)
	if err != nil {
		writeError(c, err, "Failed to list items")
		return
	}

	response.SuccessWithMeta(c, http.StatusOK, "Items retrieved successfully", items, &response.Meta{
		Page:  page,
		Limit: limit,
	})
}

// GetAvailability handles GET /api/v1/items/:id/availability
func (h *Handler) GetAvailability(c *gin.Context) {
	id, ok := parseID(c, "Invalid item ID format")
	if !ok {
		return
	}

	availability, err := h.service.GetAvailability(c.Request.Context(), id)
	if err != nil {
		writeError(c, err, "Failed to get availability")
		return
	}

	response.Success(c, http.StatusOK, "Availability retrieved successfully", availability)
}
