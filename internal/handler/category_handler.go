package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/response"

	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/service"
)

// CategoryHandler wires HTTP endpoints to the category service.
type CategoryHandler struct {
	service *service.CategoryService
}

// NewCategoryHandler creates a new handler.
func NewCategoryHandler(svc *service.CategoryService) *CategoryHandler {
	return &CategoryHandler{service: svc}
}

// List godoc
// @Summary List active menu categories
// @Tags Menu
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories [get]
func (h *CategoryHandler) List(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context(), false)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", categories)
}

// ListAll godoc
// @Summary List all categories including hidden ones
// @Tags Menu
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /categories/all [get]
func (h *CategoryHandler) ListAll(c *gin.Context) {
	categories, err := h.service.List(c.Request.Context(), true)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", categories)
}

// Get godoc
// @Summary Get a category
// @Tags Menu
// @Produce json
// @Param id path string true "Category ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /categories/{id} [get]
func (h *CategoryHandler) Get(c *gin.Context) {
	category, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", category)
}

// Create godoc
// @Summary Create a category
// @Tags Menu
// @Accept json
// @Produce json
// @Param payload body models.CreateCategoryRequest true "Category payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /categories [post]
func (h *CategoryHandler) Create(c *gin.Context) {
	var req models.CreateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}

	category, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "category created", category)
}

// Update godoc
// @Summary Update a category
// @Tags Menu
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body models.UpdateCategoryRequest true "Category payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /categories/{id} [put]
func (h *CategoryHandler) Update(c *gin.Context) {
	var req models.UpdateCategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid category payload"))
		return
	}

	category, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "category updated", category)
}

// UpdateStatus godoc
// @Summary Show or hide a category on the public menu
// @Tags Menu
// @Accept json
// @Produce json
// @Param id path string true "Category ID"
// @Param payload body models.UpdateCategoryStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /categories/{id}/status [patch]
func (h *CategoryHandler) UpdateStatus(c *gin.Context) {
	var req models.UpdateCategoryStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid status payload"))
		return
	}

	category, err := h.service.SetStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "category status updated", category)
}

// Delete godoc
// @Summary Delete an empty category
// @Tags Menu
// @Produce json
// @Param id path string true "Category ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /categories/{id} [delete]
func (h *CategoryHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
