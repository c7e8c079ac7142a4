package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	appErrors "github.com/azhur-katering/katering-api/pkg/errors"
	"github.com/azhur-katering/katering-api/pkg/response"

	"github.com/azhur-katering/katering-api/internal/models"
	"github.com/azhur-katering/katering-api/internal/service"
)

// DishHandler wires HTTP endpoints to the dish service.
type DishHandler struct {
	service      *service.DishService
	maxImageSize int64
}

// NewDishHandler creates a new handler.
func NewDishHandler(svc *service.DishService, maxImageSize int64) *DishHandler {
	if maxImageSize <= 0 {
		maxImageSize = 5 << 20
	}
	return &DishHandler{service: svc, maxImageSize: maxImageSize}
}

// List godoc
// @Summary List dishes
// @Tags Menu
// @Produce json
// @Param category_id query string false "Filter by category"
// @Param available query bool false "Filter by availability"
// @Param search query string false "Search in name and description"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dishes [get]
func (h *DishHandler) List(c *gin.Context) {
	filter := models.DishFilter{
		CategoryID: c.Query("category_id"),
		Search:     c.Query("search"),
	}
	if raw := c.Query("available"); raw != "" {
		available, err := strconv.ParseBool(raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "available must be a boolean"))
			return
		}
		filter.Available = &available
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", list)
}

// Available godoc
// @Summary List available dishes
// @Tags Menu
// @Produce json
// @Param category_id query string false "Filter by category"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dishes/available [get]
func (h *DishHandler) Available(c *gin.Context) {
	available := true
	filter := models.DishFilter{
		CategoryID: c.Query("category_id"),
		Available:  &available,
	}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", list)
}

// Search godoc
// @Summary Search dishes by name or description
// @Tags Menu
// @Produce json
// @Param q query string true "Search term"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /dishes/search [get]
func (h *DishHandler) Search(c *gin.Context) {
	query := c.Query("q")
	if query == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "search term is required"))
		return
	}
	filter := models.DishFilter{Search: query}
	filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
	filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

	list, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", list)
}

// Get godoc
// @Summary Get a dish
// @Tags Menu
// @Produce json
// @Param id path string true "Dish ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dishes/{id} [get]
func (h *DishHandler) Get(c *gin.Context) {
	dish, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", dish)
}

// Create godoc
// @Summary Create a dish
// @Tags Menu
// @Accept json
// @Produce json
// @Param payload body models.CreateDishRequest true "Dish payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /dishes [post]
func (h *DishHandler) Create(c *gin.Context) {
	var req models.CreateDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dish payload"))
		return
	}

	dish, err := h.service.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, "dish created", dish)
}

// Update godoc
// @Summary Update a dish
// @Tags Menu
// @Accept json
// @Produce json
// @Param id path string true "Dish ID"
// @Param payload body models.UpdateDishRequest true "Dish payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /dishes/{id} [put]
func (h *DishHandler) Update(c *gin.Context) {
	var req models.UpdateDishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid dish payload"))
		return
	}

	dish, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "dish updated", dish)
}

// Delete godoc
// @Summary Delete a dish
// @Tags Menu
// @Produce json
// @Param id path string true "Dish ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /dishes/{id} [delete]
func (h *DishHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UploadImage godoc
// @Summary Upload a dish image
// @Description Store the original and thumbnail renditions for a dish
// @Tags Menu
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Dish ID"
// @Param image formData file true "Image file"
// @Param thumbnail formData file true "Thumbnail file"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /dishes/{id}/image [post]
func (h *DishHandler) UploadImage(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 2*h.maxImageSize)

	image, err := c.FormFile("image")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "image file is required"))
		return
	}
	thumbnail, err := c.FormFile("thumbnail")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "thumbnail file is required"))
		return
	}
	if image.Size > h.maxImageSize || thumbnail.Size > h.maxImageSize {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("image exceeds %d bytes", h.maxImageSize)))
		return
	}

	imageFile, err := image.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read image"))
		return
	}
	defer imageFile.Close()

	thumbFile, err := thumbnail.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "cannot read thumbnail"))
		return
	}
	defer thumbFile.Close()

	contentType := image.Header.Get("Content-Type")
	dish, err := h.service.UploadImage(c.Request.Context(), c.Param("id"), image.Filename, contentType, imageFile, thumbFile)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "image uploaded", dish)
}

// Export godoc
// @Summary Export the menu
// @Description Render dishes as CSV or PDF
// @Tags Menu
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {file} []byte
// @Router /dishes/export [get]
func (h *DishHandler) Export(c *gin.Context) {
	format := c.DefaultQuery("format", "csv")

	out, contentType, err := h.service.Export(c.Request.Context(), format)
	if err != nil {
		response.Error(c, err)
		return
	}

	ext := "csv"
	if format == "pdf" {
		ext = "pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=menu.%s", ext))
	c.Data(http.StatusOK, contentType, out)
}
