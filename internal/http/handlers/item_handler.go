package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stockroom-server/internal/services"
	"stockroom-server/internal/utils"
)

type ItemHandler struct {
	items *services.ItemService
}

type ItemCreateRequest struct {
	Title       string `json:"title" binding:"required"`
	Description string `json:"description"`
}

type ItemUpdateRequest struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
}

func NewItemHandler(items *services.ItemService) *ItemHandler {
	return &ItemHandler{items: items}
}

// List returns all items for a superuser and the caller's own otherwise.
func (h *ItemHandler) List(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	page, err := utils.ParsePage(c)
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	items, err := h.items.List(c.Request.Context(), user, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemsToResponse(items))
}

// Search accepts query-string syntax, e.g. `title:foo*` for typeahead.
func (h *ItemHandler) Search(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	query := c.Query("q")
	if query == "" {
		utils.RespondValidationError(c, "q is required")
		return
	}

	page, err := utils.ParsePage(c)
	if err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	items, err := h.items.Search(c.Request.Context(), user, query, page)
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemsToResponse(items))
}

func (h *ItemHandler) Create(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	var req ItemCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	item, err := h.items.Create(c.Request.Context(), user, services.ItemCreateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	utils.RespondCreated(c, itemToResponse(item))
}

func (h *ItemHandler) GetByID(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	item, err := h.items.Get(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemToResponse(item))
}

func (h *ItemHandler) Update(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	var req ItemUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.RespondValidationError(c, err.Error())
		return
	}

	item, err := h.items.Update(c.Request.Context(), user, c.Param("id"), services.ItemUpdateInput{
		Title:       req.Title,
		Description: req.Description,
	})
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemToResponse(item))
}

// Delete removes an item and returns the record that was deleted.
func (h *ItemHandler) Delete(c *gin.Context) {
	user, ok := requireActive(c)
	if !ok {
		return
	}

	item, err := h.items.Delete(c.Request.Context(), user, c.Param("id"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, itemToResponse(item))
}
