package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"productshot-backend/internal/models"
	"productshot-backend/internal/services"
)

type GalleryHandler struct {
	store services.ProjectStore
}

func NewGalleryHandler(store services.ProjectStore) *GalleryHandler {
	return &GalleryHandler{
		store: store,
	}
}

// ListPublished godoc
// @Summary     List published projects
// @Description Public gallery. Only projects explicitly published by their owner appear here.
// @Tags        gallery
// @Produce     json
// @Success     200 {object} models.ProjectListResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/published [get]
func (h *GalleryHandler) ListPublished(c *gin.Context) {
	projects, err := h.store.ListPublishedProjects()
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list projects"})
		return
	}

	c.JSON(http.StatusOK, toProjectListResponse(projects))
}
