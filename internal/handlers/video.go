package handlers

import (
	"database/sql"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"productshot-backend/internal/models"
	"productshot-backend/internal/services"
)

type VideoHandler struct {
	service *services.GenerationService
	store   services.ProjectStore
}

func NewVideoHandler(service *services.GenerationService, store services.ProjectStore) *VideoHandler {
	return &VideoHandler{
		service: service,
		store:   store,
	}
}

// GenerateVideo godoc
// @Summary     Animate a project's generated image into a short video
// @Description Charges 10 credits and starts a detached video generation job for a project whose composite image is ready. The request returns immediately; poll the status endpoint for completion. A failed or timed-out job refunds the charge and records the error on the project.
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     202 {object} models.VideoAcceptedResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     409 {object} models.ErrorResponse
// @Router      /projects/{project_id}/video [post]
func (h *VideoHandler) GenerateVideo(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	project, err := h.service.StartVideo(userID, projectID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// The job outlives this request; the charge is already held and
	// RunVideo compensates on its own failure paths.
	go h.service.RunVideo(project)

	c.JSON(http.StatusAccepted, models.VideoAcceptedResponse{
		ProjectID: projectID.String(),
		Status:    "generating",
	})
}

// GetStatus godoc
// @Summary     Get generation status for a project
// @Tags        video
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.StatusResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id}/status [get]
func (h *VideoHandler) GetStatus(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	project, err := h.store.GetProject(projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to load project"})
		return
	}

	resp := models.StatusResponse{
		ProjectID:    projectID.String(),
		IsGenerating: project.IsGenerating,
		UpdatedAt:    project.UpdatedAt,
	}
	if project.GeneratedImage.Valid {
		resp.GeneratedImage = project.GeneratedImage.String
	}
	if project.GeneratedVideo.Valid {
		resp.GeneratedVideo = project.GeneratedVideo.String
	}
	if project.ErrorMessage.Valid {
		resp.ErrorMessage = project.ErrorMessage.String
	}

	c.JSON(http.StatusOK, resp)
}
