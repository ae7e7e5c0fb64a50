package handlers

import (
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"productshot-backend/internal/middleware"
	"productshot-backend/internal/models"
	"productshot-backend/internal/services"
)

type ProjectsHandler struct {
	service *services.GenerationService
	store   services.ProjectStore
	media   services.MediaStore
}

func NewProjectsHandler(service *services.GenerationService, store services.ProjectStore, media services.MediaStore) *ProjectsHandler {
	return &ProjectsHandler{
		service: service,
		store:   store,
		media:   media,
	}
}

// CreateProject godoc
// @Summary     Create a project and generate the composite image
// @Description Uploads a product photo and a model photo, charges 5 credits, and synchronously generates a photorealistic composite image. On any failure after the charge the credits are refunded and the failure is recorded on the project.
// @Tags        projects
// @Accept      multipart/form-data
// @Produce     json
// @Security    Bearer
// @Param       product_name formData string true "Product name"
// @Param       product_description formData string false "Product description"
// @Param       name formData string false "Project name"
// @Param       aspect_ratio formData string false "Aspect ratio, e.g. 9:16"
// @Param       user_prompt formData string false "Extra generation instructions"
// @Param       target_length formData int false "Desired video length hint in seconds"
// @Param       product_image formData file true "Product image"
// @Param       model_image formData file true "Model image"
// @Success     201 {object} models.CreateProjectResponse
// @Failure     400 {object} models.ErrorResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [post]
func (h *ProjectsHandler) CreateProject(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	var req models.CreateProjectRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
		return
	}

	productImage, ok := readFormImage(c, "product_image")
	if !ok {
		return
	}
	modelImage, ok := readFormImage(c, "model_image")
	if !ok {
		return
	}

	project, err := h.service.CreateProject(userID, services.CreateProjectInput{
		Name:               req.Name,
		AspectRatio:        req.AspectRatio,
		UserPrompt:         req.UserPrompt,
		ProductName:        req.ProductName,
		ProductDescription: req.ProductDescription,
		TargetLength:       req.TargetLength,
		ProductImage:       productImage,
		ModelImage:         modelImage,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, models.CreateProjectResponse{
		ProjectID:      project.ID.String(),
		GeneratedImage: project.GeneratedImage.String,
	})
}

// ListProjects godoc
// @Summary     List the caller's projects
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Success     200 {object} models.ProjectListResponse
// @Failure     401 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects [get]
func (h *ProjectsHandler) ListProjects(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	projects, err := h.store.ListProjects(userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to list projects"})
		return
	}

	c.JSON(http.StatusOK, toProjectListResponse(projects))
}

// GetProject godoc
// @Summary     Get one project
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.ProjectResponse
// @Failure     404 {object} models.ErrorResponse
// @Failure     500 {object} models.ErrorResponse
// @Router      /projects/{project_id} [get]
func (h *ProjectsHandler) GetProject(c *gin.Context) {
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

	c.JSON(http.StatusOK, toProjectResponse(*project))
}

// PublishProject godoc
// @Summary     Set gallery visibility for a project
// @Tags        projects
// @Accept      json
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Param       request body models.PublishProjectRequest true "Visibility"
// @Success     200 {object} models.MessageResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id}/publish [post]
func (h *ProjectsHandler) PublishProject(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	var req models.PublishProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request body",
			Message: err.Error(),
		})
		return
	}

	updated, err := h.store.SetPublished(projectID, userID, req.Published)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to update project"})
		return
	}
	if !updated {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "project updated"})
}

// DeleteProject godoc
// @Summary     Delete a project
// @Description Removes the record and its stored media. Deleting an id that does not exist (or is not owned by the caller) returns 404; repeating a delete is safe.
// @Tags        projects
// @Produce     json
// @Security    Bearer
// @Param       project_id path string true "Project ID (UUID)"
// @Success     200 {object} models.MessageResponse
// @Failure     404 {object} models.ErrorResponse
// @Router      /projects/{project_id} [delete]
func (h *ProjectsHandler) DeleteProject(c *gin.Context) {
	userID, ok := userIDFromContext(c)
	if !ok {
		return
	}

	projectID, ok := projectIDParam(c)
	if !ok {
		return
	}

	deleted, err := h.store.DeleteProject(projectID, userID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "failed to delete project"})
		return
	}
	if !deleted {
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
		return
	}

	// Stored media is cleaned up best-effort; the record is already gone.
	if err := h.media.DeleteProjectFiles(userID, projectID); err != nil {
		log.Printf("failed to delete project files for %s: %v", projectID, err)
	}

	c.JSON(http.StatusOK, models.MessageResponse{Message: "project deleted"})
}

/* ---------------------------------- helpers ---------------------------------- */

func userIDFromContext(c *gin.Context) (uuid.UUID, bool) {
	userIDStr, exists := c.Get(middleware.UserIDKey)
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "user id not found"})
		return uuid.Nil, false
	}

	userID, err := uuid.Parse(userIDStr.(string))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid user id"})
		return uuid.Nil, false
	}

	return userID, true
}

func projectIDParam(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("project_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "invalid project id"})
		return uuid.Nil, false
	}
	return projectID, true
}

func readFormImage(c *gin.Context, field string) (services.UploadedFile, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: "both product image and model image are required",
		})
		return services.UploadedFile{}, false
	}

	src, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: "failed to open uploaded file",
		})
		return services.UploadedFile{}, false
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: "failed to read uploaded file",
		})
		return services.UploadedFile{}, false
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		switch strings.ToLower(filepath.Ext(fileHeader.Filename)) {
		case ".jpg", ".jpeg":
			contentType = "image/jpeg"
		case ".webp":
			contentType = "image/webp"
		default:
			contentType = "image/png"
		}
	}

	return services.UploadedFile{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Data:        data,
	}, true
}

// respondServiceError maps orchestrator errors to HTTP statuses. Raw
// provider and database error text stays off the response; it lives on
// the project record and in the error tracker.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidRequest):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid request",
			Message: err.Error(),
		})
	case errors.Is(err, services.ErrInsufficientCredits):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "insufficient credits"})
	case errors.Is(err, services.ErrProjectNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: "project not found"})
	case errors.Is(err, services.ErrInvalidProjectState):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: "invalid project state"})
	case errors.Is(err, services.ErrGenerationFailed):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "generation failed"})
	default:
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "internal error"})
	}
}

func toProjectResponse(p models.Project) models.ProjectResponse {
	resp := models.ProjectResponse{
		ID:                 p.ID.String(),
		Name:               p.Name,
		ProductName:        p.ProductName,
		ProductDescription: p.ProductDescription,
		UserPrompt:         p.UserPrompt,
		AspectRatio:        p.AspectRatio,
		TargetLength:       p.TargetLength,
		UploadedImages:     p.UploadedImages,
		IsGenerating:       p.IsGenerating,
		IsPublished:        p.IsPublished,
		CreatedAt:          p.CreatedAt,
		UpdatedAt:          p.UpdatedAt,
	}
	if p.GeneratedImage.Valid {
		resp.GeneratedImage = p.GeneratedImage.String
	}
	if p.GeneratedVideo.Valid {
		resp.GeneratedVideo = p.GeneratedVideo.String
	}
	if p.ErrorMessage.Valid {
		resp.ErrorMessage = p.ErrorMessage.String
	}
	return resp
}

func toProjectListResponse(projects []models.Project) models.ProjectListResponse {
	responses := make([]models.ProjectResponse, len(projects))
	for i, p := range projects {
		responses[i] = toProjectResponse(p)
	}
	return models.ProjectListResponse{Projects: responses}
}
