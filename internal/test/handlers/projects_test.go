package handlers_test

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"productshot-backend/internal/handlers"
	"productshot-backend/internal/middleware"
	"productshot-backend/internal/models"
)

type stubStore struct {
	projects map[uuid.UUID]*models.Project
	getErr   error
}

func newStubStore() *stubStore {
	return &stubStore{projects: make(map[uuid.UUID]*models.Project)}
}

func (s *stubStore) EnsureUser(userID uuid.UUID) error              { return nil }
func (s *stubStore) GetCredits(userID uuid.UUID) (int, error)       { return 0, nil }
func (s *stubStore) ChargeCredits(uuid.UUID, int) (bool, error)     { return true, nil }
func (s *stubStore) RefundCredits(uuid.UUID, int) error             { return nil }
func (s *stubStore) SetGeneratedImage(uuid.UUID, string) error      { return nil }
func (s *stubStore) SetGeneratedVideo(uuid.UUID, string) error      { return nil }
func (s *stubStore) SetProjectError(uuid.UUID, string) error        { return nil }
func (s *stubStore) TryStartVideoGeneration(projectID, userID uuid.UUID) (bool, error) {
	return false, nil
}

func (s *stubStore) CreateProject(project *models.Project) error {
	s.projects[project.ID] = project
	return nil
}

func (s *stubStore) GetProject(projectID, userID uuid.UUID) (*models.Project, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	project, ok := s.projects[projectID]
	if !ok || project.UserID != userID {
		return nil, fmt.Errorf("failed to get project: %w", sql.ErrNoRows)
	}
	return project, nil
}

func (s *stubStore) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	var out []models.Project
	for _, p := range s.projects {
		if p.UserID == userID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) ListPublishedProjects() ([]models.Project, error) {
	var out []models.Project
	for _, p := range s.projects {
		if p.IsPublished {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (s *stubStore) SetPublished(projectID, userID uuid.UUID, published bool) (bool, error) {
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	p.IsPublished = published
	return true, nil
}

func (s *stubStore) DeleteProject(projectID, userID uuid.UUID) (bool, error) {
	p, ok := s.projects[projectID]
	if !ok || p.UserID != userID {
		return false, nil
	}
	delete(s.projects, projectID)
	return true, nil
}

type stubMedia struct {
	deleteCalls int
}

func (m *stubMedia) UploadImage(userID, projectID uuid.UUID, filename, contentType string, data []byte) (string, error) {
	return "https://cdn.test/" + filename, nil
}

func (m *stubMedia) UploadVideo(userID, projectID uuid.UUID, filename string, data []byte) (string, error) {
	return "https://cdn.test/" + filename, nil
}

func (m *stubMedia) DeleteProjectFiles(userID, projectID uuid.UUID) error {
	m.deleteCalls++
	return nil
}

func newProjectsRouter(store *stubStore, media *stubMedia, userID uuid.UUID) *gin.Engine {
	gin.SetMode(gin.TestMode)
	projectsHandler := handlers.NewProjectsHandler(nil, store, media)
	galleryHandler := handlers.NewGalleryHandler(store)

	router := gin.New()
	router.GET("/api/v1/projects/published", galleryHandler.ListPublished)

	api := router.Group("/api/v1")
	api.Use(func(c *gin.Context) {
		c.Set(middleware.UserIDKey, userID.String())
	})
	api.GET("/projects/:project_id", projectsHandler.GetProject)
	api.DELETE("/projects/:project_id", projectsHandler.DeleteProject)
	api.POST("/projects/:project_id/publish", projectsHandler.PublishProject)

	return router
}

func seedProject(store *stubStore, userID uuid.UUID, published bool) *models.Project {
	project := &models.Project{
		ID:             uuid.New(),
		UserID:         userID,
		Name:           "New Project",
		ProductName:    "Desk Lamp",
		AspectRatio:    "9:16",
		UploadedImages: []string{"https://cdn.test/a.png"},
		IsPublished:    published,
	}
	store.CreateProject(project)
	return project
}

func TestDeleteProject_Idempotent(t *testing.T) {
	userID := uuid.New()
	store := newStubStore()
	media := &stubMedia{}
	project := seedProject(store, userID, false)

	router := newProjectsRouter(store, media, userID)

	req, _ := http.NewRequest("DELETE", "/api/v1/projects/"+project.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, media.deleteCalls)

	// deleting the same id again reports not found, nothing else happens
	req, _ = http.NewRequest("DELETE", "/api/v1/projects/"+project.ID.String(), nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, 1, media.deleteCalls)
}

func TestDeleteProject_NotOwned(t *testing.T) {
	owner := uuid.New()
	caller := uuid.New()
	store := newStubStore()
	media := &stubMedia{}
	project := seedProject(store, owner, false)

	router := newProjectsRouter(store, media, caller)

	req, _ := http.NewRequest("DELETE", "/api/v1/projects/"+project.ID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, store.projects, project.ID)
	assert.Equal(t, 0, media.deleteCalls)
}

func TestListPublished_OnlyPublishedProjects(t *testing.T) {
	userID := uuid.New()
	store := newStubStore()
	published := seedProject(store, userID, true)
	private := seedProject(store, userID, false)

	router := newProjectsRouter(store, &stubMedia{}, userID)

	req, _ := http.NewRequest("GET", "/api/v1/projects/published", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)

	var resp models.ProjectListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, published.ID.String(), resp.Projects[0].ID)
	assert.NotEqual(t, private.ID.String(), resp.Projects[0].ID)
}

func TestPublishProject_ShowsInGallery(t *testing.T) {
	userID := uuid.New()
	store := newStubStore()
	project := seedProject(store, userID, false)

	router := newProjectsRouter(store, &stubMedia{}, userID)

	body := bytes.NewBufferString(`{"published":true}`)
	req, _ := http.NewRequest("POST", "/api/v1/projects/"+project.ID.String()+"/publish", body)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req, _ = http.NewRequest("GET", "/api/v1/projects/published", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var resp models.ProjectListResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Projects, 1)
	assert.Equal(t, project.ID.String(), resp.Projects[0].ID)
}

func TestGetProject_NotFound(t *testing.T) {
	userID := uuid.New()
	router := newProjectsRouter(newStubStore(), &stubMedia{}, userID)

	req, _ := http.NewRequest("GET", "/api/v1/projects/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProject_StoreFailure(t *testing.T) {
	userID := uuid.New()
	store := newStubStore()
	store.getErr = errors.New("connection refused")

	router := newProjectsRouter(store, &stubMedia{}, userID)

	req, _ := http.NewRequest("GET", "/api/v1/projects/"+uuid.New().String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	// an infrastructure failure is not a missing project
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "failed to load project")
}
