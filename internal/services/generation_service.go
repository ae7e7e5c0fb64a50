package services

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"productshot-backend/internal/genai"
	"productshot-backend/internal/models"
	"productshot-backend/internal/supabase"
)

// Credit cost per generation operation.
const (
	ImageGenerationCost = 5
	VideoGenerationCost = 10
)

// Provider submission calls are retried with backoff before the
// compensation path runs. Poll calls are not; a poll failure fails the
// job and the refund makes a user retry safe.
const providerMaxRetries = 3

const imagePromptTemplate = "Create a photorealistic e-commerce image showing a person naturally " +
	"interacting with the product. Match lighting, shadows, scale, and perspective."

var (
	ErrInvalidRequest      = errors.New("invalid request")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrProjectNotFound     = errors.New("project not found")
	ErrInvalidProjectState = errors.New("project is not ready for video generation")
	ErrGenerationFailed    = errors.New("generation failed")
	ErrVideoTimedOut       = errors.New("video generation timed out")
)

// ProjectStore is the record store plus the credit ledger. Charge and
// refund must be single atomic updates at the storage layer.
type ProjectStore interface {
	EnsureUser(userID uuid.UUID) error
	GetCredits(userID uuid.UUID) (int, error)
	ChargeCredits(userID uuid.UUID, amount int) (bool, error)
	RefundCredits(userID uuid.UUID, amount int) error

	CreateProject(project *models.Project) error
	GetProject(projectID, userID uuid.UUID) (*models.Project, error)
	ListProjects(userID uuid.UUID) ([]models.Project, error)
	ListPublishedProjects() ([]models.Project, error)
	SetGeneratedImage(projectID uuid.UUID, imageURL string) error
	SetGeneratedVideo(projectID uuid.UUID, videoURL string) error
	SetProjectError(projectID uuid.UUID, errorMsg string) error
	TryStartVideoGeneration(projectID, userID uuid.UUID) (bool, error)
	SetPublished(projectID, userID uuid.UUID, published bool) (bool, error)
	DeleteProject(projectID, userID uuid.UUID) (bool, error)
}

// MediaStore uploads binary assets and returns stable public URLs.
type MediaStore interface {
	UploadImage(userID, projectID uuid.UUID, filename, contentType string, data []byte) (string, error)
	UploadVideo(userID, projectID uuid.UUID, filename string, data []byte) (string, error)
	DeleteProjectFiles(userID, projectID uuid.UUID) error
}

// ContentProvider is the generative backend.
type ContentProvider interface {
	GenerateImage(req genai.ImageRequest) (*genai.GeneratedImage, error)
	StartVideoGeneration(req genai.VideoRequest) (string, error)
	GetVideoOperation(name string) (*genai.VideoOperation, error)
	DownloadFile(uri string) ([]byte, error)
}

type EventPublisher interface {
	PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error
}

// GenerationService drives a project through its generation lifecycle.
// Once a credit charge has been applied, every failure path refunds the
// charge and writes the failure back onto the record; both compensations
// are best-effort and independent, and neither masks the original error.
type GenerationService struct {
	provider        ContentProvider
	store           ProjectStore
	media           MediaStore
	events          EventPublisher
	pollInterval    time.Duration
	maxPollAttempts int
}

func NewGenerationService(
	provider ContentProvider,
	store ProjectStore,
	media MediaStore,
	events EventPublisher,
	pollInterval time.Duration,
	maxPollAttempts int,
) *GenerationService {
	return &GenerationService{
		provider:        provider,
		store:           store,
		media:           media,
		events:          events,
		pollInterval:    pollInterval,
		maxPollAttempts: maxPollAttempts,
	}
}

type UploadedFile struct {
	Filename    string
	ContentType string
	Data        []byte
}

type CreateProjectInput struct {
	Name               string
	AspectRatio        string
	UserPrompt         string
	ProductName        string
	ProductDescription string
	TargetLength       int
	ProductImage       UploadedFile
	ModelImage         UploadedFile
}

/* ------------------------------ image generation ------------------------------ */

// CreateProject runs the image flow: charge, upload inputs, create the
// record, generate, store the result. The caller identity is passed in
// explicitly; no ambient request state is read here.
func (s *GenerationService) CreateProject(userID uuid.UUID, input CreateProjectInput) (*models.Project, error) {
	if input.ProductName == "" {
		return nil, fmt.Errorf("%w: product name is required", ErrInvalidRequest)
	}
	if len(input.ProductImage.Data) == 0 || len(input.ModelImage.Data) == 0 {
		return nil, fmt.Errorf("%w: both product image and model image are required", ErrInvalidRequest)
	}

	if input.Name == "" {
		input.Name = "New Project"
	}
	if input.AspectRatio == "" {
		input.AspectRatio = "9:16"
	}
	if input.TargetLength <= 0 {
		input.TargetLength = 5
	}

	if err := s.store.EnsureUser(userID); err != nil {
		return nil, err
	}

	charged, err := s.store.ChargeCredits(userID, ImageGenerationCost)
	if err != nil {
		return nil, err
	}
	if !charged {
		return nil, ErrInsufficientCredits
	}

	projectID := uuid.New()
	recordCreated := false

	// Compensation for everything past the charge: write the failure onto
	// the record if it exists, refund the charge. Each step is attempted
	// regardless of the others; the original error is always returned.
	fail := func(origErr error) error {
		if recordCreated {
			if dbErr := s.store.SetProjectError(projectID, origErr.Error()); dbErr != nil {
				s.report(dbErr)
			}
			s.events.PublishProjectEvent(projectID, "generation_failed",
				supabase.GenerationFailedPayload(projectID, origErr.Error()))
		}
		if refundErr := s.store.RefundCredits(userID, ImageGenerationCost); refundErr != nil {
			s.report(refundErr)
		}
		s.report(origErr)
		return origErr
	}

	// Both reference images go to the media gateway concurrently.
	var productURL, modelURL string
	var productErr, modelErr error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		productURL, productErr = s.media.UploadImage(userID, projectID,
			"product"+extensionFor(input.ProductImage.ContentType),
			input.ProductImage.ContentType, input.ProductImage.Data)
	}()
	go func() {
		defer wg.Done()
		modelURL, modelErr = s.media.UploadImage(userID, projectID,
			"model"+extensionFor(input.ModelImage.ContentType),
			input.ModelImage.ContentType, input.ModelImage.Data)
	}()
	wg.Wait()

	if productErr != nil {
		return nil, fail(fmt.Errorf("failed to upload product image: %w", productErr))
	}
	if modelErr != nil {
		return nil, fail(fmt.Errorf("failed to upload model image: %w", modelErr))
	}

	project := &models.Project{
		ID:                 projectID,
		UserID:             userID,
		Name:               input.Name,
		ProductName:        input.ProductName,
		ProductDescription: input.ProductDescription,
		UserPrompt:         input.UserPrompt,
		AspectRatio:        input.AspectRatio,
		TargetLength:       input.TargetLength,
		UploadedImages:     []string{productURL, modelURL},
		IsGenerating:       true,
	}
	if err := s.store.CreateProject(project); err != nil {
		return nil, fail(err)
	}
	recordCreated = true

	s.events.PublishProjectEvent(projectID, "generation_started",
		supabase.GenerationStartedPayload(projectID))

	prompt := strings.TrimSpace(imagePromptTemplate + " " + input.UserPrompt)
	var generated *genai.GeneratedImage
	err = genai.RetryWithBackoff(func() error {
		var genErr error
		generated, genErr = s.provider.GenerateImage(genai.ImageRequest{
			Images: []genai.InlineImage{
				{MimeType: input.ProductImage.ContentType, Data: input.ProductImage.Data},
				{MimeType: input.ModelImage.ContentType, Data: input.ModelImage.Data},
			},
			Prompt:      prompt,
			AspectRatio: input.AspectRatio,
		})
		return genErr
	}, providerMaxRetries)
	if err != nil {
		return nil, fail(fmt.Errorf("%w: %v", ErrGenerationFailed, err))
	}

	imageURL, err := s.media.UploadImage(userID, projectID,
		"generated"+extensionFor(generated.MimeType), generated.MimeType, generated.Data)
	if err != nil {
		return nil, fail(fmt.Errorf("failed to upload generated image: %w", err))
	}

	if err := s.store.SetGeneratedImage(projectID, imageURL); err != nil {
		return nil, fail(err)
	}

	s.events.PublishProjectEvent(projectID, "generation_completed",
		supabase.GenerationCompletedPayload(projectID, imageURL))

	project.GeneratedImage = sql.NullString{String: imageURL, Valid: true}
	project.IsGenerating = false
	return project, nil
}

/* ------------------------------ video generation ------------------------------ */

// StartVideo validates the request, applies the charge, and atomically
// flips the project into generating state. Validation happens before the
// charge, so invalid-state and not-found requests never touch the ledger.
func (s *GenerationService) StartVideo(userID, projectID uuid.UUID) (*models.Project, error) {
	project, err := s.store.GetProject(projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProjectNotFound
		}
		return nil, err
	}

	if project.IsGenerating || !project.GeneratedImage.Valid {
		return nil, ErrInvalidProjectState
	}

	charged, err := s.store.ChargeCredits(userID, VideoGenerationCost)
	if err != nil {
		return nil, err
	}
	if !charged {
		return nil, ErrInsufficientCredits
	}

	// The conditional flip closes the race between two requests that both
	// saw is_generating=false above. The loser gets its charge back.
	flipped, err := s.store.TryStartVideoGeneration(projectID, userID)
	if err == nil && !flipped {
		err = ErrInvalidProjectState
	}
	if err != nil {
		if refundErr := s.store.RefundCredits(userID, VideoGenerationCost); refundErr != nil {
			s.report(refundErr)
		}
		return nil, err
	}

	s.events.PublishProjectEvent(projectID, "video_started",
		supabase.VideoStartedPayload(projectID))

	project.IsGenerating = true
	return project, nil
}

// RunVideo performs the long part of the video flow against a project
// already flipped into generating state by StartVideo: submit the job,
// poll it to completion within the attempt bound, and store the artifact.
// Intended to run detached from the originating request; clients observe
// progress through the status endpoint.
func (s *GenerationService) RunVideo(project *models.Project) (string, error) {
	userID := project.UserID
	projectID := project.ID

	// Same write-back discipline as the image flow: clear the in-flight
	// flag, record the error, refund the charge.
	fail := func(origErr error) error {
		if dbErr := s.store.SetProjectError(projectID, origErr.Error()); dbErr != nil {
			s.report(dbErr)
		}
		if refundErr := s.store.RefundCredits(userID, VideoGenerationCost); refundErr != nil {
			s.report(refundErr)
		}
		s.events.PublishProjectEvent(projectID, "video_failed",
			supabase.VideoFailedPayload(projectID, origErr.Error()))
		s.report(origErr)
		return origErr
	}

	imageData, err := s.provider.DownloadFile(project.GeneratedImage.String)
	if err != nil {
		return "", fail(fmt.Errorf("failed to download generated image: %w", err))
	}

	var operationName string
	err = genai.RetryWithBackoff(func() error {
		var startErr error
		operationName, startErr = s.provider.StartVideoGeneration(genai.VideoRequest{
			Image:           genai.InlineImage{MimeType: "image/png", Data: imageData},
			Prompt:          fmt.Sprintf("Showcase the product %s naturally and professionally.", project.ProductName),
			AspectRatio:     project.AspectRatio,
			DurationSeconds: project.TargetLength,
		})
		return startErr
	}, providerMaxRetries)
	if err != nil {
		return "", fail(fmt.Errorf("%w: %v", ErrGenerationFailed, err))
	}

	var op *genai.VideoOperation
	for attempt := 0; attempt < s.maxPollAttempts; attempt++ {
		op, err = s.provider.GetVideoOperation(operationName)
		if err != nil {
			return "", fail(fmt.Errorf("failed to poll video operation: %w", err))
		}
		if op.Done {
			break
		}
		time.Sleep(s.pollInterval)
	}

	if op == nil || !op.Done {
		return "", fail(ErrVideoTimedOut)
	}
	if op.ErrorMsg != "" {
		return "", fail(fmt.Errorf("%w: %s", ErrGenerationFailed, op.ErrorMsg))
	}
	if op.VideoURI == "" {
		return "", fail(fmt.Errorf("%w: operation completed without a video", ErrGenerationFailed))
	}

	videoData, err := s.provider.DownloadFile(op.VideoURI)
	if err != nil {
		return "", fail(fmt.Errorf("failed to download generated video: %w", err))
	}

	videoURL, err := s.media.UploadVideo(userID, projectID, "generated.mp4", videoData)
	if err != nil {
		return "", fail(fmt.Errorf("failed to upload generated video: %w", err))
	}

	if err := s.store.SetGeneratedVideo(projectID, videoURL); err != nil {
		return "", fail(err)
	}

	s.events.PublishProjectEvent(projectID, "video_completed",
		supabase.VideoCompletedPayload(projectID, videoURL))

	return videoURL, nil
}

// GenerateVideo runs the full video flow synchronously.
func (s *GenerationService) GenerateVideo(userID, projectID uuid.UUID) (string, error) {
	project, err := s.StartVideo(userID, projectID)
	if err != nil {
		return "", err
	}
	return s.RunVideo(project)
}

func (s *GenerationService) report(err error) {
	sentry.CaptureException(err)
	log.Printf("generation error: %v", err)
}

func extensionFor(contentType string) string {
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/webp":
		return ".webp"
	default:
		return ".png"
	}
}
