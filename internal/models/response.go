package models

import "time"

type ProjectResponse struct {
	ID                 string    `json:"project_id"`
	Name               string    `json:"name"`
	ProductName        string    `json:"product_name"`
	ProductDescription string    `json:"product_description,omitempty"`
	UserPrompt         string    `json:"user_prompt,omitempty"`
	AspectRatio        string    `json:"aspect_ratio"`
	TargetLength       int       `json:"target_length"`
	UploadedImages     []string  `json:"uploaded_images"`
	GeneratedImage     string    `json:"generated_image,omitempty"`
	GeneratedVideo     string    `json:"generated_video,omitempty"`
	IsGenerating       bool      `json:"is_generating"`
	IsPublished        bool      `json:"is_published"`
	ErrorMessage       string    `json:"error_message,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type ProjectListResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

type CreateProjectResponse struct {
	ProjectID      string `json:"project_id"`
	GeneratedImage string `json:"generated_image"`
}

type VideoAcceptedResponse struct {
	ProjectID string `json:"project_id"`
	Status    string `json:"status"`
}

type StatusResponse struct {
	ProjectID      string    `json:"project_id"`
	IsGenerating   bool      `json:"is_generating"`
	GeneratedImage string    `json:"generated_image,omitempty"`
	GeneratedVideo string    `json:"generated_video,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CreditsResponse struct {
	Credits int `json:"credits"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
