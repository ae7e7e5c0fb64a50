package models

type CreateProjectRequest struct {
	Name               string `form:"name"`
	AspectRatio        string `form:"aspect_ratio" example:"9:16"`
	UserPrompt         string `form:"user_prompt"`
	ProductName        string `form:"product_name" binding:"required"`
	ProductDescription string `form:"product_description"`
	TargetLength       int    `form:"target_length" example:"5"`
}

type PublishProjectRequest struct {
	Published bool `json:"published"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
