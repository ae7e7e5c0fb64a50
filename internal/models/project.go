package models

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID                 uuid.UUID
	UserID             uuid.UUID
	Name               string
	ProductName        string
	ProductDescription string
	UserPrompt         string
	AspectRatio        string
	TargetLength       int
	UploadedImages     []string
	GeneratedImage     sql.NullString
	GeneratedVideo     sql.NullString
	IsGenerating       bool
	IsPublished        bool
	ErrorMessage       sql.NullString
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// User is the credit ledger row. Identities are issued by the auth
// provider; a ledger row is created lazily on first authenticated call.
type User struct {
	ID        uuid.UUID
	Credits   int
	CreatedAt time.Time
	UpdatedAt time.Time
}
