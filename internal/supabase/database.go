package supabase

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"productshot-backend/internal/models"
)

// SignupCreditGrant is the balance a ledger row starts with the first
// time an externally-issued identity touches the API.
const SignupCreditGrant = 20

type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

/* ------------------------------- credit ledger ------------------------------- */

// EnsureUser creates a ledger row for an auth-provider identity if one
// does not exist yet. Safe to call on every request.
func (d *DatabaseClient) EnsureUser(userID uuid.UUID) error {
	_, err := d.db.Exec(`
		INSERT INTO users (id, credits)
		VALUES ($1, $2)
		ON CONFLICT (id) DO NOTHING
	`, userID, SignupCreditGrant)
	if err != nil {
		return fmt.Errorf("failed to ensure user: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetCredits(userID uuid.UUID) (int, error) {
	var credits int
	err := d.db.QueryRow(`
		SELECT credits FROM users WHERE id = $1
	`, userID).Scan(&credits)
	if err != nil {
		return 0, fmt.Errorf("failed to get credits: %w", err)
	}
	return credits, nil
}

// ChargeCredits decrements the balance in a single conditional update so
// it can never go negative under concurrent charges. Returns false when
// the balance is insufficient; nothing is mutated in that case.
func (d *DatabaseClient) ChargeCredits(userID uuid.UUID, amount int) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE users
		SET credits = credits - $2, updated_at = NOW()
		WHERE id = $1 AND credits >= $2
	`, userID, amount)
	if err != nil {
		return false, fmt.Errorf("failed to charge credits: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read charge result: %w", err)
	}
	return rows == 1, nil
}

// RefundCredits undoes a charge whose operation failed after the charge
// was applied.
func (d *DatabaseClient) RefundCredits(userID uuid.UUID, amount int) error {
	_, err := d.db.Exec(`
		UPDATE users
		SET credits = credits + $2, updated_at = NOW()
		WHERE id = $1
	`, userID, amount)
	if err != nil {
		return fmt.Errorf("failed to refund credits: %w", err)
	}
	return nil
}

/* -------------------------------- projects ----------------------------------- */

const projectColumns = `id, user_id, name, product_name, product_description, user_prompt,
	aspect_ratio, target_length, uploaded_images, generated_image, generated_video,
	is_generating, is_published, error_message, created_at, updated_at`

func (d *DatabaseClient) CreateProject(project *models.Project) error {
	err := d.db.QueryRow(`
		INSERT INTO projects (id, user_id, name, product_name, product_description,
			user_prompt, aspect_ratio, target_length, uploaded_images, is_generating)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, project.ID, project.UserID, project.Name, project.ProductName, project.ProductDescription,
		project.UserPrompt, project.AspectRatio, project.TargetLength,
		pq.Array(project.UploadedImages), project.IsGenerating,
	).Scan(&project.CreatedAt, &project.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create project: %w", err)
	}
	return nil
}

func (d *DatabaseClient) GetProject(projectID, userID uuid.UUID) (*models.Project, error) {
	row := d.db.QueryRow(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)

	project, err := scanProject(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get project: %w", err)
	}
	return project, nil
}

func (d *DatabaseClient) ListProjects(userID uuid.UUID) ([]models.Project, error) {
	rows, err := d.db.Query(`
		SELECT `+projectColumns+`
		FROM projects
		WHERE user_id = $1
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

func (d *DatabaseClient) ListPublishedProjects() ([]models.Project, error) {
	rows, err := d.db.Query(`
		SELECT ` + projectColumns + `
		FROM projects
		WHERE is_published = true
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list published projects: %w", err)
	}
	defer rows.Close()

	return collectProjects(rows)
}

// SetGeneratedImage records a completed image generation. The error field
// from any earlier failed attempt is cleared by the successful run.
func (d *DatabaseClient) SetGeneratedImage(projectID uuid.UUID, imageURL string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET generated_image = $2, is_generating = false, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, projectID, imageURL)
	if err != nil {
		return fmt.Errorf("failed to set generated image: %w", err)
	}
	return nil
}

func (d *DatabaseClient) SetGeneratedVideo(projectID uuid.UUID, videoURL string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET generated_video = $2, is_generating = false, error_message = NULL, updated_at = NOW()
		WHERE id = $1
	`, projectID, videoURL)
	if err != nil {
		return fmt.Errorf("failed to set generated video: %w", err)
	}
	return nil
}

// SetProjectError writes the failure state back onto the record: the
// in-flight flag is always cleared together with recording the error.
func (d *DatabaseClient) SetProjectError(projectID uuid.UUID, errorMsg string) error {
	_, err := d.db.Exec(`
		UPDATE projects
		SET is_generating = false, error_message = $2, updated_at = NOW()
		WHERE id = $1
	`, projectID, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to set project error: %w", err)
	}
	return nil
}

// TryStartVideoGeneration flips is_generating from false to true in one
// conditional update. The flip only succeeds when the project is owned by
// the caller, has a generated image, and has no operation in flight, which
// closes the double-submission race between concurrent video requests.
func (d *DatabaseClient) TryStartVideoGeneration(projectID, userID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE projects
		SET is_generating = true, error_message = NULL, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
			AND is_generating = false
			AND generated_image IS NOT NULL
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to start video generation: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return rows == 1, nil
}

func (d *DatabaseClient) SetPublished(projectID, userID uuid.UUID, published bool) (bool, error) {
	result, err := d.db.Exec(`
		UPDATE projects
		SET is_published = $3, updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, projectID, userID, published)
	if err != nil {
		return false, fmt.Errorf("failed to set published: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return rows == 1, nil
}

// DeleteProject removes the record. Returns false when nothing matched,
// so a second delete of the same id reports not found instead of erroring.
func (d *DatabaseClient) DeleteProject(projectID, userID uuid.UUID) (bool, error) {
	result, err := d.db.Exec(`
		DELETE FROM projects
		WHERE id = $1 AND user_id = $2
	`, projectID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete project: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}
	return rows == 1, nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanProject(row rowScanner) (*models.Project, error) {
	var project models.Project
	err := row.Scan(
		&project.ID, &project.UserID, &project.Name, &project.ProductName,
		&project.ProductDescription, &project.UserPrompt, &project.AspectRatio,
		&project.TargetLength, pq.Array(&project.UploadedImages),
		&project.GeneratedImage, &project.GeneratedVideo,
		&project.IsGenerating, &project.IsPublished, &project.ErrorMessage,
		&project.CreatedAt, &project.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &project, nil
}

func collectProjects(rows *sql.Rows) ([]models.Project, error) {
	var projects []models.Project
	for rows.Next() {
		project, err := scanProject(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan project: %w", err)
		}
		projects = append(projects, *project)
	}
	return projects, nil
}
