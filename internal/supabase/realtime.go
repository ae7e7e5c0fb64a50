package supabase

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/supabase-community/supabase-go"
)

type RealtimeClient struct {
	client *supabase.Client
}

func NewRealtimeClient(client *supabase.Client) *RealtimeClient {
	return &RealtimeClient{
		client: client,
	}
}

func (r *RealtimeClient) PublishEvent(channel string, event string, payload map[string]interface{}) error {
	// The Supabase Go client has no direct Realtime publish. Project rows
	// are updated through Postgres, which triggers Realtime change events
	// for subscribed clients; this hook exists for explicit event
	// publishing via the Realtime REST API if that ever becomes necessary.
	return nil
}

func (r *RealtimeClient) PublishProjectEvent(projectID uuid.UUID, event string, payload map[string]interface{}) error {
	channel := fmt.Sprintf("project:%s", projectID.String())
	return r.PublishEvent(channel, event, payload)
}

// Event payloads
func GenerationStartedPayload(projectID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "generating",
	}
}

func GenerationCompletedPayload(projectID uuid.UUID, imageURL string) map[string]interface{} {
	return map[string]interface{}{
		"project_id":      projectID.String(),
		"status":          "ready",
		"generated_image": imageURL,
	}
}

func GenerationFailedPayload(projectID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "failed",
		"error":      errorMsg,
	}
}

func VideoStartedPayload(projectID uuid.UUID) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "generating_video",
	}
}

func VideoCompletedPayload(projectID uuid.UUID, videoURL string) map[string]interface{} {
	return map[string]interface{}{
		"project_id":      projectID.String(),
		"status":          "complete",
		"generated_video": videoURL,
	}
}

func VideoFailedPayload(projectID uuid.UUID, errorMsg string) map[string]interface{} {
	return map[string]interface{}{
		"project_id": projectID.String(),
		"status":     "video_failed",
		"error":      errorMsg,
	}
}
