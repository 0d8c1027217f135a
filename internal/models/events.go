package models

import (
	"time"
)

// GenerationEvent is one frame on the regeneration progress stream.
type GenerationEvent struct {
	EventType     string                 `json:"event_type"`
	ProjectID     string                 `json:"project_id"`
	PSpecRevision int                    `json:"pspec_revision"`
	JobID         string                 `json:"job_id,omitempty"`
	Data          map[string]interface{} `json:"data,omitempty"`
	Timestamp     time.Time              `json:"timestamp"`
}

// Event types
const (
	EventTypeGenerationStarted   = "generation.started"
	EventTypeGenerationProgress  = "generation.progress"
	EventTypeGenerationCompleted = "generation.completed"
	EventTypeGenerationFailed    = "generation.failed"
)
