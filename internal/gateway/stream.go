package gateway

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/auth"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/onshape"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/orchestration"
)

// RegenerationStreamer pushes regeneration job progress to websocket
// clients. The backend only exposes polling, so the streamer polls
// GetJob on an interval and translates status changes into
// models.GenerationEvent frames. On a terminal status it records the
// outcome and closes the stream.
type RegenerationStreamer struct {
	service      *orchestration.Service
	jwtManager   *auth.JWTManager
	logger       zerolog.Logger
	tracer       trace.Tracer
	upgrader     websocket.Upgrader
	pollInterval time.Duration
}

// NewRegenerationStreamer creates a streamer polling at the given
// interval; zero means the one-second default.
func NewRegenerationStreamer(service *orchestration.Service, jwtManager *auth.JWTManager, logger zerolog.Logger, pollInterval time.Duration) *RegenerationStreamer {
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &RegenerationStreamer{
		service:      service,
		jwtManager:   jwtManager,
		logger:       logger,
		tracer:       otel.Tracer("regeneration-streamer"),
		pollInterval: pollInterval,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				// TODO: restrict origins once the UI's deployment host is fixed
				return true
			},
			HandshakeTimeout: 10 * time.Second,
		},
	}
}

// StreamJob handles WebSocket /api/ws/projects/:id/jobs/:job_id
// @Summary Stream regeneration progress
// @Description WebSocket endpoint streaming job progress events until the run completes or fails
// @Tags regeneration
// @Param id path string true "Project ID"
// @Param job_id path string true "Job ID"
// @Param token query string false "JWT (websocket clients cannot set headers)"
// @Success 101 "Switching Protocols"
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /ws/projects/{id}/jobs/{job_id} [get]
func (s *RegenerationStreamer) StreamJob(c *gin.Context) {
	ctx, span := s.tracer.Start(c.Request.Context(), "streamer.stream_job")
	defer span.End()

	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid project ID")
		return
	}
	jobID := c.Param("job_id")
	span.SetAttributes(
		attribute.String("project.id", projectID.String()),
		attribute.String("job_id", jobID),
	)

	userID, err := s.validateToken(c)
	if err != nil {
		span.RecordError(err)
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Unauthorized", Code: models.ErrCodeUnauthorized})
		return
	}
	span.SetAttributes(attribute.String("user.id", userID))

	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		span.RecordError(err)
		s.logger.Warn().Err(err).Str("job_id", jobID).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	s.poll(ctx, conn, projectID, jobID)
}

// validateToken accepts the JWT from the token query parameter, falling
// back to the Authorization header.
func (s *RegenerationStreamer) validateToken(c *gin.Context) (string, error) {
	token := c.Query("token")
	if token == "" {
		authHeader := c.GetHeader("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			token = authHeader[7:]
		}
	}
	if token == "" {
		return "", fmt.Errorf("missing JWT token")
	}

	claims, err := s.jwtManager.ValidateToken(c.Request.Context(), token)
	if err != nil {
		return "", fmt.Errorf("invalid JWT: %w", err)
	}
	return claims.UserID, nil
}

func (s *RegenerationStreamer) poll(ctx context.Context, conn *websocket.Conn, projectID uuid.UUID, jobID string) {
	started := time.Now()
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	lastProgress := -1
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		status, err := s.service.Client().GetJob(ctx, jobID)
		if err != nil {
			s.logger.Warn().Err(err).Str("job_id", jobID).Msg("job poll failed")
			s.send(conn, models.GenerationEvent{
				EventType: models.EventTypeGenerationFailed,
				ProjectID: projectID.String(),
				JobID:     jobID,
				Data:      map[string]interface{}{"error": err.Error()},
				Timestamp: time.Now().UTC(),
			})
			return
		}

		switch status.Status {
		case "completed":
			s.finish(ctx, conn, projectID, jobID, models.EventTypeGenerationCompleted, status, time.Since(started))
			return
		case "failed":
			s.finish(ctx, conn, projectID, jobID, models.EventTypeGenerationFailed, status, time.Since(started))
			return
		default:
			if status.Progress != lastProgress {
				lastProgress = status.Progress
				s.send(conn, models.GenerationEvent{
					EventType: models.EventTypeGenerationProgress,
					ProjectID: projectID.String(),
					JobID:     jobID,
					Data:      map[string]interface{}{"progress": status.Progress},
					Timestamp: time.Now().UTC(),
				})
			}
		}
	}
}

func (s *RegenerationStreamer) finish(ctx context.Context, conn *websocket.Conn, projectID uuid.UUID, jobID, eventType string, status *onshape.JobStatus, elapsed time.Duration) {
	meta, err := s.service.RunMetadata(ctx, projectID)
	revision := 0
	if err == nil && meta.LastGeneration != nil {
		revision = meta.LastGeneration.PSpecRevision
	}

	outcome := "completed"
	if eventType == models.EventTypeGenerationFailed {
		outcome = "failed"
	}
	if err := s.service.RecordGenerationOutcome(ctx, projectID, revision, jobID, outcome, status.Message, elapsed); err != nil {
		s.logger.Error().Err(err).Str("job_id", jobID).Msg("failed to record generation outcome")
	}

	s.send(conn, models.GenerationEvent{
		EventType:     eventType,
		ProjectID:     projectID.String(),
		PSpecRevision: revision,
		JobID:         jobID,
		Data:          map[string]interface{}{"message": status.Message},
		Timestamp:     time.Now().UTC(),
	})
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, outcome))
}

func (s *RegenerationStreamer) send(conn *websocket.Conn, event models.GenerationEvent) {
	if err := conn.WriteJSON(event); err != nil {
		s.logger.Warn().Err(err).Str("job_id", event.JobID).Msg("failed to push event")
	}
}
