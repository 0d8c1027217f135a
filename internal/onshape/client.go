package onshape

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
)

// TokenSource supplies Onshape OAuth access tokens. Token storage and the
// refresh grant live outside this service; the client only asks for the
// current token and, on an authorization failure, asks for a refresh.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context) error
}

// ClientInterface is the regeneration backend contract consumed by the
// orchestration layer.
type ClientInterface interface {
	Regenerate(ctx context.Context, req RegenerationRequest) (string, error)
	GetJob(ctx context.Context, jobID string) (*JobStatus, error)
	IsHealthy(ctx context.Context) bool
}

// Client drives variable application and document regeneration against
// the Onshape-facing regeneration backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	tracer     trace.Tracer
	breaker    *gobreaker.CircuitBreaker
}

// RegenerationRequest applies one mapped variable set to the template
// document and kicks off regeneration.
type RegenerationRequest struct {
	ProjectID       string                     `json:"project_id"`
	TemplateDocID   string                     `json:"template_document_id"`
	WorkspaceID     string                     `json:"workspace_id"`
	ElementID       string                     `json:"element_id"`
	ContractVersion string                     `json:"contract_version"`
	Variables       map[string]int             `json:"variables"`
	Provenance      []models.VariableProvenance `json:"provenance,omitempty"`
}

// JobStatus is the polled state of a long-running regeneration job.
type JobStatus struct {
	JobID    string `json:"job_id"`
	Status   string `json:"status"` // "running", "completed", "failed"
	Message  string `json:"message,omitempty"`
	Progress int    `json:"progress,omitempty"`
}

type regenerateResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// NewClient creates a regeneration client. The breaker trips after
// consecutive backend failures so a wedged backend fails fast instead of
// holding request goroutines on timeouts.
func NewClient(baseURL string, tokens TokenSource) *Client {
	settings := gobreaker.Settings{
		Name:        "onshape-regeneration",
		MaxRequests: 3,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	}

	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		tokens:  tokens,
		tracer:  otel.Tracer("onshape-client"),
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

// SetBaseURL sets the base URL for testing purposes.
func (c *Client) SetBaseURL(baseURL string) {
	c.baseURL = baseURL
}

// Regenerate applies the variable set and starts a regeneration run,
// returning the backend job id to poll.
func (c *Client) Regenerate(ctx context.Context, req RegenerationRequest) (string, error) {
	ctx, span := c.tracer.Start(ctx, "onshape.regenerate")
	defer span.End()

	span.SetAttributes(
		attribute.String("project_id", req.ProjectID),
		attribute.String("contract_version", req.ContractVersion),
		attribute.Int("variable_count", len(req.Variables)),
	)

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.regenerateInternal(ctx, req)
	})
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to start regeneration: %w", err)
	}

	jobID := result.(string)
	span.SetAttributes(attribute.String("job_id", jobID))
	return jobID, nil
}

func (c *Client) regenerateInternal(ctx context.Context, req RegenerationRequest) (string, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/regeneration/jobs", c.baseURL)
	resp, err := c.doAuthorized(ctx, "POST", url, jsonData)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return "", statusError(resp)
	}

	var regenResp regenerateResponse
	if err := json.NewDecoder(resp.Body).Decode(&regenResp); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return regenResp.JobID, nil
}

// GetJob retrieves the current state of a regeneration job.
func (c *Client) GetJob(ctx context.Context, jobID string) (*JobStatus, error) {
	ctx, span := c.tracer.Start(ctx, "onshape.get_job")
	defer span.End()

	span.SetAttributes(attribute.String("job_id", jobID))

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.getJobInternal(ctx, jobID)
	})
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	return result.(*JobStatus), nil
}

func (c *Client) getJobInternal(ctx context.Context, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/regeneration/jobs/%s", c.baseURL, jobID)
	resp, err := c.doAuthorized(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var status JobStatus
	if err := json.NewDecoder(resp.Body).Decode(&status); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &status, nil
}

// doAuthorized sends the request with a bearer token and, on a 401,
// refreshes the token and retries exactly once. Any other failure, or a
// second 401, fails immediately.
func (c *Client) doAuthorized(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	resp, err := c.send(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusUnauthorized {
		return resp, nil
	}

	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()

	if err := c.tokens.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("failed to refresh token after 401: %w", err)
	}
	return c.send(ctx, method, url, body)
}

func (c *Client) send(ctx context.Context, method, url string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to obtain access token: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(httpReq.Header))

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to make request: %w", err)
	}
	return resp, nil
}

// IsHealthy checks backend availability; an open breaker short-circuits
// the probe.
func (c *Client) IsHealthy(ctx context.Context) bool {
	ctx, span := c.tracer.Start(ctx, "onshape.health_check")
	defer span.End()

	if c.breaker.State() == gobreaker.StateOpen {
		span.SetAttributes(attribute.Bool("healthy", false), attribute.String("reason", "circuit_breaker_open"))
		return false
	}

	url := fmt.Sprintf("%s/health", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		span.RecordError(err)
		return false
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(httpReq)
	if err != nil {
		span.RecordError(err)
		return false
	}
	defer resp.Body.Close()

	healthy := resp.StatusCode == http.StatusOK
	span.SetAttributes(attribute.Bool("healthy", healthy))
	return healthy
}

func statusError(resp *http.Response) error {
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("regeneration backend returned status %d (failed to read body: %w)", resp.StatusCode, err)
	}
	return fmt.Errorf("regeneration backend returned status %d: %s", resp.StatusCode, string(bodyBytes))
}
