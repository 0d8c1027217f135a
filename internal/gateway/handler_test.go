package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/auth"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/metrics"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/onshape"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/orchestration"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/revstore"
)

// stubStore is an in-memory RevisionStore mirroring the Postgres store's
// append-only and approval-pointer semantics for handler tests.
type stubStore struct {
	drafts    map[uuid.UUID]models.Draft
	geometry  map[uuid.UUID]*models.GeometryMeta
	dibs      map[uuid.UUID][]*models.DesignIntentBrief
	pspecs    map[uuid.UUID][]*models.ParametricSpecification
	summaries map[uuid.UUID][]string
	approvals map[uuid.UUID][]models.Approval
	pointer   map[uuid.UUID]models.ApprovalPointer
	lastGen   map[uuid.UUID]*models.GenerationResult
	names     map[uuid.UUID]string
}

func newStubStore() *stubStore {
	return &stubStore{
		drafts:    map[uuid.UUID]models.Draft{},
		geometry:  map[uuid.UUID]*models.GeometryMeta{},
		dibs:      map[uuid.UUID][]*models.DesignIntentBrief{},
		pspecs:    map[uuid.UUID][]*models.ParametricSpecification{},
		summaries: map[uuid.UUID][]string{},
		approvals: map[uuid.UUID][]models.Approval{},
		pointer:   map[uuid.UUID]models.ApprovalPointer{},
		lastGen:   map[uuid.UUID]*models.GenerationResult{},
		names:     map[uuid.UUID]string{},
	}
}

func (s *stubStore) CreateProject(ctx context.Context, name string, createdBy uuid.UUID) (uuid.UUID, error) {
	id := uuid.New()
	s.names[id] = name
	s.drafts[id] = models.Draft{}
	s.pointer[id] = models.ResetApprovalPointer()
	return id, nil
}

func (s *stubStore) RunMetadata(ctx context.Context, projectID uuid.UUID) (*models.RunMetadata, error) {
	if _, ok := s.names[projectID]; !ok {
		return nil, fmt.Errorf("project %s: %w", projectID, revstore.ErrNotFound)
	}
	return &models.RunMetadata{
		ProjectID:         projectID,
		Name:              s.names[projectID],
		Geometry:          s.geometry[projectID],
		LatestDIBRevision: len(s.dibs[projectID]),
		LatestPSpecRev:    len(s.pspecs[projectID]),
		Approval:          s.pointer[projectID],
		LastGeneration:    s.lastGen[projectID],
	}, nil
}

func (s *stubStore) SaveDraft(ctx context.Context, projectID uuid.UUID, draft models.Draft) error {
	if _, ok := s.names[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, revstore.ErrNotFound)
	}
	s.drafts[projectID] = draft
	return nil
}

func (s *stubStore) GetDraft(ctx context.Context, projectID uuid.UUID) (models.Draft, error) {
	draft, ok := s.drafts[projectID]
	if !ok {
		return nil, fmt.Errorf("draft for project %s: %w", projectID, revstore.ErrNotFound)
	}
	return draft, nil
}

func (s *stubStore) SetGeometry(ctx context.Context, projectID uuid.UUID, meta models.GeometryMeta) error {
	if _, ok := s.names[projectID]; !ok {
		return fmt.Errorf("project %s: %w", projectID, revstore.ErrNotFound)
	}
	s.geometry[projectID] = &meta
	return nil
}

func (s *stubStore) AppendDIBRevision(ctx context.Context, dib *models.DesignIntentBrief, contentHash string) error {
	if dib.Revision != len(s.dibs[dib.ProjectID])+1 {
		return fmt.Errorf("brief revision conflict: %w", revstore.ErrRevisionConflict)
	}
	s.dibs[dib.ProjectID] = append(s.dibs[dib.ProjectID], dib)
	s.pointer[dib.ProjectID] = models.ResetApprovalPointer()
	return nil
}

func (s *stubStore) LatestDIB(ctx context.Context, projectID uuid.UUID) (*models.DesignIntentBrief, string, error) {
	revs := s.dibs[projectID]
	if len(revs) == 0 {
		return nil, "", fmt.Errorf("brief for project %s: %w", projectID, revstore.ErrNotFound)
	}
	dib := revs[len(revs)-1]
	hash, err := models.ContentHash(dib)
	if err != nil {
		return nil, "", err
	}
	return dib, hash, nil
}

func (s *stubStore) AppendPSpecRevision(ctx context.Context, spec *models.ParametricSpecification, contentHash, summary string) error {
	if spec.Revision != len(s.pspecs[spec.ProjectID])+1 {
		return fmt.Errorf("specification revision conflict: %w", revstore.ErrRevisionConflict)
	}
	s.pspecs[spec.ProjectID] = append(s.pspecs[spec.ProjectID], spec)
	s.summaries[spec.ProjectID] = append(s.summaries[spec.ProjectID], summary)
	s.approvals[spec.ProjectID] = append(s.approvals[spec.ProjectID], models.Approval{State: models.ApprovalPending})
	rev := spec.Revision
	s.pointer[spec.ProjectID] = models.ApprovalPointer{State: models.ApprovalPending, Revision: &rev}
	return nil
}

func (s *stubStore) GetPSpec(ctx context.Context, projectID uuid.UUID, revision int) (*models.ParametricSpecification, string, *models.Approval, error) {
	revs := s.pspecs[projectID]
	if revision < 1 || revision > len(revs) {
		return nil, "", nil, fmt.Errorf("specification revision %d: %w", revision, revstore.ErrNotFound)
	}
	approval := s.approvals[projectID][revision-1]
	return revs[revision-1], s.summaries[projectID][revision-1], &approval, nil
}

func (s *stubStore) LatestPSpec(ctx context.Context, projectID uuid.UUID) (*models.ParametricSpecification, string, *models.Approval, error) {
	return s.GetPSpec(ctx, projectID, len(s.pspecs[projectID]))
}

func (s *stubStore) SetApproval(ctx context.Context, projectID uuid.UUID, revision int, next models.ApprovalState) error {
	revs := s.approvals[projectID]
	if revision < 1 || revision > len(revs) {
		return fmt.Errorf("specification revision %d: %w", revision, revstore.ErrNotFound)
	}
	if err := models.ValidateApprovalTransition(revs[revision-1].State, next); err != nil {
		return err
	}
	now := time.Now().UTC()
	s.approvals[projectID][revision-1] = models.Approval{State: next, DecidedAt: &now}
	s.pointer[projectID] = models.ApprovalPointer{State: next, Revision: &revision, DecidedAt: &now}
	return nil
}

func (s *stubStore) RecordGeneration(ctx context.Context, projectID uuid.UUID, result models.GenerationResult) error {
	s.lastGen[projectID] = &result
	return nil
}

type stubOnshapeClient struct {
	healthy bool
	jobID   string
}

func (s *stubOnshapeClient) Regenerate(ctx context.Context, req onshape.RegenerationRequest) (string, error) {
	return s.jobID, nil
}

func (s *stubOnshapeClient) GetJob(ctx context.Context, jobID string) (*onshape.JobStatus, error) {
	return &onshape.JobStatus{JobID: jobID, Status: "running"}, nil
}

func (s *stubOnshapeClient) IsHealthy(ctx context.Context) bool {
	return s.healthy
}

type testEnv struct {
	router *gin.Engine
	store  *stubStore
	token  string
}

func newTestEnv(t *testing.T, client onshape.ClientInterface) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := newStubStore()
	pm, err := metrics.NewPipelineMetrics()
	require.NoError(t, err)
	template := orchestration.TemplateRef{DocumentID: "doc-1", WorkspaceID: "ws-1", ElementID: "el-1"}
	service := orchestration.NewService(store, client, pm, template, zerolog.Nop())

	jwtManager, err := auth.NewJWTManager("test-secret")
	require.NoError(t, err)
	token, err := jwtManager.GenerateToken(context.Background(), uuid.New().String(), "tester", []string{"user"}, time.Hour)
	require.NoError(t, err)

	handler := NewHandler(service, jwtManager, nil, zerolog.Nop())

	router := gin.New()
	api := router.Group("/api")
	protected := api.Group("")
	protected.Use(auth.RequireAuth(jwtManager))
	{
		protected.GET("/questions", handler.GetQuestions)
		protected.POST("/projects", handler.CreateProject)
		protected.GET("/projects/:id", handler.GetProject)
		protected.PUT("/projects/:id/draft", handler.SaveDraft)
		protected.GET("/projects/:id/draft", handler.GetDraft)
		protected.POST("/projects/:id/geometry", handler.RegisterGeometry)
		protected.POST("/projects/:id/brief/confirm", handler.ConfirmBrief)
		protected.POST("/projects/:id/specifications", handler.GenerateSpecification)
		protected.GET("/projects/:id/specifications/:rev", handler.GetSpecification)
		protected.GET("/projects/:id/specifications/:rev/variables", handler.GetVariables)
		protected.POST("/projects/:id/specifications/:rev/approve", handler.ApproveSpecification)
		protected.POST("/projects/:id/specifications/:rev/reject", handler.RejectSpecification)
		protected.POST("/projects/:id/specifications/:rev/regenerate", handler.RegenerateCAD)
	}

	return &testEnv{router: router, store: store, token: token}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Authorization", "Bearer "+e.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func completeDraftPayload() models.Draft {
	return models.Draft{
		"project.name":                     "Listening Room Cabinet",
		"overall.width_mm":                 2000.0,
		"overall.height_mm":                900.0,
		"overall.depth_mm":                 450.0,
		"material.type":                    "plywood",
		"material.thickness_mm":            18.0,
		"constraints.back_clearance_mm":    25.0,
		"access.rear_hatch":                true,
		"components.speakers.width_mm":     180.0,
		"components.speakers.height_mm":    300.0,
		"components.speakers.depth_mm":     250.0,
		"components.speakers.isolation":    "pads",
		"components.turntable.width_mm":    450.0,
		"components.turntable.height_mm":   160.0,
		"components.turntable.depth_mm":    380.0,
		"components.turntable.isolation":   "spikes",
		"components.amplifier.width_mm":    430.0,
		"components.amplifier.height_mm":   150.0,
		"components.amplifier.depth_mm":    350.0,
		"components.amplifier.ventilation": "top",
		"components.required_clearance_mm": 10.0,
		"storage.drawers.count":            2.0,
		"storage.drawers.lp_capacity":      120.0,
		"output.profile":                   "cad_only",
		"confirm":                          true,
	}
}

// createProject drives the API itself so every test exercises the real
// request path.
func (e *testEnv) createProject(t *testing.T) string {
	t.Helper()
	w := e.do(t, "POST", "/api/projects", CreateProjectRequest{Name: "test cabinet"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.ID
}

func (e *testEnv) readySpecification(t *testing.T, projectID string) {
	t.Helper()
	w := e.do(t, "PUT", "/api/projects/"+projectID+"/draft", completeDraftPayload())
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, "POST", "/api/projects/"+projectID+"/brief/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = e.do(t, "POST", "/api/projects/"+projectID+"/geometry", models.GeometryMeta{
		Filename:    "concept.stl",
		Format:      models.GeometryFormatSTL,
		SizeBytes:   48213,
		ContentHash: "c0ffee",
	})
	require.Equal(t, http.StatusNoContent, w.Code)
	w = e.do(t, "POST", "/api/projects/"+projectID+"/specifications", nil)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestRequireAuth_MissingToken(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	req := httptest.NewRequest("GET", "/api/questions", nil)
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestGetQuestions(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	w := env.do(t, "GET", "/api/questions", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var questions []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &questions))
	assert.NotEmpty(t, questions)
}

func TestCreateProject(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	w := env.do(t, "POST", "/api/projects", CreateProjectRequest{Name: "hi-fi cabinet"})
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ProjectResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "hi-fi cabinet", resp.Name)
	_, err := uuid.Parse(resp.ID)
	assert.NoError(t, err)
}

func TestCreateProject_MissingName(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	w := env.do(t, "POST", "/api/projects", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetProject_NotFound(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	w := env.do(t, "GET", "/api/projects/"+uuid.New().String(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProject_InvalidID(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})

	w := env.do(t, "GET", "/api/projects/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDraftRoundTrip(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	w := env.do(t, "PUT", "/api/projects/"+projectID+"/draft", models.Draft{"overall.width_mm": 2000.0})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "GET", "/api/projects/"+projectID+"/draft", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var draft models.Draft
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &draft))
	assert.Equal(t, 2000.0, draft["overall.width_mm"])
}

func TestConfirmBrief_IncompleteDraft(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	draft := completeDraftPayload()
	delete(draft, "overall.width_mm")
	w := env.do(t, "PUT", "/api/projects/"+projectID+"/draft", draft)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/brief/confirm", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp ConfirmBriefResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Nil(t, resp.Brief)
	assert.NotEmpty(t, resp.Errors)
}

func TestConfirmBrief_Success(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	w := env.do(t, "PUT", "/api/projects/"+projectID+"/draft", completeDraftPayload())
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/brief/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	var resp ConfirmBriefResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Brief)
	assert.Equal(t, 1, resp.Brief.Revision)
}

func TestGenerateSpecification_NoGeometry(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	w := env.do(t, "PUT", "/api/projects/"+projectID+"/draft", completeDraftPayload())
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, "POST", "/api/projects/"+projectID+"/brief/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeGeometryNotFound, resp.Code)
}

func TestGenerateSpecification_Success(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	w := env.do(t, "GET", "/api/projects/"+projectID+"/specifications/latest", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp SpecificationResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Specification)
	assert.Equal(t, 1, resp.Specification.Revision)
	assert.NotEmpty(t, resp.Summary)
	require.NotNil(t, resp.Approval)
	assert.Equal(t, models.ApprovalPending, resp.Approval.State)
}

func TestGenerateSpecification_InfeasibleDraft(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	draft := completeDraftPayload()
	draft["components.turntable.depth_mm"] = 430.0
	w := env.do(t, "PUT", "/api/projects/"+projectID+"/draft", draft)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(t, "POST", "/api/projects/"+projectID+"/brief/confirm", nil)
	require.Equal(t, http.StatusCreated, w.Code)
	w = env.do(t, "POST", "/api/projects/"+projectID+"/geometry", models.GeometryMeta{
		Filename: "concept.stl", Format: models.GeometryFormatSTL, SizeBytes: 1, ContentHash: "c0ffee",
	})
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications", nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp GenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.Persisted)
	assert.NotEmpty(t, resp.ManufacturabilityErrors)
}

func TestGetSpecification_InvalidRevision(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)

	w := env.do(t, "GET", "/api/projects/"+projectID+"/specifications/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetVariables(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	w := env.do(t, "GET", "/api/projects/"+projectID+"/specifications/1/variables", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var vars models.OnshapeVariableMap
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &vars))
	assert.Equal(t, models.OnshapeContractVersion, vars.ContractVersion)
	assert.Equal(t, 2000, vars.Variables["OVERALL_W"])
}

func TestApprovalDecisions(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	// Decisions need an explicit revision.
	w := env.do(t, "POST", "/api/projects/"+projectID+"/specifications/latest/approve", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/approve", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	// Approved is terminal.
	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/reject", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeRevisionConflict, resp.Code)
}

func TestRegenerateCAD_NotApproved(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true, jobID: "job-1"})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	w := env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/regenerate", nil)
	require.Equal(t, http.StatusConflict, w.Code)

	var resp models.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, models.ErrCodeNotApproved, resp.Code)
}

func TestRegenerateCAD_Success(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: true, jobID: "job-1"})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	w := env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/approve", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/regenerate", nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	var resp RegenerateResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "job-1", resp.JobID)
}

func TestRegenerateCAD_BackendDown(t *testing.T) {
	env := newTestEnv(t, &stubOnshapeClient{healthy: false, jobID: "job-1"})
	projectID := env.createProject(t)
	env.readySpecification(t, projectID)

	w := env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/approve", nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = env.do(t, "POST", "/api/projects/"+projectID+"/specifications/1/regenerate", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
