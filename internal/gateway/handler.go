// Package gateway is the HTTP surface. Handlers are thin adapters: they
// bind and authenticate, call the orchestration service, and translate
// outcomes into status codes. No pipeline decision lives here.
package gateway

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/auth"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/brief"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/models"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/onshape"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/orchestration"
	"github.com/hearthwood/cabinet-studio/cad-orchestrator/internal/revstore"
)

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	service    *orchestration.Service
	jwtManager *auth.JWTManager
	pool       *pgxpool.Pool
	logger     zerolog.Logger
}

// NewHandler creates a new gateway handler
func NewHandler(service *orchestration.Service, jwtManager *auth.JWTManager, pool *pgxpool.Pool, logger zerolog.Logger) *Handler {
	return &Handler{
		service:    service,
		jwtManager: jwtManager,
		pool:       pool,
		logger:     logger,
	}
}

// LoginRequest represents a login request
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// LoginResponse represents a login response
type LoginResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	var userID string
	var hashedPassword string
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, hashed_password FROM users WHERE email = $1`,
		req.Email,
	).Scan(&userID, &hashedPassword)
	if err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("user not found")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(req.Password)); err != nil {
		h.logger.Warn().Str("email", req.Email).Msg("invalid password")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}

	token, err := h.jwtManager.GenerateToken(c.Request.Context(), userID, req.Email, []string{"user"}, 24*time.Hour)
	if err != nil {
		internalError(c, "Failed to generate token")
		return
	}

	c.JSON(http.StatusOK, LoginResponse{Token: token, UserID: userID})
}

// Me godoc
// @Summary Current user
// @Description Return the authenticated user's account details
// @Tags auth
// @Produce json
// @Success 200 {object} models.UserInfo
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/me [get]
func (h *Handler) Me(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var user models.User
	err := h.pool.QueryRow(c.Request.Context(),
		`SELECT id, name, email, created_at FROM users WHERE id = $1`,
		userID.String(),
	).Scan(&user.ID, &user.Name, &user.Email, &user.CreatedAt)
	if err != nil {
		h.logger.Warn().Str("user_id", userID.String()).Msg("authenticated user not found")
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "User not found", Code: models.ErrCodeUnauthorized})
		return
	}

	c.JSON(http.StatusOK, user.ToUserInfo())
}

// GetQuestions godoc
// @Summary Interview schema
// @Description Return the ordered question schema driving the brief interview
// @Tags brief
// @Produce json
// @Success 200 {array} brief.Question
// @Security BearerAuth
// @Router /questions [get]
func (h *Handler) GetQuestions(c *gin.Context) {
	c.JSON(http.StatusOK, brief.Questions)
}

// CreateProjectRequest represents a project creation request
type CreateProjectRequest struct {
	Name string `json:"name" binding:"required"`
}

// ProjectResponse represents a project creation response
type ProjectResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateProject godoc
// @Summary Create project
// @Description Create a new cabinet project with an empty draft
// @Tags projects
// @Accept json
// @Produce json
// @Param request body CreateProjectRequest true "Project details"
// @Success 201 {object} ProjectResponse
// @Failure 400 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects [post]
func (h *Handler) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request")
		return
	}

	userID, ok := currentUser(c)
	if !ok {
		return
	}

	projectID, err := h.service.CreateProject(c.Request.Context(), req.Name, userID)
	if err != nil {
		h.logger.Error().Err(err).Str("user_id", userID.String()).Msg("failed to create project")
		internalError(c, "Failed to create project")
		return
	}

	c.JSON(http.StatusCreated, ProjectResponse{ID: projectID.String(), Name: req.Name})
}

// GetProject godoc
// @Summary Project ledger
// @Description Return the project's run metadata: revision histories, approval pointer, last generation
// @Tags projects
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.RunMetadata
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id} [get]
func (h *Handler) GetProject(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	meta, err := h.service.RunMetadata(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err, "Failed to load project")
		return
	}
	c.JSON(http.StatusOK, meta)
}

// SaveDraft godoc
// @Summary Save draft answers
// @Description Overwrite the project's in-progress answer draft; never validated on save
// @Tags brief
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body models.Draft true "Dotted-path answers"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/draft [put]
func (h *Handler) SaveDraft(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	var draft models.Draft
	if err := c.ShouldBindJSON(&draft); err != nil {
		badRequest(c, "Invalid draft payload")
		return
	}

	if err := h.service.SaveDraft(c.Request.Context(), projectID, draft); err != nil {
		h.respondError(c, err, "Failed to save draft")
		return
	}
	c.Status(http.StatusNoContent)
}

// GetDraft godoc
// @Summary Get draft answers
// @Tags brief
// @Produce json
// @Param id path string true "Project ID"
// @Success 200 {object} models.Draft
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/draft [get]
func (h *Handler) GetDraft(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	draft, err := h.service.GetDraft(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err, "Failed to load draft")
		return
	}
	c.JSON(http.StatusOK, draft)
}

// RegisterGeometry godoc
// @Summary Register reference geometry
// @Description Record provenance metadata of the uploaded reference mesh
// @Tags geometry
// @Accept json
// @Produce json
// @Param id path string true "Project ID"
// @Param request body models.GeometryMeta true "Geometry metadata"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/geometry [post]
func (h *Handler) RegisterGeometry(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	var meta models.GeometryMeta
	if err := c.ShouldBindJSON(&meta); err != nil {
		badRequest(c, "Invalid geometry metadata")
		return
	}
	if meta.UploadedAt.IsZero() {
		meta.UploadedAt = time.Now().UTC()
	}

	if err := h.service.RegisterGeometry(c.Request.Context(), projectID, meta); err != nil {
		h.respondError(c, err, "Failed to register geometry")
		return
	}
	c.Status(http.StatusNoContent)
}

// ConfirmBriefResponse carries either the confirmed brief revision or
// the validation errors that blocked confirmation.
type ConfirmBriefResponse struct {
	Brief  *models.DesignIntentBrief `json:"brief,omitempty"`
	Errors []models.ValidationError  `json:"errors,omitempty"`
}

// ConfirmBrief godoc
// @Summary Confirm brief
// @Description Normalize the draft into the next immutable brief revision; 422 with the full error list when the draft is incomplete or invalid
// @Tags brief
// @Produce json
// @Param id path string true "Project ID"
// @Success 201 {object} ConfirmBriefResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} ConfirmBriefResponse
// @Security BearerAuth
// @Router /projects/{id}/brief/confirm [post]
func (h *Handler) ConfirmBrief(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	dib, verrs, err := h.service.ConfirmBrief(c.Request.Context(), projectID)
	if err != nil {
		h.respondError(c, err, "Failed to confirm brief")
		return
	}
	if len(verrs) > 0 {
		c.JSON(http.StatusUnprocessableEntity, ConfirmBriefResponse{Errors: verrs})
		return
	}
	c.JSON(http.StatusCreated, ConfirmBriefResponse{Brief: dib})
}

// GenerateResponse carries the outcome of a generation attempt. When
// persisted is false the failing stage's errors say why.
type GenerateResponse struct {
	Persisted               bool                       `json:"persisted"`
	Revision                int                        `json:"revision,omitempty"`
	Summary                 string                     `json:"summary,omitempty"`
	Variables               *models.OnshapeVariableMap `json:"variables,omitempty"`
	SchemaErrors            []models.ValidationError   `json:"schema_errors,omitempty"`
	ManufacturabilityErrors []string                   `json:"manufacturability_errors,omitempty"`
	MappingErrors           []onshape.MappingError     `json:"mapping_errors,omitempty"`
}

// GenerateSpecification godoc
// @Summary Generate specification
// @Description Synthesize, validate, and map the next specification revision from the latest confirmed brief; persists only when the whole chain passes
// @Tags specifications
// @Produce json
// @Param id path string true "Project ID"
// @Success 201 {object} GenerateResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 422 {object} GenerateResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications [post]
func (h *Handler) GenerateSpecification(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}

	outcome, err := h.service.GenerateSpecification(c.Request.Context(), projectID)
	if err != nil {
		if errors.Is(err, orchestration.ErrGeometryMissing) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeGeometryNotFound})
			return
		}
		h.respondError(c, err, "Failed to generate specification")
		return
	}

	resp := GenerateResponse{
		Persisted:               outcome.Persisted,
		Summary:                 outcome.Summary,
		Variables:               outcome.Variables,
		SchemaErrors:            outcome.SchemaErrors,
		ManufacturabilityErrors: outcome.Manufacturability.Errors,
		MappingErrors:           outcome.MappingErrors,
	}
	if !outcome.Persisted {
		c.JSON(http.StatusUnprocessableEntity, resp)
		return
	}
	resp.Revision = outcome.Spec.Revision
	c.JSON(http.StatusCreated, resp)
}

// SpecificationResponse is one stored specification revision with its
// human-readable summary and approval record.
type SpecificationResponse struct {
	Specification *models.ParametricSpecification `json:"specification"`
	Summary       string                          `json:"summary"`
	Approval      *models.Approval                `json:"approval"`
}

// GetSpecification godoc
// @Summary Get specification revision
// @Description Return one specification revision with summary and approval state; rev=latest for the newest
// @Tags specifications
// @Produce json
// @Param id path string true "Project ID"
// @Param rev path string true "Revision number or 'latest'"
// @Success 200 {object} SpecificationResponse
// @Failure 404 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications/{rev} [get]
func (h *Handler) GetSpecification(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}
	revision, ok := pathRevision(c)
	if !ok {
		return
	}

	spec, summary, approval, err := h.service.GetSpecification(c.Request.Context(), projectID, revision)
	if err != nil {
		h.respondError(c, err, "Failed to load specification")
		return
	}
	c.JSON(http.StatusOK, SpecificationResponse{Specification: spec, Summary: summary, Approval: approval})
}

// GetVariables godoc
// @Summary Get variable map
// @Description Map one stored specification revision to the Onshape variable contract
// @Tags specifications
// @Produce json
// @Param id path string true "Project ID"
// @Param rev path string true "Revision number or 'latest'"
// @Success 200 {object} models.OnshapeVariableMap
// @Failure 404 {object} models.ErrorResponse
// @Failure 422 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications/{rev}/variables [get]
func (h *Handler) GetVariables(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}
	revision, ok := pathRevision(c)
	if !ok {
		return
	}

	spec, _, _, err := h.service.GetSpecification(c.Request.Context(), projectID, revision)
	if err != nil {
		h.respondError(c, err, "Failed to load specification")
		return
	}

	mapping := onshape.MapToVariables(spec)
	if !mapping.OK {
		details := make(map[string]string, len(mapping.Errors))
		for _, me := range mapping.Errors {
			details[me.Variable] = me.Message
		}
		c.JSON(http.StatusUnprocessableEntity, models.ErrorResponse{
			Error:   "Specification does not map to the variable contract",
			Code:    models.ErrCodeMappingFailed,
			Details: details,
		})
		return
	}
	c.JSON(http.StatusOK, mapping.Variables)
}

// ApproveSpecification godoc
// @Summary Approve specification revision
// @Tags approvals
// @Produce json
// @Param id path string true "Project ID"
// @Param rev path string true "Revision number"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications/{rev}/approve [post]
func (h *Handler) ApproveSpecification(c *gin.Context) {
	h.decide(c, models.ApprovalApproved)
}

// RejectSpecification godoc
// @Summary Reject specification revision
// @Tags approvals
// @Produce json
// @Param id path string true "Project ID"
// @Param rev path string true "Revision number"
// @Success 204
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications/{rev}/reject [post]
func (h *Handler) RejectSpecification(c *gin.Context) {
	h.decide(c, models.ApprovalRejected)
}

func (h *Handler) decide(c *gin.Context, next models.ApprovalState) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}
	revision, ok := pathRevision(c)
	if !ok {
		return
	}
	if revision == 0 {
		badRequest(c, "Approval decisions target an explicit revision")
		return
	}

	var err error
	if next == models.ApprovalApproved {
		err = h.service.ApproveSpecification(c.Request.Context(), projectID, revision)
	} else {
		err = h.service.RejectSpecification(c.Request.Context(), projectID, revision)
	}
	if err != nil {
		if errors.Is(err, models.ErrInvalidApprovalTransition) {
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeRevisionConflict})
			return
		}
		h.respondError(c, err, "Failed to record approval decision")
		return
	}
	c.Status(http.StatusNoContent)
}

// RegenerateResponse returns the backend job handle for a started run.
type RegenerateResponse struct {
	JobID string `json:"job_id"`
}

// RegenerateCAD godoc
// @Summary Regenerate CAD
// @Description Apply the approved revision's variable map to the template document and start regeneration
// @Tags regeneration
// @Produce json
// @Param id path string true "Project ID"
// @Param rev path string true "Revision number"
// @Success 202 {object} RegenerateResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /projects/{id}/specifications/{rev}/regenerate [post]
func (h *Handler) RegenerateCAD(c *gin.Context) {
	projectID, ok := pathProject(c)
	if !ok {
		return
	}
	revision, ok := pathRevision(c)
	if !ok {
		return
	}
	if revision == 0 {
		badRequest(c, "Regeneration targets an explicit revision")
		return
	}

	jobID, err := h.service.RegenerateCAD(c.Request.Context(), projectID, revision)
	if err != nil {
		switch {
		case errors.Is(err, orchestration.ErrNotApproved):
			c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeNotApproved})
		case errors.Is(err, orchestration.ErrBackendUnavailable):
			c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeInternalError})
		default:
			h.respondError(c, err, "Failed to start regeneration")
		}
		return
	}
	c.JSON(http.StatusAccepted, RegenerateResponse{JobID: jobID})
}

func (h *Handler) respondError(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, revstore.ErrNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeNotFound})
	case errors.Is(err, revstore.ErrRevisionConflict):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeRevisionConflict})
	default:
		h.logger.Error().Err(err).Str("path", c.FullPath()).Msg(msg)
		internalError(c, msg)
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: msg, Code: models.ErrCodeInvalidRequest})
}

func internalError(c *gin.Context, msg string) {
	c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: msg, Code: models.ErrCodeInternalError})
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userIDVal, exists := c.Get("user_id")
	if !exists {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "User not authenticated", Code: models.ErrCodeUnauthorized})
		return uuid.Nil, false
	}
	userID, err := uuid.Parse(userIDVal.(string))
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid user ID", Code: models.ErrCodeUnauthorized})
		return uuid.Nil, false
	}
	return userID, true
}

func pathProject(c *gin.Context) (uuid.UUID, bool) {
	projectID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		badRequest(c, "Invalid project ID")
		return uuid.Nil, false
	}
	return projectID, true
}

// pathRevision parses the :rev segment; "latest" (and "0") mean the
// newest revision.
func pathRevision(c *gin.Context) (int, bool) {
	raw := c.Param("rev")
	if raw == "latest" || raw == "" {
		return 0, true
	}
	var revision int
	for _, r := range raw {
		if r < '0' || r > '9' {
			badRequest(c, "Invalid revision")
			return 0, false
		}
		revision = revision*10 + int(r-'0')
	}
	return revision, true
}
