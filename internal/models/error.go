package models

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Details map[string]string `json:"details,omitempty"`
}

// Error codes
const (
	ErrCodeInvalidRequest   = "INVALID_REQUEST"
	ErrCodeNotFound         = "NOT_FOUND"
	ErrCodeAlreadyExists    = "ALREADY_EXISTS"
	ErrCodeValidationFailed = "VALIDATION_FAILED"
	ErrCodeUnauthorized     = "UNAUTHORIZED"
	ErrCodeForbidden        = "FORBIDDEN"
	ErrCodeInternalError    = "INTERNAL_ERROR"
	ErrCodeRevisionConflict = "REVISION_CONFLICT"
	ErrCodeNotApproved      = "NOT_APPROVED"
	ErrCodeInfeasible       = "INFEASIBLE_SPECIFICATION"
	ErrCodeMappingFailed    = "MAPPING_FAILED"
	ErrCodeGeometryNotFound = "GEOMETRY_NOT_FOUND"
)

// ValidationError is a single expected domain violation, keyed by the
// dotted path of the offending field. Incompleteness and type or range
// violations travel as values, not as raised errors.
type ValidationError struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	return e.Path + ": " + e.Message
}
