package engine

import "fmt"

type AppError struct {
	Code    string `json:"code"`
	Status  int    `json:"-"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return e.Message
}

type ErrorResponse struct {
	Error *AppError `json:"error"`
}

func NewAppError(code string, status int, msg string) *AppError {
	return &AppError{Code: code, Status: status, Message: msg}
}

// ConfigurationError marks a schema that cannot be transferred, usually a
// missing or non-unique identifier field.
func ConfigurationError(format string, args ...any) *AppError {
	return &AppError{
		Code:    "CONFIGURATION_ERROR",
		Status:  422,
		Message: fmt.Sprintf(format, args...),
	}
}

// RelationDiagnostics describes an identifier value that could not be
// resolved against the batch, the store, or the creation rules.
type RelationDiagnostics struct {
	ContentType     string `json:"contentType"`
	IdentifierField string `json:"identifierField"`
	Value           any    `json:"value"`
	SearchedBatch   bool   `json:"searchedBatch"`
	SearchedStore   bool   `json:"searchedStore"`
}

func RelationNotFoundError(diag RelationDiagnostics) *AppError {
	return &AppError{
		Code:    "RELATION_NOT_FOUND",
		Status:  422,
		Message: fmt.Sprintf("relation %s %q could not be resolved", diag.ContentType, fmt.Sprintf("%v", diag.Value)),
		Details: diag,
	}
}

func ConflictError(format string, args ...any) *AppError {
	return &AppError{
		Code:    "CONFLICT",
		Status:  409,
		Message: fmt.Sprintf(format, args...),
	}
}

func ImportInProgressError() *AppError {
	return &AppError{
		Code:    "IMPORT_IN_PROGRESS",
		Status:  409,
		Message: "another import is already running",
	}
}

func UnknownContentTypeError(uid string) *AppError {
	return &AppError{
		Code:    "UNKNOWN_CONTENT_TYPE",
		Status:  404,
		Message: fmt.Sprintf("Unknown content type: %s", uid),
	}
}

func UnauthorizedError(msg string) *AppError {
	return &AppError{Code: "UNAUTHORIZED", Status: 401, Message: msg}
}

func ForbiddenError(msg string) *AppError {
	return &AppError{Code: "FORBIDDEN", Status: 403, Message: msg}
}

func ValidationError(issues []ValidationIssue) *AppError {
	return &AppError{
		Code:    "VALIDATION_FAILED",
		Status:  422,
		Message: "Validation failed",
		Details: issues,
	}
}

func IsRelationNotFound(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == "RELATION_NOT_FOUND"
}
