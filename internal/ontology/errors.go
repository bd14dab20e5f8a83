package ontology

import "fmt"

// Error codes. Every failure in this package carries one; callers branch on
// codes, never on message text.
const (
	CodeInvalidIntent           = "INVALID_INTENT"
	CodeEntityNotSupported      = "ONTOLOGY_ENTITY_NOT_SUPPORTED"
	CodeOperationNotAllowed     = "ONTOLOGY_OPERATION_NOT_ALLOWED"
	CodeIDRequired              = "ONTOLOGY_ID_REQUIRED"
	CodeRelationNotFound        = "ONTOLOGY_RELATION_NOT_FOUND"
	CodeEntityNotFound          = "ONTOLOGY_ENTITY_NOT_FOUND"
	CodeSourceNotFound          = "ONTOLOGY_SOURCE_NOT_FOUND"
	CodeOperationNotImplemented = "ONTOLOGY_OPERATION_NOT_IMPLEMENTED"
)

// Error is a typed ontology failure.
type Error struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func newError(code, message string, details map[string]any) *Error {
	return &Error{Code: code, Message: message, Details: details}
}
