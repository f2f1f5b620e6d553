package models

// DomainError is an error with a stable machine readable code.
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

var (
	// ErrNotFound is returned when a referenced task id does not exist.
	ErrNotFound = NewDomainError("NOT_FOUND", "Task not found")
	// ErrInvalidInput is the parent of every *ValidationError.
	ErrInvalidInput = NewDomainError("INVALID_INPUT", "Invalid input provided")
)

// ValidationError reports the first field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}
