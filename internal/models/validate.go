package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// User facing messages for the content rule. The terminal form shows them
// verbatim and the server returns them in 400 bodies.
const (
	MsgContentEmpty   = "Task cannot be empty"
	MsgContentTooLong = "Max 30 characters"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Use JSON tag names for field names in errors
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks the create body.
func (r CreateTaskRequest) Validate() error {
	return check(r)
}

// Validate checks the update body.
func (r UpdateTaskRequest) Validate() error {
	return check(r)
}

// ValidateContent applies the create rules to a raw form value.
func ValidateContent(content string) error {
	return CreateTaskRequest{Content: content}.Validate()
}

// ParseTask decodes a single task from a response body and rejects payloads
// with missing or malformed fields.
func ParseTask(data []byte) (Task, error) {
	var p taskPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return Task{}, fmt.Errorf("decode task: %w", err)
	}
	if err := check(p); err != nil {
		return Task{}, fmt.Errorf("invalid task: %w", err)
	}
	return p.task(), nil
}

// ParseTasks is ParseTask for a JSON array.
func ParseTasks(data []byte) ([]Task, error) {
	var payloads []taskPayload
	if err := json.Unmarshal(data, &payloads); err != nil {
		return nil, fmt.Errorf("decode tasks: %w", err)
	}
	tasks := make([]Task, 0, len(payloads))
	for i, p := range payloads {
		if err := check(p); err != nil {
			return nil, fmt.Errorf("invalid task at index %d: %w", i, err)
		}
		tasks = append(tasks, p.task())
	}
	return tasks, nil
}

func (p taskPayload) task() Task {
	return Task{ID: *p.ID, Content: *p.Content, Done: *p.Done}
}

// check runs the struct rules and reduces the result to the first failing
// field as a *ValidationError.
func check(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return &ValidationError{Field: fe.Field(), Message: validationMessage(fe)}
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "min":
		if fe.Field() == "content" {
			return MsgContentEmpty
		}
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		if fe.Field() == "content" {
			return MsgContentTooLong
		}
		return fe.Field() + " must be at most " + fe.Param() + " characters"
	case "required":
		return fe.Field() + " is required"
	case "gt":
		return fe.Field() + " must be greater than " + fe.Param()
	}
	return fe.Field() + " is invalid"
}
