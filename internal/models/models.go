package models

// Content length bounds for a task, counted in characters.
const (
	MinContentLength = 1
	MaxContentLength = 30
)

// Task is the only persisted entity: a short piece of text with a done flag.
type Task struct {
	ID      int64  `json:"id" gorm:"primaryKey;autoIncrement"`
	Content string `json:"content" gorm:"size:30;not null"`
	Done    bool   `json:"done" gorm:"not null"`
}

// TableName pins the table created by the migrations.
func (Task) TableName() string {
	return "tasks"
}

// CreateTaskRequest is the body accepted by POST /tasks.
type CreateTaskRequest struct {
	Content string `json:"content" validate:"min=1,max=30"`
}

// UpdateTaskRequest is the body accepted by PATCH /tasks/:id.
// Done is a pointer so that a missing field can be told apart from false.
type UpdateTaskRequest struct {
	Done *bool `json:"done" validate:"required"`
}

// taskPayload mirrors Task with every field required; it is what the client
// decodes server responses into before trusting them.
type taskPayload struct {
	ID      *int64  `json:"id" validate:"required,gt=0"`
	Content *string `json:"content" validate:"required"`
	Done    *bool   `json:"done" validate:"required"`
}
