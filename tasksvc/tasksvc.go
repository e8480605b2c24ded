package tasksvc

import (
	"context"
	"errors"
	"time"
)

type Task struct {
	ID          uint64    `json:"id" gorm:"primaryKey"`
	UserID      uint64    `json:"userId" gorm:"index;not null"`
	Title       string    `json:"title" gorm:"not null"`
	Description *string   `json:"description"`
	Completed   bool      `json:"completed" gorm:"not null;default:false"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// NewTask is what a client may supply when creating a task. The owner is
// never part of it.
type NewTask struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// TaskPatch is a partial update. Nil fields are left untouched.
type TaskPatch struct {
	Title       *string `json:"title,omitempty" validate:"omitempty,min=1"`
	Description *string `json:"description,omitempty"`
	Completed   *bool   `json:"completed,omitempty"`
}

// Fields returns the column updates the patch carries.
func (p TaskPatch) Fields() map[string]interface{} {
	fields := make(map[string]interface{}, 3)
	if p.Title != nil {
		fields["title"] = *p.Title
	}
	if p.Description != nil {
		fields["description"] = *p.Description
	}
	if p.Completed != nil {
		fields["completed"] = *p.Completed
	}
	return fields
}

// TaskRepository stores tasks. Every lookup is filtered by id and owner
// together; a task owned by someone else is reported as ErrTaskNotFound.
type TaskRepository interface {
	Create(ctx context.Context, task Task) (Task, error)
	FindAll(ctx context.Context, userID uint64) ([]Task, error)
	Find(ctx context.Context, userID, taskID uint64) (Task, error)
	Update(ctx context.Context, userID, taskID uint64, patch TaskPatch) (Task, error)
	Delete(ctx context.Context, userID, taskID uint64) error
}

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrTaskNotFound    = errors.New("task not found")
	ErrUnavailable     = errors.New("task store unavailable")
)
