package gorm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ichigozero/gtdlite/tasksvc"
	libgorm "gorm.io/gorm"
)

type taskRepository struct {
	db      *libgorm.DB
	timeout time.Duration
}

// NewTaskRepository returns a gorm backed repository. Every call is bounded
// by timeout; a zero timeout leaves the caller's deadline untouched.
func NewTaskRepository(db *libgorm.DB, timeout time.Duration) tasksvc.TaskRepository {
	return &taskRepository{db: db, timeout: timeout}
}

func (t *taskRepository) Create(ctx context.Context, task tasksvc.Task) (tasksvc.Task, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	task.ID = 0
	if err := t.db.WithContext(ctx).Create(&task).Error; err != nil {
		return tasksvc.Task{}, unavailable(err)
	}
	return task, nil
}

func (t *taskRepository) FindAll(ctx context.Context, userID uint64) ([]tasksvc.Task, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	tasks := []tasksvc.Task{}
	err := t.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Order("id DESC").
		Find(&tasks).Error
	if err != nil {
		return nil, unavailable(err)
	}
	return tasks, nil
}

func (t *taskRepository) Find(ctx context.Context, userID, taskID uint64) (tasksvc.Task, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	return find(t.db.WithContext(ctx), userID, taskID)
}

func (t *taskRepository) Update(ctx context.Context, userID, taskID uint64, patch tasksvc.TaskPatch) (tasksvc.Task, error) {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	var task tasksvc.Task
	err := t.db.WithContext(ctx).Transaction(func(tx *libgorm.DB) error {
		var err error
		task, err = find(tx, userID, taskID)
		if err != nil {
			return err
		}

		fields := patch.Fields()
		if len(fields) == 0 {
			return nil
		}

		err = tx.Model(&tasksvc.Task{}).
			Where("id = ? AND user_id = ?", taskID, userID).
			Updates(fields).Error
		if err != nil {
			return unavailable(err)
		}

		task, err = find(tx, userID, taskID)
		return err
	})
	if err != nil {
		return tasksvc.Task{}, unavailable(err)
	}
	return task, nil
}

func (t *taskRepository) Delete(ctx context.Context, userID, taskID uint64) error {
	ctx, cancel := t.withTimeout(ctx)
	defer cancel()

	result := t.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", taskID, userID).
		Delete(&tasksvc.Task{})
	if result.Error != nil {
		return unavailable(result.Error)
	}
	if result.RowsAffected == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return nil
}

func find(db *libgorm.DB, userID, taskID uint64) (tasksvc.Task, error) {
	var task tasksvc.Task
	err := db.Where("id = ? AND user_id = ?", taskID, userID).First(&task).Error
	switch {
	case err == nil:
		return task, nil
	case errors.Is(err, libgorm.ErrRecordNotFound):
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return tasksvc.Task{}, unavailable(err)
}

func unavailable(err error) error {
	if errors.Is(err, tasksvc.ErrUnavailable) || errors.Is(err, tasksvc.ErrTaskNotFound) {
		return err
	}
	return fmt.Errorf("%w: %v", tasksvc.ErrUnavailable, err)
}

func (t *taskRepository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, t.timeout)
}
