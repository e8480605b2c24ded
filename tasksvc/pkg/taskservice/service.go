package taskservice

import (
	"context"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/validation"
)

// Service is the task access controller. Every operation is scoped to
// ownerID; tasks belonging to anyone else do not exist as far as the caller
// can tell.
type Service interface {
	Tasks(ctx context.Context, ownerID uint64) ([]tasksvc.Task, error)
	CreateTask(ctx context.Context, ownerID uint64, t tasksvc.NewTask) (tasksvc.Task, error)
	Task(ctx context.Context, ownerID, taskID uint64) (tasksvc.Task, error)
	UpdateTask(ctx context.Context, ownerID, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error)
	DeleteTask(ctx context.Context, ownerID, taskID uint64) error
}

func New(t tasksvc.TaskRepository, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(t)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	tasks tasksvc.TaskRepository
}

func NewBasicService(t tasksvc.TaskRepository) Service {
	return basicService{tasks: t}
}

func (s basicService) Tasks(ctx context.Context, ownerID uint64) ([]tasksvc.Task, error) {
	if ownerID == 0 {
		return nil, tasksvc.ErrInvalidArgument
	}
	return s.tasks.FindAll(ctx, ownerID)
}

func (s basicService) CreateTask(ctx context.Context, ownerID uint64, t tasksvc.NewTask) (tasksvc.Task, error) {
	if ownerID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if err := validation.Struct(t); err != nil {
		return tasksvc.Task{}, err
	}

	task := tasksvc.Task{
		UserID:      ownerID,
		Title:       t.Title,
		Description: t.Description,
	}
	if t.Completed != nil {
		task.Completed = *t.Completed
	}
	return s.tasks.Create(ctx, task)
}

func (s basicService) Task(ctx context.Context, ownerID, taskID uint64) (tasksvc.Task, error) {
	if ownerID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Find(ctx, ownerID, taskID)
}

func (s basicService) UpdateTask(ctx context.Context, ownerID, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	if ownerID == 0 {
		return tasksvc.Task{}, tasksvc.ErrInvalidArgument
	}
	if err := validation.Struct(p); err != nil {
		return tasksvc.Task{}, err
	}
	if taskID == 0 {
		return tasksvc.Task{}, tasksvc.ErrTaskNotFound
	}
	return s.tasks.Update(ctx, ownerID, taskID, p)
}

func (s basicService) DeleteTask(ctx context.Context, ownerID, taskID uint64) error {
	if ownerID == 0 {
		return tasksvc.ErrInvalidArgument
	}
	if taskID == 0 {
		return tasksvc.ErrTaskNotFound
	}
	return s.tasks.Delete(ctx, ownerID, taskID)
}
