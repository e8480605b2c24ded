package taskendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
)

type Set struct {
	TasksEndpoint      endpoint.Endpoint
	CreateTaskEndpoint endpoint.Endpoint
	TaskEndpoint       endpoint.Endpoint
	UpdateTaskEndpoint endpoint.Endpoint
	DeleteTaskEndpoint endpoint.Endpoint
}

func New(svc taskservice.Service, logger log.Logger) Set {
	var tasksEndpoint endpoint.Endpoint
	{
		tasksEndpoint = MakeTasksEndpoint(svc)
		tasksEndpoint = LoggingMiddleware(log.With(logger, "method", "Tasks"))(tasksEndpoint)
	}

	var createTaskEndpoint endpoint.Endpoint
	{
		createTaskEndpoint = MakeCreateTaskEndpoint(svc)
		createTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "CreateTask"))(createTaskEndpoint)
	}

	var taskEndpoint endpoint.Endpoint
	{
		taskEndpoint = MakeTaskEndpoint(svc)
		taskEndpoint = LoggingMiddleware(log.With(logger, "method", "Task"))(taskEndpoint)
	}

	var updateTaskEndpoint endpoint.Endpoint
	{
		updateTaskEndpoint = MakeUpdateTaskEndpoint(svc)
		updateTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "UpdateTask"))(updateTaskEndpoint)
	}

	var deleteTaskEndpoint endpoint.Endpoint
	{
		deleteTaskEndpoint = MakeDeleteTaskEndpoint(svc)
		deleteTaskEndpoint = LoggingMiddleware(log.With(logger, "method", "DeleteTask"))(deleteTaskEndpoint)
	}

	return Set{
		TasksEndpoint:      tasksEndpoint,
		CreateTaskEndpoint: createTaskEndpoint,
		TaskEndpoint:       taskEndpoint,
		UpdateTaskEndpoint: updateTaskEndpoint,
		DeleteTaskEndpoint: deleteTaskEndpoint,
	}
}

// The Set methods satisfy taskservice.Service so that a client built from
// remote endpoints can be used wherever the service is. The owner is carried
// by the bearer token, so ownerID is not sent.

func (s Set) Tasks(ctx context.Context, _ uint64) ([]tasksvc.Task, error) {
	resp, err := s.TasksEndpoint(ctx, TasksRequest{})
	if err != nil {
		return nil, err
	}
	response := resp.(TasksResponse)
	return response.Tasks, response.Err
}

func (s Set) CreateTask(ctx context.Context, _ uint64, t tasksvc.NewTask) (tasksvc.Task, error) {
	resp, err := s.CreateTaskEndpoint(ctx, CreateTaskRequest(t))
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) Task(ctx context.Context, _, taskID uint64) (tasksvc.Task, error) {
	resp, err := s.TaskEndpoint(ctx, TaskRequest{TaskID: taskID})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) UpdateTask(ctx context.Context, _, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	resp, err := s.UpdateTaskEndpoint(ctx, UpdateTaskRequest{TaskID: taskID, TaskPatch: p})
	if err != nil {
		return tasksvc.Task{}, err
	}
	response := resp.(TaskResponse)
	return response.Task, response.Err
}

func (s Set) DeleteTask(ctx context.Context, _, taskID uint64) error {
	resp, err := s.DeleteTaskEndpoint(ctx, DeleteTaskRequest{TaskID: taskID})
	if err != nil {
		return err
	}
	response := resp.(DeleteTaskResponse)
	return response.Err
}

func MakeTasksEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claim, ok := authsvc.ClaimFromContext(ctx)
		if !ok {
			return TasksResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		_ = request.(TasksRequest)
		t, err := s.Tasks(ctx, claim.UserID)
		return TasksResponse{Tasks: t, Err: err}, nil
	}
}

func MakeCreateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claim, ok := authsvc.ClaimFromContext(ctx)
		if !ok {
			return TaskResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		req := request.(CreateTaskRequest)
		t, err := s.CreateTask(ctx, claim.UserID, tasksvc.NewTask(req))
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claim, ok := authsvc.ClaimFromContext(ctx)
		if !ok {
			return TaskResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		req := request.(TaskRequest)
		t, err := s.Task(ctx, claim.UserID, req.TaskID)
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeUpdateTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claim, ok := authsvc.ClaimFromContext(ctx)
		if !ok {
			return TaskResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		req := request.(UpdateTaskRequest)
		t, err := s.UpdateTask(ctx, claim.UserID, req.TaskID, req.TaskPatch)
		return TaskResponse{Task: t, Err: err}, nil
	}
}

func MakeDeleteTaskEndpoint(s taskservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		claim, ok := authsvc.ClaimFromContext(ctx)
		if !ok {
			return DeleteTaskResponse{Err: authsvc.ErrClaimsMissing}, nil
		}

		req := request.(DeleteTaskRequest)
		err = s.DeleteTask(ctx, claim.UserID, req.TaskID)
		return DeleteTaskResponse{Err: err}, nil
	}
}

func LoggingMiddleware(logger log.Logger) endpoint.Middleware {
	return func(next endpoint.Endpoint) endpoint.Endpoint {
		return func(ctx context.Context, request interface{}) (response interface{}, err error) {
			defer func(begin time.Time) {
				logger.Log("transport_error", err, "took", time.Since(begin))
			}(time.Now())
			return next(ctx, request)
		}
	}
}

var (
	_ endpoint.Failer = TasksResponse{}
	_ endpoint.Failer = TaskResponse{}
	_ endpoint.Failer = DeleteTaskResponse{}
)

type TasksRequest struct{}

type TasksResponse struct {
	Tasks []tasksvc.Task
	Err   error
}

func (r TasksResponse) Failed() error { return r.Err }

type CreateTaskRequest tasksvc.NewTask

type TaskRequest struct {
	TaskID uint64
}

type UpdateTaskRequest struct {
	TaskID    uint64
	TaskPatch tasksvc.TaskPatch
}

// TaskResponse carries a single task for create, read and update.
type TaskResponse struct {
	Task tasksvc.Task
	Err  error
}

func (r TaskResponse) Failed() error { return r.Err }

type DeleteTaskRequest struct {
	TaskID uint64
}

type DeleteTaskResponse struct {
	Err error
}

func (r DeleteTaskResponse) Failed() error { return r.Err }
