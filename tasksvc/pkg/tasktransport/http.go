package tasktransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/kit/circuitbreaker"
	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdlite/validation"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// NewHTTPHandler serves /tasks and /tasks/{id}. Every route sits behind the
// bearer token gate; there is no way to reach an endpoint without a verified
// claim in the request context.
func NewHTTPHandler(endpoints taskendpoint.Set, v authservice.Verifier, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	tasksHandler := httptransport.NewServer(
		endpoints.TasksEndpoint,
		decodeHTTPTasksRequest,
		encodeHTTPTasksResponse,
		options...,
	)

	createTaskHandler := httptransport.NewServer(
		endpoints.CreateTaskEndpoint,
		decodeHTTPCreateTaskRequest,
		encodeHTTPTaskResponse(http.StatusCreated),
		options...,
	)

	taskHandler := httptransport.NewServer(
		endpoints.TaskEndpoint,
		decodeHTTPTaskRequest,
		encodeHTTPTaskResponse(http.StatusOK),
		options...,
	)

	updateTaskHandler := httptransport.NewServer(
		endpoints.UpdateTaskEndpoint,
		decodeHTTPUpdateTaskRequest,
		encodeHTTPTaskResponse(http.StatusOK),
		options...,
	)

	deleteTaskHandler := httptransport.NewServer(
		endpoints.DeleteTaskEndpoint,
		decodeHTTPDeleteTaskRequest,
		encodeHTTPDeleteTaskResponse,
		options...,
	)

	r := mux.NewRouter()

	r.Methods("GET").Path("/tasks").Handler(tasksHandler)
	r.Methods("POST").Path("/tasks").Handler(createTaskHandler)
	r.Methods("GET").Path("/tasks/{task_id}").Handler(taskHandler)
	r.Methods("PUT").Path("/tasks/{task_id}").Handler(updateTaskHandler)
	r.Methods("DELETE").Path("/tasks/{task_id}").Handler(deleteTaskHandler)

	return authtransport.NewAuthenticater(v, log.With(logger, "component", "gate"))(r)
}

// NewHTTPClient returns endpoints backed by a remote instance. The Set
// satisfies taskservice.Service. The bearer token is taken from
// kitjwt.JWTContextKey in the call's context. Transport failures are rate
// limited and circuit broken per endpoint.
func NewHTTPClient(instance string, logger log.Logger) (taskendpoint.Set, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return taskendpoint.Set{}, err
	}

	limiter := ratelimit.NewErroringLimiter(rate.NewLimiter(rate.Every(time.Second), 100))

	options := []httptransport.ClientOption{
		httptransport.ClientBefore(kitjwt.ContextToHTTP()),
	}

	newEndpoint := func(method, name string, enc httptransport.EncodeRequestFunc, dec httptransport.DecodeResponseFunc) endpoint.Endpoint {
		var e endpoint.Endpoint
		{
			e = httptransport.NewClient(method, copyURL(u, "/tasks"), enc, dec, options...).Endpoint()
			e = limiter(e)
			e = circuitbreaker.Gobreaker(gobreaker.NewCircuitBreaker(gobreaker.Settings{
				Name:    name,
				Timeout: 30 * time.Second,
			}))(e)
			e = taskendpoint.LoggingMiddleware(log.With(logger, "method", name))(e)
		}
		return e
	}

	return taskendpoint.Set{
		TasksEndpoint:      newEndpoint("GET", "Tasks", encodeHTTPTasksRequest, decodeHTTPTasksResponse),
		CreateTaskEndpoint: newEndpoint("POST", "CreateTask", encodeHTTPCreateTaskRequest, decodeHTTPTaskResponse),
		TaskEndpoint:       newEndpoint("GET", "Task", encodeHTTPTaskRequest, decodeHTTPTaskResponse),
		UpdateTaskEndpoint: newEndpoint("PUT", "UpdateTask", encodeHTTPUpdateTaskRequest, decodeHTTPTaskResponse),
		DeleteTaskEndpoint: newEndpoint("DELETE", "DeleteTask", encodeHTTPDeleteTaskRequest, decodeHTTPDeleteTaskResponse),
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	body := errorWrapper{Error: err.Error()}

	var fields validation.Errors
	switch {
	case errors.As(err, &fields):
		body = errorWrapper{Error: "validation failed", Fields: fields}
	case code == http.StatusServiceUnavailable:
		body.Error = "service unavailable"
	case code == http.StatusInternalServerError:
		body.Error = "internal server error"
	case code == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func err2code(err error) int {
	var fields validation.Errors
	switch {
	case errors.As(err, &fields), errors.Is(err, tasksvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, authsvc.ErrClaimsMissing),
		errors.Is(err, authsvc.ErrTokenMissing),
		errors.Is(err, authsvc.ErrTokenInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, tasksvc.ErrTaskNotFound):
		return http.StatusNotFound
	case errors.Is(err, tasksvc.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorWrapper struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func errorFromResponse(r *http.Response) error {
	var w errorWrapper
	_ = json.NewDecoder(r.Body).Decode(&w)

	switch r.StatusCode {
	case http.StatusBadRequest:
		if len(w.Fields) > 0 {
			return validation.Errors(w.Fields)
		}
		return tasksvc.ErrInvalidArgument
	case http.StatusUnauthorized:
		return authsvc.ErrTokenInvalid
	case http.StatusNotFound:
		return tasksvc.ErrTaskNotFound
	case http.StatusServiceUnavailable:
		return tasksvc.ErrUnavailable
	}
	if w.Error != "" {
		return errors.New(w.Error)
	}
	return errors.New(r.Status)
}

// taskID reads the {task_id} path variable. Anything that is not a positive
// integer cannot name a task, so it is reported the same way as a task that
// does not exist.
func taskID(r *http.Request) (uint64, error) {
	id, err := strconv.ParseUint(mux.Vars(r)["task_id"], 10, 64)
	if err != nil || id == 0 {
		return 0, tasksvc.ErrTaskNotFound
	}
	return id, nil
}

func decodeHTTPTasksRequest(_ context.Context, _ *http.Request) (interface{}, error) {
	return taskendpoint.TasksRequest{}, nil
}

func decodeHTTPCreateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req taskendpoint.CreateTaskRequest
	err := validation.DecodeJSON(r.Body, &req)
	return req, err
}

func decodeHTTPTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.TaskRequest{TaskID: id}, nil
}

func decodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}

	req := taskendpoint.UpdateTaskRequest{TaskID: id}
	if err := validation.DecodeJSON(r.Body, &req.TaskPatch); err != nil {
		return nil, err
	}
	return req, nil
}

func decodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request) (interface{}, error) {
	id, err := taskID(r)
	if err != nil {
		return nil, err
	}
	return taskendpoint.DeleteTaskRequest{TaskID: id}, nil
}

func encodeHTTPTasksResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(taskendpoint.TasksResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}

	tasks := resp.Tasks
	if tasks == nil {
		tasks = []tasksvc.Task{}
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	return json.NewEncoder(w).Encode(tasks)
}

func encodeHTTPTaskResponse(code int) httptransport.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		resp := response.(taskendpoint.TaskResponse)
		if resp.Err != nil {
			errorEncoder(ctx, resp.Err, w)
			return nil
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		return json.NewEncoder(w).Encode(resp.Task)
	}
}

func encodeHTTPDeleteTaskResponse(ctx context.Context, w http.ResponseWriter, response interface{}) error {
	resp := response.(taskendpoint.DeleteTaskResponse)
	if resp.Err != nil {
		errorEncoder(ctx, resp.Err, w)
		return nil
	}
	w.WriteHeader(http.StatusNoContent)
	return nil
}

func encodeHTTPTasksRequest(_ context.Context, _ *http.Request, _ interface{}) error {
	return nil
}

func encodeHTTPCreateTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	return encodeJSONBody(r, request.(taskendpoint.CreateTaskRequest))
}

func encodeHTTPTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	setTaskPath(r, request.(taskendpoint.TaskRequest).TaskID)
	return nil
}

func encodeHTTPUpdateTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	req := request.(taskendpoint.UpdateTaskRequest)
	setTaskPath(r, req.TaskID)
	return encodeJSONBody(r, req.TaskPatch)
}

func encodeHTTPDeleteTaskRequest(_ context.Context, r *http.Request, request interface{}) error {
	setTaskPath(r, request.(taskendpoint.DeleteTaskRequest).TaskID)
	return nil
}

func setTaskPath(r *http.Request, id uint64) {
	r.URL.Path = r.URL.Path + "/" + strconv.FormatUint(id, 10)
}

func encodeJSONBody(r *http.Request, v interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.ContentLength = int64(buf.Len())
	r.Body = io.NopCloser(&buf)
	return nil
}

func decodeHTTPTasksResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK {
		return taskendpoint.TasksResponse{Err: errorFromResponse(r)}, nil
	}
	var tasks []tasksvc.Task
	err := json.NewDecoder(r.Body).Decode(&tasks)
	return taskendpoint.TasksResponse{Tasks: tasks}, err
}

func decodeHTTPTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusCreated {
		return taskendpoint.TaskResponse{Err: errorFromResponse(r)}, nil
	}
	var task tasksvc.Task
	err := json.NewDecoder(r.Body).Decode(&task)
	return taskendpoint.TaskResponse{Task: task}, err
}

func decodeHTTPDeleteTaskResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusNoContent {
		return taskendpoint.DeleteTaskResponse{Err: errorFromResponse(r)}, nil
	}
	return taskendpoint.DeleteTaskResponse{}, nil
}
