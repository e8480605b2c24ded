package taskservice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/sony/gobreaker"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Tasks(ctx context.Context, ownerID uint64) (t []tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Tasks",
			"owner_id", ownerID,
			"count", len(t),
			"err", err,
		)
	}()
	return mw.next.Tasks(ctx, ownerID)
}

func (mw loggingMiddleware) CreateTask(ctx context.Context, ownerID uint64, nt tasksvc.NewTask) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "CreateTask",
			"owner_id", ownerID,
			"task_id", t.ID,
			"err", err,
		)
	}()
	return mw.next.CreateTask(ctx, ownerID, nt)
}

func (mw loggingMiddleware) Task(ctx context.Context, ownerID, taskID uint64) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "Task",
			"owner_id", ownerID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.Task(ctx, ownerID, taskID)
}

func (mw loggingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID uint64, p tasksvc.TaskPatch) (t tasksvc.Task, err error) {
	defer func() {
		mw.logger.Log(
			"method", "UpdateTask",
			"owner_id", ownerID,
			"task_id", taskID,
			"fields", len(p.Fields()),
			"err", err,
		)
	}()
	return mw.next.UpdateTask(ctx, ownerID, taskID, p)
}

func (mw loggingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID uint64) (err error) {
	defer func() {
		mw.logger.Log(
			"method", "DeleteTask",
			"owner_id", ownerID,
			"task_id", taskID,
			"err", err,
		)
	}()
	return mw.next.DeleteTask(ctx, ownerID, taskID)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) observe(method string, begin time.Time) {
	mw.requestCount.With("method", method).Add(1)
	mw.requestLatency.With("method", method).Observe(time.Since(begin).Seconds())
}

func (mw instrumentingMiddleware) Tasks(ctx context.Context, ownerID uint64) ([]tasksvc.Task, error) {
	defer mw.observe("tasks", time.Now())
	return mw.next.Tasks(ctx, ownerID)
}

func (mw instrumentingMiddleware) CreateTask(ctx context.Context, ownerID uint64, nt tasksvc.NewTask) (tasksvc.Task, error) {
	defer mw.observe("create_task", time.Now())
	return mw.next.CreateTask(ctx, ownerID, nt)
}

func (mw instrumentingMiddleware) Task(ctx context.Context, ownerID, taskID uint64) (tasksvc.Task, error) {
	defer mw.observe("task", time.Now())
	return mw.next.Task(ctx, ownerID, taskID)
}

func (mw instrumentingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	defer mw.observe("update_task", time.Now())
	return mw.next.UpdateTask(ctx, ownerID, taskID, p)
}

func (mw instrumentingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID uint64) error {
	defer mw.observe("delete_task", time.Now())
	return mw.next.DeleteTask(ctx, ownerID, taskID)
}

// NewCircuitBreaker trips after five consecutive store failures and probes
// the store again after timeout. Only tasksvc.ErrUnavailable counts as a
// failure; validation and not found errors are ordinary answers.
func NewCircuitBreaker(timeout time.Duration, logger log.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tasksvc",
		Timeout: timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		IsSuccessful: func(err error) bool {
			return !errors.Is(err, tasksvc.ErrUnavailable)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Log("breaker", name, "from", from, "to", to)
		},
	})
}

func CircuitBreakingMiddleware(cb *gobreaker.CircuitBreaker) Middleware {
	return func(next Service) Service {
		return circuitBreakingMiddleware{cb, next}
	}
}

type circuitBreakingMiddleware struct {
	cb   *gobreaker.CircuitBreaker
	next Service
}

func (mw circuitBreakingMiddleware) Tasks(ctx context.Context, ownerID uint64) ([]tasksvc.Task, error) {
	return execute(mw.cb, func() ([]tasksvc.Task, error) {
		return mw.next.Tasks(ctx, ownerID)
	})
}

func (mw circuitBreakingMiddleware) CreateTask(ctx context.Context, ownerID uint64, nt tasksvc.NewTask) (tasksvc.Task, error) {
	return execute(mw.cb, func() (tasksvc.Task, error) {
		return mw.next.CreateTask(ctx, ownerID, nt)
	})
}

func (mw circuitBreakingMiddleware) Task(ctx context.Context, ownerID, taskID uint64) (tasksvc.Task, error) {
	return execute(mw.cb, func() (tasksvc.Task, error) {
		return mw.next.Task(ctx, ownerID, taskID)
	})
}

func (mw circuitBreakingMiddleware) UpdateTask(ctx context.Context, ownerID, taskID uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	return execute(mw.cb, func() (tasksvc.Task, error) {
		return mw.next.UpdateTask(ctx, ownerID, taskID, p)
	})
}

func (mw circuitBreakingMiddleware) DeleteTask(ctx context.Context, ownerID, taskID uint64) error {
	_, err := execute(mw.cb, func() (struct{}, error) {
		return struct{}{}, mw.next.DeleteTask(ctx, ownerID, taskID)
	})
	return err
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	res, err := cb.Execute(func() (interface{}, error) {
		v, err := fn()
		return v, err
	})
	if err != nil {
		var zero T
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			err = fmt.Errorf("%w: %v", tasksvc.ErrUnavailable, err)
		}
		return zero, err
	}
	return res.(T), nil
}
