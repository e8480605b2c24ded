package taskservice

import (
	"context"
	"errors"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichigozero/gtdlite/internal/testutil"
	"github.com/ichigozero/gtdlite/tasksvc"
	taskgorm "github.com/ichigozero/gtdlite/tasksvc/db/gorm"
	"github.com/ichigozero/gtdlite/validation"
)

func strPtr(s string) *string { return &s }
func boolPtr(b bool) *bool    { return &b }

func newService(t *testing.T) Service {
	repo := taskgorm.NewTaskRepository(testutil.NewDB(t, &tasksvc.Task{}), 0)
	return New(repo, log.NewNopLogger())
}

func TestService_CreateTask(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	task, err := svc.CreateTask(ctx, 1, tasksvc.NewTask{Title: "buy milk"})
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, uint64(1), task.UserID)
	assert.Equal(t, "buy milk", task.Title)
	assert.False(t, task.Completed)
	assert.Nil(t, task.Description)

	task, err = svc.CreateTask(ctx, 1, tasksvc.NewTask{Title: "pay rent", Description: strPtr("by friday"), Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, task.Completed)
	require.NotNil(t, task.Description)
	assert.Equal(t, "by friday", *task.Description)
}

func TestService_CreateTask_Validation(t *testing.T) {
	_, err := newService(t).CreateTask(context.Background(), 1, tasksvc.NewTask{})

	var errs validation.Errors
	require.True(t, errors.As(err, &errs), "got %v", err)
	assert.Contains(t, errs, "title")
}

func TestService_RequiresOwner(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Tasks(ctx, 0)
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
	_, err = svc.CreateTask(ctx, 0, tasksvc.NewTask{Title: "x"})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
	_, err = svc.Task(ctx, 0, 1)
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
	_, err = svc.UpdateTask(ctx, 0, 1, tasksvc.TaskPatch{})
	assert.ErrorIs(t, err, tasksvc.ErrInvalidArgument)
	assert.ErrorIs(t, svc.DeleteTask(ctx, 0, 1), tasksvc.ErrInvalidArgument)
}

func TestService_ZeroTaskIDIsNotFound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	_, err := svc.Task(ctx, 1, 0)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	_, err = svc.UpdateTask(ctx, 1, 0, tasksvc.TaskPatch{})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, 1, 0), tasksvc.ErrTaskNotFound)
}

func TestService_OwnershipIsolation(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	const alice, bob = 1, 2
	task, err := svc.CreateTask(ctx, alice, tasksvc.NewTask{Title: "alice only"})
	require.NoError(t, err)

	tasks, err := svc.Tasks(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	_, err = svc.Task(ctx, bob, task.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	_, err = svc.UpdateTask(ctx, bob, task.ID, tasksvc.TaskPatch{Completed: boolPtr(true)})
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)
	assert.ErrorIs(t, svc.DeleteTask(ctx, bob, task.ID), tasksvc.ErrTaskNotFound)

	got, err := svc.Task(ctx, alice, task.ID)
	require.NoError(t, err)
	assert.False(t, got.Completed)
}

func TestService_UpdateTask(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	task, err := svc.CreateTask(ctx, 1, tasksvc.NewTask{Title: "buy milk", Description: strPtr("semi-skimmed")})
	require.NoError(t, err)

	updated, err := svc.UpdateTask(ctx, 1, task.ID, tasksvc.TaskPatch{Completed: boolPtr(true)})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "buy milk", updated.Title)
	assert.Equal(t, "semi-skimmed", *updated.Description)

	_, err = svc.UpdateTask(ctx, 1, task.ID, tasksvc.TaskPatch{Title: strPtr("")})
	var errs validation.Errors
	require.True(t, errors.As(err, &errs), "got %v", err)
	assert.Contains(t, errs, "title")

	got, err := svc.Task(ctx, 1, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "buy milk", got.Title)
}

func TestService_DeleteTask(t *testing.T) {
	ctx := context.Background()
	svc := newService(t)

	task, err := svc.CreateTask(ctx, 1, tasksvc.NewTask{Title: "buy milk"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteTask(ctx, 1, task.ID))
	assert.ErrorIs(t, svc.DeleteTask(ctx, 1, task.ID), tasksvc.ErrTaskNotFound)

	tasks, err := svc.Tasks(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
