package taskendpoint

import (
	"context"
	"testing"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/tasksvc"
)

// ownerRecorder remembers the owner every call was made for.
type ownerRecorder struct {
	owners []uint64
}

func (s *ownerRecorder) Tasks(_ context.Context, ownerID uint64) ([]tasksvc.Task, error) {
	s.owners = append(s.owners, ownerID)
	return nil, nil
}

func (s *ownerRecorder) CreateTask(_ context.Context, ownerID uint64, t tasksvc.NewTask) (tasksvc.Task, error) {
	s.owners = append(s.owners, ownerID)
	return tasksvc.Task{ID: 1, UserID: ownerID, Title: t.Title}, nil
}

func (s *ownerRecorder) Task(_ context.Context, ownerID, taskID uint64) (tasksvc.Task, error) {
	s.owners = append(s.owners, ownerID)
	return tasksvc.Task{ID: taskID, UserID: ownerID}, nil
}

func (s *ownerRecorder) UpdateTask(_ context.Context, ownerID, taskID uint64, _ tasksvc.TaskPatch) (tasksvc.Task, error) {
	s.owners = append(s.owners, ownerID)
	return tasksvc.Task{ID: taskID, UserID: ownerID}, nil
}

func (s *ownerRecorder) DeleteTask(_ context.Context, ownerID, _ uint64) error {
	s.owners = append(s.owners, ownerID)
	return nil
}

func TestSet_OwnerComesFromClaim(t *testing.T) {
	svc := &ownerRecorder{}
	set := New(svc, log.NewNopLogger())
	ctx := authsvc.WithClaim(context.Background(), authsvc.Claim{UserID: 42, Email: "a@x.com"})

	// The ownerID argument of the Set methods is ignored on purpose.
	_, err := set.Tasks(ctx, 7)
	require.NoError(t, err)
	task, err := set.CreateTask(ctx, 7, tasksvc.NewTask{Title: "x"})
	require.NoError(t, err)
	assert.Equal(t, uint64(42), task.UserID)
	_, err = set.Task(ctx, 7, 1)
	require.NoError(t, err)
	_, err = set.UpdateTask(ctx, 7, 1, tasksvc.TaskPatch{})
	require.NoError(t, err)
	require.NoError(t, set.DeleteTask(ctx, 7, 1))

	assert.Equal(t, []uint64{42, 42, 42, 42, 42}, svc.owners)
}

func TestSet_MissingClaim(t *testing.T) {
	svc := &ownerRecorder{}
	set := New(svc, log.NewNopLogger())
	ctx := context.Background()

	_, err := set.Tasks(ctx, 1)
	assert.ErrorIs(t, err, authsvc.ErrClaimsMissing)
	_, err = set.CreateTask(ctx, 1, tasksvc.NewTask{Title: "x"})
	assert.ErrorIs(t, err, authsvc.ErrClaimsMissing)
	_, err = set.Task(ctx, 1, 1)
	assert.ErrorIs(t, err, authsvc.ErrClaimsMissing)
	_, err = set.UpdateTask(ctx, 1, 1, tasksvc.TaskPatch{})
	assert.ErrorIs(t, err, authsvc.ErrClaimsMissing)
	assert.ErrorIs(t, set.DeleteTask(ctx, 1, 1), authsvc.ErrClaimsMissing)

	assert.Empty(t, svc.owners)
}
