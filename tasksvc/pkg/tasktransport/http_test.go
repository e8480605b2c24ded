package tasktransport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	kitjwt "github.com/go-kit/kit/auth/jwt"
	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/internal/testutil"
	"github.com/ichigozero/gtdlite/tasksvc"
	taskgorm "github.com/ichigozero/gtdlite/tasksvc/db/gorm"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdlite/validation"
)

type fixture struct {
	handler http.Handler
	alice   string
	bob     string
}

func newFixture(t *testing.T) fixture {
	logger := log.NewNopLogger()
	repo := taskgorm.NewTaskRepository(testutil.NewDB(t, &tasksvc.Task{}), 0)
	svc := taskservice.New(repo, logger)
	tok := authservice.NewTokenizer("secret")

	alice, err := tok.Issue(authsvc.Claim{UserID: 1, Email: "alice@x.com"}, time.Hour)
	require.NoError(t, err)
	bob, err := tok.Issue(authsvc.Claim{UserID: 2, Email: "bob@x.com"}, time.Hour)
	require.NoError(t, err)

	return fixture{
		handler: NewHTTPHandler(taskendpoint.New(svc, logger), tok, logger),
		alice:   alice,
		bob:     bob,
	}
}

func (f fixture) do(method, path, token, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeTask(t *testing.T, rec *httptest.ResponseRecorder) tasksvc.Task {
	t.Helper()
	var task tasksvc.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&task))
	return task
}

func TestHTTPHandler_RequiresToken(t *testing.T) {
	f := newFixture(t)

	routes := []struct{ method, path string }{
		{"GET", "/tasks"},
		{"POST", "/tasks"},
		{"GET", "/tasks/1"},
		{"PUT", "/tasks/1"},
		{"DELETE", "/tasks/1"},
	}
	for _, r := range routes {
		assert.Equal(t, http.StatusUnauthorized, f.do(r.method, r.path, "", `{"title":"x"}`).Code, r.method+" "+r.path)
		assert.Equal(t, http.StatusUnauthorized, f.do(r.method, r.path, "garbage", `{"title":"x"}`).Code, r.method+" "+r.path)
	}
}

func TestHTTPHandler_CRUD(t *testing.T) {
	f := newFixture(t)

	rec := f.do("GET", "/tasks", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = f.do("POST", "/tasks", f.alice, `{"title":"buy milk","userId":2}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decodeTask(t, rec)
	assert.Equal(t, uint64(1), created.UserID)
	assert.False(t, created.Completed)

	var raw map[string]interface{}
	rec = f.do("GET", "/tasks/"+itoa(created.ID), f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, k := range []string{"id", "userId", "title", "description", "completed", "createdAt", "updatedAt"} {
		assert.Contains(t, raw, k)
	}
	assert.Nil(t, raw["description"])

	rec = f.do("PUT", "/tasks/"+itoa(created.ID), f.alice, `{"completed":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	updated := decodeTask(t, rec)
	assert.True(t, updated.Completed)
	assert.Equal(t, "buy milk", updated.Title)

	rec = f.do("GET", "/tasks", f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list []tasksvc.Task
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.True(t, list[0].Completed)

	rec = f.do("DELETE", "/tasks/"+itoa(created.ID), f.alice, "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do("GET", "/tasks/"+itoa(created.ID), f.alice, "").Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/tasks/"+itoa(created.ID), f.alice, "").Code)
}

func TestHTTPHandler_OwnershipIsolation(t *testing.T) {
	f := newFixture(t)

	rec := f.do("POST", "/tasks", f.alice, `{"title":"alice only"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(decodeTask(t, rec).ID)

	rec = f.do("GET", "/tasks", f.bob, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	foreign := f.do("GET", "/tasks/"+id, f.bob, "")
	missing := f.do("GET", "/tasks/999", f.bob, "")
	assert.Equal(t, http.StatusNotFound, foreign.Code)
	assert.Equal(t, missing.Body.String(), foreign.Body.String())

	assert.Equal(t, http.StatusNotFound, f.do("PUT", "/tasks/"+id, f.bob, `{"title":"mine now"}`).Code)
	assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/tasks/"+id, f.bob, "").Code)

	rec = f.do("GET", "/tasks/"+id, f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice only", decodeTask(t, rec).Title)
}

func TestHTTPHandler_Validation(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name, method, path, body string
		field                    string
	}{
		{"missing title", "POST", "/tasks", `{"description":"x"}`, "title"},
		{"empty title", "POST", "/tasks", `{"title":""}`, "title"},
		{"malformed", "POST", "/tasks", `{"title":`, "body"},
		{"wrong type", "POST", "/tasks", `{"title":"x","completed":"yes"}`, "completed"},
		{"null description", "POST", "/tasks", `{"title":"x","description":null}`, "description"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(tt.method, tt.path, f.alice, tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var body errorWrapper
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Contains(t, body.Fields, tt.field)
		})
	}

	rec := f.do("POST", "/tasks", f.alice, `{"title":"x"}`)
	require.Equal(t, http.StatusCreated, rec.Code)
	id := itoa(decodeTask(t, rec).ID)

	rec = f.do("PUT", "/tasks/"+id, f.alice, `{"title":""}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do("PUT", "/tasks/"+id, f.alice, `{"description":"keep"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do("PUT", "/tasks/"+id, f.alice, `{"description":null}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body errorWrapper
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, map[string]string{"description": "must not be null"}, body.Fields)

	rec = f.do("GET", "/tasks/"+id, f.alice, "")
	require.Equal(t, http.StatusOK, rec.Code)
	task := decodeTask(t, rec)
	require.NotNil(t, task.Description)
	assert.Equal(t, "keep", *task.Description)
}

func TestHTTPHandler_BadIDsAreNotFound(t *testing.T) {
	f := newFixture(t)

	for _, id := range []string{"abc", "0", "-1", "1.5", "99999999999999999999999"} {
		assert.Equal(t, http.StatusNotFound, f.do("GET", "/tasks/"+id, f.alice, "").Code, id)
		assert.Equal(t, http.StatusNotFound, f.do("DELETE", "/tasks/"+id, f.alice, "").Code, id)
	}
}

func TestErr2code(t *testing.T) {
	tests := []struct {
		err  error
		code int
	}{
		{validation.Errors{"title": "is required"}, http.StatusBadRequest},
		{tasksvc.ErrInvalidArgument, http.StatusBadRequest},
		{authsvc.ErrClaimsMissing, http.StatusUnauthorized},
		{tasksvc.ErrTaskNotFound, http.StatusNotFound},
		{errors.Join(tasksvc.ErrUnavailable, errors.New("timeout")), http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.code, err2code(tt.err), tt.err.Error())
	}
}

func TestHTTPClient(t *testing.T) {
	f := newFixture(t)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	client, err := NewHTTPClient(srv.URL, log.NewNopLogger())
	require.NoError(t, err)

	alice := context.WithValue(context.Background(), kitjwt.JWTContextKey, f.alice)
	bob := context.WithValue(context.Background(), kitjwt.JWTContextKey, f.bob)

	tasks, err := client.Tasks(alice, 0)
	require.NoError(t, err)
	assert.Empty(t, tasks)

	desc := "2 litres"
	created, err := client.CreateTask(alice, 0, tasksvc.NewTask{Title: "buy milk", Description: &desc})
	require.NoError(t, err)
	assert.Equal(t, uint64(1), created.UserID)

	_, err = client.CreateTask(alice, 0, tasksvc.NewTask{})
	var fields validation.Errors
	require.True(t, errors.As(err, &fields), "got %v", err)

	got, err := client.Task(alice, 0, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "2 litres", *got.Description)

	_, err = client.Task(bob, 0, created.ID)
	assert.ErrorIs(t, err, tasksvc.ErrTaskNotFound)

	done := true
	updated, err := client.UpdateTask(alice, 0, created.ID, tasksvc.TaskPatch{Completed: &done})
	require.NoError(t, err)
	assert.True(t, updated.Completed)
	assert.Equal(t, "buy milk", updated.Title)

	require.NoError(t, client.DeleteTask(alice, 0, created.ID))
	assert.ErrorIs(t, client.DeleteTask(alice, 0, created.ID), tasksvc.ErrTaskNotFound)

	_, err = client.Tasks(context.Background(), 0)
	assert.ErrorIs(t, err, authsvc.ErrTokenInvalid)
}

func itoa(id uint64) string {
	b, _ := json.Marshal(id)
	return string(b)
}
