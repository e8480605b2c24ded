package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-kit/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/time/rate"

	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/internal/testutil"
	"github.com/ichigozero/gtdlite/tasksvc"
	taskgorm "github.com/ichigozero/gtdlite/tasksvc/db/gorm"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdlite/usersvc"
	usergorm "github.com/ichigozero/gtdlite/usersvc/db/gorm"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userendpoint"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userservice"
)

func newTestRouter(t *testing.T) http.Handler {
	logger := log.NewNopLogger()
	db := testutil.NewDB(t, &usersvc.User{}, &tasksvc.Task{})
	tok := authservice.NewTokenizer("secret")

	users := userservice.New(usergorm.NewUserRepository(db, time.Second), userservice.NewHasher(bcrypt.MinCost), logger)
	auth := authservice.New(userendpoint.New(users, logger), tok, time.Hour, logger)

	var tasks taskservice.Service
	{
		tasks = taskservice.NewBasicService(taskgorm.NewTaskRepository(db, time.Second))
		tasks = taskservice.CircuitBreakingMiddleware(taskservice.NewCircuitBreaker(time.Second, logger))(tasks)
		tasks = taskservice.LoggingMiddleware(logger)(tasks)
	}

	return newRouter(auth, tasks, tok, rate.NewLimiter(rate.Inf, 1), logger)
}

func do(t *testing.T, h http.Handler, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v), rec.Body.String())
}

func TestRouter_Health(t *testing.T) {
	rec := do(t, newTestRouter(t), "GET", "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestRouter_Metrics(t *testing.T) {
	rec := do(t, newTestRouter(t), "GET", "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_EndToEnd(t *testing.T) {
	h := newTestRouter(t)

	rec := do(t, h, "POST", "/auth/register", "", map[string]string{"email": "a@x.com", "password": "secret1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var registered struct{ Token string }
	decode(t, rec, &registered)
	require.NotEmpty(t, registered.Token)
	t1 := registered.Token

	rec = do(t, h, "POST", "/tasks", t1, map[string]string{"title": "buy milk"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created map[string]interface{}
	decode(t, rec, &created)
	assert.Equal(t, 1.0, created["id"])
	assert.Equal(t, "buy milk", created["title"])
	assert.Equal(t, false, created["completed"])
	assert.Nil(t, created["description"])

	rec = do(t, h, "GET", "/tasks", t1, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]interface{}
	decode(t, rec, &list)
	require.Len(t, list, 1)
	assert.Equal(t, 1.0, list[0]["id"])
	assert.Equal(t, "buy milk", list[0]["title"])
	assert.Equal(t, false, list[0]["completed"])

	rec = do(t, h, "POST", "/auth/login", "", map[string]string{"email": "b@x.com", "password": "secret1"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(t, h, "PUT", "/tasks/1", t1, map[string]bool{"completed": true})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated map[string]interface{}
	decode(t, rec, &updated)
	assert.Equal(t, true, updated["completed"])
	assert.Equal(t, "buy milk", updated["title"])

	rec = do(t, h, "DELETE", "/tasks/1", t1, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Body.String())

	rec = do(t, h, "GET", "/tasks/1", t1, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRouter_TasksRequireToken(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/tasks", "/tasks/1"} {
		rec := do(t, h, "GET", path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, path)
	}
}

func TestOpenDB_SQLite(t *testing.T) {
	db, err := openDB("", filepath.Join(t.TempDir(), "gorm.db"))
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	assert.True(t, db.Migrator().HasTable(&usersvc.User{}))
	assert.True(t, db.Migrator().HasTable(&tasksvc.Task{}))
}
