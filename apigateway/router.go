package main

import (
	"encoding/json"
	"net/http"

	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	libgorm "gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ichigozero/gtdlite/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/gtdlite/usersvc"
)

// newRouter mounts the public HTTP surface. /tasks is always reached
// through the bearer token gate built from v.
func newRouter(
	auth authservice.Service,
	tasks taskservice.Service,
	v authservice.Verifier,
	limiter ratelimit.Allower,
	logger log.Logger,
) http.Handler {
	r := mux.NewRouter()

	r.Methods("GET").Path("/health").HandlerFunc(health)
	r.Methods("GET").Path("/metrics").Handler(promhttp.Handler())

	{
		endpoints := authendpoint.New(auth, logger)
		r.PathPrefix("/auth").Handler(authtransport.NewHTTPHandler(endpoints, limiter, logger))
	}
	{
		endpoints := taskendpoint.New(tasks, logger)
		r.PathPrefix("/tasks").Handler(tasktransport.NewHTTPHandler(endpoints, v, logger))
	}

	return r
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// openDB connects to postgres when databaseURL is set and falls back to a
// sqlite file otherwise. Both stores are migrated before use.
func openDB(databaseURL, sqlitePath string) (*libgorm.DB, error) {
	dialector := sqlite.Open(sqlitePath)
	if databaseURL != "" {
		dialector = postgres.Open(databaseURL)
	}

	db, err := libgorm.Open(dialector, &libgorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}

	if err := db.AutoMigrate(&usersvc.User{}, &tasksvc.Task{}); err != nil {
		return nil, err
	}
	return db, nil
}
