package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"text/tabwriter"
	"time"

	kitprometheus "github.com/go-kit/kit/metrics/prometheus"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/log"
	"github.com/hashicorp/consul/api"
	"github.com/oklog/run"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
	"github.com/twinj/uuid"
	"golang.org/x/time/rate"

	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/client"
	"github.com/ichigozero/gtdlite/config"
	taskgorm "github.com/ichigozero/gtdlite/tasksvc/db/gorm"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
	usergorm "github.com/ichigozero/gtdlite/usersvc/db/gorm"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userendpoint"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userservice"
)

func main() {
	var logger log.Logger
	{
		logger = log.NewLogfmtLogger(os.Stderr)
		logger = log.With(logger, "ts", log.DefaultTimestampUTC)
		logger = log.With(logger, "caller", log.DefaultCaller)
	}

	cfg, err := config.New()
	if err != nil {
		logger.Log("during", "config", "err", err)
		os.Exit(1)
	}

	fs := flag.NewFlagSet("apigateway", flag.ExitOnError)
	var (
		httpAddr    = fs.String("http.addr", cfg.HTTPAddr, "HTTP listen address")
		consulAddr  = fs.String("consul.addr", cfg.ConsulAddr, "Consul agent address; registration is skipped when empty")
		databaseURL = fs.String("database.url", cfg.DatabaseURL, "Postgres URL; a sqlite file is used when empty")
		sqlitePath  = fs.String("sqlite.path", cfg.SQLitePath, "sqlite file used without -database.url")
	)

	fs.Usage = usageFor(fs, os.Args[0]+" [flags]")
	fs.Parse(os.Args[1:])

	db, err := openDB(*databaseURL, *sqlitePath)
	if err != nil {
		logger.Log("during", "openDB", "err", err)
		os.Exit(1)
	}

	fieldKeys := []string{"method"}
	tokenizer := authservice.NewTokenizer(cfg.JWTSecret)

	var users userservice.Service
	{
		users = userservice.New(
			usergorm.NewUserRepository(db, cfg.StoreTimeout),
			userservice.NewHasher(userservice.DefaultCost),
			logger,
		)
		users = userservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "user_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
				Namespace: "api",
				Subsystem: "user_service",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests in seconds.",
			}, fieldKeys),
		)(users)
	}

	var auth authservice.Service
	{
		auth = authservice.New(userendpoint.New(users, logger), tokenizer, cfg.TokenTTL, logger)
		auth = authservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "auth_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
				Namespace: "api",
				Subsystem: "auth_service",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests in seconds.",
			}, fieldKeys),
		)(auth)
	}

	var tasks taskservice.Service
	{
		tasks = taskservice.NewBasicService(taskgorm.NewTaskRepository(db, cfg.StoreTimeout))
		tasks = taskservice.CircuitBreakingMiddleware(taskservice.NewCircuitBreaker(30*time.Second, logger))(tasks)
		tasks = taskservice.LoggingMiddleware(logger)(tasks)
		tasks = taskservice.InstrumentingMiddleware(
			kitprometheus.NewCounterFrom(stdprometheus.CounterOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_count",
				Help:      "Number of requests received.",
			}, fieldKeys),
			kitprometheus.NewHistogramFrom(stdprometheus.HistogramOpts{
				Namespace: "api",
				Subsystem: "task_service",
				Name:      "request_duration_seconds",
				Help:      "Duration of requests in seconds.",
			}, fieldKeys),
		)(tasks)
	}

	limiter := rate.NewLimiter(rate.Limit(cfg.AuthRate), cfg.AuthBurst)
	handler := newRouter(auth, tasks, tokenizer, limiter, logger)

	if *consulAddr != "" {
		registrar, err := newRegistrar(*consulAddr, *httpAddr, logger)
		if err != nil {
			logger.Log("during", "consul", "err", err)
			os.Exit(1)
		}
		registrar.Register()
		defer registrar.Deregister()
	}

	var g run.Group
	{
		httpListener, err := net.Listen("tcp", *httpAddr)
		if err != nil {
			logger.Log("transport", "HTTP", "during", "Listen", "err", err)
			return
		}
		server := &http.Server{Handler: handler, ReadHeaderTimeout: 10 * time.Second}
		g.Add(func() error {
			logger.Log("transport", "HTTP", "addr", *httpAddr)
			return server.Serve(httpListener)
		}, func(error) {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			server.Shutdown(ctx)
		})
	}
	{
		// This function just sits and waits for ctrl-C.
		cancelInterrupt := make(chan struct{})
		g.Add(func() error {
			c := make(chan os.Signal, 1)
			signal.Notify(c, syscall.SIGINT, syscall.SIGTERM)
			select {
			case sig := <-c:
				return fmt.Errorf("received signal %s", sig)
			case <-cancelInterrupt:
				return nil
			}
		}, func(error) {
			close(cancelInterrupt)
		})
	}
	logger.Log("exit", g.Run())
}

// newRegistrar announces this instance under client.ServiceName so that
// taskctl can discover it, with /health as the consul check.
func newRegistrar(consulAddr, httpAddr string, logger log.Logger) (*consulsd.Registrar, error) {
	consulConfig := api.DefaultConfig()
	consulConfig.Address = consulAddr
	consulClient, err := api.NewClient(consulConfig)
	if err != nil {
		return nil, err
	}

	host, port, err := net.SplitHostPort(httpAddr)
	if err != nil {
		return nil, err
	}
	if host == "" {
		host = "localhost"
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return nil, err
	}

	asr := &api.AgentServiceRegistration{
		ID:      uuid.NewV4().String(),
		Name:    client.ServiceName,
		Address: host,
		Port:    p,
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("http://%s/health", net.JoinHostPort(host, port)),
			Interval: "10s",
			Timeout:  "1s",
		},
	}

	return consulsd.NewRegistrar(consulsd.NewClient(consulClient), asr, logger), nil
}

func usageFor(fs *flag.FlagSet, short string) func() {
	return func() {
		fmt.Fprintf(os.Stderr, "USAGE\n")
		fmt.Fprintf(os.Stderr, "  %s\n", short)
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "FLAGS\n")
		w := tabwriter.NewWriter(os.Stderr, 0, 2, 2, ' ', 0)
		fs.VisitAll(func(f *flag.Flag) {
			fmt.Fprintf(w, "\t-%s %s\t%s\n", f.Name, f.DefValue, f.Usage)
		})
		w.Flush()
		fmt.Fprintf(os.Stderr, "\n")
	}
}
