package client

import (
	"io"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/sd"
	consulsd "github.com/go-kit/kit/sd/consul"
	"github.com/go-kit/kit/sd/lb"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskendpoint"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/tasktransport"
)

// ServiceName is the name the server registers itself under in consul.
const ServiceName = "gtdlite"

// Discovery balances requests over every passing instance of ServiceName.
type Discovery struct {
	Auth      authendpoint.Set
	Tasks     taskendpoint.Set
	instancer *consulsd.Instancer
}

// Stop ends the watch on consul.
func (d Discovery) Stop() {
	d.instancer.Stop()
}

func NewDiscovery(apiclient consulsd.Client, logger log.Logger, retryMax int, retryTimeout time.Duration) Discovery {
	var (
		tags        = []string{}
		passingOnly = true
		instancer   = consulsd.NewInstancer(apiclient, logger, ServiceName, tags, passingOnly)
	)

	balance := func(factory sd.Factory) endpoint.Endpoint {
		endpointer := sd.NewEndpointer(instancer, factory, logger)
		balancer := lb.NewRoundRobin(endpointer)
		return lb.Retry(retryMax, retryTimeout, balancer)
	}

	return Discovery{
		Auth: authendpoint.Set{
			RegisterEndpoint: balance(authFactory(func(s authendpoint.Set) endpoint.Endpoint { return s.RegisterEndpoint }, logger)),
			LoginEndpoint:    balance(authFactory(func(s authendpoint.Set) endpoint.Endpoint { return s.LoginEndpoint }, logger)),
		},
		Tasks: taskendpoint.Set{
			TasksEndpoint:      balance(taskFactory(func(s taskendpoint.Set) endpoint.Endpoint { return s.TasksEndpoint }, logger)),
			CreateTaskEndpoint: balance(taskFactory(func(s taskendpoint.Set) endpoint.Endpoint { return s.CreateTaskEndpoint }, logger)),
			TaskEndpoint:       balance(taskFactory(func(s taskendpoint.Set) endpoint.Endpoint { return s.TaskEndpoint }, logger)),
			UpdateTaskEndpoint: balance(taskFactory(func(s taskendpoint.Set) endpoint.Endpoint { return s.UpdateTaskEndpoint }, logger)),
			DeleteTaskEndpoint: balance(taskFactory(func(s taskendpoint.Set) endpoint.Endpoint { return s.DeleteTaskEndpoint }, logger)),
		},
		instancer: instancer,
	}
}

func authFactory(pick func(authendpoint.Set) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := authtransport.NewHTTPClient(instance, logger)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}

func taskFactory(pick func(taskendpoint.Set) endpoint.Endpoint, logger log.Logger) sd.Factory {
	return func(instance string) (endpoint.Endpoint, io.Closer, error) {
		set, err := tasktransport.NewHTTPClient(instance, logger)
		if err != nil {
			return nil, nil, err
		}
		return pick(set), nil, nil
	}
}
