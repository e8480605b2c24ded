package userendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/usersvc"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userservice"
)

type Set struct {
	RegisterEndpoint     endpoint.Endpoint
	AuthenticateEndpoint endpoint.Endpoint
}

func New(svc userservice.Service, logger log.Logger) Set {
	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = MakeRegisterEndpoint(svc)
		registerEndpoint = LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}
	var authenticateEndpoint endpoint.Endpoint
	{
		authenticateEndpoint = MakeAuthenticateEndpoint(svc)
		authenticateEndpoint = LoggingMiddleware(log.With(logger, "method", "Authenticate"))(authenticateEndpoint)
	}
	return Set{
		RegisterEndpoint:     registerEndpoint,
		AuthenticateEndpoint: authenticateEndpoint,
	}
}

func (s Set) Register(ctx context.Context, r usersvc.Registration) (usersvc.User, error) {
	resp, err := s.RegisterEndpoint(ctx, RegisterRequest{Registration: r})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(RegisterResponse)
	return response.User, response.Err
}

func (s Set) Authenticate(ctx context.Context, c usersvc.Credentials) (usersvc.User, error) {
	resp, err := s.AuthenticateEndpoint(ctx, AuthenticateRequest{Credentials: c})
	if err != nil {
		return usersvc.User{}, err
	}
	response := resp.(AuthenticateResponse)
	return response.User, response.Err
}

func MakeRegisterEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(RegisterRequest)
		u, err := s.Register(ctx, req.Registration)
		return RegisterResponse{User: u, Err: err}, nil
	}
}

func MakeAuthenticateEndpoint(s userservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(AuthenticateRequest)
		u, err := s.Authenticate(ctx, req.Credentials)
		return AuthenticateResponse{User: u, Err: err}, nil
	}
}

// LoggingMiddleware logs failures that happen below the service, such as a
// transport that could not deliver the request.
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
	_ endpoint.Failer = RegisterResponse{}
	_ endpoint.Failer = AuthenticateResponse{}
)

type RegisterRequest struct {
	Registration usersvc.Registration
}

type RegisterResponse struct {
	User usersvc.User `json:"user"`
	Err  error        `json:"-"`
}

func (r RegisterResponse) Failed() error { return r.Err }

type AuthenticateRequest struct {
	Credentials usersvc.Credentials
}

type AuthenticateResponse struct {
	User usersvc.User `json:"user"`
	Err  error        `json:"-"`
}

func (r AuthenticateResponse) Failed() error { return r.Err }
