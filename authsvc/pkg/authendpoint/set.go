package authendpoint

import (
	"context"
	"time"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/usersvc"
)

type Set struct {
	RegisterEndpoint endpoint.Endpoint
	LoginEndpoint    endpoint.Endpoint
}

func New(svc authservice.Service, logger log.Logger) Set {
	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = MakeRegisterEndpoint(svc)
		registerEndpoint = LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = MakeLoginEndpoint(svc)
		loginEndpoint = LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	return Set{
		RegisterEndpoint: registerEndpoint,
		LoginEndpoint:    loginEndpoint,
	}
}

func (s Set) Register(ctx context.Context, r usersvc.Registration) (string, error) {
	response, err := s.RegisterEndpoint(ctx, RegisterRequest(r))
	if err != nil {
		return "", err
	}

	resp := response.(TokenResponse)
	return resp.Token, resp.Err
}

func (s Set) Login(ctx context.Context, c usersvc.Credentials) (string, error) {
	response, err := s.LoginEndpoint(ctx, LoginRequest(c))
	if err != nil {
		return "", err
	}

	resp := response.(TokenResponse)
	return resp.Token, resp.Err
}

func MakeRegisterEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(RegisterRequest)
		t, err := s.Register(ctx, usersvc.Registration(req))

		return TokenResponse{Token: t, Err: err}, nil
	}
}

func MakeLoginEndpoint(s authservice.Service) endpoint.Endpoint {
	return func(ctx context.Context, request interface{}) (response interface{}, err error) {
		req := request.(LoginRequest)
		t, err := s.Login(ctx, usersvc.Credentials(req))

		return TokenResponse{Token: t, Err: err}, nil
	}
}

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

var _ endpoint.Failer = TokenResponse{}

type RegisterRequest usersvc.Registration

type LoginRequest usersvc.Credentials

// TokenResponse is returned by both register and login.
type TokenResponse struct {
	Token string `json:"token"`
	Err   error  `json:"-"`
}

func (r TokenResponse) Failed() error { return r.Err }
