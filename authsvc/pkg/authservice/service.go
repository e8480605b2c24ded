package authservice

import (
	"context"
	"time"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/usersvc"
	"github.com/ichigozero/gtdlite/usersvc/pkg/userservice"
)

// Service turns account operations into bearer tokens.
type Service interface {
	Register(ctx context.Context, r usersvc.Registration) (string, error)
	Login(ctx context.Context, c usersvc.Credentials) (string, error)
}

func New(users userservice.Service, t Tokenizer, ttl time.Duration, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(users, t, ttl)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	users     userservice.Service
	tokenizer Tokenizer
	ttl       time.Duration
}

func NewBasicService(users userservice.Service, t Tokenizer, ttl time.Duration) Service {
	if ttl <= 0 {
		ttl = authsvc.DefaultTokenTTL
	}
	return &basicService{users: users, tokenizer: t, ttl: ttl}
}

func (s *basicService) Register(ctx context.Context, r usersvc.Registration) (string, error) {
	u, err := s.users.Register(ctx, r)
	if err != nil {
		return "", err
	}
	return s.issue(u)
}

func (s *basicService) Login(ctx context.Context, c usersvc.Credentials) (string, error) {
	u, err := s.users.Authenticate(ctx, c)
	if err != nil {
		return "", err
	}
	return s.issue(u)
}

func (s *basicService) issue(u usersvc.User) (string, error) {
	return s.tokenizer.Issue(authsvc.Claim{UserID: u.ID, Email: u.Email}, s.ttl)
}
