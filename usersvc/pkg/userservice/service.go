package userservice

import (
	"context"
	"errors"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/usersvc"
	"github.com/ichigozero/gtdlite/validation"
)

type Service interface {
	Register(ctx context.Context, r usersvc.Registration) (usersvc.User, error)
	Authenticate(ctx context.Context, c usersvc.Credentials) (usersvc.User, error)
}

func New(u usersvc.UserRepository, h Hasher, logger log.Logger) Service {
	var svc Service
	{
		svc = NewBasicService(u, h)
		svc = LoggingMiddleware(logger)(svc)
	}
	return svc
}

type basicService struct {
	users  usersvc.UserRepository
	hasher Hasher
	// dummy is compared against when the email is unknown so that both
	// login failure causes cost one hash comparison.
	dummy string
}

func NewBasicService(u usersvc.UserRepository, h Hasher) Service {
	dummy, _ := h.Hash("not-a-real-password")
	return basicService{users: u, hasher: h, dummy: dummy}
}

func (s basicService) Register(ctx context.Context, r usersvc.Registration) (usersvc.User, error) {
	if err := validation.Struct(r); err != nil {
		return usersvc.User{}, err
	}

	_, err := s.users.FindByEmail(ctx, r.Email)
	switch {
	case err == nil:
		return usersvc.User{}, usersvc.ErrEmailTaken
	case !errors.Is(err, usersvc.ErrUserNotFound):
		return usersvc.User{}, err
	}

	hash, err := s.hasher.Hash(r.Password)
	if err != nil {
		return usersvc.User{}, err
	}

	name := usersvc.DefaultName
	if r.Name != nil {
		name = *r.Name
	}

	return s.users.Create(ctx, usersvc.User{
		Email:        r.Email,
		PasswordHash: hash,
		Name:         name,
	})
}

func (s basicService) Authenticate(ctx context.Context, c usersvc.Credentials) (usersvc.User, error) {
	if err := validation.Struct(c); err != nil {
		return usersvc.User{}, err
	}

	user, err := s.users.FindByEmail(ctx, c.Email)
	if errors.Is(err, usersvc.ErrUserNotFound) {
		s.hasher.Verify(c.Password, s.dummy)
		return usersvc.User{}, usersvc.ErrInvalidCredentials
	}
	if err != nil {
		return usersvc.User{}, err
	}

	ok, err := s.hasher.Verify(c.Password, user.PasswordHash)
	if err != nil {
		return usersvc.User{}, err
	}
	if !ok {
		return usersvc.User{}, usersvc.ErrInvalidCredentials
	}

	return user, nil
}
