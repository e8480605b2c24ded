// Package client talks to a gtdlite server on behalf of the user signed in
// to a session.
package client

import (
	"context"
	"errors"

	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authservice"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authtransport"
	"github.com/ichigozero/gtdlite/session"
	"github.com/ichigozero/gtdlite/tasksvc"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/taskservice"
	"github.com/ichigozero/gtdlite/tasksvc/pkg/tasktransport"
	"github.com/ichigozero/gtdlite/usersvc"
)

type Client struct {
	auth    authservice.Service
	tasks   taskservice.Service
	session *session.Session
}

func New(auth authservice.Service, tasks taskservice.Service, s *session.Session) *Client {
	return &Client{auth: auth, tasks: tasks, session: s}
}

// NewHTTP returns a client for the server at instance.
func NewHTTP(instance string, s *session.Session, logger log.Logger) (*Client, error) {
	auth, err := authtransport.NewHTTPClient(instance, logger)
	if err != nil {
		return nil, err
	}
	tasks, err := tasktransport.NewHTTPClient(instance, logger)
	if err != nil {
		return nil, err
	}
	return New(auth, tasks, s), nil
}

// Register creates an account and signs the session in to it.
func (c *Client) Register(ctx context.Context, r usersvc.Registration) (session.Token, error) {
	raw, err := c.auth.Register(ctx, r)
	if err != nil {
		return session.Token{}, err
	}
	return c.session.Login(ctx, raw)
}

func (c *Client) Login(ctx context.Context, creds usersvc.Credentials) (session.Token, error) {
	raw, err := c.auth.Login(ctx, creds)
	if err != nil {
		return session.Token{}, err
	}
	return c.session.Login(ctx, raw)
}

func (c *Client) Logout(ctx context.Context) error {
	return c.session.Logout(ctx)
}

// Whoami returns the claim of the signed in user.
func (c *Client) Whoami() (authsvc.Claim, error) {
	t, ok := c.session.Current()
	if !ok {
		return authsvc.Claim{}, session.ErrNotLoggedIn
	}
	return t.Claim, nil
}

func (c *Client) Tasks(ctx context.Context) ([]tasksvc.Task, error) {
	ctx, owner, err := c.authed(ctx)
	if err != nil {
		return nil, err
	}
	tasks, err := c.tasks.Tasks(ctx, owner)
	return tasks, c.check(ctx, err)
}

func (c *Client) CreateTask(ctx context.Context, t tasksvc.NewTask) (tasksvc.Task, error) {
	ctx, owner, err := c.authed(ctx)
	if err != nil {
		return tasksvc.Task{}, err
	}
	task, err := c.tasks.CreateTask(ctx, owner, t)
	return task, c.check(ctx, err)
}

func (c *Client) Task(ctx context.Context, id uint64) (tasksvc.Task, error) {
	ctx, owner, err := c.authed(ctx)
	if err != nil {
		return tasksvc.Task{}, err
	}
	task, err := c.tasks.Task(ctx, owner, id)
	return task, c.check(ctx, err)
}

func (c *Client) UpdateTask(ctx context.Context, id uint64, p tasksvc.TaskPatch) (tasksvc.Task, error) {
	ctx, owner, err := c.authed(ctx)
	if err != nil {
		return tasksvc.Task{}, err
	}
	task, err := c.tasks.UpdateTask(ctx, owner, id, p)
	return task, c.check(ctx, err)
}

func (c *Client) DeleteTask(ctx context.Context, id uint64) error {
	ctx, owner, err := c.authed(ctx)
	if err != nil {
		return err
	}
	return c.check(ctx, c.tasks.DeleteTask(ctx, owner, id))
}

func (c *Client) authed(ctx context.Context) (context.Context, uint64, error) {
	t, ok := c.session.Current()
	if !ok {
		return ctx, 0, session.ErrNotLoggedIn
	}
	ctx, err := c.session.Context(ctx)
	return ctx, t.Claim.UserID, err
}

// check signs the session out when the server no longer accepts its token.
func (c *Client) check(ctx context.Context, err error) error {
	if errors.Is(err, authsvc.ErrTokenInvalid) {
		if lerr := c.session.Logout(ctx); lerr != nil {
			return errors.Join(err, lerr)
		}
	}
	return err
}
