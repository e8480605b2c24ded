package userservice

import (
	"context"
	"time"

	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/log"
	"github.com/ichigozero/gtdlite/usersvc"
)

type Middleware func(Service) Service

func LoggingMiddleware(logger log.Logger) Middleware {
	return func(next Service) Service {
		return loggingMiddleware{logger, next}
	}
}

type loggingMiddleware struct {
	logger log.Logger
	next   Service
}

func (mw loggingMiddleware) Register(ctx context.Context, r usersvc.Registration) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Register", "email", r.Email, "id", u.ID, "err", err)
	}()
	return mw.next.Register(ctx, r)
}

func (mw loggingMiddleware) Authenticate(ctx context.Context, c usersvc.Credentials) (u usersvc.User, err error) {
	defer func() {
		mw.logger.Log("method", "Authenticate", "email", c.Email, "id", u.ID, "err", err)
	}()
	return mw.next.Authenticate(ctx, c)
}

func InstrumentingMiddleware(counter metrics.Counter, latency metrics.Histogram) Middleware {
	return func(next Service) Service {
		return instrumentingMiddleware{counter, latency, next}
	}
}

type instrumentingMiddleware struct {
	requestCount   metrics.Counter
	requestLatency metrics.Histogram
	next           Service
}

func (mw instrumentingMiddleware) Register(ctx context.Context, r usersvc.Registration) (u usersvc.User, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "register").Add(1)
		mw.requestLatency.With("method", "register").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Register(ctx, r)
}

func (mw instrumentingMiddleware) Authenticate(ctx context.Context, c usersvc.Credentials) (u usersvc.User, err error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "authenticate").Add(1)
		mw.requestLatency.With("method", "authenticate").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Authenticate(ctx, c)
}
