package authservice

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

func (mw loggingMiddleware) Register(ctx context.Context, r usersvc.Registration) (token string, err error) {
	defer func() {
		mw.logger.Log("method", "Register", "email", r.Email, "err", err)
	}()
	return mw.next.Register(ctx, r)
}

func (mw loggingMiddleware) Login(ctx context.Context, c usersvc.Credentials) (token string, err error) {
	defer func() {
		mw.logger.Log("method", "Login", "email", c.Email, "err", err)
	}()
	return mw.next.Login(ctx, c)
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

func (mw instrumentingMiddleware) Register(ctx context.Context, r usersvc.Registration) (string, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "register").Add(1)
		mw.requestLatency.With("method", "register").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Register(ctx, r)
}

func (mw instrumentingMiddleware) Login(ctx context.Context, c usersvc.Credentials) (string, error) {
	defer func(begin time.Time) {
		mw.requestCount.With("method", "login").Add(1)
		mw.requestLatency.With("method", "login").Observe(time.Since(begin).Seconds())
	}(time.Now())

	return mw.next.Login(ctx, c)
}
