package authtransport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-kit/kit/endpoint"
	"github.com/go-kit/kit/ratelimit"
	"github.com/go-kit/kit/transport"
	httptransport "github.com/go-kit/kit/transport/http"
	"github.com/go-kit/log"
	"github.com/gorilla/mux"
	"github.com/ichigozero/gtdlite/authsvc"
	"github.com/ichigozero/gtdlite/authsvc/pkg/authendpoint"
	"github.com/ichigozero/gtdlite/usersvc"
	"github.com/ichigozero/gtdlite/validation"
)

// NewHTTPHandler serves /auth/register and /auth/login. Both routes share
// limiter, which rejects excess requests with 429.
func NewHTTPHandler(endpoints authendpoint.Set, limiter ratelimit.Allower, logger log.Logger) http.Handler {
	options := []httptransport.ServerOption{
		httptransport.ServerErrorEncoder(errorEncoder),
		httptransport.ServerErrorHandler(transport.NewLogErrorHandler(logger)),
	}

	limit := ratelimit.NewErroringLimiter(limiter)

	registerHandler := httptransport.NewServer(
		limit(endpoints.RegisterEndpoint),
		decodeHTTPRegisterRequest,
		encodeHTTPTokenResponse(http.StatusCreated),
		options...,
	)

	loginHandler := httptransport.NewServer(
		limit(endpoints.LoginEndpoint),
		decodeHTTPLoginRequest,
		encodeHTTPTokenResponse(http.StatusOK),
		options...,
	)

	r := mux.NewRouter()

	r.Methods("POST").Path("/auth/register").Handler(registerHandler)
	r.Methods("POST").Path("/auth/login").Handler(loginHandler)

	return r
}

// NewHTTPClient returns endpoints backed by a remote instance. The Set
// satisfies authservice.Service.
func NewHTTPClient(instance string, logger log.Logger) (authendpoint.Set, error) {
	// Quickly sanitize the instance string.
	if !strings.HasPrefix(instance, "http") {
		instance = "http://" + instance
	}
	u, err := url.Parse(instance)
	if err != nil {
		return authendpoint.Set{}, err
	}

	var options []httptransport.ClientOption

	var registerEndpoint endpoint.Endpoint
	{
		registerEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/auth/register"),
			encodeHTTPGenericRequest,
			decodeHTTPTokenResponse,
			options...,
		).Endpoint()
		registerEndpoint = authendpoint.LoggingMiddleware(log.With(logger, "method", "Register"))(registerEndpoint)
	}

	var loginEndpoint endpoint.Endpoint
	{
		loginEndpoint = httptransport.NewClient(
			"POST",
			copyURL(u, "/auth/login"),
			encodeHTTPGenericRequest,
			decodeHTTPTokenResponse,
			options...,
		).Endpoint()
		loginEndpoint = authendpoint.LoggingMiddleware(log.With(logger, "method", "Login"))(loginEndpoint)
	}

	return authendpoint.Set{
		RegisterEndpoint: registerEndpoint,
		LoginEndpoint:    loginEndpoint,
	}, nil
}

func copyURL(base *url.URL, path string) *url.URL {
	next := *base
	next.Path = strings.TrimSuffix(base.Path, "/") + path
	return &next
}

func errorEncoder(_ context.Context, err error, w http.ResponseWriter) {
	code := err2code(err)
	body := errorWrapper{Error: err.Error()}

	var fields validation.Errors
	switch {
	case errors.As(err, &fields):
		body = errorWrapper{Error: "validation failed", Fields: fields}
	case code == http.StatusServiceUnavailable:
		body.Error = "service unavailable"
	case code == http.StatusInternalServerError:
		body.Error = "internal server error"
	case code == http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
		if errors.Is(err, authsvc.ErrTokenInvalid) {
			// Malformed, forged and expired tokens look the same from outside.
			body.Error = authsvc.ErrTokenInvalid.Error()
		}
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

func err2code(err error) int {
	var fields validation.Errors
	switch {
	case errors.As(err, &fields),
		errors.Is(err, usersvc.ErrInvalidArgument),
		errors.Is(err, authsvc.ErrInvalidArgument):
		return http.StatusBadRequest
	case errors.Is(err, usersvc.ErrInvalidCredentials),
		errors.Is(err, authsvc.ErrTokenMissing),
		errors.Is(err, authsvc.ErrTokenInvalid),
		errors.Is(err, authsvc.ErrClaimsMissing):
		return http.StatusUnauthorized
	case errors.Is(err, usersvc.ErrEmailTaken):
		return http.StatusConflict
	case errors.Is(err, ratelimit.ErrLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, usersvc.ErrUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

type errorWrapper struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// errorFromResponse turns a non-2xx response back into the error the server
// started from, so that callers can keep using errors.Is.
func errorFromResponse(r *http.Response) error {
	var w errorWrapper
	_ = json.NewDecoder(r.Body).Decode(&w)

	switch r.StatusCode {
	case http.StatusBadRequest:
		if len(w.Fields) > 0 {
			return validation.Errors(w.Fields)
		}
		return usersvc.ErrInvalidArgument
	case http.StatusUnauthorized:
		if w.Error == usersvc.ErrInvalidCredentials.Error() {
			return usersvc.ErrInvalidCredentials
		}
		return authsvc.ErrTokenInvalid
	case http.StatusConflict:
		return usersvc.ErrEmailTaken
	case http.StatusTooManyRequests:
		return ratelimit.ErrLimited
	case http.StatusServiceUnavailable:
		return usersvc.ErrUnavailable
	}
	if w.Error != "" {
		return errors.New(w.Error)
	}
	return errors.New(r.Status)
}

func decodeHTTPRegisterRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.RegisterRequest
	err := validation.DecodeJSON(r.Body, &req)
	return req, err
}

func decodeHTTPLoginRequest(_ context.Context, r *http.Request) (interface{}, error) {
	var req authendpoint.LoginRequest
	err := validation.DecodeJSON(r.Body, &req)
	return req, err
}

func decodeHTTPTokenResponse(_ context.Context, r *http.Response) (interface{}, error) {
	if r.StatusCode != http.StatusOK && r.StatusCode != http.StatusCreated {
		return authendpoint.TokenResponse{Err: errorFromResponse(r)}, nil
	}
	var resp authendpoint.TokenResponse
	err := json.NewDecoder(r.Body).Decode(&resp)
	return resp, err
}

// encodeHTTPGenericRequest is a transport/http.EncodeRequestFunc that
// JSON-encodes any request to the request body. Primarily useful in a client.
func encodeHTTPGenericRequest(_ context.Context, r *http.Request, request interface{}) error {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(request); err != nil {
		return err
	}
	r.Header.Set("Content-Type", "application/json; charset=utf-8")
	r.Body = io.NopCloser(&buf)
	return nil
}

func encodeHTTPTokenResponse(code int) httptransport.EncodeResponseFunc {
	return func(ctx context.Context, w http.ResponseWriter, response interface{}) error {
		if f, ok := response.(endpoint.Failer); ok && f.Failed() != nil {
			errorEncoder(ctx, f.Failed(), w)
			return nil
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(code)
		return json.NewEncoder(w).Encode(response)
	}
}
