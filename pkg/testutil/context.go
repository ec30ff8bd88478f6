package testutil

import (
	"net/http"
	"time"

	"mindlink/pkg/requestcontext"
)

// WithRequestTime pins the request-scoped clock, as the request time middleware would.
func WithRequestTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

// WithActor marks the request as performed by an authenticated admin subject.
func WithActor(req *http.Request, actor string) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// WithBearer sets an Authorization header carrying the given token.
func WithBearer(req *http.Request, token string) *http.Request {
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}
