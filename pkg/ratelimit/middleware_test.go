package ratelimit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func newTestRouter(checker Checker, category Category, keyFn KeyFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/protected", Middleware(checker, category, keyFn, zerolog.Nop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return r
}

func doRequest(r *gin.Engine) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("X-Forwarded-For", "203.0.113.9")
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, req)
	return resp
}

func TestMiddlewareSetsHeadersOnAllow(t *testing.T) {
	pols := Policies{CategoryRead: {Window: time.Minute, MaxRequests: 5}}
	l := New(pols, time.Hour, zerolog.Nop())
	t.Cleanup(l.Stop)
	r := newTestRouter(l, CategoryRead, nil)

	resp := doRequest(r)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "5", resp.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "4", resp.Header().Get("X-RateLimit-Remaining"))

	resetMs, err := strconv.ParseInt(resp.Header().Get("X-RateLimit-Reset"), 10, 64)
	require.NoError(t, err)
	require.Greater(t, resetMs, time.Now().UnixMilli())
	require.Empty(t, resp.Header().Get("Retry-After"))
}

func TestMiddlewareDeniesWithRetryAfter(t *testing.T) {
	pols := Policies{CategoryCreation: {Window: time.Minute, MaxRequests: 2}}
	l := New(pols, time.Hour, zerolog.Nop())
	t.Cleanup(l.Stop)
	r := newTestRouter(l, CategoryCreation, nil)

	doRequest(r)
	doRequest(r)
	resp := doRequest(r)

	require.Equal(t, http.StatusTooManyRequests, resp.Code)
	require.Equal(t, "0", resp.Header().Get("X-RateLimit-Remaining"))
	require.Contains(t, resp.Body.String(), "rate limit exceeded")

	retry, err := strconv.Atoi(resp.Header().Get("Retry-After"))
	require.NoError(t, err)
	require.GreaterOrEqual(t, retry, 0)
	require.LessOrEqual(t, retry, 60)
}

func TestMiddlewareKeysByUser(t *testing.T) {
	pols := Policies{CategoryApproval: {Window: time.Minute, MaxRequests: 1}}
	l := New(pols, time.Hour, zerolog.Nop())
	t.Cleanup(l.Stop)

	user := "u-1"
	r := newTestRouter(l, CategoryApproval, func(c *gin.Context) string { return user })

	require.Equal(t, http.StatusOK, doRequest(r).Code)
	require.Equal(t, http.StatusTooManyRequests, doRequest(r).Code)

	// A different user gets their own budget despite the shared IP.
	user = "u-2"
	require.Equal(t, http.StatusOK, doRequest(r).Code)
}

type failingChecker struct{}

func (failingChecker) Check(string, Category) (Result, error) {
	return Result{}, errors.New("store corrupted")
}

func (failingChecker) Lookup(category Category) (Policy, bool) {
	return Policy{Window: time.Minute, MaxRequests: 10}, true
}

func TestMiddlewareFailsOpenOnCheckerError(t *testing.T) {
	r := newTestRouter(failingChecker{}, CategoryRead, nil)

	resp := doRequest(r)
	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "10", resp.Header().Get("X-RateLimit-Limit"))
	require.Equal(t, "10", resp.Header().Get("X-RateLimit-Remaining"))
	require.Empty(t, resp.Header().Get("Retry-After"))
}
