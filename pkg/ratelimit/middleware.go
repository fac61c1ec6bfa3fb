package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

const (
	headerLimit      = "X-RateLimit-Limit"
	headerRemaining  = "X-RateLimit-Remaining"
	headerReset      = "X-RateLimit-Reset"
	headerRetryAfter = "Retry-After"
)

// Checker is the admission decision the middleware enforces. *Limiter
// satisfies it; tests substitute failing implementations.
type Checker interface {
	Check(identifier string, category Category) (Result, error)
	Lookup(category Category) (Policy, bool)
}

// KeyFunc extracts the authenticated user id for a request, or "" when the
// caller is anonymous.
type KeyFunc func(c *gin.Context) string

// Middleware enforces the category's policy on every request passing
// through it. Limit headers are set on allowed and denied responses alike;
// denials abort with 429. If the checker itself fails the request is let
// through with full quota so a broken limiter cannot take down the
// endpoints it protects.
func Middleware(checker Checker, category Category, keyFn KeyFunc, logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var userID string
		if keyFn != nil {
			userID = keyFn(c)
		}
		identifier := Identify(c.Request, userID)

		res, err := checker.Check(identifier, category)
		if err != nil {
			logger.Warn().Err(err).
				Str("category", string(category)).
				Str("identifier", identifier).
				Msg("rate limit check failed, allowing request")
			res = failOpenResult(checker, category)
			setLimitHeaders(c, res)
			c.Next()
			return
		}

		setLimitHeaders(c, res)
		if !res.Allowed {
			retry := int64(math.Ceil(time.Until(res.ResetAt).Seconds()))
			if retry < 0 {
				retry = 0
			}
			c.Header(headerRetryAfter, strconv.FormatInt(retry, 10))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded, try again later",
			})
			return
		}
		c.Next()
	}
}

func setLimitHeaders(c *gin.Context, res Result) {
	if res.Limit == 0 {
		return
	}
	c.Header(headerLimit, strconv.Itoa(res.Limit))
	c.Header(headerRemaining, strconv.Itoa(res.Remaining))
	c.Header(headerReset, strconv.FormatInt(res.ResetAt.UnixMilli(), 10))
}

// failOpenResult synthesizes an allowed result with full remaining quota.
func failOpenResult(checker Checker, category Category) Result {
	pol, ok := checker.Lookup(category)
	if !ok {
		return Result{Allowed: true}
	}
	return Result{
		Allowed:   true,
		Limit:     pol.MaxRequests,
		Remaining: pol.MaxRequests,
		ResetAt:   time.Now().Add(pol.Window),
	}
}
