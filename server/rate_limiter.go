package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/harborhq/furlough/pkg/config"
	"github.com/harborhq/furlough/pkg/ratelimit"
)

// rateLimited guards a route with the named category's policy, keyed by the
// authenticated user when present.
func (s *Server) rateLimited(category ratelimit.Category) gin.HandlerFunc {
	return ratelimit.Middleware(s.limiter, category, rateLimitKey, s.logger)
}

// policiesFromConfig applies config overrides onto the stock policy table.
// Unknown category names are ignored with a warning rather than failing
// startup.
func policiesFromConfig(cfg config.RateLimitConfig, logger zerolog.Logger) ratelimit.Policies {
	policies := ratelimit.DefaultPolicies()
	for name, lim := range cfg.Categories {
		cat := ratelimit.Category(name)
		if _, ok := policies[cat]; !ok {
			logger.Warn().Str("category", name).Msg("ignoring rate limit override for unknown category")
			continue
		}
		policies[cat] = ratelimit.Policy{
			Window:      time.Duration(lim.WindowS) * time.Second,
			MaxRequests: lim.MaxRequests,
		}
	}
	return policies
}
