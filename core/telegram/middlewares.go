package telegram

import (
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// DefaultMiddlewares assembles the standard global chain: panic recovery,
// optional per-user rate limiting, receipt logging, and message metrics.
func DefaultMiddlewares(cfg *coreconfig.Config, onLimited tele.HandlerFunc) []Middleware {
	chain := []Middleware{
		{Name: "recover", Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return middleware.RecoverMiddleware(next)
		}},
	}

	if cfg != nil && cfg.RateLimit.IntervalMS > 0 {
		exclude := make(map[string]struct{}, len(cfg.RateLimit.ExcludeUpdates))
		for _, kind := range cfg.RateLimit.ExcludeUpdates {
			exclude[kind] = struct{}{}
		}
		chain = append(chain, Middleware{
			Name: "rate_limit",
			Use: middleware.RateLimitMiddleware(middleware.RateLimitOptions{
				Interval:  time.Duration(cfg.RateLimit.IntervalMS) * time.Millisecond,
				Exclude:   exclude,
				OnLimited: onLimited,
			}),
		})
	}

	chain = append(chain,
		Middleware{Name: "logger", Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return middleware.LoggerMiddleware(next)
		}},
		Middleware{Name: "metrics", Use: func(next tele.HandlerFunc) tele.HandlerFunc {
			return middleware.MessageMetricsMiddleware(next)
		}},
	)
	return chain
}
