package router

import (
	"log/slog"
	"reflect"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// handleWithSummary runs the handler, emits a completion summary, and routes
// any error through Options.OnError so the caller gets a reply instead of a
// silently dropped update.
func handleWithSummary(c tele.Context, name string, start time.Time, opts Options, fn func() error) error {
	err := fn()

	status := "ok"
	if err != nil {
		status = "error"
	}
	logHandlerSummary(c, name, start, status, err)

	if err != nil && opts.OnError != nil {
		opts.OnError(c, err)
		return nil
	}
	return err
}

func logHandlerSummary(c tele.Context, name string, start time.Time, status string, err error) {
	ctx := tghelpers.WithHandler(c, name)

	attrs := []slog.Attr{
		slog.String("status", status),
		slog.Duration("took", logger.Took(start)),
	}
	if msgs, kb := middleware.GetCounters(c); msgs > 0 {
		attrs = append(attrs, slog.Int("messages", msgs), slog.Bool("kb", kb))
	}
	if err != nil {
		attrs = append(attrs,
			slog.String("error", logger.RedactToken(err.Error())),
			slog.String("error_code", deriveErrorCode(err)),
		)
		logger.Warn(ctx, "tg", "handler.summary", attrs...)
		return
	}
	logger.Debug(ctx, "tg", "handler.summary", attrs...)
}

// deriveErrorCode prefers an explicit Code() on the error chain, falling back
// to the concrete type name.
func deriveErrorCode(err error) string {
	type coder interface{ Code() string }

	for e := err; e != nil; {
		if c, ok := e.(coder); ok {
			return c.Code()
		}
		u, ok := e.(interface{ Unwrap() error })
		if !ok {
			break
		}
		e = u.Unwrap()
	}

	t := reflect.TypeOf(err)
	if t == nil {
		return "UNKNOWN"
	}
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Name() == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(t.Name())
}

// normalizeHandlerName turns "/users" or "📋 List users" into a log-safe name.
func normalizeHandlerName(endpoint string) string {
	name := strings.TrimPrefix(endpoint, "/")
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		case r == ' ' || r == '-':
			return '_'
		default:
			return -1
		}
	}, name)
	name = strings.Trim(name, "_")
	if name == "" {
		return "handler"
	}
	return name
}
