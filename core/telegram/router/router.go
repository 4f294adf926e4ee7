// Package router dispatches inbound updates to FSM continuations, commands,
// reply-keyboard triggers, or the text fallback, in that order.
package router

import (
	"time"

	tg "github.com/m3rciful/relaybot/core/telegram"
	"github.com/m3rciful/relaybot/core/telegram/middleware"

	tele "gopkg.in/telebot.v4"
)

// FSM defines the minimal interface for an FSM manager.
type FSM interface {
	InProgress(userID int64) bool
	ManagerHandler(c tele.Context) error
}

// Options configures routing behaviour shared by command and text routes.
type Options struct {
	// AdminID gates admin-only commands and triggers; compared as int64.
	AdminID int64
	// OnAdminReject answers rejected admin-only commands. Nil drops silently.
	OnAdminReject tele.HandlerFunc
	// OnError converts a handler error into a reply to the affected caller.
	// When set, errors never propagate past the router boundary.
	OnError func(c tele.Context, err error)
}

// CommandRoutes prepares command handlers wrapped with shared middleware.
func CommandRoutes(reg *tg.Registry, opts Options) []tg.Route {
	if reg == nil {
		return nil
	}

	adminOpts := middleware.AdminOptions{
		AdminID:  opts.AdminID,
		OnReject: opts.OnAdminReject,
	}

	routes := make([]tg.Route, 0, len(reg.Commands()))
	for cmd, def := range reg.Commands() {
		name := normalizeHandlerName(cmd)
		h := summarized(name, opts, def.Handler)
		if def.AdminOnly {
			h = middleware.AdminOnlyMiddleware(adminOpts)(h)
		}
		h = middleware.RecoverMiddleware(middleware.LoggerMiddleware(h))
		routes = append(routes, tg.Route{
			Endpoint: cmd,
			Handler:  h,
		})
	}
	return routes
}

// TextRoute builds the handler for plain text updates: an active conversation
// state wins, then menu triggers, then slash-command aliases, then fallback.
func TextRoute(fsmMgr FSM, reg *tg.Registry, opts Options) tg.Route {
	handler := func(c tele.Context) error {
		start := time.Now()
		text := c.Text()

		if fsmMgr != nil && c.Sender() != nil && fsmMgr.InProgress(c.Sender().ID) {
			return handleWithSummary(c, "fsm", start, opts, func() error {
				return fsmMgr.ManagerHandler(c)
			})
		}

		if reg != nil {
			if trg, ok := reg.LookupTrigger(text); ok && trg.Handler != nil {
				if trg.AdminOnly && !isAdmin(c, opts.AdminID) {
					// Admin-only menu text from anyone else is ignored outright:
					// no session change, no reply.
					logHandlerSummary(c, "trigger."+normalizeHandlerName(text), start, "skip", nil)
					return nil
				}
				return handleWithSummary(c, "trigger."+normalizeHandlerName(text), start, opts, func() error {
					return trg.Handler(c)
				})
			}

			if key, cmd, ok := reg.LookupCommand(text); ok && cmd.Handler != nil {
				if cmd.AdminOnly && !isAdmin(c, opts.AdminID) {
					logHandlerSummary(c, normalizeHandlerName(key), start, "skip", nil)
					return nil
				}
				return handleWithSummary(c, normalizeHandlerName(key), start, opts, func() error {
					return cmd.Handler(c)
				})
			}

			if fb := reg.TextFallback(); fb != nil {
				return handleWithSummary(c, "fallback", start, opts, func() error {
					return fb(c)
				})
			}
		}

		logHandlerSummary(c, "unknown_text", start, "skip", nil)
		return nil
	}

	return tg.Route{
		Endpoint: tele.OnText,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(handler)),
	}
}

func isAdmin(c tele.Context, adminID int64) bool {
	sender := c.Sender()
	return adminID != 0 && sender != nil && sender.ID == adminID
}

func summarized(name string, opts Options, h tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		start := time.Now()
		return handleWithSummary(c, name, start, opts, func() error {
			return h(c)
		})
	}
}
