package middleware

import tele "gopkg.in/telebot.v4"

// AdminOptions defines how admin-only checks behave. The admin id is an
// int64 everywhere so gate comparisons can never silently fail on type.
type AdminOptions struct {
	AdminID  int64
	OnReject tele.HandlerFunc
}

// AdminOnlyMiddleware ensures that only the admin user can invoke downstream handlers.
// Rejected callers get OnReject when configured, otherwise the update is dropped.
func AdminOnlyMiddleware(opts AdminOptions) tele.MiddlewareFunc {
	return func(next tele.HandlerFunc) tele.HandlerFunc {
		return func(c tele.Context) error {
			sender := c.Sender()
			if opts.AdminID == 0 || sender == nil || sender.ID != opts.AdminID {
				if opts.OnReject != nil {
					return opts.OnReject(c)
				}
				return nil
			}
			return next(c)
		}
	}
}
