package relay

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/m3rciful/relaybot/core/logger"
	tghelpers "github.com/m3rciful/relaybot/core/telegram/helpers"
	"github.com/m3rciful/relaybot/relay/correlate"
	"github.com/m3rciful/relaybot/relay/store"

	tele "gopkg.in/telebot.v4"
)

func userFromSender(sender *tele.User) store.User {
	return store.User{
		ID:        sender.ID,
		Username:  sender.Username,
		FirstName: sender.FirstName,
		LastName:  sender.LastName,
		JoinDate:  time.Now().UTC(),
	}
}

// handleStart registers the user and shows the main menu. Repeated /start is
// harmless and always resets any half-finished conversation.
func (a *App) handleStart(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	ctx := tghelpers.BuildContext(c)

	u := userFromSender(sender)
	if err := a.users.Upsert(ctx, u); err != nil {
		return err
	}
	a.sessions.ClearState(sender.ID)

	logger.Info(ctx, "relay", "user.registered",
		slog.Int64("user_id", sender.ID),
		slog.String("username", logger.SanitizeLimit(sender.Username, 64)),
	)
	welcome := fmt.Sprintf(a.texts().Welcome, u.DisplayName())
	return c.Send(welcome, a.mainMenuFor(a.isAdmin(sender.ID)))
}

func (a *App) handleSocial(c tele.Context) error {
	url := strings.TrimSpace(a.cfg.Relay.SocialLinksURL)
	if url == "" {
		return c.Send(a.texts().MenuPrompt)
	}
	return c.Send(url)
}

// handlePanel answers everyone: admins get the user count, everyone else an
// explicit denial. This is the one privileged surface that talks back.
func (a *App) handlePanel(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !a.isAdmin(sender.ID) {
		return c.Send(a.texts().AccessDenied)
	}
	ctx := tghelpers.BuildContext(c)

	n, err := a.users.Count(ctx)
	if err != nil {
		return err
	}
	return c.Send(fmt.Sprintf(a.texts().PanelSummary, n), a.mainMenuFor(true))
}

func (a *App) handleUsers(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)

	users, err := a.users.ListAll(ctx)
	if err != nil {
		return err
	}
	t := a.texts()
	if len(users) == 0 {
		return c.Send(t.UsersEmpty)
	}

	var b strings.Builder
	b.WriteString(t.UsersHeader)
	for _, u := range users {
		username := "—"
		if u.Username != "" {
			username = "@" + u.Username
		}
		fmt.Fprintf(&b, "\n📌 %s - %s (ID: %d)", username, u.DisplayName(), u.ID)
	}
	return c.Send(b.String())
}

func (a *App) startCompose(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	a.sessions.SetState(sender.ID, StateAwaitingMessage)
	return c.Send(a.texts().ComposePrompt, a.cancelMenu())
}

func (a *App) startBroadcast(c tele.Context) error {
	sender := c.Sender()
	if sender == nil || !a.isAdmin(sender.ID) {
		return nil
	}
	a.sessions.SetState(sender.ID, StateAwaitingBroadcast)
	return c.Send(a.texts().BroadcastPrompt, a.cancelMenu())
}

// awaitingMessage consumes the next text from a composing user. The session
// always ends here, whatever the outcome.
func (a *App) awaitingMessage(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	defer a.sessions.ClearState(sender.ID)

	t := a.texts()
	admin := a.isAdmin(sender.ID)
	if c.Text() == t.Cancel {
		return c.Send(t.Cancelled, a.mainMenuFor(admin))
	}

	ctx := tghelpers.BuildContext(c)
	tr := a.transport()
	if tr == nil {
		return c.Send(t.MessageFailed, a.mainMenuFor(admin))
	}

	note := correlate.EncodeNotification(userFromSender(sender), c.Text(), time.Now())
	msg, err := tr.Send(a.adminID(), note, tele.ModeMarkdown)
	if err != nil {
		logger.Warn(ctx, "relay", "relay.notify_failed",
			slog.Int64("user_id", sender.ID),
			slog.String("error", logger.RedactToken(err.Error())),
		)
		return c.Send(t.MessageFailed, a.mainMenuFor(admin))
	}

	// The text fallback still decodes the sender, so a failed record only
	// degrades correlation, it does not lose the message.
	if err := a.notes.Record(ctx, int64(msg.ID), sender.ID); err != nil {
		logger.Warn(ctx, "relay", "relay.record_failed",
			slog.Int64("user_id", sender.ID),
			slog.Int("message_id", msg.ID),
			slog.String("error", logger.RedactToken(err.Error())),
		)
	}

	logger.Info(ctx, "relay", "relay.forwarded",
		slog.Int64("user_id", sender.ID),
		slog.Int("message_id", msg.ID),
	)
	return c.Send(t.MessageSent, a.mainMenuFor(admin))
}

// awaitingBroadcast consumes the broadcast text from the admin.
func (a *App) awaitingBroadcast(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}
	defer a.sessions.ClearState(sender.ID)

	if !a.isAdmin(sender.ID) {
		return nil
	}

	t := a.texts()
	if c.Text() == t.Cancel {
		return c.Send(t.Cancelled, a.mainMenuFor(true))
	}

	ctx := tghelpers.BuildContext(c)
	ids, err := a.users.IDs(ctx)
	if err != nil {
		return err
	}

	report := a.caster.Broadcast(ctx, c.Text(), ids)
	return c.Send(fmt.Sprintf(t.BroadcastDone, report.Sent, report.Failed), a.mainMenuFor(true))
}

// handleFallback catches text that matched no state, trigger, or command.
// An admin replying to a relayed notification is answered back to its sender;
// anything else just re-displays the menu.
func (a *App) handleFallback(c tele.Context) error {
	sender := c.Sender()
	if sender == nil {
		return nil
	}

	msg := c.Message()
	if a.isAdmin(sender.ID) && msg != nil && msg.ReplyTo != nil {
		return a.handleAdminReply(c)
	}
	return c.Send(a.texts().MenuPrompt, a.mainMenuFor(a.isAdmin(sender.ID)))
}

func (a *App) handleAdminReply(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	t := a.texts()
	replyTo := c.Message().ReplyTo

	userID, err := a.notes.SenderOf(ctx, int64(replyTo.ID))
	if err != nil {
		userID, err = correlate.DecodeSenderID(replyTo.Text)
		if err != nil {
			logger.Warn(ctx, "relay", "reply.correlate_failed",
				slog.Int("message_id", replyTo.ID),
				slog.String("error", err.Error()),
			)
			return c.Send(t.ReplyFailed)
		}
	}

	tr := a.transport()
	if tr == nil {
		return c.Send(t.ReplyFailed)
	}
	if _, err := tr.Send(userID, t.AdminReplyLabel+"\n"+c.Text()); err != nil {
		logger.Warn(ctx, "relay", "reply.deliver_failed",
			slog.Int64("user_id", userID),
			slog.String("error", logger.RedactToken(err.Error())),
		)
		return c.Send(t.ReplyFailed)
	}

	logger.Info(ctx, "relay", "reply.delivered",
		slog.Int64("user_id", userID),
	)
	return c.Send(t.ReplyDelivered)
}
