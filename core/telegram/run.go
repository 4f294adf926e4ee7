package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	"github.com/m3rciful/relaybot/core/logger"

	tele "gopkg.in/telebot.v4"
)

// Middleware names a global middleware so startup logs can list the chain.
type Middleware struct {
	Name string
	Use  tele.MiddlewareFunc
}

// Route binds a telebot endpoint to a handler.
type Route struct {
	Endpoint interface{}
	Handler  tele.HandlerFunc
}

// Runtime exposes the started bot to OnStart hooks. Applications use it to
// wire components that need the live *tele.Bot, such as outbound senders.
type Runtime struct {
	Bot      *tele.Bot
	Registry *Registry
}

// RunOptions configures RunTelegram.
type RunOptions struct {
	Config      *coreconfig.Config
	Registry    *Registry
	Middlewares []Middleware
	Routes      []Route
	// DisableWebhookCleanup keeps a previously registered webhook when
	// starting in longpoll mode.
	DisableWebhookCleanup bool
	OnStart               func(rt Runtime)
	OnStop                func()
}

// RunTelegram builds the bot, registers middleware and routes, and blocks
// until ctx is cancelled.
func RunTelegram(ctx context.Context, opts RunOptions) error {
	cfg := opts.Config
	if cfg == nil {
		return fmt.Errorf("telegram run: nil config")
	}

	pref := tele.Settings{
		Token:  cfg.Telegram.Token,
		Client: BuildHTTPClient(),
		Poller: BuildPoller(PollerOptions{
			RunMode:                cfg.Telegram.RunMode,
			LongPollTimeoutSeconds: cfg.Telegram.LongPollTimeoutSeconds,
			Webhook: WebhookOptions{
				Listen: cfg.Webhook.Listen,
				Port:   cfg.Webhook.Port,
				URL:    cfg.Webhook.URL,
			},
		}),
		OnError: func(err error, c tele.Context) {
			attrs := []slog.Attr{slog.String("err", logger.RedactToken(err.Error()))}
			if c != nil && c.Sender() != nil {
				attrs = append(attrs, slog.Int64("user_id", c.Sender().ID))
			}
			logger.TG.LogAttrs(context.Background(), slog.LevelError, "tg.on_error", attrs...)
		},
	}

	bot, err := tele.NewBot(pref)
	if err != nil {
		return fmt.Errorf("telegram run: create bot: %w", err)
	}

	if cfg.Telegram.RunMode == RunModeLongpoll && !opts.DisableWebhookCleanup {
		deleteWebhook(bot)
	}

	names := make([]string, 0, len(opts.Middlewares))
	for _, mw := range opts.Middlewares {
		if mw.Use == nil {
			continue
		}
		bot.Use(mw.Use)
		names = append(names, mw.Name)
	}

	for _, r := range opts.Routes {
		if r.Handler == nil {
			continue
		}
		bot.Handle(r.Endpoint, r.Handler)
	}

	SetupCommands(bot, opts.Registry)

	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "tg.start",
		slog.String("run_mode", cfg.Telegram.RunMode),
		slog.Int64("bot_id", bot.Me.ID),
		slog.String("bot_username", bot.Me.Username),
		slog.Any("middlewares", names),
		slog.Int("routes", len(opts.Routes)),
	)

	if opts.OnStart != nil {
		opts.OnStart(Runtime{Bot: bot, Registry: opts.Registry})
	}

	go func() {
		<-ctx.Done()
		bot.Stop()
	}()

	bot.Start()

	if opts.OnStop != nil {
		opts.OnStop()
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelInfo, "tg.stop")
	return nil
}

// deleteWebhook drops a stale webhook so long polling can receive updates.
func deleteWebhook(bot *tele.Bot) {
	start := time.Now()
	if err := bot.RemoveWebhook(false); err != nil {
		logger.TG.LogAttrs(context.Background(), slog.LevelWarn, "tg.webhook.cleanup_failed",
			slog.String("err", logger.RedactToken(err.Error())),
		)
		return
	}
	logger.TG.LogAttrs(context.Background(), slog.LevelDebug, "tg.webhook.cleanup",
		slog.Duration("took", logger.Took(start)),
	)
}
