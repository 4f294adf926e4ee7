package relay

import (
	"context"
	"fmt"
	"sync"

	"github.com/m3rciful/relaybot/core/telegram/commands"
	"github.com/m3rciful/relaybot/core/telegram/keyboard"
	"github.com/m3rciful/relaybot/core/telegram/router"
	"github.com/m3rciful/relaybot/core/telegram/state"
	"github.com/m3rciful/relaybot/relay/broadcast"
	"github.com/m3rciful/relaybot/relay/store"

	coretelegram "github.com/m3rciful/relaybot/core/telegram"
	tele "gopkg.in/telebot.v4"
)

// Conversation states. Idle users have no session at all.
const (
	StateAwaitingMessage   state.State = "awaiting_message"
	StateAwaitingBroadcast state.State = "awaiting_broadcast"
)

// UserStore is the registry surface the handlers need.
type UserStore interface {
	Upsert(ctx context.Context, u store.User) error
	Count(ctx context.Context) (int, error)
	ListAll(ctx context.Context) ([]store.User, error)
	IDs(ctx context.Context) ([]int64, error)
}

// NotificationLog maps delivered admin notifications back to their senders.
type NotificationLog interface {
	Record(ctx context.Context, messageID, userID int64) error
	SenderOf(ctx context.Context, messageID int64) (int64, error)
}

// transport sends messages outside the inbound update that triggered them.
type transport interface {
	Send(to int64, text string, opts ...interface{}) (*tele.Message, error)
}

// botTransport adapts *tele.Bot to the transport interface.
type botTransport struct {
	bot *tele.Bot
}

func (t botTransport) Send(to int64, text string, opts ...interface{}) (*tele.Message, error) {
	return t.bot.Send(tele.ChatID(to), text, opts...)
}

// broadcastSender adapts the app transport to the broadcast pool.
type broadcastSender struct {
	app *App
}

func (s broadcastSender) Send(userID int64, text string) error {
	tr := s.app.transport()
	if tr == nil {
		return fmt.Errorf("relay: transport not ready")
	}
	_, err := tr.Send(userID, text)
	return err
}

// App owns the relay bot's handlers and their dependencies.
type App struct {
	cfg      *Config
	users    UserStore
	notes    NotificationLog
	sessions state.Manager

	mu     sync.RWMutex
	tr     transport
	caster *broadcast.Dispatcher
}

// NewApp wires the relay application. The outbound transport is attached
// later, once the bot exists (see TelegramRunOptions).
func NewApp(cfg *Config, users UserStore, notes NotificationLog) *App {
	a := &App{
		cfg:      cfg,
		users:    users,
		notes:    notes,
		sessions: state.NewMemoryManager(),
	}
	a.caster = broadcast.NewDispatcher(broadcastSender{app: a}, cfg.Relay.BroadcastWorkers)
	a.sessions.RegisterHandler(StateAwaitingMessage, a.awaitingMessage)
	a.sessions.RegisterHandler(StateAwaitingBroadcast, a.awaitingBroadcast)
	return a
}

// SetTransport replaces the outbound transport. Exposed for tests.
func (a *App) SetTransport(tr transport) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tr = tr
}

func (a *App) transport() transport {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tr
}

func (a *App) adminID() int64 {
	return a.cfg.Core.Telegram.AdminID
}

func (a *App) isAdmin(userID int64) bool {
	return userID != 0 && userID == a.adminID()
}

func (a *App) texts() Texts {
	return a.cfg.Relay.Texts
}

// mainMenuFor builds the persistent reply keyboard. Admins get the broadcast
// and user-list rows on top of the regular menu.
func (a *App) mainMenuFor(admin bool) *tele.ReplyMarkup {
	t := a.texts()
	rows := [][]string{
		{t.MenuCompose},
		{t.MenuSocial},
	}
	if admin {
		rows = append(rows, []string{t.MenuBroadcast, t.MenuListUsers})
	}
	return keyboard.ReplyButtons(rows...)
}

func (a *App) cancelMenu() *tele.ReplyMarkup {
	return keyboard.ReplyButtons([]string{a.texts().Cancel})
}

// TelegramRunOptions assembles the registry, routes, and middleware chain.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	t := a.texts()
	reg := coretelegram.NewRegistry()

	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Register and show the menu",
	})
	reg.RegisterCommand("/panel", commands.Command{
		Handler:     a.handlePanel,
		Description: "Admin panel",
		Hidden:      true,
	})
	reg.RegisterCommand("/users", commands.Command{
		Handler:     a.handleUsers,
		Description: "List registered users",
		AdminOnly:   true,
		Hidden:      true,
	})
	reg.RegisterCommand("/broadcast", commands.Command{
		Handler:     a.startBroadcast,
		Description: "Send a message to all users",
		AdminOnly:   true,
		Hidden:      true,
	})

	if err := reg.RegisterTrigger(t.MenuCompose, coretelegram.Trigger{Handler: a.startCompose}); err != nil {
		return coretelegram.RunOptions{}, err
	}
	if err := reg.RegisterTrigger(t.MenuSocial, coretelegram.Trigger{Handler: a.handleSocial}); err != nil {
		return coretelegram.RunOptions{}, err
	}
	if err := reg.RegisterTrigger(t.MenuBroadcast, coretelegram.Trigger{Handler: a.startBroadcast, AdminOnly: true}); err != nil {
		return coretelegram.RunOptions{}, err
	}
	if err := reg.RegisterTrigger(t.MenuListUsers, coretelegram.Trigger{Handler: a.handleUsers, AdminOnly: true}); err != nil {
		return coretelegram.RunOptions{}, err
	}
	reg.SetTextFallback(a.handleFallback)

	routerOpts := router.Options{
		AdminID: a.adminID(),
		OnError: func(c tele.Context, err error) {
			_ = c.Send(a.texts().GenericFailure)
		},
	}

	routes := router.CommandRoutes(reg, routerOpts)
	routes = append(routes, router.TextRoute(a.sessions, reg, routerOpts))

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil),
		Routes:      routes,
		OnStart: func(rt coretelegram.Runtime) {
			a.SetTransport(botTransport{bot: rt.Bot})
		},
	}, nil
}
