package telegram

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"strings"

	"github.com/m3rciful/relaybot/core/logger"
	"github.com/m3rciful/relaybot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

// Trigger binds a reply-keyboard button text to its handler. Admin-only
// triggers are silently skipped for everyone else during routing.
type Trigger struct {
	Handler   tele.HandlerFunc
	AdminOnly bool
}

// Registry holds slash commands and reply-keyboard text triggers.
type Registry struct {
	commands     map[string]commands.Command
	triggers     map[string]Trigger
	textFallback tele.HandlerFunc
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		commands: make(map[string]commands.Command),
		triggers: make(map[string]Trigger),
	}
}

// RegisterCommand adds a new command.
func (r *Registry) RegisterCommand(name string, cmd commands.Command) {
	if r == nil || name == "" || cmd.Handler == nil || cmd.Description == "" {
		logger.Warn(context.Background(), "tg.wire", "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "invalid"),
		)
		return
	}
	if name[0] != '/' {
		logger.Warn(context.Background(), "tg.wire", "register.command.skip",
			slog.String("name", name),
			slog.String("reason", "no_slash_prefix"),
		)
		return
	}
	if _, exists := r.commands[name]; exists {
		logger.Warn(context.Background(), "tg.wire", "register.command.duplicate",
			slog.String("name", name),
		)
		return
	}
	r.commands[name] = cmd
}

// Commands returns all registered commands.
func (r *Registry) Commands() map[string]commands.Command {
	return r.commands
}

// ListCommands returns a slice of tele.Command, optionally filtering out hidden and admin-only commands.
func (r *Registry) ListCommands(visibleOnly bool) []tele.Command {
	var list []tele.Command
	for cmd, meta := range r.commands {
		if visibleOnly && (meta.Hidden || meta.AdminOnly) {
			continue
		}
		list = append(list, tele.Command{Text: strings.TrimPrefix(cmd, "/"), Description: meta.Description})
	}
	sort.Slice(list, func(i, j int) bool { return list[i].Text < list[j].Text })
	return list
}

// LookupCommand searches for a command by name or its aliases and returns the canonical key with metadata if found.
func (r *Registry) LookupCommand(name string) (string, commands.Command, bool) {
	if !strings.HasPrefix(name, "/") {
		name = "/" + name
	}
	if cmd, ok := r.commands[name]; ok {
		return name, cmd, true
	}
	for key, cmd := range r.commands {
		for _, alias := range cmd.Aliases {
			if alias == name || "/"+alias == name {
				return key, cmd, true
			}
		}
	}
	return "", commands.Command{}, false
}

// RegisterTrigger maps a menu button text to its handler.
func (r *Registry) RegisterTrigger(text string, trg Trigger) error {
	if r == nil || strings.TrimSpace(text) == "" || trg.Handler == nil {
		logger.Warn(context.Background(), "tg.wire", "register.trigger.skip",
			slog.String("text", text),
			slog.Bool("handler_nil", trg.Handler == nil),
		)
		return errors.New("invalid trigger registration")
	}
	if _, exists := r.triggers[text]; exists {
		logger.Warn(context.Background(), "tg.wire", "register.trigger.duplicate",
			slog.String("text", text),
		)
		return errors.New("trigger already registered: " + text)
	}
	r.triggers[text] = trg
	return nil
}

// LookupTrigger returns the trigger registered for the exact button text.
func (r *Registry) LookupTrigger(text string) (Trigger, bool) {
	trg, ok := r.triggers[text]
	return trg, ok
}

// ListTriggers returns sorted trigger texts (for diagnostics).
func (r *Registry) ListTriggers() []string {
	names := make([]string, 0, len(r.triggers))
	for k := range r.triggers {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetTextFallback sets a global fallback handler for unmatched text messages.
func (r *Registry) SetTextFallback(h tele.HandlerFunc) {
	r.textFallback = h
}

// TextFallback returns the current text fallback handler.
func (r *Registry) TextFallback() tele.HandlerFunc {
	return r.textFallback
}

// SetupCommands publishes the visible command list to the Telegram command menu.
func SetupCommands(bot *tele.Bot, reg *Registry) {
	if bot == nil || reg == nil {
		return
	}
	if err := bot.SetCommands(reg.ListCommands(true)); err != nil {
		logger.Error(context.Background(), "tg.wire", "register.commands.set_failed",
			slog.String("err", err.Error()),
		)
	}
}
