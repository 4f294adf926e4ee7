package telegram

import (
	"testing"

	"github.com/m3rciful/relaybot/core/telegram/commands"

	tele "gopkg.in/telebot.v4"
)

func noopHandler(tele.Context) error { return nil }

func TestRegisterCommandValidation(t *testing.T) {
	reg := NewRegistry()

	reg.RegisterCommand("", commands.Command{Handler: noopHandler, Description: "x"})
	reg.RegisterCommand("start", commands.Command{Handler: noopHandler, Description: "no slash"})
	reg.RegisterCommand("/nohandler", commands.Command{Description: "x"})
	reg.RegisterCommand("/nodesc", commands.Command{Handler: noopHandler})

	if got := len(reg.Commands()); got != 0 {
		t.Fatalf("expected no commands registered, got %d", got)
	}

	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "start"})
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "dup"})
	if got := len(reg.Commands()); got != 1 {
		t.Fatalf("expected 1 command after duplicate, got %d", got)
	}
	if reg.Commands()["/start"].Description != "start" {
		t.Fatal("duplicate registration must not overwrite the original")
	}
}

func TestLookupCommandAliases(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/users", commands.Command{
		Handler:     noopHandler,
		Description: "list users",
		Aliases:     []string{"u", "/list"},
	})

	for _, name := range []string{"/users", "users", "/u", "u", "/list", "list"} {
		key, _, ok := reg.LookupCommand(name)
		if !ok {
			t.Fatalf("lookup %q failed", name)
		}
		if key != "/users" {
			t.Fatalf("lookup %q returned key %q, want /users", name, key)
		}
	}

	if _, _, ok := reg.LookupCommand("/missing"); ok {
		t.Fatal("lookup of unknown command must fail")
	}
}

func TestListCommandsVisibility(t *testing.T) {
	reg := NewRegistry()
	reg.RegisterCommand("/start", commands.Command{Handler: noopHandler, Description: "start"})
	reg.RegisterCommand("/panel", commands.Command{Handler: noopHandler, Description: "panel", Hidden: true})
	reg.RegisterCommand("/users", commands.Command{Handler: noopHandler, Description: "users", AdminOnly: true})

	visible := reg.ListCommands(true)
	if len(visible) != 1 || visible[0].Text != "start" {
		t.Fatalf("visible list = %+v, want only start", visible)
	}

	all := reg.ListCommands(false)
	if len(all) != 3 {
		t.Fatalf("full list has %d entries, want 3", len(all))
	}
	// Sorted by text.
	if all[0].Text != "panel" || all[1].Text != "start" || all[2].Text != "users" {
		t.Fatalf("unexpected order: %+v", all)
	}
}

func TestTriggerRegistration(t *testing.T) {
	reg := NewRegistry()

	if err := reg.RegisterTrigger("", Trigger{Handler: noopHandler}); err == nil {
		t.Fatal("empty trigger text must be rejected")
	}
	if err := reg.RegisterTrigger("Send message", Trigger{}); err == nil {
		t.Fatal("nil trigger handler must be rejected")
	}

	if err := reg.RegisterTrigger("Send message", Trigger{Handler: noopHandler}); err != nil {
		t.Fatalf("register trigger: %v", err)
	}
	if err := reg.RegisterTrigger("Send message", Trigger{Handler: noopHandler}); err == nil {
		t.Fatal("duplicate trigger must be rejected")
	}

	trg, ok := reg.LookupTrigger("Send message")
	if !ok || trg.Handler == nil {
		t.Fatal("registered trigger not found")
	}
	if trg.AdminOnly {
		t.Fatal("trigger must not be admin-only by default")
	}
}

func TestTextFallback(t *testing.T) {
	reg := NewRegistry()
	if reg.TextFallback() != nil {
		t.Fatal("fallback must start unset")
	}
	called := false
	reg.SetTextFallback(func(tele.Context) error {
		called = true
		return nil
	})
	if err := reg.TextFallback()(nil); err != nil {
		t.Fatalf("fallback returned error: %v", err)
	}
	if !called {
		t.Fatal("fallback handler was not invoked")
	}
}
