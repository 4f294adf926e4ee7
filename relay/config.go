// Package relay implements the feedback relay bot: users talk to the bot,
// the admin receives attributed notifications and answers by replying to them.
package relay

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
)

// Texts collects every user-facing string so deployments can rebrand the bot
// without code changes.
type Texts struct {
	MenuSocial    string `yaml:"menu_social"`
	MenuCompose   string `yaml:"menu_compose"`
	MenuBroadcast string `yaml:"menu_broadcast"`
	MenuListUsers string `yaml:"menu_list_users"`
	Cancel        string `yaml:"cancel"`

	Welcome         string `yaml:"welcome"`
	MenuPrompt      string `yaml:"menu_prompt"`
	ComposePrompt   string `yaml:"compose_prompt"`
	BroadcastPrompt string `yaml:"broadcast_prompt"`
	Cancelled       string `yaml:"cancelled"`
	MessageSent     string `yaml:"message_sent"`
	MessageFailed   string `yaml:"message_failed"`
	BroadcastDone   string `yaml:"broadcast_done"`
	AccessDenied    string `yaml:"access_denied"`
	PanelSummary    string `yaml:"panel_summary"`
	UsersHeader     string `yaml:"users_header"`
	UsersEmpty      string `yaml:"users_empty"`
	AdminReplyLabel string `yaml:"admin_reply_label"`
	ReplyDelivered  string `yaml:"reply_delivered"`
	ReplyFailed     string `yaml:"reply_failed"`
	GenericFailure  string `yaml:"generic_failure"`
}

// DefaultTexts returns the stock English strings.
func DefaultTexts() Texts {
	return Texts{
		MenuSocial:    "🔗 Our links",
		MenuCompose:   "✍️ Send message",
		MenuBroadcast: "📢 Broadcast",
		MenuListUsers: "📋 List users",
		Cancel:        "❌ Cancel",

		Welcome:         "Hello, %s! Use the menu below.",
		MenuPrompt:      "Use the menu below.",
		ComposePrompt:   "Type the message you want to send, or cancel.",
		BroadcastPrompt: "Type the broadcast text, or cancel.",
		Cancelled:       "Cancelled.",
		MessageSent:     "✅ Your message has been sent.",
		MessageFailed:   "⚠️ Could not deliver your message, please try again later.",
		BroadcastDone:   "📢 Broadcast finished: %d delivered, %d failed.",
		AccessDenied:    "⛔ Access denied.",
		PanelSummary:    "👥 Registered users: %d",
		UsersHeader:     "Registered users:",
		UsersEmpty:      "No users registered yet.",
		AdminReplyLabel: "📬 Reply from admin:",
		ReplyDelivered:  "✅ Reply delivered.",
		ReplyFailed:     "⚠️ Could not deliver the reply.",
		GenericFailure:  "Something went wrong, please try again.",
	}
}

// RelayConfig holds relay-specific settings.
type RelayConfig struct {
	// BroadcastWorkers bounds concurrent broadcast deliveries; 0 -> default.
	BroadcastWorkers int `yaml:"broadcast_workers" envconfig:"RELAY_BROADCAST_WORKERS"`
	// SocialLinksURL backs the links button of the main menu.
	SocialLinksURL string `yaml:"social_links_url" envconfig:"RELAY_SOCIAL_LINKS_URL"`
	Texts          Texts  `yaml:"texts"`
}

// Config aggregates core, database, and relay configuration.
type Config struct {
	Core     coreconfig.Config   `yaml:",inline"`
	Database coredatabase.Config `yaml:"database"`
	Relay    RelayConfig         `yaml:"relay"`
}

// CoreConfig exposes the embedded core configuration for the shared runner.
func (c *Config) CoreConfig() *coreconfig.Config {
	return &c.Core
}

// LoadConfig reads the YAML file, applies environment overrides, and fills
// text defaults for any string left empty.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.Relay.Texts = DefaultTexts()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse YAML config: %w", err)
	}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}

	if err := coreconfig.Normalize(&cfg.Core); err != nil {
		return nil, err
	}
	if cfg.Core.Telegram.AdminID == 0 {
		return nil, fmt.Errorf("telegram.admin_id is required")
	}
	fillTextDefaults(&cfg.Relay.Texts)
	return cfg, nil
}

func fillTextDefaults(t *Texts) {
	def := DefaultTexts()
	fill := func(dst *string, d string) {
		if *dst == "" {
			*dst = d
		}
	}
	fill(&t.MenuSocial, def.MenuSocial)
	fill(&t.MenuCompose, def.MenuCompose)
	fill(&t.MenuBroadcast, def.MenuBroadcast)
	fill(&t.MenuListUsers, def.MenuListUsers)
	fill(&t.Cancel, def.Cancel)
	fill(&t.Welcome, def.Welcome)
	fill(&t.MenuPrompt, def.MenuPrompt)
	fill(&t.ComposePrompt, def.ComposePrompt)
	fill(&t.BroadcastPrompt, def.BroadcastPrompt)
	fill(&t.Cancelled, def.Cancelled)
	fill(&t.MessageSent, def.MessageSent)
	fill(&t.MessageFailed, def.MessageFailed)
	fill(&t.BroadcastDone, def.BroadcastDone)
	fill(&t.AccessDenied, def.AccessDenied)
	fill(&t.PanelSummary, def.PanelSummary)
	fill(&t.UsersHeader, def.UsersHeader)
	fill(&t.UsersEmpty, def.UsersEmpty)
	fill(&t.AdminReplyLabel, def.AdminReplyLabel)
	fill(&t.ReplyDelivered, def.ReplyDelivered)
	fill(&t.ReplyFailed, def.ReplyFailed)
	fill(&t.GenericFailure, def.GenericFailure)
}
