package main

import (
	"fmt"

	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/driver"
	"github.com/zulandar/switchboard/internal/ledger"
	"github.com/zulandar/switchboard/internal/mailbox"
	"github.com/zulandar/switchboard/internal/models"
	"github.com/zulandar/switchboard/internal/registry"
	"github.com/zulandar/switchboard/internal/relay"
	"github.com/zulandar/switchboard/internal/relay/discord"
	"github.com/zulandar/switchboard/internal/relay/slack"
	"github.com/zulandar/switchboard/internal/router"
	"gorm.io/gorm"
)

// connectFromConfig loads the config file and opens the ledger database.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Ledger)
	if err != nil {
		return nil, nil, err
	}
	return cfg, gormDB, nil
}

// stack bundles the wired routing collaborators for commands that deliver.
type stack struct {
	cfg   *config.Config
	reg   *registry.Registry
	store *mailbox.Store
	led   *ledger.Ledger
	rtr   *router.Router
}

// buildStack assembles the full routing stack from a config file. escalate
// is optional and receives retry-exhaustion callbacks.
func buildStack(configPath string, escalate func(env *models.Envelope, detail string)) (*stack, error) {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return nil, err
	}
	return buildStackWith(cfg, gormDB, escalate)
}

func buildStackWith(cfg *config.Config, gormDB *gorm.DB, escalate func(env *models.Envelope, detail string)) (*stack, error) {
	reg, err := registry.Load(cfg.CoordsFile)
	if err != nil {
		return nil, err
	}

	store := mailbox.NewStore(cfg.MailboxRoot)
	led := ledger.New(gormDB)
	drv := driver.NewXDoTool(driver.XDoToolOpts{
		Tool:      cfg.Driver.Tool,
		TypeDelay: cfg.Driver.TypeDelay(),
		Timeout:   cfg.Driver.Timeout(),
	})

	rtr := router.New(reg, store, drv, led, router.Options{
		MaxRetries:  cfg.Router.MaxRetries,
		BaseBackoff: cfg.Router.BaseBackoff(),
		MaxBackoff:  cfg.Router.MaxBackoff(),
		DedupWindow: cfg.Router.DedupWindow(),
		LaneBuffer:  cfg.Router.LaneBuffer,
		Escalate:    escalate,
	})

	return &stack{cfg: cfg, reg: reg, store: store, led: led, rtr: rtr}, nil
}

// newRelayAdapter builds the configured relay adapter, or nil for "none".
func newRelayAdapter(cfg *config.Config) (relay.Adapter, error) {
	switch cfg.Relay.Platform {
	case "none", "":
		return nil, nil
	case "discord":
		return discord.New(discord.AdapterOpts{
			BotToken:  cfg.Relay.Discord.BotToken,
			ChannelID: cfg.Relay.Discord.ChannelID,
		})
	case "slack":
		return slack.New(slack.AdapterOpts{
			BotToken:  cfg.Relay.Slack.BotToken,
			ChannelID: cfg.Relay.Slack.ChannelID,
		})
	default:
		return nil, fmt.Errorf("unsupported relay platform %q", cfg.Relay.Platform)
	}
}
