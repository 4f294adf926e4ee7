package main

import (
	"fmt"
	"os"

	corebootstrap "github.com/m3rciful/relaybot/core/bootstrap"
	corecmd "github.com/m3rciful/relaybot/core/cmd"
	"github.com/m3rciful/relaybot/relay"
	"github.com/m3rciful/relaybot/relay/store"
)

func main() {
	err := corecmd.Run(corecmd.Options{
		DefaultConfigPath: "config.yaml",
		LoadConfig: func(path string) (corecmd.ConfigCarrier, error) {
			return relay.LoadConfig(path)
		},
		Bootstrap: func(carrier corecmd.ConfigCarrier) (corecmd.TelegramApp, error) {
			cfg, ok := carrier.(*relay.Config)
			if !ok {
				return nil, fmt.Errorf("unexpected config type %T", carrier)
			}
			res, err := corebootstrap.Run(corebootstrap.Options{
				Config:     cfg.CoreConfig(),
				Database:   cfg.Database,
				LoggerInit: true,
				Connect:    true,
				Migrate:    true,
			})
			if err != nil {
				return nil, err
			}
			users := store.NewUserRepository(res.DB)
			notes := store.NewNotificationRepository(res.DB)
			return relay.NewApp(cfg, users, notes), nil
		},
	})
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
