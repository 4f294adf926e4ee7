// Package bootstrap runs the ordered startup pipeline: logger, database
// connection, migrations.
package bootstrap

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	coreconfig "github.com/m3rciful/relaybot/core/config"
	coredatabase "github.com/m3rciful/relaybot/core/database"
	"github.com/m3rciful/relaybot/core/logger"
)

// Options selects which pipeline stages run and with what configuration.
type Options struct {
	Config   *coreconfig.Config
	Database coredatabase.Config

	// LoggerInit can be disabled when the caller already initialized logging.
	LoggerInit bool
	Connect    bool
	Migrate    bool
}

// Result carries the resources produced by the pipeline.
type Result struct {
	DB *sqlx.DB
}

// Run executes the enabled stages in order and fails fast on the first error.
func Run(opts Options) (*Result, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("bootstrap: nil config")
	}

	if opts.LoggerInit {
		if err := logger.InitLogger(opts.Config); err != nil {
			return nil, fmt.Errorf("bootstrap: init logger: %w", err)
		}
	}

	if opts.Migrate {
		if err := coredatabase.RunMigrations(opts.Database); err != nil {
			return nil, fmt.Errorf("bootstrap: migrate: %w", err)
		}
	}

	res := &Result{}
	if opts.Connect {
		db, err := coredatabase.Connect(opts.Database)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: connect: %w", err)
		}
		res.DB = db
	}
	return res, nil
}
