package main

import (
	"github.com/voidshard/vidpipe/internal/utils"
	"github.com/voidshard/vidpipe/pkg/database"
)

const (
	docMigrate = `Apply database migrations`
)

type optsMigrate struct {
	optsGeneral
	optsDatabase
}

func (c *optsMigrate) Execute(args []string) error {
	logger := utils.NewLogger(c.level(), c.Pretty)

	opts := &database.Options{URL: c.DatabaseURL}
	err := database.Migrate(opts)
	if err != nil {
		logger.Error().Err(err).Str("driver", opts.Driver()).Msg("migration failed")
		return err
	}

	logger.Info().Str("driver", opts.Driver()).Msg("database up to date")
	return nil
}
