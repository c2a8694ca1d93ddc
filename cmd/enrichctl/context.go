package main

import (
	"io"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/stitts-dev/player-enrichment/internal/app"
	"github.com/stitts-dev/player-enrichment/pkg/config"
	"github.com/stitts-dev/player-enrichment/pkg/logger"
)

type appLoader func(verbose bool) (*app.App, error)

// loadApp builds the application from the environment and .env file
func loadApp(verbose bool) (*app.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.InitLogger(cfg.LogLevel, cfg.IsDevelopment())
	if !verbose {
		log.SetOutput(io.Discard)
	} else {
		log.SetLevel(logrus.DebugLevel)
	}
	return app.New(cfg, log)
}

type commandContext struct {
	load     appLoader
	verbose  *bool
	jsonFlag *bool

	appOnce sync.Once
	app     *app.App
	appErr  error
}

func newCommandContext(load appLoader, verbose, jsonFlag *bool) *commandContext {
	return &commandContext{
		load:     load,
		verbose:  verbose,
		jsonFlag: jsonFlag,
	}
}

func (c *commandContext) ensureApp() (*app.App, error) {
	c.appOnce.Do(func() {
		c.app, c.appErr = c.load(c.verbose != nil && *c.verbose)
	})
	return c.app, c.appErr
}

func (c *commandContext) withApp(fn func(*app.App) error) error {
	a, err := c.ensureApp()
	if err != nil {
		return err
	}
	return fn(a)
}

func (c *commandContext) close() {
	if c.app != nil {
		_ = c.app.Close()
	}
}

func (c *commandContext) jsonOutput() bool {
	return c.jsonFlag != nil && *c.jsonFlag
}

func (c *commandContext) writeOutput(cmd *cobra.Command, v any, render func(io.Writer)) error {
	if c.jsonOutput() {
		return writeJSON(cmd, v)
	}
	render(cmd.OutOrStdout())
	return nil
}
