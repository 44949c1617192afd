package main

import (
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"reelforge/internal/config"
	"reelforge/internal/queue"
)

// skipConfigAnnotation marks commands that must run before a valid
// configuration exists, such as config init.
const skipConfigAnnotation = "reelforge/skip-config"

var skipConfig = map[string]string{skipConfigAnnotation: "true"}

// commandContext carries the persistent flags and the lazily loaded
// configuration shared by every subcommand.
type commandContext struct {
	configPath string
	json       bool

	load   sync.Once
	cfg    *config.Config
	cfgErr error
}

func (c *commandContext) requestedConfigPath() string {
	return strings.TrimSpace(c.configPath)
}

// ensureConfig loads the configuration once and creates its directories.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.load.Do(func() {
		cfg, _, _, err := config.Load(c.requestedConfigPath())
		if err == nil {
			err = cfg.EnsureDirectories()
		}
		if err != nil {
			c.cfgErr = err
			return
		}
		c.cfg = cfg
	})
	return c.cfg, c.cfgErr
}

// JSONMode reports whether --json was given.
func (c *commandContext) JSONMode() bool {
	return c.json
}

// withStore opens the queue database for the duration of fn.
func (c *commandContext) withStore(fn func(*queue.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := queue.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(store)
}

func skipsConfig(cmd *cobra.Command) bool {
	for ; cmd != nil; cmd = cmd.Parent() {
		if cmd.Annotations[skipConfigAnnotation] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
