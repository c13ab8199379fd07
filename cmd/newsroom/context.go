package main

import (
	"strings"
	"sync"

	"newsroom/internal/articles"
	"newsroom/internal/config"
	"newsroom/internal/logging"
	"newsroom/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// withStore opens the article store for the duration of fn.
func (c *commandContext) withStore(fn func(*config.Config, *articles.Store) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	store, err := articles.Open(cfg)
	if err != nil {
		return err
	}
	defer store.Close()
	return fn(cfg, store)
}

// withEngine opens the store and a workflow engine for the duration of fn.
func (c *commandContext) withEngine(fn func(*config.Config, *articles.Store, *workflow.Engine) error) error {
	return c.withStore(func(cfg *config.Config, store *articles.Store) error {
		return fn(cfg, store, workflow.New(store, logging.NewNop()))
	})
}
