package main

import (
	"sync"

	"github.com/joho/godotenv"

	"podscribe/internal/config"
)

type commandContext struct {
	configFlag *string

	once sync.Once
	cfg  *config.Config
	err  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

// ensureConfig loads .env and the configuration once per invocation.
func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		_ = godotenv.Load()
		path := ""
		if c.configFlag != nil {
			path = *c.configFlag
		}
		c.cfg, c.err = config.Load(path)
	})
	return c.cfg, c.err
}
