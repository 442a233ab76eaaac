package main

import (
	"strings"
	"sync"

	"marketpipe/internal/config"
)

// commandContext lazily loads configuration and resolves the daemon API
// address shared by all subcommands.
type commandContext struct {
	apiFlag    *string
	configFlag *string

	once    sync.Once
	cfg     *config.Config
	cfgPath string
	cfgErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{apiFlag: apiFlag, configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.once.Do(func() {
		path := ""
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		c.cfg, c.cfgPath, c.cfgErr = config.Load(path)
	})
	return c.cfg, c.cfgErr
}

func (c *commandContext) configPath() string {
	return c.cfgPath
}

// apiAddress resolves the daemon address: the --api flag wins, then the
// configured api_bind.
func (c *commandContext) apiAddress() (string, error) {
	if c.apiFlag != nil {
		if addr := strings.TrimSpace(*c.apiFlag); addr != "" {
			return addr, nil
		}
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(cfg.APIBind), nil
}

func (c *commandContext) client() (*apiClient, error) {
	addr, err := c.apiAddress()
	if err != nil {
		return nil, err
	}
	return newAPIClient(addr), nil
}
