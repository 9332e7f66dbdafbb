package main

import (
	"fmt"
	"strings"
	"sync"

	"bobbin/internal/api"
	"bobbin/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
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
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) apiAddress() (string, string, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return "", "", err
	}
	bind := ""
	if c.apiFlag != nil {
		bind = strings.TrimSpace(*c.apiFlag)
	}
	token := ""
	if cfg != nil {
		if bind == "" {
			bind = cfg.Paths.APIBind
		}
		token = cfg.Paths.APIToken
	}
	return bind, token, nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	bind, token, err := c.apiAddress()
	if err != nil {
		return err
	}
	client, err := api.NewClient(bind, token)
	if err != nil {
		return err
	}
	if err := fn(client); err != nil {
		if api.IsDaemonUnavailable(err) {
			return fmt.Errorf("daemon not reachable at %s; start it with `bobbind`", bind)
		}
		return err
	}
	return nil
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
