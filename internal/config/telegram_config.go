package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type TelegramConfig struct {
	Token string `mapstructure:"token"`
	// Without a token new ads are only logged.
	Enabled bool `mapstructure:"enabled"`
}

func (config TelegramConfig) validate() error {
	if config.Enabled && config.Token == "" {
		return fmt.Errorf("missing variable: token")
	}
	return nil
}

func (config TelegramConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"telegram.token":   "TG_TOKEN",
		"telegram.enabled": "TG_ENABLED",
	})
}
