package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type APIConfig struct {
	Addr        string   `mapstructure:"addr"`
	CorsOrigins []string `mapstructure:"cors_origins"`
}

func (config APIConfig) validate() error {
	if config.Addr == "" {
		return fmt.Errorf("missing variable: addr")
	}
	return nil
}

func (config APIConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return v.BindEnv("api.addr", "API_ADDR")
}
