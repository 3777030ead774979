package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
)

type RegistryConfig struct {
	MaxSearchesPerUser  int `mapstructure:"max_searches_per_user"`
	MaxResultsPerSearch int `mapstructure:"max_results_per_search"`
	MaxSearchAgeDays    int `mapstructure:"max_search_age_days"`
}

func (config RegistryConfig) validate() error {
	var errs []error

	if config.MaxSearchesPerUser <= 0 {
		errs = append(errs, fmt.Errorf("max_searches_per_user must be greater than zero"))
	}
	if config.MaxResultsPerSearch <= 0 {
		errs = append(errs, fmt.Errorf("max_results_per_search must be greater than zero"))
	}
	if config.MaxSearchAgeDays <= 0 {
		errs = append(errs, fmt.Errorf("max_search_age_days must be greater than zero"))
	}

	return errors.Join(errs...)
}

func (config RegistryConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"registry.max_searches_per_user":  "MAX_SEARCHES_PER_USER",
		"registry.max_results_per_search": "MAX_RESULTS_PER_SEARCH",
		"registry.max_search_age_days":    "MAX_SEARCH_AGE_DAYS",
	})
}
