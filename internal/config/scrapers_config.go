package config

import (
	"errors"
	"fmt"
	"github.com/spf13/viper"
	"time"
)

type ScraperConfig struct {
	URL                  string        `mapstructure:"url"`
	MaxRequestsPerSecond float32       `mapstructure:"max_requests_per_second"`
	Timeout              time.Duration `mapstructure:"timeout"`
}

// ScrapersConfig maps a platform name to its scraping service.
type ScrapersConfig map[string]ScraperConfig

func (config ScrapersConfig) validate() error {
	var errs []error

	for platform, scraper := range config {
		if scraper.URL == "" {
			errs = append(errs, fmt.Errorf("%s: missing variable: url", platform))
		}
		if scraper.MaxRequestsPerSecond < 0 {
			errs = append(errs, fmt.Errorf("%s: max_requests_per_second must not be negative", platform))
		}
	}

	return errors.Join(errs...)
}

func (config ScrapersConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"scrapers.avito.url":  "AVITO_SCRAPER_URL",
		"scrapers.drom.url":   "DROM_SCRAPER_URL",
		"scrapers.autoru.url": "AUTORU_SCRAPER_URL",
	})
}
