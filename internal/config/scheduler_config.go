package config

import (
	"errors"
	"fmt"
	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"
	"time"
)

type SchedulerConfig struct {
	Interval        time.Duration `mapstructure:"interval"`
	RecheckKeep     int           `mapstructure:"recheck_keep"`
	Workers         int           `mapstructure:"workers"`
	CleanupSchedule string        `mapstructure:"cleanup_schedule"`
}

func (config SchedulerConfig) validate() error {
	var errs []error

	if config.Interval <= 0 {
		errs = append(errs, fmt.Errorf("interval must be positive"))
	}
	if config.RecheckKeep <= 0 {
		errs = append(errs, fmt.Errorf("recheck_keep must be greater than zero"))
	}
	if config.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be greater than zero"))
	}
	if _, err := cron.ParseStandard(config.CleanupSchedule); err != nil {
		errs = append(errs, fmt.Errorf("invalid cleanup_schedule: %w", err))
	}

	return errors.Join(errs...)
}

func (config SchedulerConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"scheduler.interval":         "RECHECK_INTERVAL",
		"scheduler.recheck_keep":     "RECHECK_KEEP",
		"scheduler.workers":          "RECHECK_WORKERS",
		"scheduler.cleanup_schedule": "CLEANUP_SCHEDULE",
	})
}
