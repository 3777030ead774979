package config

import (
	"github.com/spf13/viper"
	"time"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.log_level", LevelInfo)
	v.SetDefault("logger.app_name", "car-tracker")
	v.SetDefault("logger.output_file", "./logs/errors.log")

	v.SetDefault("storage.driver", DriverFile)
	v.SetDefault("storage.path", "./data/searches.json")

	v.SetDefault("registry.max_searches_per_user", 20)
	v.SetDefault("registry.max_results_per_search", 200)
	v.SetDefault("registry.max_search_age_days", 30)

	v.SetDefault("scheduler.interval", 10*time.Minute)
	v.SetDefault("scheduler.recheck_keep", 50)
	v.SetDefault("scheduler.workers", 4)
	v.SetDefault("scheduler.cleanup_schedule", "0 0 * * *")

	v.SetDefault("api.addr", ":8080")
}
