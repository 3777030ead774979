package config

import (
	"fmt"
	"github.com/spf13/viper"
)

type StorageDriver string

const (
	DriverFile   StorageDriver = "file"
	DriverSqlite StorageDriver = "sqlite"
	DriverMemory StorageDriver = "memory"
)

type StorageConfig struct {
	Driver StorageDriver `mapstructure:"driver"`
	// File path for the file driver, connection string for sqlite.
	Path string `mapstructure:"path"`
}

func (config StorageConfig) validate() error {
	switch config.Driver {
	case DriverFile, DriverSqlite:
		if config.Path == "" {
			return fmt.Errorf("missing variable: path")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver: %q", config.Driver)
	}
	return nil
}

func (config StorageConfig) bindEnvironmentVariables(v *viper.Viper) error {
	return bindAll(v, map[string]string{
		"storage.driver": "STORAGE_DRIVER",
		"storage.path":   "STORAGE_PATH",
	})
}
