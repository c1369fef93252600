package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Load reads configuration from JSON file and sets default values.
// configDir is the directory containing the config file.
func Load(configDir string) error {
	// Set default values
	viper.SetDefault("logLevel", "info")
	viper.SetDefault("logsDir", "./logs")

	viper.SetDefault("server.listenAddr", ":3000")
	viper.SetDefault("server.baseUrl", "http://localhost:3000")

	viper.SetDefault("db.host", "localhost")
	viper.SetDefault("db.port", "5432")
	viper.SetDefault("db.username", "postgres")
	viper.SetDefault("db.password", "postgres")
	viper.SetDefault("db.database", "mobwars")

	viper.SetDefault("auth.jwtSecret", "")
	viper.SetDefault("auth.tokenTTL", "168h")
	viper.SetDefault("auth.googleClientId", "")

	viper.SetDefault("game.catalogPath", "")
	viper.SetDefault("game.prisonDuration", "5m")
	viper.SetDefault("game.cooldownTick", "1s")
	viper.SetDefault("game.refreshInterval", "30s")

	viper.SetDefault("client.maxRetries", 3)
	viper.SetDefault("client.retryDelay", "1s")

	viper.SetDefault("save.maxRetries", 5)
	viper.SetDefault("save.baseBackoff", "100ms")

	viper.SetDefault("influx.enabled", false)
	viper.SetDefault("influx.host", "localhost")
	viper.SetDefault("influx.port", "8086")
	viper.SetDefault("influx.protocol", "http")
	viper.SetDefault("influx.token", "")
	viper.SetDefault("influx.org", "mobwars-metrics")
	viper.SetDefault("influx.bucket", "mission_fairness")

	viper.SetConfigName("mobwars.cfg.json")
	viper.AddConfigPath(configDir)
	viper.SetConfigType("json")

	err := viper.ReadInConfig()
	if err != nil {
		return fmt.Errorf("error reading config file: %v", err)
	}

	return nil
}

// GetString returns a string config value.
func GetString(key string) string {
	return viper.GetString(key)
}

// GetInt returns an int config value.
func GetInt(key string) int {
	return viper.GetInt(key)
}

// GetBool returns a bool config value.
func GetBool(key string) bool {
	return viper.GetBool(key)
}

// GetDuration returns a duration config value.
func GetDuration(key string) time.Duration {
	return viper.GetDuration(key)
}
