package config

import (
	"fmt"

	"github.com/rpattn/bitemporal/internal/db"
	"github.com/spf13/viper"
)

// LoadDBConfig reads config.yaml from configPath, with DB_* environment
// variable overrides, on top of db.DefaultConfig().
func LoadDBConfig(configPath string) (db.Config, error) {
	cfg := db.DefaultConfig()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("DB") // map env vars like DB_HOST, DB_PORT

	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")

	if err := v.ReadInConfig(); err != nil {
		// Config file not found? Use defaults + env.
		fmt.Println("No config.yaml found, using defaults and env vars")
	}

	if v.IsSet("database.host") {
		cfg.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.SSLMode = v.GetString("database.sslmode")
	}

	return cfg, nil
}
