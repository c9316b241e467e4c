// Package config loads server settings from defaults, an optional
// .env.<env> file and prefixed environment variables.
//
// ENV selects the environment (DEV by default, TEST, QA, PROD) and the
// variable prefix: with ENV=PROD, PROD_PORT overrides "port".
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env               string
	Debug             bool
	Port              int
	DBPath            string
	CORSOrigins       []string
	SchedulerEnabled  bool
	SchedulerInterval time.Duration
	RollbarToken      string
	LoadScenario      string
}

// Load reads configuration. dir is searched for .env.<env>; empty means the
// working directory.
func Load(dir string) (Config, error) {
	v := viper.New()

	// defaults
	v.SetTypeByDefaultValue(true)
	v.SetDefault("debug", false)
	v.SetDefault("port", 8080)
	v.SetDefault("dbPath", "fees.db")
	v.SetDefault("corsOrigins", []string{"http://localhost:5173", "http://localhost:8080"})
	v.SetDefault("schedulerEnabled", true)
	v.SetDefault("schedulerInterval", time.Hour)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("loadScenario", "")

	env := strings.ToUpper(os.Getenv("ENV")) // DEV (local; default), TEST, QA, PROD
	if env == "" {
		env = "DEV"
	}
	if env == "DEV" {
		v.SetDefault("debug", true)
	}
	v.SetEnvPrefix(env)

	// load .env if it exists (ignore if it does not)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return Config{}, fmt.Errorf("config.Getwd: %w", err)
		}
		dir = wd
	}
	dotEnvPath := filepath.Join(dir, ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return Config{}, fmt.Errorf("config.godotenv(%s): %w", dotEnvPath, err)
		}
	} else if !os.IsNotExist(err) {
		return Config{}, fmt.Errorf("config.os.Stat(%s): %w", dotEnvPath, err)
	}
	v.AutomaticEnv()

	return Config{
		Env:               env,
		Debug:             v.GetBool("debug"),
		Port:              v.GetInt("port"),
		DBPath:            v.GetString("dbPath"),
		CORSOrigins:       v.GetStringSlice("corsOrigins"),
		SchedulerEnabled:  v.GetBool("schedulerEnabled"),
		SchedulerInterval: v.GetDuration("schedulerInterval"),
		RollbarToken:      v.GetString("rollbarToken"),
		LoadScenario:      v.GetString("loadScenario"),
	}, nil
}
