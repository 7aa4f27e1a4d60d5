package config

import (
	"log/slog"
	"os"
	"strconv"
)

// Environment variables overriding file settings
const (
	EnvDBPath         = "CODEMEMORY_DB_PATH"
	EnvBackend        = "CODEMEMORY_STORAGE_BACKEND"
	EnvGeneratorURL   = "CODEMEMORY_GENERATOR_URL"
	EnvGeneratorModel = "CODEMEMORY_GENERATOR_MODEL"
	EnvWorkers        = "CODEMEMORY_WORKERS"
	EnvLogLevel       = "CODEMEMORY_LOG_LEVEL"
)

// ApplyEnvOverrides applies environment variable overrides to cfg.
// Unparseable numeric values are ignored.
func ApplyEnvOverrides(cfg *Config) {
	setEnvString(&cfg.Storage.DBPath, EnvDBPath)
	setEnvString(&cfg.Storage.Backend, EnvBackend)
	setEnvString(&cfg.Generator.URL, EnvGeneratorURL)
	setEnvString(&cfg.Generator.Model, EnvGeneratorModel)
	setEnvInt(&cfg.Indexer.Workers, EnvWorkers)
	setEnvString(&cfg.Log.Level, EnvLogLevel)
}

func setEnvString(target *string, key string) {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		slog.Debug("applying env override", "key", key)
		*target = val
	}
}

func setEnvInt(target *int, key string) {
	if val, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(val); err == nil {
			slog.Debug("applying env override", "key", key, "value", i)
			*target = i
		}
	}
}
