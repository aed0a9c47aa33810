// Package config loads the runtime environment and client definitions.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// DefaultAPIBaseURL is used when neither API_BASE_URL nor NEXT_PUBLIC_API_BASE_URL is set
const DefaultAPIBaseURL = "http://localhost:3001/api"

// DefaultEnvFiles are read in order; earlier files win over later ones
var DefaultEnvFiles = []string{".env.local", ".env.production", ".env"}

// Env is the resolved runtime environment
type Env struct {
	AppEnv     string
	APIBaseURL string
	SQLitePath string
	RedisAddr  string
	LogLevel   string
}

// Load reads the given dotenv files (DefaultEnvFiles when none are given).
// Missing files are skipped and variables already set in the process are
// never overridden. It returns the files that were loaded.
func Load(files ...string) ([]string, error) {
	if len(files) == 0 {
		files = DefaultEnvFiles
	}

	var loaded []string
	for _, file := range files {
		if _, err := os.Stat(file); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, fmt.Errorf("stat %s: %w", file, err)
		}
		if err := godotenv.Load(file); err != nil {
			return loaded, fmt.Errorf("load %s: %w", file, err)
		}
		loaded = append(loaded, file)
	}
	return loaded, nil
}

// FromEnv resolves the environment from process variables
func FromEnv() *Env {
	return FromLookup(os.LookupEnv)
}

// FromLookup resolves the environment through lookup
func FromLookup(lookup func(string) (string, bool)) *Env {
	get := func(names ...string) string {
		for _, name := range names {
			if v, ok := lookup(name); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	env := &Env{
		AppEnv:     get("APP_ENV", "NODE_ENV"),
		APIBaseURL: strings.TrimRight(get("API_BASE_URL", "NEXT_PUBLIC_API_BASE_URL"), "/"),
		SQLitePath: get("CACHE_SQLITE_PATH"),
		RedisAddr:  get("CACHE_REDIS_ADDR"),
		LogLevel:   strings.ToLower(get("LOG_LEVEL")),
	}
	if env.AppEnv == "" {
		env.AppEnv = "development"
	}
	if env.APIBaseURL == "" {
		env.APIBaseURL = DefaultAPIBaseURL
	}
	if env.LogLevel == "" {
		env.LogLevel = "info"
	}
	return env
}

// IsProduction reports whether the app runs in production
func (e *Env) IsProduction() bool {
	return e.AppEnv == "production"
}
