// Package config loads the client's settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"signnet/session"
)

type Config struct {
	BackendURL     string
	PollInterval   time.Duration
	RequestTimeout time.Duration
	ChatTimeout    time.Duration
	StrictPoll     bool
	Mode           string
	LogPath        string
}

// Load reads .env (or the given files) into the environment, then builds the
// config. Variables already set in the environment win over the files. Missing
// files are not an error.
func Load(files ...string) *Config {
	_ = godotenv.Load(files...)

	return &Config{
		BackendURL:     getEnv("SIGNNET_BACKEND_URL", "http://localhost:5000"),
		PollInterval:   getEnvAsDuration("SIGNNET_POLL_INTERVAL", session.DefaultPollInterval),
		RequestTimeout: getEnvAsDuration("SIGNNET_REQUEST_TIMEOUT", session.DefaultRequestTimeout),
		ChatTimeout:    getEnvAsDuration("SIGNNET_CHAT_TIMEOUT", session.DefaultChatTimeout),
		StrictPoll:     getEnvAsBool("SIGNNET_STRICT_POLL", false),
		Mode:           getEnv("SIGNNET_MODE", "auto"),
		LogPath:        getEnv("SIGNNET_LOG_PATH", ""),
	}
}

func (c *Config) Validate() error {
	var errs []error
	u, err := url.Parse(c.BackendURL)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("backend url: %w", err))
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, fmt.Errorf("backend url %q: scheme must be http or https", c.BackendURL))
	case u.Host == "":
		errs = append(errs, fmt.Errorf("backend url %q: missing host", c.BackendURL))
	}
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll interval must be positive, got %v", c.PollInterval))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request timeout must be positive, got %v", c.RequestTimeout))
	}
	if c.ChatTimeout <= 0 {
		errs = append(errs, fmt.Errorf("chat timeout must be positive, got %v", c.ChatTimeout))
	}
	if _, err := session.ParseMode(c.Mode); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// InitialMode is the parsed Mode. Call Validate first.
func (c *Config) InitialMode() session.Mode {
	m, _ := session.ParseMode(c.Mode)
	return m
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	// bare numbers are milliseconds
	if ms, err := strconv.Atoi(strValue); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}
