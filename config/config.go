// Package config loads the handful of environment-driven tunables
// signalcore exposes: the skip-ahead bound, session retirement limit,
// and job queue buffer size. All three default to the values the
// protocol hardcodes, so an operator who sets nothing gets exactly
// the historical behavior.
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/ratchetproto/signalcore/ratchetstate"
	"github.com/ratchetproto/signalcore/session"
)

const (
	envMaxSkip            = "SIGNALCORE_MAX_SKIP"
	envMaxRetiredSessions = "SIGNALCORE_MAX_RETIRED_SESSIONS"
	envQueueBuffer        = "SIGNALCORE_QUEUE_BUFFER"

	defaultMaxSkip            = 2000
	defaultMaxRetiredSessions = 40
	defaultQueueBuffer        = 64
)

// Config holds the tunables load reads from the environment.
type Config struct {
	MaxSkip            int
	MaxRetiredSessions int
	QueueBuffer        int
}

// loadEnvFiles loads .env, then an environment-specific override file
// named by SIGNALCORE_ENV, then .env.local. Missing files are not
// errors — only a malformed file that exists is.
func loadEnvFiles() {
	_ = godotenv.Load()
	if env := os.Getenv("SIGNALCORE_ENV"); env != "" {
		_ = godotenv.Load(".env." + env)
	}
	_ = godotenv.Load(".env.local")
}

// Load reads tunables from the environment, applying .env file
// loading first so a local development checkout can override
// defaults without exporting shell variables. It also installs the
// skip bound and retirement limit as ratchetstate.MaxMessageKeys and
// session.MaxRetiredSessions.
func Load() (Config, error) {
	loadEnvFiles()

	maxSkip, err := intEnv(envMaxSkip, defaultMaxSkip)
	if err != nil {
		return Config{}, err
	}
	maxRetired, err := intEnv(envMaxRetiredSessions, defaultMaxRetiredSessions)
	if err != nil {
		return Config{}, err
	}
	queueBuffer, err := intEnv(envQueueBuffer, defaultQueueBuffer)
	if err != nil {
		return Config{}, err
	}

	ratchetstate.MaxMessageKeys = maxSkip
	session.MaxRetiredSessions = maxRetired

	return Config{
		MaxSkip:            maxSkip,
		MaxRetiredSessions: maxRetired,
		QueueBuffer:        queueBuffer,
	}, nil
}

func intEnv(key string, def int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer, got %q: %w", key, raw, err)
	}
	return v, nil
}
