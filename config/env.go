package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Env is the process settings taken from the environment.
type Env struct {
	// Layout is a layout file path. Empty means the demo layout.
	Layout string
	Listen string
	// NATSURL is empty when the relay is disabled.
	NATSURL    string
	NATSPrefix string
	Frame      time.Duration
	// AllowedOrigins are the origins browsers may call the HTTP server from. Empty allows any.
	AllowedOrigins []string
}

// LoadEnv reads files (default .env) into the environment, if they exist, then reads the settings.
// Variables already set in the environment win over the files.
func LoadEnv(files ...string) (Env, error) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Env{}, fmt.Errorf("load env: %w", err)
	}
	return Env{
		Layout:         getEnv("SENRO_LAYOUT", ""),
		Listen:         getEnv("SENRO_LISTEN", ""),
		NATSURL:        getEnv("SENRO_NATS_URL", ""),
		NATSPrefix:     getEnv("SENRO_NATS_PREFIX", "senro"),
		Frame:          time.Duration(getEnvInt("SENRO_FRAME_MS", 16)) * time.Millisecond,
		AllowedOrigins: getEnvList("SENRO_ALLOWED_ORIGINS"),
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string) []string {
	var res []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			res = append(res, v)
		}
	}
	return res
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil && intVal > 0 {
			return intVal
		}
	}
	return defaultValue
}
