package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

const (
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageMemory = "memory"
)

type Config struct {
	BackendURL     string
	APIPath        string
	StateDir       string
	Storage        string
	Port           string
	FrontendURL    string
	RateLimitRPS   float64
	MaxUploadBytes int64
	LogLevel       string
}

func Load() Config {
	return Config{
		BackendURL:     strings.TrimRight(os.Getenv("TESTAI_BACKEND_URL"), "/"),
		APIPath:        getEnv("TESTAI_API_PATH", "/api"),
		StateDir:       expandPath(getEnv("TESTAI_STATE_DIR", defaultStateDir())),
		Storage:        strings.ToLower(getEnv("TESTAI_STORAGE", StorageFile)),
		Port:           getEnv("TESTAI_PORT", "3000"),
		FrontendURL:    getEnv("TESTAI_FRONTEND_URL", "http://localhost:3000"),
		RateLimitRPS:   getFloat("TESTAI_RATE_LIMIT_RPS", 2),
		MaxUploadBytes: getInt("TESTAI_MAX_UPLOAD_BYTES", 10_485_760),
		LogLevel:       getEnv("TESTAI_LOG_LEVEL", "info"),
	}
}

// APIBase is the backend root joined with the fixed API path segment.
func (c Config) APIBase() string {
	path := c.APIPath
	if path != "" && !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(c.BackendURL, "/") + strings.TrimRight(path, "/")
}

// SessionPath returns where the selected storage backend keeps its data.
// The memory backend has no path.
func (c Config) SessionPath() string {
	switch c.Storage {
	case StorageSQLite:
		return filepath.Join(c.StateDir, "session.db")
	case StorageMemory:
		return ""
	default:
		return filepath.Join(c.StateDir, "session.json")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getInt(key string, fallback int64) int64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseInt(value, 10, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return ".testai"
	}
	return filepath.Join(home, ".testai")
}

// expandPath expands a leading "~/" to the current user's home directory.
func expandPath(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return path
	}
	if path == "~" {
		return home
	}
	return filepath.Join(home, path[2:])
}
