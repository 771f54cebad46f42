// Package config reads runtime settings from the environment, optionally
// seeded from a .env file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

const (
	StoreBadger   = "badger"
	StorePostgres = "postgres"

	CacheNone   = "none"
	CacheMemory = "memory"
	CacheRedis  = "redis"
)

type Config struct {
	// HTTP server
	ListenAddr    string // e.g. ":8080"
	MaxUploadSize int64  // bytes accepted by the upload endpoint

	// Storage
	DataDir     string // badger directory
	StoreDriver string // "badger" or "postgres"
	DatabaseURL string // postgres DSN when StoreDriver is "postgres"

	// Files
	UploadPath        string
	AttachmentsFolder string
	ProfileFolder     string

	// Feed cache
	CacheDriver   string // "none", "memory" or "redis"
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Attachment reaper
	ReaperInterval  time.Duration
	RetentionWindow time.Duration

	// Paging
	DefaultPageSize int
	MaxPageSize     int

	LogLevel string
}

// Load reads the given .env files (default ".env") into the environment,
// skipping any that do not exist, then returns FromEnv.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if _, err := os.Stat(f); os.IsNotExist(err) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}
	c := FromEnv()
	return c, c.Validate()
}

func FromEnv() Config {
	c := Config{}

	c.ListenAddr = getenv("MURMUR_LISTEN_ADDR", ":8080")
	c.MaxUploadSize = int64(getenvi("MURMUR_MAX_UPLOAD_SIZE", 10<<20))

	c.DataDir = getenv("MURMUR_DATA_DIR", "data")
	c.StoreDriver = getenv("MURMUR_STORE", StoreBadger)
	c.DatabaseURL = getenv("MURMUR_DATABASE_URL", "")

	c.UploadPath = getenv("MURMUR_UPLOAD_PATH", filepath.Join(c.DataDir, "uploads"))
	c.AttachmentsFolder = getenv("MURMUR_ATTACHMENTS_FOLDER", "attachments")
	c.ProfileFolder = getenv("MURMUR_PROFILE_FOLDER", "profile")

	c.RedisAddr = getenv("MURMUR_REDIS_ADDR", "")
	defaultCache := CacheNone
	if c.RedisAddr != "" {
		defaultCache = CacheRedis
	}
	c.CacheDriver = getenv("MURMUR_CACHE", defaultCache)
	c.RedisPassword = getenv("MURMUR_REDIS_PASSWORD", "")
	c.RedisDB = getenvi("MURMUR_REDIS_DB", 0)
	c.CacheTTL = getenvd("MURMUR_CACHE_TTL", time.Minute)

	c.ReaperInterval = getenvd("MURMUR_REAPER_INTERVAL", time.Hour)
	c.RetentionWindow = getenvd("MURMUR_RETENTION_WINDOW", time.Hour)

	c.DefaultPageSize = getenvi("MURMUR_PAGE_SIZE", 10)
	c.MaxPageSize = getenvi("MURMUR_MAX_PAGE_SIZE", 100)

	c.LogLevel = getenv("MURMUR_LOG_LEVEL", "info")

	return c
}

// Validate rejects settings the server cannot start with.
func (c Config) Validate() error {
	switch c.StoreDriver {
	case StoreBadger:
	case StorePostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("MURMUR_DATABASE_URL is required for the %s store", StorePostgres)
		}
	default:
		return fmt.Errorf("unknown store %q", c.StoreDriver)
	}
	switch c.CacheDriver {
	case CacheNone, CacheMemory:
	case CacheRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("MURMUR_REDIS_ADDR is required for the %s cache", CacheRedis)
		}
	default:
		return fmt.Errorf("unknown cache %q", c.CacheDriver)
	}
	if c.ReaperInterval <= 0 {
		return fmt.Errorf("reaper interval must be positive, got %s", c.ReaperInterval)
	}
	if c.RetentionWindow <= 0 {
		return fmt.Errorf("retention window must be positive, got %s", c.RetentionWindow)
	}
	if c.DefaultPageSize <= 0 || c.MaxPageSize < c.DefaultPageSize {
		return fmt.Errorf("invalid page sizes: default %d, max %d", c.DefaultPageSize, c.MaxPageSize)
	}
	return nil
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvi(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if iv, err := strconv.Atoi(v); err == nil {
			return iv
		}
	}
	return def
}

func getenvd(k string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(getenv(k, "")); err == nil {
		return d
	}
	return def
}
