package service

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"murmur/app/config"

	"github.com/charmbracelet/log"
)

// loadConfig is a variable so tests can supply their own settings.
var loadConfig = func() (config.Config, error) {
	return config.Load()
}

// badgerPath is where the badger store lives inside the data directory.
func badgerPath(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "badger")
}

func backupDir(cfg config.Config) string {
	return filepath.Join(cfg.DataDir, "backups")
}

// newLogger builds the process logger writing to w.
func newLogger(w io.Writer, level string) *log.Logger {
	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Prefix:          "murmur",
	})
	if lvl, err := log.ParseLevel(strings.ToLower(level)); err == nil {
		logger.SetLevel(lvl)
	}
	return logger
}

func defaultLogger(cfg config.Config) *log.Logger {
	return newLogger(os.Stderr, cfg.LogLevel)
}
