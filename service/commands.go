package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"murmur/app/config"
	"murmur/app/repositories"
	"murmur/app/services"

	"github.com/dgraph-io/badger/v4"
)

var osExit = os.Exit

// HandleCommand runs a server or database subcommand and returns an exit code.
func HandleCommand(args []string) int {
	if len(args) < 1 {
		printHelp()
		osExit(1)
		return 1
	}

	cmd := args[0]
	switch cmd {
	case "serve":
		return RunAppServer()
	case "reap":
		return withConfig(reap)
	case "db":
		return handleDBCommand(args[1:])
	case "help":
		printHelp()
		return 0
	default:
		fmt.Printf("Unknown command: %s\n\n", cmd)
		printHelp()
		osExit(1)
		return 1
	}
}

func handleDBCommand(args []string) int {
	if len(args) < 1 {
		fmt.Println("Error: db subcommand required")
		printHelp()
		osExit(1)
		return 1
	}
	switch args[0] {
	case "init":
		return withConfig(initDb)
	case "clean":
		return withConfig(clean)
	case "backup":
		return withConfig(backup)
	case "restore":
		if len(args) < 2 {
			fmt.Println("Error: backup file path required for restore")
			osExit(1)
			return 1
		}
		return withConfig(func(cfg config.Config) int {
			return restore(cfg, args[1])
		})
	default:
		fmt.Printf("Unknown db command: %s\n\n", args[0])
		printHelp()
		osExit(1)
		return 1
	}
}

func withConfig(fn func(cfg config.Config) int) int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		return 1
	}
	return fn(cfg)
}

// printHelp prints help for server and database subcommands.
func printHelp() {
	helpText := `Usage: murmur <command>

Commands:
  serve                 Run the feed API and the attachment reaper
  reap                  Run one attachment sweep and exit
  db init               Initialize a new empty database
  db clean              Delete every record from the database
  db backup             Create a backup of the badger database
  db restore [file]     Restore the badger database from backup
  help                  Display this help message

Configuration is read from MURMUR_* environment variables and an optional .env file.
`
	fmt.Println(helpText)
}

// reap runs one sweep against the configured store.
func reap(cfg config.Config) int {
	logger := defaultLogger(cfg)
	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	files := services.NewFileService(cfg.UploadPath, cfg.AttachmentsFolder, cfg.ProfileFolder)
	reaper := services.NewAttachmentReaper(store, files, cfg.RetentionWindow, cfg.ReaperInterval,
		services.WithLogger(logger))

	result, err := reaper.Sweep(context.Background())
	if err != nil {
		fmt.Printf("Sweep failed: %v\n", err)
		return 1
	}
	fmt.Printf("Sweep finished: %d candidates, %d removed, %d skipped, %d failed\n",
		result.Candidates, result.Removed, result.Skipped, result.Failed)
	if result.Failed > 0 {
		return 1
	}
	return 0
}

// clearer is implemented by stores that can drop all their records.
type clearer interface {
	Clear() error
}

// clean deletes every record from the configured store.
func clean(cfg config.Config) int {
	if cfg.StoreDriver == config.StoreBadger {
		if _, err := os.Stat(badgerPath(cfg)); os.IsNotExist(err) {
			fmt.Println("Database is already clean (does not exist)")
			return 0
		}
	}

	fmt.Print("Are you sure you want to clean the database? This cannot be undone. [y/N] ")
	var response string
	fmt.Scanln(&response)
	if response != "y" && response != "Y" {
		fmt.Println("Operation cancelled")
		return 1
	}

	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Failed to open store: %v\n", err)
		return 1
	}
	defer store.Close()

	c, ok := store.(clearer)
	if !ok {
		fmt.Println("This store cannot be cleaned")
		return 1
	}
	if err := c.Clear(); err != nil {
		fmt.Printf("Failed to clean database: %v\n", err)
		return 1
	}
	fmt.Println("Database cleaned successfully")
	return 0
}

// initDb initializes a new empty database.
func initDb(cfg config.Config) int {
	if cfg.StoreDriver == config.StoreBadger {
		if _, err := os.Stat(badgerPath(cfg)); err == nil {
			fmt.Println("Database already exists. Use 'db clean' first if you want to reinitialize.")
			return 0
		}
	}

	// Opening a store creates the badger directory or migrates the postgres schema.
	store, err := openStore(cfg)
	if err != nil {
		fmt.Printf("Failed to initialize database: %v\n", err)
		return 1
	}
	defer store.Close()

	fmt.Println("Database initialized successfully")
	return 0
}

// backup creates a backup of the database.
func backup(cfg config.Config) int {
	if cfg.StoreDriver != config.StoreBadger {
		fmt.Println("backup only applies to the badger store; use pg_dump for postgres")
		return 1
	}
	dbPath := badgerPath(cfg)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		fmt.Println("No database exists to backup")
		return 1
	}

	dir := backupDir(cfg)
	if err := os.MkdirAll(dir, 0755); err != nil {
		fmt.Printf("Failed to create backup directory: %v\n", err)
		return 1
	}

	db, err := repositories.OpenBadger(dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	backupFile := filepath.Join(dir, fmt.Sprintf("backup_%d.db", time.Now().Unix()))
	f, err := os.Create(backupFile)
	if err != nil {
		fmt.Printf("Failed to create backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	if _, err := db.Backup(f, 0); err != nil {
		fmt.Printf("Failed to backup database: %v\n", err)
		return 1
	}

	fmt.Printf("Database backed up successfully to %s\n", backupFile)
	return 0
}

// restore restores the database from a backup.
func restore(cfg config.Config, backupFile string) int {
	if cfg.StoreDriver != config.StoreBadger {
		fmt.Println("restore only applies to the badger store")
		return 1
	}
	if _, err := os.Stat(backupFile); os.IsNotExist(err) {
		fmt.Printf("Backup file does not exist: %s\n", backupFile)
		return 1
	}

	dbPath := badgerPath(cfg)
	if _, err := os.Stat(dbPath); err == nil {
		fmt.Print("Existing database found. Do you want to replace it? [y/N] ")
		var response string
		fmt.Scanln(&response)
		if response != "y" && response != "Y" {
			fmt.Println("Operation cancelled")
			return 1
		}
		if err := os.RemoveAll(dbPath); err != nil {
			fmt.Printf("Failed to remove existing database: %v\n", err)
			return 1
		}
	}

	if err := os.MkdirAll(dbPath, 0755); err != nil {
		fmt.Printf("Failed to create database directory: %v\n", err)
		return 1
	}

	db, err := repositories.OpenBadger(dbPath)
	if err != nil {
		fmt.Printf("Failed to open database: %v\n", err)
		return 1
	}
	defer db.Close()

	f, err := os.Open(backupFile)
	if err != nil {
		fmt.Printf("Failed to open backup file: %v\n", err)
		return 1
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		fmt.Printf("Failed to stat backup file: %v\n", err)
		return 1
	}
	if fi.Size() == 0 {
		fmt.Printf("Backup file is empty: %s\n", backupFile)
		return 1
	}

	if err := load(db, f); err != nil {
		fmt.Printf("Failed to restore database: %v\n", err)
		return 1
	}

	fmt.Println("Database restored successfully")
	return 0
}

// load wraps db.Load, which panics on some malformed inputs.
func load(db *badger.DB, f *os.File) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic occurred during restore: %v", r)
		}
	}()
	return db.Load(f, 4)
}
