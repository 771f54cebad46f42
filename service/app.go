package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"murmur/app/cache"
	"murmur/app/config"
	"murmur/app/controllers"
	"murmur/app/repositories"
	"murmur/app/repositories/gormstore"
	"murmur/app/routes"
	"murmur/app/services"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

// App wires the store, services and HTTP router together.
type App struct {
	cfg     config.Config
	logger  *log.Logger
	store   repositories.Store
	cache   cache.FeedCache
	files   *services.FileService
	reaper  *services.AttachmentReaper
	handler http.Handler
}

// NewApp opens the configured store and cache and builds the services.
func NewApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*App, error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, err
	}

	feedCache, err := openCache(ctx, cfg, logger)
	if err != nil {
		store.Close()
		return nil, err
	}

	files := services.NewFileService(cfg.UploadPath, cfg.AttachmentsFolder, cfg.ProfileFolder)
	if err := files.EnsureFolders(); err != nil {
		store.Close()
		return nil, err
	}

	users := services.NewUserService(store.Users(), files, logger)
	handler := routes.SetupRoutes(routes.Dependencies{
		Feed:          services.NewFeedService(store, feedCache),
		Posts:         services.NewPostService(store, files, feedCache, logger),
		Uploads:       services.NewAttachmentService(store.Attachments(), files, logger),
		Users:         users,
		Files:         files,
		Paging:        controllers.Paging{DefaultSize: cfg.DefaultPageSize, MaxSize: cfg.MaxPageSize},
		MaxUploadSize: cfg.MaxUploadSize,
		Logger:        logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		store:  store,
		cache:  feedCache,
		files:  files,
		reaper: services.NewAttachmentReaper(store, files, cfg.RetentionWindow, cfg.ReaperInterval,
			services.WithLogger(logger.WithPrefix("reaper"))),
		handler: handler,
	}, nil
}

func openStore(cfg config.Config) (repositories.Store, error) {
	switch cfg.StoreDriver {
	case config.StorePostgres:
		store, err := gormstore.New(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data directory: %w", err)
		}
		store, err := repositories.NewBadgerStore(badgerPath(cfg))
		if err != nil {
			return nil, err
		}
		return store, nil
	}
}

// openCache builds the feed cache selected by cfg.CacheDriver.
func openCache(ctx context.Context, cfg config.Config, logger *log.Logger) (cache.FeedCache, error) {
	switch cfg.CacheDriver {
	case config.CacheRedis:
		redisCache, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.CacheTTL, logger)
		if err != nil {
			return nil, err
		}
		return redisCache, nil
	case config.CacheMemory:
		return cache.NewMemory(), nil
	default:
		return cache.Noop{}, nil
	}
}

// Handler is the HTTP handler of the app.
func (a *App) Handler() http.Handler {
	return a.handler
}

// Reaper is the attachment reaper of the app.
func (a *App) Reaper() *services.AttachmentReaper {
	return a.reaper
}

// Run serves HTTP and runs the reaper until ctx is cancelled or either
// fails, then shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              a.cfg.ListenAddr,
		Handler:           a.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("listening", "addr", a.cfg.ListenAddr, "store", a.cfg.StoreDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return a.reaper.Run(ctx)
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// Close releases the store and the cache.
func (a *App) Close() error {
	if c, ok := a.cache.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			a.logger.Warn("closing feed cache", "err", err)
		}
	}
	return a.store.Close()
}

// RunAppServer starts the server and blocks until SIGINT or SIGTERM.
func RunAppServer() int {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Printf("Invalid configuration: %v\n", err)
		return 1
	}
	logger := defaultLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := NewApp(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", "err", err)
		return 1
	}
	defer app.Close()

	if err := app.Run(ctx); err != nil {
		logger.Error("server stopped", "err", err)
		return 1
	}
	return 0
}
