// Package app initializes and runs the course-learning service.
// It configures logging, storage, the identity provider client, the
// session synchronizer, the generation clients, and routing, and
// handles graceful shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/skillatlas/skillatlas/internal/aicontent"
	"github.com/skillatlas/skillatlas/internal/auth"
	"github.com/skillatlas/skillatlas/internal/authactions"
	"github.com/skillatlas/skillatlas/internal/authprovider"
	"github.com/skillatlas/skillatlas/internal/chat"
	"github.com/skillatlas/skillatlas/internal/config"
	"github.com/skillatlas/skillatlas/internal/contentcache"
	"github.com/skillatlas/skillatlas/internal/courseremover"
	"github.com/skillatlas/skillatlas/internal/db/jsondb"
	"github.com/skillatlas/skillatlas/internal/db/memorystorage"
	"github.com/skillatlas/skillatlas/internal/db/postgresdb"
	"github.com/skillatlas/skillatlas/internal/db/storage"
	"github.com/skillatlas/skillatlas/internal/ipchecker"
	"github.com/skillatlas/skillatlas/internal/logger"
	"github.com/skillatlas/skillatlas/internal/models"
	"github.com/skillatlas/skillatlas/internal/notifier"
	"github.com/skillatlas/skillatlas/internal/router"
	"github.com/skillatlas/skillatlas/internal/service"
	"github.com/skillatlas/skillatlas/internal/session"
	"github.com/skillatlas/skillatlas/internal/sessioncache"
	"github.com/skillatlas/skillatlas/internal/tts"
)

// App encapsulates the configuration, HTTP handler, storage backend,
// and background services (the course remover and the session
// synchronizer) needed to run the course-learning service.
type App struct {
	cfg               *config.Config
	db                storage.Storage
	courseRemover     *courseremover.CourseRemover
	stopCourseRemover context.CancelFunc
	synchronizer      *session.Synchronizer
	contentCache      *contentcache.Cache
	httpHandler       http.Handler
}

// New initializes a new instance of App by:
// - loading configuration
// - initializing logger
// - selecting and setting up storage
// - connecting the identity provider client and the session synchronizer
// - setting up the background course remover
// - setting up the router and middleware
func New() (*App, error) {
	var err error
	app := &App{}

	app.cfg, err = config.New()
	if err != nil {
		return nil, err
	}

	err = logger.Init(app.cfg.LogLevel)
	if err != nil {
		return nil, err
	}

	app.db, err = getStorageByType(app.cfg)
	if err != nil {
		return nil, err
	}

	provider := authprovider.New(
		app.cfg.AuthBaseURL,
		app.cfg.AuthAPIKey,
		app.cfg.AuthTokenFile,
	)
	snapshot := sessioncache.New(app.cfg.SessionCacheFile)

	app.synchronizer = session.New(provider, snapshot)
	app.synchronizer.Init(context.Background())

	actions := authactions.New(
		provider,
		snapshot,
		&notifier.LogNotifier{},
		app.cfg.AppURL,
	)

	app.contentCache, err = contentcache.New(context.Background(), app.cfg.RedisAddr)
	if err != nil {
		return nil, err
	}

	app.courseRemover = courseremover.New(
		app.db,
		app.cfg.ChannelCapacity,
		app.cfg.DelayBetweenQueueFetches,
	)
	courseRemoverRunCtx, stopCourseRemover := context.WithCancel(context.Background())
	app.stopCourseRemover = stopCourseRemover

	app.courseRemover.Run(courseRemoverRunCtx)
	app.courseRemover.ListenErrors(func(err error) {
		logger.Log.Debugln("Error passed from the `app.courseRemover.ListenErrors()`:", zap.Error(err))
	})

	aiClient := aicontent.New(app.cfg.AIBaseURL, app.cfg.AIAPIKey, app.cfg.AIModel)

	courseService := service.New(
		app.db,
		aiClient,
		aiClient,
		tts.New(app.cfg.TTSBaseURL, app.cfg.TTSAPIKey),
		chat.New(app.cfg.AIBaseURL, app.cfg.AIAPIKey, app.cfg.AIModel),
		app.contentCache,
		app.courseRemover,
	)

	checker, err := ipchecker.New(app.cfg.TrustedSubnet)
	if err != nil {
		return nil, err
	}

	app.httpHandler = router.New(
		courseService,
		actions,
		app.synchronizer,
		auth.New(app.cfg.AuthCookieName, []byte(app.cfg.AuthJWTSecret)),
		checker,
	)

	return app, nil
}

// Run starts the HTTP server with graceful shutdown support.
// It listens for system signals and cleans up resources upon termination.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Log.Infoln("server running", "RunAddr", a.cfg.RunAddr)

	server := &http.Server{
		Addr:    a.cfg.RunAddr,
		Handler: a.httpHandler,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Log.Infoln("Received shutdown signal. Saving database and exiting...")
		a.stopCourseRemover()
		a.synchronizer.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}

		if err := a.contentCache.Close(); err != nil {
			logger.Log.Debugln("Error calling the `a.contentCache.Close()`: ", zap.Error(err))
		}

		return a.db.Close()

	case err := <-serverErrCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Close finalizes resources used by App such as logging.
func (a *App) Close() {
	if err := logger.Sync(); err != nil {
		fmt.Println("Logger sync error:", err)
	}
}

func getAvailableStorageType(cfg *config.Config) int {
	if cfg.DatabaseDSN != "" {
		return models.StorageTypePostgresql
	}

	if cfg.DBFileName != "" {
		return models.StorageTypeFile
	}

	return models.StorageTypeMemory
}

func getStorageByType(cfg *config.Config) (storage.Storage, error) {
	switch getAvailableStorageType(cfg) {
	case models.StorageTypeUnknown:
		return nil, errors.New("unknown storage type")

	case models.StorageTypePostgresql:
		return postgresdb.New(
			context.Background(),
			cfg.DatabaseDSN,
			cfg.DBConnectionTimeout,
			cfg.MigrationsDir,
		)

	case models.StorageTypeFile:
		return jsondb.New(cfg.DBFileName)
	}

	return memorystorage.New()
}
