// Package server initializes and runs the chat relay. It wires the local
// log store, the optional encrypted off-site backup, the room, and the
// HTTP/websocket surface, and handles graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/kotobachat/kotoba/internal/backup"
	"github.com/kotobachat/kotoba/internal/cryptox"
	"github.com/kotobachat/kotoba/internal/filex"
	"github.com/kotobachat/kotoba/internal/logging"
	"github.com/kotobachat/kotoba/internal/logstore"
	"github.com/kotobachat/kotoba/internal/room"
	"github.com/kotobachat/kotoba/internal/server/config"
	"github.com/kotobachat/kotoba/internal/server/httpapi"
	"github.com/kotobachat/kotoba/internal/server/ws"
	"github.com/kotobachat/kotoba/internal/shared"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config  *config.Config
	logger  logging.Logger
	local   logstore.Store
	engine  *backup.Engine // nil when off-site backup is disabled
	store   *room.Store
	handler http.Handler
}

func NewApp(ctx context.Context, c *config.Config) (*App, error) {

	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.NewSlogLogger(slogger)

	local, err := openLocalStore(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("local store init error: %w", err)
	}

	engine, err := initBackup(ctx, c, logger)
	if err != nil {
		return nil, fmt.Errorf("backup init error: %w", err)
	}

	hub := room.NewHub(logger)

	// engine is assigned through a separate variable so a disabled backup
	// stays a nil interface, not a typed nil
	var b room.Backup
	if engine != nil {
		b = engine
	}
	store := room.NewStore(local, b, hub, logger, c.HistoryLimit, c.AdminPassword)

	registry := room.NewRegistry(hub, logger)
	registry.SetOnEmpty(store.FlushBackup)

	ticketSecret := c.TicketSecret
	if ticketSecret == "" {
		ticketSecret, err = shared.MakeRandHexString(32)
		if err != nil {
			return nil, fmt.Errorf("ticket secret init error: %w", err)
		}
	}

	wsHandler := ws.NewHandler(store, registry, logger, []byte(ticketSecret), c.RoomPassword != "")
	router := httpapi.NewRouter(httpapi.Options{
		RoomPassword: c.RoomPassword,
		TicketSecret: []byte(ticketSecret),
		TicketTTL:    c.TicketTTL,
		StaticDir:    c.StaticDir,
	}, wsHandler, logger)

	return &App{
		config:  c,
		logger:  logger,
		local:   local,
		engine:  engine,
		store:   store,
		handler: router,
	}, nil
}

// openLocalStore picks the durable backend: Postgres when a DSN is
// configured, a JSON file otherwise.
func openLocalStore(ctx context.Context, c *config.Config) (logstore.Store, error) {
	if c.DatabaseDSN != "" {
		return logstore.OpenPostgres(ctx, c.DatabaseDSN)
	}
	if dir := filepath.Dir(c.LogPath); dir != "." {
		if err := filex.EnsureDir(dir); err != nil {
			return nil, err
		}
	}
	return logstore.NewFileStore(c.LogPath)
}

// initBackup builds the off-site backup engine. Backup requires both an
// S3 endpoint and an encryption secret; anything less disables it.
func initBackup(ctx context.Context, c *config.Config, logger logging.Logger) (*backup.Engine, error) {
	if c.S3BaseEndpoint == "" || c.BackupSecret == "" {
		logger.Info(ctx, "off-site backup disabled")
		return nil, nil
	}

	remote, err := backup.NewS3Store(ctx, backup.S3Config{
		RootUser:     c.S3RootUser,
		RootPassword: c.S3RootPassword,
		Bucket:       c.S3Bucket,
		Region:       c.S3Region,
		BaseEndpoint: c.S3BaseEndpoint,
		ObjectKey:    c.S3ObjectKey,
	})
	if err != nil {
		return nil, err
	}

	codec, err := cryptox.NewCodec([]byte(c.BackupSecret), []byte(c.BackupSalt))
	if err != nil {
		return nil, err
	}

	return backup.NewEngine(remote, codec, logger, c.BackupDelay), nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...")

	app.initSignalHandler(cancelFunc)

	if err := app.store.Hydrate(ctx); err != nil {
		return fmt.Errorf("hydrate error: %w", err)
	}

	engineDone := make(chan struct{})
	if app.engine != nil {
		go func() {
			defer close(engineDone)
			app.engine.Run(ctx)
		}()
	} else {
		close(engineDone)
	}

	srv := &http.Server{
		Addr:    app.config.ListenAddr,
		Handler: app.handler,
		// no WriteTimeout: it would sever long-lived websockets
		ReadHeaderTimeout: 15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "listening", "addr", app.config.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case runErr = <-errCh:
		cancelFunc()
	case <-ctx.Done():
	}

	app.logger.Info(ctx, "shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		app.logger.Error(shutdownCtx, "server shutdown error", "error", err)
	}

	// the engine flushes any pending backup before exiting
	<-engineDone

	if err := app.local.Close(); err != nil {
		app.logger.Error(shutdownCtx, "local store close error", "error", err)
	}

	return runErr
}
