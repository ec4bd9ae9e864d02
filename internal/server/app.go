// Package server initializes and runs the sync service: storage backend,
// merge engine, HTTP endpoint, and graceful shutdown on OS signals.
package server

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/dmitrijs2005/daybook/internal/server/config"
	"github.com/dmitrijs2005/daybook/internal/server/httpapi"
	"github.com/dmitrijs2005/daybook/internal/server/services"
	"github.com/dmitrijs2005/daybook/internal/server/storage"
)

type App struct {
	config *config.Config
	logger logging.Logger
	stores *storage.Stores
	server *httpapi.Server
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault(cfg.LogLevel)

	var stores *storage.Stores
	var err error
	switch cfg.Store {
	case config.StoreMemory:
		stores = storage.NewMemory()
	default:
		stores, err = storage.NewPostgres(ctx, cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("db init error: %w", err)
		}
	}

	var codec *cryptox.Codec
	if cfg.SyncSecret != "" {
		codec = cryptox.NewCodec(&cryptox.DerivedKey{
			Secret: []byte(cfg.SyncSecret),
			Salt:   []byte(cfg.SyncSecretSalt),
		})
	}

	svc := services.NewService(stores, codec, logger)
	srv := httpapi.NewServer(cfg.Address, cfg.SyncKey, cfg.Ready, svc, logger)

	return &App{config: cfg, logger: logger, stores: stores, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

func (app *App) Run(ctx context.Context) {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "starting sync service", "store", app.config.Store)
	if !app.config.Ready() {
		app.logger.Warn(ctx, "SYNC_SECRET is unset, sync traffic will be refused")
	}

	app.initSignalHandler(cancelFunc)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := app.server.Run(ctx); err != nil {
			app.logger.Error(ctx, err.Error())
			cancelFunc()
		}
	}()

	wg.Wait()

	if err := app.stores.Close(); err != nil {
		app.logger.Error(ctx, err.Error())
	}
}
