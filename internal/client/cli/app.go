// Package cli wires the daybook client together and dispatches its
// subcommands.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/daybook/internal/client/config"
	"github.com/dmitrijs2005/daybook/internal/client/serialize"
	"github.com/dmitrijs2005/daybook/internal/client/services"
	"github.com/dmitrijs2005/daybook/internal/client/storage"
	"github.com/dmitrijs2005/daybook/internal/client/tracker"
	"github.com/dmitrijs2005/daybook/internal/client/transport"
	"github.com/dmitrijs2005/daybook/internal/cryptox"
	"github.com/dmitrijs2005/daybook/internal/flagx"
	"github.com/dmitrijs2005/daybook/internal/logging"
	"github.com/google/uuid"

	_ "modernc.org/sqlite"
)

type App struct {
	config  *config.Config
	store   *storage.Store
	tracker *tracker.Tracker
	sync    *services.SyncService
	api     *transport.Client
	out     io.Writer
	logger  logging.Logger
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	logger := logging.NewDefault("warn")

	store, err := storage.Open(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("error initializing database: %w", err)
	}

	if err := ensureDeviceID(ctx, store); err != nil {
		store.Close()
		return nil, err
	}

	var codec *cryptox.Codec
	if cfg.CryptoSecret != "" {
		codec = cryptox.NewCodec(&cryptox.DerivedKey{
			Secret: []byte(cfg.CryptoSecret),
			Salt:   []byte(cfg.CryptoSalt),
		})
	}

	tr := tracker.New(store, logger)
	ser := serialize.New(codec)
	api := transport.New(cfg.ServerBaseURL, cfg.SyncKey)
	syncSvc := services.NewSyncService(store, tr, ser, api, logger)

	return &App{
		config:  cfg,
		store:   store,
		tracker: tr,
		sync:    syncSvc,
		api:     api,
		out:     os.Stdout,
		logger:  logger,
	}, nil
}

func (a *App) Close() error {
	return a.store.Close()
}

// Run dispatches the subcommand named by the first positional argument.
func (a *App) Run(ctx context.Context) error {
	args := flagx.Positional(os.Args[1:])
	if len(args) == 0 {
		a.usage()
		return nil
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "sync":
		return a.cmdSync(ctx)
	case "probe":
		return a.cmdProbe(ctx)
	case "status":
		return a.cmdStatus(ctx)
	case "list":
		return a.cmdList(ctx)
	case "add-entry":
		return a.cmdAddEntry(ctx, rest)
	case "delete-entry":
		return a.cmdDeleteEntry(ctx, rest)
	case "conflicts":
		return a.cmdConflicts(ctx)
	case "resolve":
		return a.cmdResolve(ctx, rest)
	default:
		a.usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, `usage: daybook <command> [args]

commands:
  sync                          run a full sync cycle
  probe                         check service health
  status                        show dirty records and pending deletions
  list                          list journal entries
  add-entry <content...>        create a journal entry
  delete-entry <id>             delete a journal entry
  conflicts                     list unresolved conflicts
  resolve <store> <id> <side>   settle a conflict, side is "local" or "remote"`)
}

// ensureDeviceID assigns this installation a stable identifier on first run.
func ensureDeviceID(ctx context.Context, store *storage.Store) error {
	id, err := store.Meta.DeviceID(ctx)
	if err != nil {
		return err
	}
	if id != "" {
		return nil
	}
	return store.Meta.SetDeviceID(ctx, uuid.NewString())
}
