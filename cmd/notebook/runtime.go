package main

import (
	"context"
	"errors"
	"io"

	"github.com/MarcoPoloResearchLab/notebook/internal/config"
	"github.com/MarcoPoloResearchLab/notebook/internal/database"
	"github.com/MarcoPoloResearchLab/notebook/internal/logging"
	"github.com/MarcoPoloResearchLab/notebook/internal/notify"
	"github.com/MarcoPoloResearchLab/notebook/internal/reconcile"
	"github.com/MarcoPoloResearchLab/notebook/internal/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// runtime is one context onto the notebook database.
type runtime struct {
	config config.AppConfig
	logger *zap.Logger
	db     *gorm.DB
	store  *storage.SQLiteStore
	engine *reconcile.Engine
	out    io.Writer
}

func (a *cli) openRuntime(ctx context.Context, out io.Writer) (*runtime, error) {
	appConfig, err := config.Load(a.viper)
	if err != nil {
		return nil, err
	}

	logger, err := logging.NewLogger(appConfig.LogLevel)
	if err != nil {
		return nil, err
	}

	db, err := database.OpenSQLite(appConfig.DatabasePath, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, err
	}

	store, err := storage.NewSQLiteStore(ctx, storage.SQLiteStoreConfig{
		Database:  db,
		WatchPath: appConfig.DatabasePath,
		Logger:    logger,
	})
	if err != nil {
		_ = database.Close(db)
		_ = logger.Sync()
		return nil, err
	}

	engine, err := reconcile.NewEngine(reconcile.Config{
		Store:        store,
		PollInterval: appConfig.PollInterval,
		PersistDelay: appConfig.PersistDelay,
		Notifier:     notify.NewLogNotifier(logger),
		Logger:       logger,
	})
	if err != nil {
		_ = store.Close()
		_ = database.Close(db)
		_ = logger.Sync()
		return nil, err
	}
	if err := engine.Load(ctx); err != nil {
		logger.Warn("notebook loaded with defaults", zap.Error(err))
	}

	return &runtime{
		config: appConfig,
		logger: logger,
		db:     db,
		store:  store,
		engine: engine,
		out:    out,
	}, nil
}

// close flushes pending writes and releases the database.
func (r *runtime) close(ctx context.Context) error {
	err := errors.Join(
		r.engine.Close(ctx),
		r.store.Close(),
		database.Close(r.db),
	)
	_ = r.logger.Sync()
	return err
}

// withRuntime runs fn against a freshly loaded runtime and flushes afterwards.
func (a *cli) withRuntime(ctx context.Context, out io.Writer, fn func(*runtime) error) error {
	rt, err := a.openRuntime(ctx, out)
	if err != nil {
		return err
	}
	runErr := fn(rt)
	return errors.Join(runErr, rt.close(ctx))
}
