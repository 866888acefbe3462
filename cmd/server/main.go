package main

import (
	"context"
	"time"

	"tabula/internal/access"
	"tabula/internal/api"
	"tabula/internal/collections"
	"tabula/internal/config"
	"tabula/internal/db"
	"tabula/internal/fields"
	"tabula/internal/meta"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func buildLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	var lvl zapcore.Level
	if err := lvl.Set(level); err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

func main() {
	cfg := config.LoadWithPath("tabula.json")

	logger, err := buildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer logger.Sync()
	log := logger.Sugar()

	if cfg.DBURL == "" {
		log.Fatal("database url is required (-db or TABULA_DB_URL)")
	}

	conn, err := db.Open(cfg.DBURL)
	if err != nil {
		log.Fatalw("database connect failed", "err", err)
	}
	log.Infow("connected", "engine", conn.Engine, "database", conn.Database)

	insp, exec, err := db.New(conn.Engine, conn)
	if err != nil {
		log.Fatalw("dialect setup failed", "err", err)
	}

	store := meta.NewStore(conn)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := store.EnsureTables(ctx, insp, exec); err != nil {
		log.Fatalw("system tables setup failed", "err", err)
	}

	registry, err := config.BuildRegistry(cfg.DisksFile, cfg.FilesRoot)
	if err != nil {
		log.Fatalw("storage disks setup failed", "err", err)
	}
	log.Infow("storage ready", "disks", registry.Disks())

	perms := access.AllowAll{}
	app := &api.API{
		Fields:      fields.NewService(insp, exec, store, perms, log),
		Collections: collections.NewService(insp, exec, store, log),
		Store:       store,
		Blobs:       registry,
		Log:         log,
	}

	log.Infow("listening", "port", cfg.Port)
	if err := api.RunServer(":"+cfg.Port, app); err != nil {
		log.Fatalw("server stopped", "err", err)
	}
}
