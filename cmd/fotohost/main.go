package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fotohosting/fotohost/internal/app/fotohost"
	"github.com/fotohosting/fotohost/internal/pkg/cache"
	"github.com/fotohosting/fotohost/internal/pkg/config"
	"github.com/fotohosting/fotohost/internal/pkg/monitoring"
	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

func main() {
	cfg := config.Init()

	db, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("FATAL: failed to connect to database - %v", err)
	}

	if cfg.InitDB {
		if err = db.EnsureSchema(context.Background()); err != nil {
			log.Printf("ERROR: failed to reconcile schema - %v", err)
		}
	}

	appCtx := &fotohost.AppContext{
		DB:     db,
		Config: cfg,
		Cache:  cache.New(cfg.RedisURL, cfg.CacheTTL),
	}
	appCtx.WithWork()
	appCtx.Probe = monitoring.StartProbe(db.Pool(), cfg.ProbeSchedule)
	defer appCtx.Close()

	server := fotohost.NewServer(appCtx)

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-stop
		log.Printf("INFO: received %v, shutting down", sig)
		ctx, cancel := context.WithTimeout(context.Background(), cfg.GracefulShutdownTimeout)
		defer cancel()
		server.Shutdown(ctx)
	}()

	if err = server.Run(); err != nil {
		log.Fatalf("FATAL: server failed - %v", err)
	}
	log.Printf("INFO: shutdown complete")
}
