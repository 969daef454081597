package fotohost

import (
	"log"

	"github.com/gocraft/work"
	"github.com/gomodule/redigo/redis"
	"github.com/robfig/cron"

	"github.com/fotohosting/fotohost/internal/pkg/cache"
	"github.com/fotohosting/fotohost/internal/pkg/config"
	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

// AppContext - everything the handlers and background jobs share.
type AppContext struct {
	DB       *storage.DB
	Config   *config.Config
	Cache    *cache.Cache
	Workers  *work.WorkerPool
	Enqueuer *work.Enqueuer
	Probe    *cron.Cron
}

var globalCtx *AppContext

func SetGlobalCtx(ctx *AppContext) {
	globalCtx = ctx
}

func GetGlobalCtx() *AppContext {
	return globalCtx
}

// WithWork attaches the redis-backed worker pool and enqueuer for async
// statistics logging and the periodic expiration sweep.
func (appCtx *AppContext) WithWork() *AppContext {
	var redisPool = &redis.Pool{
		MaxActive: 5,
		MaxIdle:   5,
		Wait:      true,
		Dial: func() (redis.Conn, error) {
			return redis.Dial("tcp", appCtx.Config.RedisURL)
		},
	}

	appCtx.Workers = InitWorkers(appCtx, redisPool)
	appCtx.Enqueuer = work.NewEnqueuer(JobNamespace, redisPool)
	return appCtx
}

// Close stops background machinery and drains the pool. Safe to call on a
// partially constructed context.
func (appCtx *AppContext) Close() {
	if appCtx.Workers != nil {
		appCtx.Workers.Stop()
	}
	if appCtx.Probe != nil {
		appCtx.Probe.Stop()
	}
	if appCtx.Cache != nil {
		appCtx.Cache.Close()
	}
	if err := appCtx.DB.Close(); err != nil {
		log.Printf("WARN: error closing database - %v", err)
	}
}
