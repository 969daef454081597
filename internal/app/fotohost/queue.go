package fotohost

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/gocraft/work"
	"github.com/gomodule/redigo/redis"

	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

const (
	JobNamespace = "fotohost_jobs"
	StatTask     = "log_statistics"
	CleanupTask  = "cleanup_expired"
)

type jobContext struct {
	*AppContext
}

// LogStat - async form of statistics logging, fed by the enqueuer.
func (c *jobContext) LogStat(job *work.Job) error {
	c.AppContext = GetGlobalCtx()

	entry := storage.StatEntry{
		ActionType:     job.ArgString("action_type"),
		UserEmail:      job.ArgString("user_email"),
		FileID:         job.ArgInt64("file_id"),
		IPAddress:      job.ArgString("ip_address"),
		UserAgent:      job.ArgString("user_agent"),
		AdditionalInfo: job.ArgString("additional_info"),
	}
	return c.DB.LogStat(context.Background(), &entry)
}

// Cleanup - periodic expiration sweep.
func (c *jobContext) Cleanup(job *work.Job) error {
	c.AppContext = GetGlobalCtx()
	deleted, errs := RunCleanup(c.AppContext)
	log.Printf("CLEANUP_POOL: sweep finished, deleted=%v errors=%v", deleted, len(errs))
	return nil
}

// RunCleanup deletes every image whose retention window has passed: the file
// first, then the database row. Per-item failures are isolated and logged so
// one bad row never aborts the rest of the sweep.
func RunCleanup(appCtx *AppContext) (int, []string) {
	ctx := context.Background()

	expired, err := appCtx.DB.GetExpiredImages(ctx, time.Now())
	if err != nil {
		log.Printf("ERROR: cleanup sweep failed to list expired images - %v", err)
		return 0, []string{err.Error()}
	}

	var deleted int
	var errs []string
	for _, img := range expired {
		if err := removeImageFile(appCtx, &img); err != nil {
			log.Printf("WARN: cleanup could not remove file for image %v - %v", img.ID, err)
			errs = append(errs, fmt.Sprintf("image %v: %v", img.ID, err))
			continue
		}
		if err := appCtx.DB.DeleteImage(ctx, img.ID); err != nil {
			log.Printf("WARN: cleanup could not delete row for image %v - %v", img.ID, err)
			errs = append(errs, fmt.Sprintf("image %v: %v", img.ID, err))
			continue
		}
		deleted++
	}

	appCtx.DB.MustLogStat(ctx, &storage.StatEntry{
		ActionType:     "cleanup_completed",
		AdditionalInfo: fmt.Sprintf("Deleted: %v, Errors: %v", deleted, len(errs)),
	})
	appCtx.Cache.Invalidate(summaryCacheKey)
	return deleted, errs
}

func removeImageFile(appCtx *AppContext, img *storage.Image) error {
	path := filepath.Join(appCtx.Config.UploadFolder, folderFor(img.UserEmail), img.Filename)
	err := os.Remove(path)
	if os.IsNotExist(err) {
		// DB and filesystem can drift; a missing file is not an error here.
		return nil
	}
	return err
}

// LogStatAsync enqueues a statistics write, falling back to a synchronous
// write when the worker pool is not attached.
func (appCtx *AppContext) LogStatAsync(entry *storage.StatEntry) {
	if appCtx.Enqueuer == nil {
		appCtx.DB.MustLogStat(context.Background(), entry)
		return
	}
	_, err := appCtx.Enqueuer.Enqueue(StatTask, work.Q{
		"action_type":     entry.ActionType,
		"user_email":      entry.UserEmail,
		"file_id":         entry.FileID,
		"ip_address":      entry.IPAddress,
		"user_agent":      entry.UserAgent,
		"additional_info": entry.AdditionalInfo,
	})
	if err != nil {
		log.Printf("ERROR: failed to enqueue statistics task: %v", err)
		appCtx.DB.MustLogStat(context.Background(), entry)
	}
}

// ScheduleCleanup enqueues an immediate sweep. Used by the admin endpoint;
// the periodic schedule is registered in InitWorkers.
func (appCtx *AppContext) ScheduleCleanup() bool {
	if appCtx.Enqueuer == nil {
		return false
	}
	_, err := appCtx.Enqueuer.EnqueueUnique(CleanupTask, nil)
	if err != nil {
		log.Printf("ERROR: failed to enqueue cleanup task: %v", err)
		return false
	}
	return true
}

func InitWorkers(appCtx *AppContext, redisPool *redis.Pool) *work.WorkerPool {

	SetGlobalCtx(appCtx)

	pool := work.NewWorkerPool(jobContext{}, appCtx.Config.CleanupPoolConcurrency, JobNamespace, redisPool)

	pool.Job(StatTask, (*jobContext).LogStat)
	pool.Job(CleanupTask, (*jobContext).Cleanup)
	pool.PeriodicallyEnqueue(appCtx.Config.CleanupSchedule, CleanupTask)

	pool.Start()

	return pool
}
