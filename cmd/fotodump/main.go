// Command fotodump creates and restores database backups using pg_dump and
// psql, optionally shipping dump files to an S3 compatible store.
package main

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"time"

	"github.com/namsral/flag"
	"github.com/rs/xid"

	"github.com/fotohosting/fotohost/internal/pkg/config"
	"github.com/fotohosting/fotohost/internal/pkg/storage"
)

func main() {
	var envFile = flag.String("env", ".env", "env file path")
	var restoreFrom = flag.String("restore", "", "restore the database from the given dump file")
	var uploadToS3 = flag.Bool("s3", false, "upload the dump to S3 after a successful backup")
	flag.Parse()

	cfg := config.InitFrom(*envFile)
	if cfg.DBDriver != "postgres" {
		log.Fatalf("FATAL: backups require the postgres driver, got %v", cfg.DBDriver)
	}

	if *restoreFrom != "" {
		restore(cfg, *restoreFrom)
		return
	}
	backup(cfg, *uploadToS3)
}

func backup(cfg *config.Config, uploadToS3 bool) {
	if err := os.MkdirAll(cfg.BackupDir, 0755); err != nil {
		log.Fatalf("FATAL: failed to create backup directory - %v", err)
	}

	name := fmt.Sprintf("%s_backup_%s.sql", cfg.DBName, time.Now().Format("2006-01-02_15-04-05"))
	path := filepath.Join(cfg.BackupDir, name)

	cmd := exec.Command("pg_dump",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-f", path,
		"--no-password",
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	cmd.Stderr = os.Stderr

	log.Printf("INFO: dumping %v to %v", cfg.DBName, path)
	if err := cmd.Run(); err != nil {
		log.Fatalf("FATAL: pg_dump failed - %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Fatalf("FATAL: dump file missing after pg_dump - %v", err)
	}
	log.Printf("INFO: backup complete, %v bytes", info.Size())

	if !uploadToS3 {
		return
	}
	s3ctx, err := storage.InitS3Context(cfg)
	if err != nil {
		log.Fatalf("FATAL: failed to init s3 session - %v", err)
	}
	file, err := os.Open(path)
	if err != nil {
		log.Fatalf("FATAL: failed to open dump file - %v", err)
	}
	defer file.Close()

	objectKey := fmt.Sprintf("backups/%s_%s", xid.New().String(), name)
	location, err := s3ctx.UploadFile(file, objectKey)
	if err != nil {
		log.Fatalf("FATAL: failed to upload dump to s3 - %v", err)
	}
	log.Printf("INFO: dump uploaded to %v", location)
}

func restore(cfg *config.Config, dumpPath string) {
	if _, err := os.Stat(dumpPath); err != nil {
		log.Fatalf("FATAL: dump file not readable - %v", err)
	}

	cmd := exec.Command("psql",
		"-h", cfg.DBHost,
		"-p", strconv.Itoa(cfg.DBPort),
		"-U", cfg.DBUser,
		"-d", cfg.DBName,
		"-f", dumpPath,
		"--no-password",
	)
	cmd.Env = append(os.Environ(), "PGPASSWORD="+cfg.DBPassword)
	cmd.Stderr = os.Stderr

	log.Printf("INFO: restoring %v from %v", cfg.DBName, dumpPath)
	if err := cmd.Run(); err != nil {
		log.Fatalf("FATAL: psql restore failed - %v", err)
	}
	log.Printf("INFO: restore complete")
}
