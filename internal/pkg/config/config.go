package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/namsral/flag"
)

// Config - application configs
type Config struct {
	ListenAddress  string `envconfig:"LISTEN_ADDRESS" default:":8000"`
	MetricsAddress string `envconfig:"METRICS_ADDRESS" default:":8001"`

	InitDB bool `ignored:"true"`

	DBDriver   string `envconfig:"DB_DRIVER" default:"postgres"`
	DBName     string `envconfig:"DB_NAME" default:"image_hosting_db"`
	DBUser     string `envconfig:"DB_USER" default:"postgres"`
	DBPassword string `envconfig:"DB_PASSWORD" default:""`
	DBHost     string `envconfig:"DB_HOST" default:"127.0.0.1"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBSSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
	// In seconds, passed down to the driver
	DBConnectTimeout int           `envconfig:"DB_CONNECT_TIMEOUT" default:"10"`
	QueryTimeout     time.Duration `envconfig:"DB_QUERY_TIMEOUT" default:"10s"`

	PoolMinSize    int           `envconfig:"DB_POOL_MIN" default:"5"`
	PoolMaxSize    int           `envconfig:"DB_POOL_MAX" default:"20"`
	AcquireTimeout time.Duration `envconfig:"POOL_ACQUIRE_TIMEOUT" default:"1s"`

	RedisURL string        `envconfig:"REDIS_URL" default:":6379"`
	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"1m"`

	UploadFolder string `envconfig:"UPLOAD_FOLDER" default:"images"`
	// MaxImageSize maximum image size in bytes, default is 5MB
	MaxImageSize      int64 `envconfig:"MAX_IMAGE_SIZE" default:"5242880"`
	StorageDays       int   `envconfig:"STORAGE_DAYS" default:"30"`
	ImagesPerPage     int   `envconfig:"IMAGES_PER_PAGE" default:"12"`
	StatisticsPerPage int   `envconfig:"STATISTICS_PER_PAGE" default:"50"`

	AdminEmail      string `envconfig:"ADMIN_EMAIL" default:"admin@example.com"`
	AdminEmails     string `envconfig:"ADMIN_EMAILS" default:""`
	AdminPassword   string `envconfig:"ADMIN_PASSWORD" default:""`
	CreateAdminUser bool   `envconfig:"CREATE_ADMIN_USER" default:"false"`

	CleanupPoolConcurrency uint   `envconfig:"CLEANUP_POOL_CONCURRENCY" default:"10"`
	CleanupSchedule        string `envconfig:"CLEANUP_SCHEDULE" default:"0 */10 * * * *"`
	ProbeSchedule          string `envconfig:"PROBE_SCHEDULE" default:"@every 1m"`

	ThrottlerQueueLength int64         `envconfig:"THROTTLER_QUEUE_LENGTH" default:"10"`
	ThrottlerTimeout     time.Duration `envconfig:"THROTTLER_TIMEOUT" default:"15s"`

	CORSAllowOrigin  string `envconfig:"CORS_ALLOW_ORIGIN" default:"*"`
	CORSAllowHeaders string `envconfig:"CORS_ALLOW_HEADERS" default:"Authorization,Content-Type,Access-Content-Allow-Origin"`

	BackupDir         string `envconfig:"BACKUP_DIR" default:"backups"`
	S3Endpoint        string `envconfig:"S3_ENDPOINT" default:""`
	S3Region          string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Bucket          string `envconfig:"S3_BUCKET" default:""`
	S3AccessKeyID     string `envconfig:"S3_ACCESS_KEY_ID" default:""`
	S3SecretAccessKey string `envconfig:"S3_SECRET_ACCESS_KEY" default:""`

	GracefulShutdownTimeout time.Duration `default:"10s" split_words:"true"`
}

// Init - initializes configs from command line flags and environment
func Init() *Config {

	envPath := flag.String("env", ".env", "path to file with environment variables")
	initDB := flag.Bool("initdb", true, "if true then the database schema will be reconciled on startup")

	flag.Parse()

	conf := InitFrom(*envPath)
	conf.InitDB = *initDB
	return conf
}

// InitFrom - initializes configs from env file
func InitFrom(envPath string) *Config {

	App := &Config{}

	err := godotenv.Load(envPath)
	if err != nil {
		log.Printf("INFO: failed to read env file: %v", err)
	}

	err = envconfig.Process("fotohost", App)
	if err != nil {
		panic(err)
	}

	return App
}

// DataSourceName - connection string for the configured driver.
// For the sqlite3 driver (used by tests) DBName is the datasource itself.
func (cfg *Config) DataSourceName() string {
	if cfg.DBDriver == "sqlite3" {
		return cfg.DBName
	}
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s connect_timeout=%d",
		cfg.DBHost, cfg.DBPort, cfg.DBUser, cfg.DBPassword, cfg.DBName, cfg.DBSSLMode, cfg.DBConnectTimeout)
}

// AdminList - all configured administrator emails, AdminEmail included.
func (cfg *Config) AdminList() []string {
	var admins []string
	for _, e := range strings.Split(cfg.AdminEmails, ",") {
		if e = strings.TrimSpace(e); e != "" {
			admins = append(admins, e)
		}
	}
	for _, e := range admins {
		if e == cfg.AdminEmail {
			return admins
		}
	}
	if cfg.AdminEmail != "" {
		admins = append(admins, cfg.AdminEmail)
	}
	return admins
}

// IsAdmin - reports whether email belongs to a configured administrator.
func (cfg *Config) IsAdmin(email string) bool {
	for _, e := range cfg.AdminList() {
		if e == email {
			return true
		}
	}
	return false
}
