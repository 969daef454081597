package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestInitFromAppliesDefaults(t *testing.T) {
	cfg := InitFrom("testdata/does-not-exist.env")

	assert.Equal(t, ":8000", cfg.ListenAddress)
	assert.Equal(t, ":8001", cfg.MetricsAddress)
	assert.Equal(t, "postgres", cfg.DBDriver)
	assert.Equal(t, 5, cfg.PoolMinSize)
	assert.Equal(t, 20, cfg.PoolMaxSize)
	assert.Equal(t, int64(5242880), cfg.MaxImageSize)
	assert.Equal(t, 30, cfg.StorageDays)
	assert.False(t, cfg.CreateAdminUser)
}

func TestDataSourceNamePostgres(t *testing.T) {
	cfg := &Config{
		DBDriver:         "postgres",
		DBHost:           "db.local",
		DBPort:           5433,
		DBUser:           "foto",
		DBPassword:       "pw",
		DBName:           "fotodb",
		DBSSLMode:        "disable",
		DBConnectTimeout: 7,
	}
	assert.Equal(t,
		"host=db.local port=5433 user=foto password=pw dbname=fotodb sslmode=disable connect_timeout=7",
		cfg.DataSourceName())
}

func TestDataSourceNameSqlite(t *testing.T) {
	cfg := &Config{DBDriver: "sqlite3", DBName: ":memory:"}
	assert.Equal(t, ":memory:", cfg.DataSourceName())
}

func TestAdminList(t *testing.T) {
	cfg := &Config{AdminEmail: "root@host", AdminEmails: " a@host , b@host ,"}
	assert.Equal(t, []string{"a@host", "b@host", "root@host"}, cfg.AdminList())

	// AdminEmail already present in the list is not duplicated.
	cfg = &Config{AdminEmail: "a@host", AdminEmails: "a@host,b@host"}
	assert.Equal(t, []string{"a@host", "b@host"}, cfg.AdminList())

	cfg = &Config{}
	assert.Empty(t, cfg.AdminList())
}

func TestIsAdmin(t *testing.T) {
	cfg := &Config{AdminEmail: "root@host", AdminEmails: "ops@host"}
	assert.True(t, cfg.IsAdmin("root@host"))
	assert.True(t, cfg.IsAdmin("ops@host"))
	assert.False(t, cfg.IsAdmin("user@host"))
	assert.False(t, cfg.IsAdmin(""))
}
