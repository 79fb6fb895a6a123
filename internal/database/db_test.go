package database

import (
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDSN(t *testing.T) {
	dsn := DSN("booking", "s3cret", "db.internal", "3306", "rentals")

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "booking", cfg.User)
	assert.Equal(t, "s3cret", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3306", cfg.Addr)
	assert.Equal(t, "rentals", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, "utf8mb4_unicode_ci", cfg.Collation)
}

func TestDSNWithoutPassword(t *testing.T) {
	cfg, err := mysql.ParseDSN(DSN("root", "", "localhost", "3306", "rentals"))
	require.NoError(t, err)
	assert.Empty(t, cfg.Passwd)
	assert.Equal(t, "root", cfg.User)
}
