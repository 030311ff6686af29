package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, c.ListenAddr, ":8080")
	assert.Equal(t, c.StaticDir, "public")
	assert.Equal(t, c.HistoryLimit, 100)
	assert.Equal(t, c.LogPath, "data/messages.json")
	assert.Equal(t, c.DatabaseDSN, "")
	assert.Equal(t, c.RoomPassword, "")
	assert.Equal(t, c.AdminPassword, "")
	assert.Equal(t, c.TicketSecret, "")
	assert.Equal(t, c.TicketTTL, 1*time.Hour)
	assert.Equal(t, c.BackupSecret, "")
	assert.Equal(t, c.BackupSalt, "kotoba-backup-v1")
	assert.Equal(t, c.BackupDelay, 5*time.Second)
	assert.Equal(t, c.S3RootUser, "admin")
	assert.Equal(t, c.S3RootPassword, "secretpassword")
	assert.Equal(t, c.S3Bucket, "kotoba")
	assert.Equal(t, c.S3Region, "us-east-1")
	assert.Equal(t, c.S3BaseEndpoint, "")
	assert.Equal(t, c.S3ObjectKey, "room/log.enc")
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	c := LoadConfig()

	require.NotNil(t, c, "LoadConfig must not return nil")

	assert.Equal(t, c.ListenAddr, ":8080")
	assert.Equal(t, c.HistoryLimit, 100)
	assert.Equal(t, c.LogPath, "data/messages.json")
	assert.Equal(t, c.BackupDelay, 5*time.Second)
	assert.Equal(t, c.S3ObjectKey, "room/log.enc")
}
