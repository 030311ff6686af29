package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"listen_addr":      "www.example:9000",
		"static_dir":       "assets",
		"history_limit":    25,
		"log_path":         "chat.json",
		"database_dsn":     "postgres://chat",
		"room_password":    "roompass",
		"admin_password":   "adminpass",
		"ticket_secret":    "ticketsecret",
		"ticket_ttl":       "30m",
		"backup_secret":    "backupsecret",
		"backup_salt":      "salt",
		"backup_delay":     "2s",
		"s3_root_user":     "user",
		"s3_root_password": "password",
		"s3_bucket":        "bucket",
		"s3_region":        "region",
		"s3_base_endpoint": "base_endpoint",
		"s3_object_key":    "log.enc",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:9000", cfg.ListenAddr)
		assert.Equal(t, "assets", cfg.StaticDir)
		assert.Equal(t, 25, cfg.HistoryLimit)
		assert.Equal(t, "chat.json", cfg.LogPath)
		assert.Equal(t, "postgres://chat", cfg.DatabaseDSN)
		assert.Equal(t, "roompass", cfg.RoomPassword)
		assert.Equal(t, "adminpass", cfg.AdminPassword)
		assert.Equal(t, "ticketsecret", cfg.TicketSecret)
		assert.Equal(t, 30*time.Minute, cfg.TicketTTL)
		assert.Equal(t, "backupsecret", cfg.BackupSecret)
		assert.Equal(t, "salt", cfg.BackupSalt)
		assert.Equal(t, 2*time.Second, cfg.BackupDelay)
		assert.Equal(t, "user", cfg.S3RootUser)
		assert.Equal(t, "password", cfg.S3RootPassword)
		assert.Equal(t, "bucket", cfg.S3Bucket)
		assert.Equal(t, "region", cfg.S3Region)
		assert.Equal(t, "base_endpoint", cfg.S3BaseEndpoint)
		assert.Equal(t, "log.enc", cfg.S3ObjectKey)
	})

	t.Run("partial json keeps defaults", func(t *testing.T) {
		partial := writeTempJSON(t, dir, "partial.json", map[string]any{
			"listen_addr": ":9999",
		})
		os.Args = []string{"testbin", "-config", partial}

		cfg := &Config{}
		cfg.LoadDefaults()
		parseJson(cfg)

		assert.Equal(t, ":9999", cfg.ListenAddr)
		assert.Equal(t, "public", cfg.StaticDir)
		assert.Equal(t, 100, cfg.HistoryLimit)
		assert.Equal(t, 5*time.Second, cfg.BackupDelay)
	})

	t.Run("no CONFIG and no flags → no changes", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			ListenAddr:   "defaults:1234",
			LogPath:      "chat.json",
			TicketTTL:    2 * time.Minute,
			BackupDelay:  3 * time.Second,
			S3RootUser:   "s3root",
			S3Bucket:     "s3bucket",
			HistoryLimit: 7,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.ListenAddr)
		assert.Equal(t, "chat.json", cfg.LogPath)
		assert.Equal(t, 2*time.Minute, cfg.TicketTTL)
		assert.Equal(t, 3*time.Second, cfg.BackupDelay)
		assert.Equal(t, "s3root", cfg.S3RootUser)
		assert.Equal(t, "s3bucket", cfg.S3Bucket)
		assert.Equal(t, 7, cfg.HistoryLimit)
	})

	t.Run("invalid JSON → panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
