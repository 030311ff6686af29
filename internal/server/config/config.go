// Package config handles configuration for the relay server, including
// defaults, JSON overlay, and command-line flags.
package config

import "time"

// Config holds runtime settings for the relay.
//
// Fields:
//   - ListenAddr: bind address for the HTTP/websocket endpoint.
//   - StaticDir: directory of static client assets; empty disables serving.
//   - HistoryLimit: maximum number of retained messages (FIFO eviction).
//   - LogPath: path of the local JSON log file (used when DatabaseDSN is empty).
//   - DatabaseDSN: PostgreSQL DSN (pgx); when set, the log lives in Postgres.
//   - RoomPassword: room entry password; empty leaves the room open.
//   - AdminPassword: credential for the admin clear operation.
//   - TicketSecret: HMAC secret for room entry tickets; empty means a fresh
//     random secret per process.
//   - TicketTTL: room ticket lifetime.
//   - BackupSecret / BackupSalt: inputs of the backup encryption key.
//   - BackupDelay: debounce applied to scheduled (non-immediate) backups.
//   - S3RootUser / S3RootPassword: credentials for the S3-compatible backend.
//   - S3Bucket / S3Region / S3BaseEndpoint / S3ObjectKey: object storage
//     settings. An empty S3BaseEndpoint disables off-site backup entirely.
type Config struct {
	ListenAddr     string
	StaticDir      string
	HistoryLimit   int
	LogPath        string
	DatabaseDSN    string
	RoomPassword   string
	AdminPassword  string
	TicketSecret   string
	TicketTTL      time.Duration
	BackupSecret   string
	BackupSalt     string
	BackupDelay    time.Duration
	S3RootUser     string
	S3RootPassword string
	S3Bucket       string
	S3Region       string
	S3BaseEndpoint string
	S3ObjectKey    string
}

// LoadDefaults populates Config with development defaults.
// NOTE: The passwords are placeholders and must be overridden in prod.
func (c *Config) LoadDefaults() {
	c.ListenAddr = ":8080"
	c.StaticDir = "public"
	c.HistoryLimit = 100
	c.LogPath = "data/messages.json"
	c.DatabaseDSN = ""
	c.RoomPassword = ""
	c.AdminPassword = ""
	c.TicketSecret = ""
	c.TicketTTL = 1 * time.Hour
	c.BackupSecret = ""
	c.BackupSalt = "kotoba-backup-v1"
	c.BackupDelay = 5 * time.Second
	c.S3RootUser = "admin"
	c.S3RootPassword = "secretpassword"
	c.S3Bucket = "kotoba"
	c.S3Region = "us-east-1"
	c.S3BaseEndpoint = ""
	c.S3ObjectKey = "room/log.enc"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags.
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
