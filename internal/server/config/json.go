package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/kotobachat/kotoba/internal/flagx"
	"github.com/kotobachat/kotoba/internal/timex"
)

// JsonConfig defines a configuration structure tailored for JSON unmarshalling.
// It uses timex.Duration for interval fields, which allows parsing both
// string values such as "5s" and integer nanoseconds.
//
// This struct is an intermediate DTO (Data Transfer Object) used only for
// reading JSON configuration files. After unmarshalling, its fields are
// copied into the runtime Config struct which uses time.Duration.
type JsonConfig struct {
	ListenAddr     string         `json:"listen_addr"`
	StaticDir      string         `json:"static_dir"`
	HistoryLimit   int            `json:"history_limit"`
	LogPath        string         `json:"log_path"`
	DatabaseDSN    string         `json:"database_dsn"`
	RoomPassword   string         `json:"room_password"`
	AdminPassword  string         `json:"admin_password"`
	TicketSecret   string         `json:"ticket_secret"`
	TicketTTL      timex.Duration `json:"ticket_ttl"`
	BackupSecret   string         `json:"backup_secret"`
	BackupSalt     string         `json:"backup_salt"`
	BackupDelay    timex.Duration `json:"backup_delay"`
	S3RootUser     string         `json:"s3_root_user"`
	S3RootPassword string         `json:"s3_root_password"`
	S3Bucket       string         `json:"s3_bucket"`
	S3Region       string         `json:"s3_region"`
	S3BaseEndpoint string         `json:"s3_base_endpoint"`
	S3ObjectKey    string         `json:"s3_object_key"`
}

// parseJson loads configuration values from a JSON file into the provided
// Config instance.
//
// The lookup order for the JSON file path is:
//
//	The -c or -config command-line flags.
//	If it is not set, no JSON file is loaded.
//
// If the file path is found, parseJson attempts to read and unmarshal it
// into a JsonConfig. Only keys present with non-zero values override the
// defaults already in Config, so a partial file leaves the rest untouched.
// If the file cannot be read or contains invalid JSON, the function panics.
//
// The caller is expected to merge these values with defaults and
// command-line flags as part of the full configuration process.
func parseJson(config *Config) {

	// try flags
	jsonConfigFile := flagx.JsonConfigFlags()

	// nothing to load
	if jsonConfigFile == "" {
		return
	}

	c := &JsonConfig{}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	err = json.Unmarshal(file, c)
	if err != nil {
		panic(err)
	}

	overrideString(&config.ListenAddr, c.ListenAddr)
	overrideString(&config.StaticDir, c.StaticDir)
	overrideString(&config.LogPath, c.LogPath)
	overrideString(&config.DatabaseDSN, c.DatabaseDSN)
	overrideString(&config.RoomPassword, c.RoomPassword)
	overrideString(&config.AdminPassword, c.AdminPassword)
	overrideString(&config.TicketSecret, c.TicketSecret)
	overrideString(&config.BackupSecret, c.BackupSecret)
	overrideString(&config.BackupSalt, c.BackupSalt)
	overrideString(&config.S3RootUser, c.S3RootUser)
	overrideString(&config.S3RootPassword, c.S3RootPassword)
	overrideString(&config.S3Bucket, c.S3Bucket)
	overrideString(&config.S3Region, c.S3Region)
	overrideString(&config.S3BaseEndpoint, c.S3BaseEndpoint)
	overrideString(&config.S3ObjectKey, c.S3ObjectKey)

	if c.HistoryLimit > 0 {
		config.HistoryLimit = c.HistoryLimit
	}
	if c.TicketTTL.Duration > 0 {
		config.TicketTTL = time.Duration(c.TicketTTL.Duration)
	}
	if c.BackupDelay.Duration > 0 {
		config.BackupDelay = time.Duration(c.BackupDelay.Duration)
	}
}

func overrideString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
