package config

import (
	"flag"
	"os"

	"github.com/kotobachat/kotoba/internal/flagx"
)

// parseFlags populates selected server Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   bind address (e.g., ":8080")
//	-s string   static assets directory
//	-f string   local message log file path
//	-d string   PostgreSQL DSN (when set, the log lives in Postgres)
//	-n int      retained history limit
//	-w string   room entry password
//	-m string   admin password
//	-k string   backup encryption secret
//	-u string   S3 root user
//	-p string   S3 root password
//	-b string   S3 bucket name
//	-g string   S3 region
//	-e string   S3 base endpoint (e.g., "http://127.0.0.1:9000/")
//	-o string   S3 object key of the encrypted log
//
// Notes:
//   - The function first filters os.Args to only the flags it recognizes using
//     flagx.FilterArgs, avoiding collisions with other components.
func parseFlags(config *Config) {
	// Filter args to include only the flags handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-s", "-f", "-d", "-n", "-w", "-m", "-k", "-u", "-p", "-b", "-g", "-e", "-o"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "address and port to run server")
	fs.StringVar(&config.StaticDir, "s", config.StaticDir, "static assets directory")
	fs.StringVar(&config.LogPath, "f", config.LogPath, "message log file path")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.IntVar(&config.HistoryLimit, "n", config.HistoryLimit, "retained history limit")
	fs.StringVar(&config.RoomPassword, "w", config.RoomPassword, "room entry password")
	fs.StringVar(&config.AdminPassword, "m", config.AdminPassword, "admin password")
	fs.StringVar(&config.BackupSecret, "k", config.BackupSecret, "backup encryption secret")

	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 root bucket")
	fs.StringVar(&config.S3Region, "g", config.S3Region, "S3 root region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3ObjectKey, "o", config.S3ObjectKey, "S3 object key")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
