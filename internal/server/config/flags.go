package config

import (
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/flagx"
	"github.com/shopspring/decimal"
)

// parseFlags overlays command-line flags onto config.
//
// Supported flags (short forms):
//
//	-a string    bank protocol bind address (e.g. ":8888")
//	-g string    gRPC health bind address, "" disables
//	-k string    snapshot backend: file, postgres or s3
//	-f string    snapshot file path
//	-d string    PostgreSQL DSN
//	-u string    S3 root user
//	-p string    S3 root password
//	-b string    S3 bucket name
//	-r string    S3 region
//	-e string    S3 base endpoint (e.g. "http://127.0.0.1:9000/")
//	-o string    S3 object key
//	-i decimal   interest rate per period (e.g. 0.05)
//	-t duration  interest period (e.g. 24h)
//	-w duration  shutdown grace period
//	-l string    user activity log file, "" logs activity to stdout
//	-m int       password hashes computed at once
//	-v string    log level
func parseFlags(config *Config, args []string) error {
	fs, args := flagx.NewFlagSet("server", args,
		"a", "g", "k", "f", "d", "u", "p", "b", "r", "e", "o", "i", "t", "w", "l", "m", "v")

	fs.StringVar(&config.ListenAddr, "a", config.ListenAddr, "bank protocol address")
	fs.StringVar(&config.HealthAddr, "g", config.HealthAddr, "gRPC health address")
	fs.StringVar(&config.SnapshotBackend, "k", config.SnapshotBackend, "snapshot backend")
	fs.StringVar(&config.SnapshotPath, "f", config.SnapshotPath, "snapshot file")
	fs.StringVar(&config.DatabaseDSN, "d", config.DatabaseDSN, "database DSN")
	fs.StringVar(&config.S3RootUser, "u", config.S3RootUser, "S3 root user")
	fs.StringVar(&config.S3RootPassword, "p", config.S3RootPassword, "S3 root password")
	fs.StringVar(&config.S3Bucket, "b", config.S3Bucket, "S3 bucket")
	fs.StringVar(&config.S3Region, "r", config.S3Region, "S3 region")
	fs.StringVar(&config.S3BaseEndpoint, "e", config.S3BaseEndpoint, "S3 base endpoint")
	fs.StringVar(&config.S3Key, "o", config.S3Key, "S3 object key")
	fs.Func("i", "interest rate per period", func(s string) error {
		rate, err := decimal.NewFromString(s)
		if err != nil {
			return err
		}
		config.InterestRate = rate
		return nil
	})
	fs.DurationVar(&config.InterestPeriod, "t", config.InterestPeriod, "interest period")
	fs.DurationVar(&config.ShutdownGracePeriod, "w", config.ShutdownGracePeriod, "shutdown grace period")
	fs.StringVar(&config.ActivityLogPath, "l", config.ActivityLogPath, "user activity log file")
	fs.IntVar(&config.HashConcurrency, "m", config.HashConcurrency, "concurrent password hashes")
	fs.StringVar(&config.LogLevel, "v", config.LogLevel, "log level")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
