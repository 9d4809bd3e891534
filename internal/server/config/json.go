package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/gophbank/internal/flagx"
	"github.com/dmitrijs2005/gophbank/internal/timex"
	"github.com/shopspring/decimal"
)

// JsonConfig mirrors Config for JSON files. Durations go through
// timex.Duration so both "5s" and integer nanoseconds are accepted. Absent
// or empty fields leave the current value alone.
type JsonConfig struct {
	ListenAddr          string           `json:"listen_addr"`
	HealthAddr          *string          `json:"health_addr"`
	SnapshotBackend     string           `json:"snapshot_backend"`
	SnapshotPath        string           `json:"snapshot_path"`
	DatabaseDSN         string           `json:"database_dsn"`
	S3RootUser          string           `json:"s3_root_user"`
	S3RootPassword      string           `json:"s3_root_password"`
	S3Bucket            string           `json:"s3_bucket"`
	S3Region            string           `json:"s3_region"`
	S3BaseEndpoint      *string          `json:"s3_base_endpoint"`
	S3Key               string           `json:"s3_key"`
	InterestRate        *decimal.Decimal `json:"interest_rate"`
	InterestPeriod      timex.Duration   `json:"interest_period"`
	ShutdownGracePeriod timex.Duration   `json:"shutdown_grace_period"`
	ActivityLogPath     *string          `json:"activity_log_path"`
	HashConcurrency     int              `json:"hash_concurrency"`
	LogLevel            string           `json:"log_level"`
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

// parseJson overlays the file named by -c/-config, if any, onto config.
// The pointer fields may be set to "" explicitly to switch a feature off.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&config.ListenAddr, c.ListenAddr)
	setString(&config.SnapshotBackend, c.SnapshotBackend)
	setString(&config.SnapshotPath, c.SnapshotPath)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.S3RootUser, c.S3RootUser)
	setString(&config.S3RootPassword, c.S3RootPassword)
	setString(&config.S3Bucket, c.S3Bucket)
	setString(&config.S3Region, c.S3Region)
	setString(&config.S3Key, c.S3Key)
	setString(&config.LogLevel, c.LogLevel)

	if c.HealthAddr != nil {
		config.HealthAddr = *c.HealthAddr
	}
	if c.S3BaseEndpoint != nil {
		config.S3BaseEndpoint = *c.S3BaseEndpoint
	}
	if c.ActivityLogPath != nil {
		config.ActivityLogPath = *c.ActivityLogPath
	}
	if c.InterestRate != nil {
		config.InterestRate = *c.InterestRate
	}
	if c.InterestPeriod.Duration != 0 {
		config.InterestPeriod = c.InterestPeriod.Duration
	}
	if c.HashConcurrency != 0 {
		config.HashConcurrency = c.HashConcurrency
	}
	if c.ShutdownGracePeriod.Duration != 0 {
		config.ShutdownGracePeriod = c.ShutdownGracePeriod.Duration
	}
	return nil
}
