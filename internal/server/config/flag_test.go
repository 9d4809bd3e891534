package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlags(t *testing.T) {
	tests := []struct {
		expected  *Config
		name      string
		args      []string
		expectErr bool
	}{
		{name: "all flags", args: []string{
			"-a", "127.0.0.1:9090", "-g", ":7000", "-k", "s3", "-f", "snap.json", "-d", "db",
			"-u", "user", "-p", "password", "-b", "bucket", "-r", "us-west-1", "-e", "http://endpoint",
			"-o", "key.json", "-i", "0.1", "-t", "1h", "-w", "2s", "-l", "act.log", "-m", "2", "-v", "debug",
		},
			expected: &Config{
				ListenAddr:          "127.0.0.1:9090",
				HealthAddr:          ":7000",
				SnapshotBackend:     "s3",
				SnapshotPath:        "snap.json",
				DatabaseDSN:         "db",
				S3RootUser:          "user",
				S3RootPassword:      "password",
				S3Bucket:            "bucket",
				S3Region:            "us-west-1",
				S3BaseEndpoint:      "http://endpoint",
				S3Key:               "key.json",
				InterestRate:        decimal.RequireFromString("0.1"),
				InterestPeriod:      time.Hour,
				ShutdownGracePeriod: 2 * time.Second,
				ActivityLogPath:     "act.log",
				HashConcurrency:     2,
				LogLevel:            "debug",
			}},
		{name: "foreign flags ignored", args: []string{"-c", "cfg.json", "-z", "1", "-a", ":1"},
			expected: &Config{ListenAddr: ":1"}},
		{name: "bad duration", args: []string{"-t", "soon"}, expectErr: true},
		{name: "bad rate", args: []string{"-i", "five"}, expectErr: true},
		{name: "bad hash concurrency", args: []string{"-m", "many"}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := &Config{}
			err := parseFlags(config, tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, config))
		})
	}
}
