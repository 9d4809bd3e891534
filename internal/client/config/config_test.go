package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "127.0.0.1:8888", c.ServerEndpointAddr)
	assert.Equal(t, 5*time.Second, c.DialTimeout)
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client.json")
	b, err := json.Marshal(map[string]any{"server_endpoint_addr": "bank:9000", "dial_timeout": "2s"})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))

	tests := []struct {
		name      string
		args      []string
		expected  *Config
		expectErr bool
	}{
		{name: "defaults", args: nil,
			expected: &Config{ServerEndpointAddr: "127.0.0.1:8888", DialTimeout: 5 * time.Second}},
		{name: "flags", args: []string{"-a", "127.0.0.1:9090", "-t", "10s"},
			expected: &Config{ServerEndpointAddr: "127.0.0.1:9090", DialTimeout: 10 * time.Second}},
		{name: "json", args: []string{"-c", path},
			expected: &Config{ServerEndpointAddr: "bank:9000", DialTimeout: 2 * time.Second}},
		{name: "flags override json", args: []string{"-config", path, "-t", "1s"},
			expected: &Config{ServerEndpointAddr: "bank:9000", DialTimeout: time.Second}},
		{name: "bad timeout", args: []string{"-t", "abc"}, expectErr: true},
		{name: "missing file", args: []string{"-c", filepath.Join(dir, "nope.json")}, expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := load(tt.args)
			if tt.expectErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tt.expected, got))
		})
	}
}
