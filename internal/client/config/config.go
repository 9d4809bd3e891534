package config

import (
	"os"
	"time"
)

// Config holds runtime settings for the GophBank client.
type Config struct {
	ServerEndpointAddr string
	DialTimeout        time.Duration
}

// LoadDefaults populates c with defaults that match a local server.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:8888"
	c.DialTimeout = 5 * time.Second
}

// LoadConfig applies defaults, then JSON, then flags from the process
// command line.
func LoadConfig() (*Config, error) {
	return load(os.Args[1:])
}

func load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
