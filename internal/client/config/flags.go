package config

import (
	"fmt"

	"github.com/dmitrijs2005/gophbank/internal/flagx"
)

func parseFlags(config *Config, args []string) error {
	fs, args := flagx.NewFlagSet("client", args, "a", "t")

	fs.StringVar(&config.ServerEndpointAddr, "a", config.ServerEndpointAddr, "server address")
	fs.DurationVar(&config.DialTimeout, "t", config.DialTimeout, "dial and request timeout")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
