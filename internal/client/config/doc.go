// Package config loads runtime configuration for the GophBank client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional JSON file selected via -c or -config.
//  3. Command-line flags, which override earlier values.
//
// Supported flags
//
//	-a string     address:port of the bank server
//	-t duration   dial and per-request timeout (e.g. 5s)
//
// # JSON schema
//
//	{
//	  "server_endpoint_addr": "127.0.0.1:8888",
//	  "dial_timeout": "5s"
//	}
package config
