// Package config handles configuration loading for tether.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Configuration File
//
// Default locations (in order):
//
//  1. Path from TETHER_CONFIG environment variable
//  2. ./config.yaml (current directory)
//  3. ~/.config/tether/config.yaml
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  jwt_secret: "${TETHER_JWT_SECRET}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	sweep:
//	  interval: "5m"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"   # API and event streams
//
// Database:
//
//	database:
//	  path: "/var/lib/tether/tether.db"
//
// Identity provider:
//
//	identity:
//	  base_url: "https://api.clerk.example.com"
//	  api_key: "${TETHER_IDENTITY_KEY}"
//
// Authentication:
//
//	auth:
//	  jwt_secret: "${TETHER_JWT_SECRET}"
//
// Reconciliation sweep:
//
//	sweep:
//	  interval: "5m"
//
// Tailscale:
//
//	tailscale:
//	  enabled: false
//	  hostname: "tether"
//	  auth_key: "${TS_AUTHKEY}"
//	  funnel: false
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Usage
//
// Load configuration:
//
//	cfg, err := config.Load("/etc/tether/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
package config
