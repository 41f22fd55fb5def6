// Package config handles configuration loading for vaultgate.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable expansion.
// The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	auth:
//	  pepper: "${VAULTGATE_PEPPER}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	auth:
//	  challenge_ttl: "2m"
//	  access_ttl: "3m"
//	  refresh_ttl: "3h"
//
// # Configuration Sections
//
// Server and database:
//
//	server:
//	  http_addr: "0.0.0.0:8080"
//	  request_timeout: "10s"
//	database:
//	  path: "/var/lib/vaultgate/vaultgate.db"
//
// Authentication secrets (one per token scope, all required, all distinct):
//
//	auth:
//	  pepper: "${VAULTGATE_PEPPER}"
//	  challenge_secret: "${VAULTGATE_CHALLENGE_SECRET}"
//	  session_secret: "${VAULTGATE_SESSION_SECRET}"
//	  access_secret: "${VAULTGATE_ACCESS_SECRET}"
//	  refresh_secret: "${VAULTGATE_REFRESH_SECRET}"
//	  email_secret: "${VAULTGATE_EMAIL_SECRET}"
//
// # Validation
//
// Load() validates:
//
//   - All five scope secrets present and pairwise distinct
//   - refresh_ttl within the 3 hour hard cap
//   - SMTP settings complete when smtp.enabled is true
package config
