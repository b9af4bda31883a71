// Package config handles configuration loading for taskdesk.
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
//	executor:
//	  api_key: "${TASKDESK_API_KEY}"
//
// Syntax: ${VAR_NAME}
//
// # Duration Parsing
//
// Duration values use Go's time.ParseDuration syntax:
//
//	dispatch:
//	  default_timeout: "60s"
//
// Supported units: ns, us, ms, s, m, h
//
// # Configuration Sections
//
// Server settings:
//
//	server:
//	  http_addr: "0.0.0.0:8080"  # API for the dashboard
//
// Database:
//
//	database:
//	  path: "/var/lib/taskdesk/taskdesk.db"
//
// Remote executor:
//
//	executor:
//	  provider: "openai"         # openai, deepseek, or compatible
//	  model: "gpt-4o-mini"
//	  api_key: "${TASKDESK_API_KEY}"
//	  base_url: ""               # override for compatible endpoints
//
// Dispatch:
//
//	dispatch:
//	  default_timeout: "60s"     # outer deadline on executor calls
//	  reserve_retries: 2         # extra lookups after a lost reservation race
//
// Logging:
//
//	logging:
//	  level: "info"   # debug, info, warn, error
//	  format: "text"  # text, json
//
// # Validation
//
// Load() validates:
//
//   - Database path presence
//   - Executor model presence
//   - Duration format validity
//   - Non-negative timeout and retry values
package config
