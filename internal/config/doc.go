// Package config handles configuration loading for lcu-gateway.
//
// # Configuration File
//
// Location (in order):
//
//  1. The --config flag
//  2. Path from LCU_GATEWAY_CONFIG environment variable
//  3. $XDG_CONFIG_HOME/lcu-gateway/config.yaml (default ~/.config)
//
// Files ending in .toml are decoded as TOML; anything else is YAML. A missing
// file is not an error for serve: defaults apply.
//
// # Environment Variable Expansion
//
// Values can reference environment variables:
//
//	client:
//	  port: ${LCU_PORT}
//	  auth_token: "${LCU_TOKEN}"
//
// # Sections
//
//	client:
//	  host: "127.0.0.1"
//	  port: 2999
//	  auth_token: "${LCU_TOKEN}"
//	  insecure_skip_verify: true   # control plane uses a self-signed cert
//	  request_timeout: "10s"
//
//	events:
//	  reconnect_initial: "1s"
//	  reconnect_max: "30s"
//	  log_uris:
//	    - "/lol-gameflow/v1/session"
//
//	server:
//	  http_addr: "127.0.0.1:8089"
//
//	logging:
//	  level: "info"    # debug, info, warn, error
//	  format: "text"   # text, json
//
//	telemetry:
//	  enabled: false
//	  exporter: "otlp-http"   # otlp-http, stdout, none
//	  endpoint: "localhost:4318"
//	  service_name: "lcu-gateway"
//	  sample_rate: 1.0
package config
