// Package config loads runtime configuration for the shiftdesk client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional config file selected with -c or -config. Files ending in
//     .yaml or .yml are decoded as YAML, everything else as JSON.
//  3. Environment: an optional dotenv file (-e/-env, or ./.env when present)
//     is loaded first, then SHIFTDESK_* variables are decoded.
//  4. Command-line flags (see parseFlags), which override earlier values.
//
// Supported flags
//
//	-a string   base URL of the REST API
//	-s string   URL of the realtime websocket endpoint
//	-l string   language sent as Accept-Language
//	-strict     fail on undecryptable response bodies
//	-m string   listen address of the metrics endpoint
//
// # File schema
//
// Intervals use timex.Duration, so values may be strings like "3s" or
// integer nanoseconds:
//
//	base_url: http://127.0.0.1:3000/api
//	socket_url: ws://127.0.0.1:3000/socket
//	health_check_interval: 30s
//	reconnect_max_attempts: 5
//	strict_decryption: false
//
// Invalid files, variables or flags panic; configuration is read once at
// startup.
package config
