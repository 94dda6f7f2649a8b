// Package config loads application configuration from environment variables
// into typed structs.
//
// It combines github.com/joho/godotenv (optional .env file support) with
// github.com/caarlos0/env (struct tag parsing). Each component of the module
// defines its own Config struct with `env` tags; this package is the single
// entry point that fills them in.
//
// # Usage
//
//	var cfg consumer.Config
//	config.MustLoad(&cfg)
//
// Load returns an error joined with ErrParsingConfig when a required variable
// is missing or a value cannot be converted to the field type; MustLoad panics
// instead, which is appropriate during process startup.
package config
