// Package config loads engine configuration from environment variables
// using struct tags, with optional .env file support for development.
//
// Each engine package declares its own Config struct with `env` tags and
// sensible envDefault values; hosts call config.Load (or MustLoad at
// startup) to populate them.
package config
