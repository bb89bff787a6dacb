package config

import (
	"errors"
	"fmt"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var defaultEnvLoaded sync.Once

// Load parses environment variables into the provided configuration struct
// based on `env` field tags. A .env file in the working directory is loaded
// once per process before the first parse; a missing file is not an error.
//
// Example:
//
//	type CoordinatorConfig struct {
//		QueueCapacity int           `env:"DELIVERY_QUEUE_CAPACITY" envDefault:"1000"`
//		Tick          time.Duration `env:"DELIVERY_TICK" envDefault:"1s"`
//	}
//
//	var cfg CoordinatorConfig
//	if err := config.Load(&cfg); err != nil { ... }
func Load[T any](v *T) error {
	if v == nil {
		return ErrNilPointer
	}

	defaultEnvLoaded.Do(func() {
		// The .env file is optional.
		_ = godotenv.Load()
	})

	if err := env.Parse(v); err != nil {
		return errors.Join(ErrParsingConfig, err)
	}
	return nil
}

// MustLoad works like Load but panics when loading fails. Used for
// configuration the process cannot start without.
func MustLoad[T any](v *T) {
	if err := Load(v); err != nil {
		panic(fmt.Sprintf("failed to load required configuration: %v", err))
	}
}

// LoadEnv loads one or more env files into the process environment before
// config structs are parsed. Later files do not override variables already
// set by earlier ones.
func LoadEnv(paths ...string) error {
	if err := godotenv.Load(paths...); err != nil {
		return errors.Join(ErrLoadingEnvFile, err)
	}
	return nil
}
