package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

var (
	// ErrParsingConfig wraps failures to parse environment variables into a
	// config struct, including missing required variables.
	ErrParsingConfig = errors.New("config: parsing environment failed")

	dotenvOnce sync.Once

	mu     sync.Mutex
	loaded = make(map[reflect.Type]any)
)

// LoadEnvFiles reads the named dotenv files into the process environment
// before any config struct is parsed. Variables already set in the
// environment win over file values.
func LoadEnvFiles(files ...string) error {
	if err := godotenv.Load(files...); err != nil {
		return fmt.Errorf("config: load env files: %w", err)
	}
	return nil
}

// Load parses the environment into a fresh T. The first successful parse of
// each struct type is cached; later calls return the cached copy so every
// component sees the same configuration.
func Load[T any]() (T, error) {
	dotenvOnce.Do(func() {
		// A missing .env file is fine outside local development.
		_ = godotenv.Load()
	})

	var zero T
	key := reflect.TypeOf(zero)

	mu.Lock()
	defer mu.Unlock()

	if v, ok := loaded[key]; ok {
		return v.(T), nil
	}

	cfg, err := env.ParseAs[T]()
	if err != nil {
		return zero, errors.Join(ErrParsingConfig, err)
	}

	loaded[key] = cfg
	return cfg, nil
}

// MustLoad is Load for configuration the process cannot start without.
func MustLoad[T any]() T {
	cfg, err := Load[T]()
	if err != nil {
		panic(err)
	}
	return cfg
}
